package ocrstitch

import (
	"context"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"
)

// MergedName is the combined document inside the workspace.
const MergedName = "merged.pdf"

// Merger recombines per-page OCR'd PDFs into one document. Two mutually
// exclusive strategies exist, selected by engine:
//
//   - Incremental (tesseract): fold each finished page into the running
//     merged document and delete that page's intermediates, keeping the
//     working set constant at the price of O(N²) page merges.
//   - Batch (cuneiform/ocropus): keep everything and concatenate once at
//     the end in ascending page order.
type Merger struct {
	run   *Runner
	pdftk string
	log   *zap.Logger
}

// AppendPage folds one finished page into the running merged document, then
// deletes the page's intermediates unless the workspace retains them.
func (m *Merger) AppendPage(ctx context.Context, ws *Workspace, p Page) error {
	merged := ws.Join(MergedName)
	pagePDF := ws.Join(p.OCRPDFName())

	if _, err := os.Stat(merged); os.IsNotExist(err) {
		if err := copyFile(pagePDF, merged); err != nil {
			return &MergeError{Err: err}
		}
	} else {
		next := ws.Join("merged_next.pdf")
		if err := m.concat(ctx, []string{merged, pagePDF}, next); err != nil {
			return err
		}
		if err := os.Rename(next, merged); err != nil {
			return &MergeError{Err: err}
		}
	}

	if !ws.Keep() {
		for _, name := range p.intermediates() {
			ws.Remove(name)
		}
	}
	return nil
}

// Batch concatenates the successful pages' OCR'd PDFs, already sorted in
// ascending page order, into the merged document.
func (m *Merger) Batch(ctx context.Context, ws *Workspace, pages []Page) error {
	if len(pages) == 0 {
		return &MergeError{Err: fmt.Errorf("no pages to merge")}
	}
	inputs := make([]string, 0, len(pages))
	for _, p := range pages {
		inputs = append(inputs, ws.Join(p.OCRPDFName()))
	}
	return m.concat(ctx, inputs, ws.Join(MergedName))
}

// concat invokes pdftk to concatenate inputs into dest. A clean exit with no
// output file is still a merge failure.
func (m *Merger) concat(ctx context.Context, inputs []string, dest string) error {
	args := append(append([]string{}, inputs...), "cat", "output", dest)
	if _, err := m.run.Run(ctx, Cmd{Name: m.pdftk, Args: args}); err != nil {
		return &MergeError{Err: err}
	}
	if _, err := os.Stat(dest); err != nil {
		return &MergeError{Err: fmt.Errorf("pdftk exited cleanly but %s is missing", dest)}
	}
	return nil
}

// Verify cross-checks the merged document against the number of pages that
// survived the pipeline. The page count is read in-process rather than
// trusting tool exit status; a disagreement is reported as a diagnostic,
// not a failure, since some merge tools rebuild damaged page trees.
func (m *Merger) Verify(ws *Workspace, wantPages int) error {
	merged := ws.Join(MergedName)
	f, err := os.Open(merged)
	if err != nil {
		return &MergeError{Err: fmt.Errorf("merged document missing: %w", err)}
	}
	defer f.Close()

	got, err := api.PageCount(f, nil)
	if err != nil {
		m.log.Warn("could not verify merged document", zap.Error(err))
		return nil
	}
	if got != wantPages {
		m.log.Warn("merged document page count differs from successful pages",
			zap.Int("merged", got), zap.Int("expected", wantPages))
	}
	return nil
}
