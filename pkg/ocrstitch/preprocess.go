package ocrstitch

import (
	"context"
	"fmt"
	"os"
)

// Preprocessor cleans rasterized page images with unpaper before OCR.
type Preprocessor struct {
	run   *Runner
	tools Tools
}

// Clean runs unpaper on the page raster and replaces it with the cleaned
// image. A failed or artifact-less cleanup yields a *PageError: the page is
// skipped rather than OCR'd from the dirty image, so a document processed
// with cleanup enabled never silently mixes cleaned and uncleaned pages.
func (pp *Preprocessor) Clean(ctx context.Context, ws *Workspace, p Page) error {
	in := ws.Join(p.ImageName())
	out := ws.Join(p.CleanedName())

	_, err := pp.run.Run(ctx, Cmd{
		Name: pp.tools.Unpaper,
		Args: []string{"--no-grayfilter", in, out},
	})
	if err != nil {
		return &PageError{Page: p.Number, Stage: StagePreprocess, Err: err}
	}
	if _, err := os.Stat(out); err != nil {
		return &PageError{Page: p.Number, Stage: StagePreprocess,
			Err: fmt.Errorf("unpaper exited cleanly but %s is missing", p.CleanedName())}
	}
	if err := os.Rename(out, in); err != nil {
		return &PageError{Page: p.Number, Stage: StagePreprocess, Err: err}
	}
	return nil
}
