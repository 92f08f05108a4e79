package ocrstitch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
)

// Extractor produces the per-page artifacts the OCR step consumes: a
// single-page PDF cut out of the input document and a raster image of it.
type Extractor struct {
	run        *Runner
	tools      Tools
	dpi        int
	useConvert bool // rasterize with ImageMagick when pdftoppm is absent
	log        *zap.Logger
}

// Extract cuts page p out of the input PDF and rasterizes it. Both failures
// are recoverable at page granularity: the command status and the presence
// of the expected artifact are checked, and either missing yields a
// *PageError that makes the orchestrator skip this page.
func (e *Extractor) Extract(ctx context.Context, ws *Workspace, input string, p Page) error {
	pagePDF := ws.Join(p.PDFName())
	_, err := e.run.Run(ctx, Cmd{
		Name: e.tools.Pdftk,
		Args: []string{input, "cat", strconv.Itoa(p.Number), "output", pagePDF},
	})
	if err != nil {
		return &PageError{Page: p.Number, Stage: StageExtract, Err: err}
	}
	if _, err := os.Stat(pagePDF); err != nil {
		return &PageError{Page: p.Number, Stage: StageExtract,
			Err: fmt.Errorf("pdftk exited cleanly but %s is missing", p.PDFName())}
	}

	if e.useConvert {
		return e.rasterizeConvert(ctx, ws, pagePDF, p)
	}
	return e.rasterizePpm(ctx, ws, pagePDF, p)
}

func (e *Extractor) rasterizePpm(ctx context.Context, ws *Workspace, pagePDF string, p Page) error {
	// pdftoppm appends its own page suffix to the output root, so render
	// under a scratch root and rename the single result into place.
	root := ws.Join(p.ID + "_raster")
	dpi := strconv.Itoa(e.dpi)
	_, err := e.run.Run(ctx, Cmd{
		Name: e.tools.Pdftoppm,
		Args: []string{"-r", dpi, "-gray", pagePDF, root},
	})
	if err != nil {
		return &PageError{Page: p.Number, Stage: StageExtract, Err: err}
	}

	matches, _ := filepath.Glob(root + "*")
	if len(matches) == 0 {
		return &PageError{Page: p.Number, Stage: StageExtract,
			Err: fmt.Errorf("pdftoppm produced no raster for %s", p.PDFName())}
	}
	if len(matches) > 1 {
		e.log.Warn("single-page raster produced multiple files, using first",
			zap.Int("page", p.Number), zap.Int("files", len(matches)))
	}
	if err := os.Rename(matches[0], ws.Join(p.ImageName())); err != nil {
		return &PageError{Page: p.Number, Stage: StageExtract, Err: err}
	}
	return nil
}

func (e *Extractor) rasterizeConvert(ctx context.Context, ws *Workspace, pagePDF string, p Page) error {
	image := ws.Join(p.ImageName())
	_, err := e.run.Run(ctx, Cmd{
		Name: e.tools.Convert,
		Args: []string{"-density", fmt.Sprintf("%dx%d", e.dpi, e.dpi), pagePDF, image},
	})
	if err != nil {
		return &PageError{Page: p.Number, Stage: StageExtract, Err: err}
	}
	if _, err := os.Stat(image); err != nil {
		return &PageError{Page: p.Number, Stage: StageExtract,
			Err: fmt.Errorf("convert exited cleanly but %s is missing", p.ImageName())}
	}
	return nil
}
