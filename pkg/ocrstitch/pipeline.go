// Package ocrstitch drives the conversion of a scanned PDF into a
// searchable one.
//
// The pipeline extracts every page of the input as a single-page PDF,
// rasterizes it, optionally cleans the raster with unpaper, runs an OCR
// engine over it, and recombines the per-page OCR'd PDFs into one document
// with the original metadata reattached. All heavy lifting is delegated to
// external programs invoked with explicit argument vectors; this package
// contributes the orchestration: per-page failure recovery, the
// engine-specific merge strategy, and workspace lifecycle.
//
// Per-page failures (extraction, preprocessing, OCR) are logged and the
// page is skipped; merge and metadata failures abort the run. A run whose
// every page failed produces no output.
package ocrstitch

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pipeline is one orchestration run over a single document.
type Pipeline struct {
	cfg Config
	log *zap.Logger
	run *Runner

	extractor    *Extractor
	preprocessor *Preprocessor
	invoker      *Invoker
	merger       *Merger
}

// New validates the configuration, resolves the OCR engine (auto-selecting
// when unset), checks that every needed external binary is present, and
// validates the language against the engine's list. All fatal configuration
// problems surface here, before any file is touched.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.log()

	if cfg.Engine == EngineAuto {
		engine, err := AutoEngine(cfg.Tools)
		if err != nil {
			return nil, err
		}
		cfg.Engine = engine
		log.Info("auto-selected OCR engine", zap.Stringer("engine", engine))
	}

	run := NewRunner(log, cfg.Timeout)
	pl := &Pipeline{
		cfg: cfg,
		log: log,
		run: run,
	}

	useConvert, useHocr2pdf, err := pl.checkTools()
	if err != nil {
		return nil, err
	}

	pl.extractor = &Extractor{run: run, tools: cfg.Tools, dpi: cfg.DPI, useConvert: useConvert, log: log}
	pl.preprocessor = &Preprocessor{run: run, tools: cfg.Tools}
	pl.invoker = &Invoker{
		run:         run,
		tools:       cfg.Tools,
		engine:      cfg.Engine,
		lang:        cfg.Language,
		dpi:         cfg.DPI,
		useHocr2pdf: useHocr2pdf,
		log:         log,
	}
	pl.merger = &Merger{run: run, pdftk: cfg.Tools.Pdftk, log: log}

	if cfg.CheckLanguage {
		if err := pl.checkLanguage(); err != nil {
			return nil, err
		}
	}
	return pl, nil
}

// checkTools verifies the presence of every binary this configuration will
// invoke. Rasterization falls back from pdftoppm to convert, and the hOCR
// engines fall back from hocr2pdf to the built-in renderer, so those two are
// soft requirements.
func (pl *Pipeline) checkTools() (useConvert, useHocr2pdf bool, err error) {
	if err := LookupTool(pl.cfg.Tools.Pdftk); err != nil {
		return false, false, err
	}
	if err := LookupTool(pl.cfg.Engine.Binary(pl.cfg.Tools)); err != nil {
		return false, false, err
	}
	if pl.cfg.Preprocess {
		if err := LookupTool(pl.cfg.Tools.Unpaper); err != nil {
			return false, false, err
		}
	}

	if LookupTool(pl.cfg.Tools.Pdftoppm) != nil {
		if err := LookupTool(pl.cfg.Tools.Convert); err != nil {
			return false, false, &ToolMissingError{Tool: pl.cfg.Tools.Pdftoppm + " or " + pl.cfg.Tools.Convert}
		}
		useConvert = true
	}

	if !pl.cfg.Engine.Incremental() {
		if LookupTool(pl.cfg.Tools.Hocr2pdf) == nil {
			useHocr2pdf = true
		} else {
			// Built-in rendering needs convert for the PNM to PNG step.
			if err := LookupTool(pl.cfg.Tools.Convert); err != nil {
				return false, false, err
			}
			pl.log.Info("hocr2pdf not installed, using built-in hOCR renderer")
		}
	}
	return useConvert, useHocr2pdf, nil
}

// checkLanguage validates the configured language against the engine's
// advertised list. Engines that cannot enumerate languages skip the check.
func (pl *Pipeline) checkLanguage() error {
	langs, err := pl.invoker.Languages(context.Background())
	if err != nil {
		pl.log.Warn("could not list engine languages, skipping validation", zap.Error(err))
		return nil
	}
	if langs == nil {
		pl.log.Debug("engine does not enumerate languages, skipping validation")
		return nil
	}
	for _, l := range langs {
		if l == pl.cfg.Language {
			return nil
		}
	}
	return &ConfigError{Msg: fmt.Sprintf("language %q not supported by %s: install the language package or use --nocheck-lang",
		pl.cfg.Language, pl.cfg.Engine)}
}

// Run executes the pipeline. The output path is checked first: if a file
// already exists there, the run aborts before the input or any workspace is
// touched.
func (pl *Pipeline) Run(ctx context.Context) error {
	if _, err := os.Stat(pl.cfg.Output); err == nil {
		return &ConfigError{Msg: fmt.Sprintf("output file %s already exists", pl.cfg.Output)}
	}
	if _, err := os.Stat(pl.cfg.Input); err != nil {
		return &ConfigError{Msg: fmt.Sprintf("cannot read input file: %v", err)}
	}

	pl.warnExistingOCR()

	keep := pl.cfg.Keep || pl.cfg.WorkDir != ""
	ws, err := NewWorkspace(pl.cfg.WorkDir, keep, pl.log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			pl.log.Warn("workspace teardown failed", zap.Error(cerr))
		}
	}()
	pl.log.Info("working directory", zap.String("dir", ws.Dir()))

	info, err := DumpMetadata(ctx, pl.run, pl.cfg.Tools.Pdftk, pl.cfg.Input, ws)
	if err != nil {
		return err
	}
	pl.log.Info("processing document",
		zap.String("input", pl.cfg.Input),
		zap.Int("pages", info.Pages),
		zap.Stringer("engine", pl.cfg.Engine))

	pages := Pages(info.Pages)
	var done []Page
	if pl.cfg.Jobs > 1 {
		done, err = pl.processParallel(ctx, ws, pages)
	} else {
		done, err = pl.processSequential(ctx, ws, pages)
	}
	if err != nil {
		return err
	}

	if len(done) == 0 {
		return &MergeError{Err: fmt.Errorf("no page of %d was processed successfully", info.Pages)}
	}
	if len(done) < info.Pages {
		pl.log.Warn("some pages were skipped",
			zap.Int("succeeded", len(done)), zap.Int("total", info.Pages))
	}

	// The incremental strategy has already folded its pages together.
	if !pl.incrementalMerge() {
		if err := pl.merger.Batch(ctx, ws, done); err != nil {
			return err
		}
	}
	if err := pl.merger.Verify(ws, len(done)); err != nil {
		return err
	}

	if err := RestoreMetadata(ctx, pl.run, pl.cfg.Tools.Pdftk, ws, ws.Join(MergedName), pl.cfg.Output); err != nil {
		return err
	}
	pl.log.Info("wrote searchable PDF", zap.String("output", pl.cfg.Output))
	return nil
}

// incrementalMerge reports whether this run merges page-by-page. Parallel
// runs always batch: pages finish out of order, and the batch merge is the
// synchronization point that restores ascending order.
func (pl *Pipeline) incrementalMerge() bool {
	return pl.cfg.Engine.Incremental() && pl.cfg.Jobs == 1
}

// processSequential walks the pages in order, applying the per-page failure
// policy: a *PageError is logged and the page skipped, anything else aborts.
func (pl *Pipeline) processSequential(ctx context.Context, ws *Workspace, pages []Page) ([]Page, error) {
	var done []Page
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if err := pl.processPage(ctx, ws, p); err != nil {
			if !IsPageError(err) {
				return done, err
			}
			pl.log.Warn("skipping page", zap.Int("page", p.Number), zap.Error(err))
			continue
		}
		if pl.incrementalMerge() {
			if err := pl.merger.AppendPage(ctx, ws, p); err != nil {
				return done, err
			}
		}
		done = append(done, p)
	}
	return done, nil
}

// processParallel runs extraction, preprocessing and OCR for all pages on a
// bounded worker pool. Merging happens afterwards in ascending page order.
func (pl *Pipeline) processParallel(ctx context.Context, ws *Workspace, pages []Page) ([]Page, error) {
	var mu sync.Mutex
	var done []Page

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(pl.cfg.Jobs)
	for _, p := range pages {
		p := p
		grp.Go(func() error {
			if err := pl.processPage(grpCtx, ws, p); err != nil {
				if !IsPageError(err) {
					return err
				}
				pl.log.Warn("skipping page", zap.Int("page", p.Number), zap.Error(err))
				return nil
			}
			mu.Lock()
			done = append(done, p)
			mu.Unlock()
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(done, func(i, j int) bool { return done[i].Number < done[j].Number })
	return done, nil
}

// processPage runs the per-page stages: extract, optional preprocess, OCR.
func (pl *Pipeline) processPage(ctx context.Context, ws *Workspace, p Page) error {
	pl.log.Debug("processing page", zap.Int("page", p.Number), zap.String("id", p.ID))

	if err := pl.extractor.Extract(ctx, ws, pl.cfg.Input, p); err != nil {
		return err
	}
	if pl.cfg.Preprocess {
		if err := pl.preprocessor.Clean(ctx, ws, p); err != nil {
			return err
		}
	}
	return pl.invoker.OCRPage(ctx, ws, p)
}

// warnExistingOCR looks for OCR-like text layers in the input document.
// Running OCR over an already-OCR'd file just duplicates text, but the
// decision stays with the user.
func (pl *Pipeline) warnExistingOCR() {
	data, err := os.ReadFile(pl.cfg.Input)
	if err != nil {
		return
	}
	if layers := DetectOCRLayers(data); len(layers) > 0 {
		pl.log.Warn("input appears to contain an OCR text layer already",
			zap.Strings("layers", layers))
	}
}
