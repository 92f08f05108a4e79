// ocrstitch is a command-line tool that converts a scanned PDF into a
// searchable PDF.
//
// Each page is extracted and rasterized, optionally cleaned with unpaper,
// run through an OCR engine, and the per-page results are stitched back
// into one document with the original metadata restored.
//
// Usage:
//
//	ocrstitch -i scanned.pdf -o searchable.pdf [options]
//
// Required flags:
//
//	-i, --input FILE    Input PDF
//	-o, --output FILE   Output PDF (must not exist)
//
// Engine selection (mutually exclusive; default: first installed of
// tesseract, cuneiform, ocropus):
//
//	-t, --tesseract     Use tesseract
//	-c, --cuneiform     Use cuneiform
//	-p, --ocropus       Use ocropus (ocroscript)
//
// Processing options:
//
//	-l, --lang LANG          OCR language, validated against the engine (default eng)
//	-L, --nocheck-lang LANG  OCR language, passed through unvalidated
//	-u, --unpaper            Clean page images with unpaper before OCR
//	-j, --jobs N             Process N pages in parallel (default 1)
//	    --dpi N              Rasterization resolution (default 300)
//	    --timeout D          Per external-command timeout (default 10m)
//
// Workspace options:
//
//	-w, --workingdir DIR  Use DIR as the working directory (implies -k)
//	-k, --keep            Keep the working directory and intermediates
//
// Other:
//
//	    --config FILE  YAML file with defaults (engine, lang, dpi, jobs,
//	                   timeout, tool binary names)
//	    --verbose      Log external tool output
//	-v, --version      Print version and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ocrstitch/ocrstitch/pkg/ocrstitch"
)

const version = "0.3.1"

func main() {
	var (
		input       = flag.String("input", "", "input PDF file")
		output      = flag.String("output", "", "output PDF file")
		useTess     = flag.Bool("tesseract", false, "use the tesseract OCR engine")
		useCuneif   = flag.Bool("cuneiform", false, "use the cuneiform OCR engine")
		useOcropus  = flag.Bool("ocropus", false, "use the ocropus OCR engine")
		lang        = flag.String("lang", "", "OCR language, validated against the engine's language list")
		langRaw     = flag.String("nocheck-lang", "", "OCR language, passed to the engine unvalidated")
		preprocess  = flag.Bool("unpaper", false, "clean page images with unpaper before OCR")
		workDir     = flag.String("workingdir", "", "working directory (implies -keep)")
		keep        = flag.Bool("keep", false, "keep the working directory and intermediates")
		jobs        = flag.Int("jobs", 0, "number of pages to process in parallel")
		dpi         = flag.Int("dpi", 0, "rasterization resolution")
		timeout     = flag.Duration("timeout", 0, "timeout per external command")
		configFile  = flag.String("config", "", "YAML config file with defaults")
		verbose     = flag.Bool("verbose", false, "log external tool output")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	alias := map[string]string{
		"i": "input", "o": "output", "t": "tesseract", "c": "cuneiform",
		"p": "ocropus", "l": "lang", "L": "nocheck-lang", "u": "unpaper",
		"w": "workingdir", "k": "keep", "j": "jobs", "v": "version",
	}
	for short, long := range alias {
		f := flag.Lookup(long)
		flag.Var(f.Value, short, "shorthand for -"+long)
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("ocrstitch version %s\n", version)
		return
	}

	logger := newLogger(*verbose)
	defer logger.Sync()

	cfg := ocrstitch.DefaultConfig()
	cfg.Logger = logger
	if *configFile != "" {
		if err := cfg.ApplyFile(*configFile); err != nil {
			fatal(logger, err)
		}
	}

	cfg.Input = *input
	cfg.Output = *output
	cfg.WorkDir = *workDir
	if *keep {
		cfg.Keep = true
	}
	if *preprocess {
		cfg.Preprocess = true
	}
	if *jobs > 0 {
		cfg.Jobs = *jobs
	}
	if *dpi > 0 {
		cfg.DPI = *dpi
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}

	switch {
	case *lang != "" && *langRaw != "":
		fatal(logger, fmt.Errorf("use either -lang or -nocheck-lang, not both"))
	case *lang != "":
		cfg.Language = *lang
		cfg.CheckLanguage = true
	case *langRaw != "":
		cfg.Language = *langRaw
		cfg.CheckLanguage = false
	}

	engine, err := pickEngine(*useTess, *useCuneif, *useOcropus)
	if err != nil {
		fatal(logger, err)
	}
	if engine != ocrstitch.EngineAuto {
		cfg.Engine = engine
	}

	pipeline, err := ocrstitch.New(cfg)
	if err != nil {
		fatal(logger, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := pipeline.Run(ctx); err != nil {
		fatal(logger, err)
	}
	logger.Info("done", zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
}

// pickEngine maps the mutually exclusive engine flags onto the engine enum.
func pickEngine(tess, cuneiform, ocropus bool) (ocrstitch.Engine, error) {
	var picked ocrstitch.Engine
	count := 0
	if tess {
		picked, count = ocrstitch.EngineTesseract, count+1
	}
	if cuneiform {
		picked, count = ocrstitch.EngineCuneiform, count+1
	}
	if ocropus {
		picked, count = ocrstitch.EngineOcropus, count+1
	}
	if count > 1 {
		return ocrstitch.EngineAuto, fmt.Errorf("options -t, -c and -p are mutually exclusive")
	}
	return picked, nil
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func fatal(logger *zap.Logger, err error) {
	logger.Error(err.Error())
	logger.Sync()
	os.Exit(1)
}
