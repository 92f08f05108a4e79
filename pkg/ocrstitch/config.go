package ocrstitch

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Engine selects the OCR program that recognizes text on page images.
type Engine int

const (
	// EngineAuto picks the first installed engine in priority order
	// tesseract, cuneiform, ocropus.
	EngineAuto Engine = iota
	EngineTesseract
	EngineCuneiform
	EngineOcropus
)

func (e Engine) String() string {
	switch e {
	case EngineTesseract:
		return "tesseract"
	case EngineCuneiform:
		return "cuneiform"
	case EngineOcropus:
		return "ocropus"
	default:
		return "auto"
	}
}

// Tools holds the names (or paths) of the external binaries the pipeline
// invokes. Every field can be overridden to point at a differently named or
// non-PATH binary.
type Tools struct {
	Pdftk      string `yaml:"pdftk"`
	Pdftoppm   string `yaml:"pdftoppm"`
	Convert    string `yaml:"convert"`
	Unpaper    string `yaml:"unpaper"`
	Tesseract  string `yaml:"tesseract"`
	Cuneiform  string `yaml:"cuneiform"`
	Ocroscript string `yaml:"ocroscript"`
	Hocr2pdf   string `yaml:"hocr2pdf"`
}

// DefaultTools returns the conventional binary names.
func DefaultTools() Tools {
	return Tools{
		Pdftk:      "pdftk",
		Pdftoppm:   "pdftoppm",
		Convert:    "convert",
		Unpaper:    "unpaper",
		Tesseract:  "tesseract",
		Cuneiform:  "cuneiform",
		Ocroscript: "ocroscript",
		Hocr2pdf:   "hocr2pdf",
	}
}

// Config holds all options for one pipeline run. It is immutable once the
// pipeline has been constructed; every component receives it by reference
// from the orchestrator.
type Config struct {
	Input  string // source PDF
	Output string // destination PDF, must not pre-exist

	Engine        Engine
	Language      string // engine language code, e.g. "eng"
	CheckLanguage bool   // validate Language against the engine's list

	Preprocess bool // clean page images with unpaper before OCR

	WorkDir string // workspace path override; implies Keep
	Keep    bool   // retain the workspace and intermediates

	DPI     int           // rasterization resolution
	Jobs    int           // parallel page workers, 1 = sequential
	Timeout time.Duration // per external-process invocation

	Tools  Tools
	Logger *zap.Logger
}

// DefaultConfig returns a config with the defaults the CLI starts from.
func DefaultConfig() Config {
	return Config{
		Engine:        EngineAuto,
		Language:      "eng",
		CheckLanguage: true,
		DPI:           300,
		Jobs:          1,
		Timeout:       10 * time.Minute,
		Tools:         DefaultTools(),
	}
}

// Validate checks the parts of the configuration that can be judged without
// touching the filesystem or external tools.
func (c *Config) Validate() error {
	if c.Input == "" {
		return &ConfigError{Msg: "no input file specified"}
	}
	if c.Output == "" {
		return &ConfigError{Msg: "no output file specified"}
	}
	if c.Input == c.Output {
		return &ConfigError{Msg: "input and output are the same file"}
	}
	if c.Language == "" {
		return &ConfigError{Msg: "no language specified"}
	}
	if c.DPI < 1 {
		return &ConfigError{Msg: fmt.Sprintf("invalid resolution %d dpi", c.DPI)}
	}
	if c.Jobs < 1 {
		return &ConfigError{Msg: fmt.Sprintf("invalid job count %d", c.Jobs)}
	}
	return nil
}

// fileDefaults is the YAML config file schema. Only values present in the
// file are applied; flags given on the command line still win.
type fileDefaults struct {
	Engine   string `yaml:"engine"`
	Language string `yaml:"lang"`
	DPI      int    `yaml:"dpi"`
	Jobs     int    `yaml:"jobs"`
	Timeout  string `yaml:"timeout"`
	Keep     *bool  `yaml:"keep"`
	Unpaper  *bool  `yaml:"unpaper"`
	Tools    *Tools `yaml:"tools"`
}

// ApplyFile overlays defaults from a YAML file onto the config.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Msg: fmt.Sprintf("reading config file: %v", err)}
	}
	var fd fileDefaults
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return &ConfigError{Msg: fmt.Sprintf("parsing config file %s: %v", path, err)}
	}

	if fd.Engine != "" {
		engine, err := ParseEngine(fd.Engine)
		if err != nil {
			return err
		}
		c.Engine = engine
	}
	if fd.Language != "" {
		c.Language = fd.Language
	}
	if fd.DPI != 0 {
		c.DPI = fd.DPI
	}
	if fd.Jobs != 0 {
		c.Jobs = fd.Jobs
	}
	if fd.Timeout != "" {
		d, err := time.ParseDuration(fd.Timeout)
		if err != nil {
			return &ConfigError{Msg: fmt.Sprintf("invalid timeout in config file: %v", err)}
		}
		c.Timeout = d
	}
	if fd.Keep != nil {
		c.Keep = *fd.Keep
	}
	if fd.Unpaper != nil {
		c.Preprocess = *fd.Unpaper
	}
	if fd.Tools != nil {
		overlayTools(&c.Tools, fd.Tools)
	}
	return nil
}

// overlayTools copies the binary names present in the file over the
// defaults; empty fields mean "not set".
func overlayTools(dst, src *Tools) {
	set := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	set(&dst.Pdftk, src.Pdftk)
	set(&dst.Pdftoppm, src.Pdftoppm)
	set(&dst.Convert, src.Convert)
	set(&dst.Unpaper, src.Unpaper)
	set(&dst.Tesseract, src.Tesseract)
	set(&dst.Cuneiform, src.Cuneiform)
	set(&dst.Ocroscript, src.Ocroscript)
	set(&dst.Hocr2pdf, src.Hocr2pdf)
}

// ParseEngine maps an engine name to its Engine value.
func ParseEngine(name string) (Engine, error) {
	switch name {
	case "auto", "":
		return EngineAuto, nil
	case "tesseract":
		return EngineTesseract, nil
	case "cuneiform":
		return EngineCuneiform, nil
	case "ocropus":
		return EngineOcropus, nil
	default:
		return EngineAuto, &ConfigError{Msg: fmt.Sprintf("unknown OCR engine %q", name)}
	}
}

func (c *Config) log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
