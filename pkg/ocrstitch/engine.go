package ocrstitch

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ocrstitch/ocrstitch/pkg/hocr"
	"github.com/ocrstitch/ocrstitch/pkg/hocrpdf"
)

// adapter holds the per-engine behavior consumed by the dispatch table:
// how to invoke the engine on a page and which merge strategy its output
// requires.
type adapter struct {
	binary      func(Tools) string
	invoke      func(*Invoker, context.Context, *Workspace, Page) error
	incremental bool // merge page-by-page instead of once at the end
	languages   func(*Invoker, context.Context) ([]string, error)
}

// adapters is the dispatch table keyed by engine variant.
var adapters = map[Engine]adapter{
	EngineTesseract: {
		binary:      func(t Tools) string { return t.Tesseract },
		invoke:      (*Invoker).tesseractPage,
		incremental: true,
		languages:   (*Invoker).tesseractLanguages,
	},
	EngineCuneiform: {
		binary:    func(t Tools) string { return t.Cuneiform },
		invoke:    (*Invoker).cuneiformPage,
		languages: (*Invoker).cuneiformLanguages,
	},
	EngineOcropus: {
		binary: func(t Tools) string { return t.Ocroscript },
		invoke: (*Invoker).ocropusPage,
	},
}

// enginePriority is the auto-selection order.
var enginePriority = []Engine{EngineTesseract, EngineCuneiform, EngineOcropus}

// AutoEngine picks the first engine whose binary is installed.
func AutoEngine(tools Tools) (Engine, error) {
	for _, engine := range enginePriority {
		if _, err := exec.LookPath(adapters[engine].binary(tools)); err == nil {
			return engine, nil
		}
	}
	return EngineAuto, &ConfigError{Msg: "no OCR engine found: install tesseract, cuneiform or ocropus"}
}

// Incremental reports whether the engine's output is merged page-by-page.
func (e Engine) Incremental() bool { return adapters[e].incremental }

// Binary returns the engine's binary name under the given tool config.
func (e Engine) Binary(tools Tools) string { return adapters[e].binary(tools) }

// Invoker runs the configured OCR engine on page images and normalizes
// every engine's output into a per-page OCR'd PDF.
type Invoker struct {
	run    *Runner
	tools  Tools
	engine Engine
	lang   string
	dpi    int

	// useHocr2pdf selects the external converter for the hOCR engines;
	// when false the built-in fpdf renderer is used instead.
	useHocr2pdf bool

	log *zap.Logger
}

// OCRPage runs the engine on the page raster, leaving <id>_ocr.pdf in the
// workspace. Failures are recoverable at page granularity.
func (v *Invoker) OCRPage(ctx context.Context, ws *Workspace, p Page) error {
	return adapters[v.engine].invoke(v, ctx, ws, p)
}

// Languages lists the language codes the engine advertises. A nil list with
// nil error means the engine cannot enumerate languages and validation is
// skipped.
func (v *Invoker) Languages(ctx context.Context) ([]string, error) {
	list := adapters[v.engine].languages
	if list == nil {
		return nil, nil
	}
	return list(v, ctx)
}

// tesseractPage OCRs a page straight to PDF. Tesseract writes <base>.pdf for
// an output base path. When tesseract fails or leaves no PDF behind, the
// extracted non-OCR page stands in for the OCR'd one so the merge step still
// has a file for this page; the hOCR engines have no such fallback.
func (v *Invoker) tesseractPage(ctx context.Context, ws *Workspace, p Page) error {
	base := strings.TrimSuffix(ws.Join(p.OCRPDFName()), ".pdf")
	_, err := v.run.Run(ctx, Cmd{
		Name: v.tools.Tesseract,
		Args: []string{ws.Join(p.ImageName()), base, "-l", v.lang, "pdf"},
	})
	if err == nil {
		if _, statErr := os.Stat(ws.Join(p.OCRPDFName())); statErr == nil {
			return nil
		}
		err = fmt.Errorf("tesseract exited cleanly but %s is missing", p.OCRPDFName())
	}

	v.log.Warn("tesseract failed, using non-OCR page as fallback",
		zap.Int("page", p.Number), zap.Error(err))
	if copyErr := copyFile(ws.Join(p.PDFName()), ws.Join(p.OCRPDFName())); copyErr != nil {
		return &PageError{Page: p.Number, Stage: StageOCR, Err: copyErr}
	}
	return nil
}

// cuneiformPage OCRs a page to hOCR markup, then converts it to PDF.
func (v *Invoker) cuneiformPage(ctx context.Context, ws *Workspace, p Page) error {
	hocrPath := ws.Join(p.HOCRName())
	_, err := v.run.Run(ctx, Cmd{
		Name: v.tools.Cuneiform,
		Args: []string{"-l", v.lang, "-f", "hocr", "-o", hocrPath, ws.Join(p.ImageName())},
	})
	if err != nil {
		return &PageError{Page: p.Number, Stage: StageOCR, Err: err}
	}
	if _, err := os.Stat(hocrPath); err != nil {
		return &PageError{Page: p.Number, Stage: StageOCR,
			Err: fmt.Errorf("cuneiform exited cleanly but %s is missing", p.HOCRName())}
	}
	return v.hocrToPDF(ctx, ws, p)
}

// ocropusPage OCRs a page with ocroscript, which emits hOCR on stdout.
func (v *Invoker) ocropusPage(ctx context.Context, ws *Workspace, p Page) error {
	args := []string{"recognize"}
	if v.lang != "" {
		args = append(args, "--tesslanguage="+v.lang)
	}
	args = append(args, ws.Join(p.ImageName()))

	result, err := v.run.Run(ctx, Cmd{Name: v.tools.Ocroscript, Args: args})
	if err != nil {
		return &PageError{Page: p.Number, Stage: StageOCR, Err: err}
	}
	if strings.TrimSpace(result.Stdout) == "" {
		return &PageError{Page: p.Number, Stage: StageOCR,
			Err: fmt.Errorf("ocroscript produced no hOCR output")}
	}
	if err := os.WriteFile(ws.Join(p.HOCRName()), []byte(result.Stdout), 0o644); err != nil {
		return &PageError{Page: p.Number, Stage: StageOCR, Err: err}
	}
	return v.hocrToPDF(ctx, ws, p)
}

// hocrToPDF turns a page's hOCR markup plus its raster into <id>_ocr.pdf,
// either through the external hocr2pdf tool or the built-in renderer.
func (v *Invoker) hocrToPDF(ctx context.Context, ws *Workspace, p Page) error {
	if v.useHocr2pdf {
		return v.hocrToPDFExternal(ctx, ws, p)
	}
	return v.hocrToPDFBuiltin(ctx, ws, p)
}

func (v *Invoker) hocrToPDFExternal(ctx context.Context, ws *Workspace, p Page) error {
	hocrFile, err := os.Open(ws.Join(p.HOCRName()))
	if err != nil {
		return &PageError{Page: p.Number, Stage: StageOCR, Err: err}
	}
	defer hocrFile.Close()

	out := ws.Join(p.OCRPDFName())
	_, err = v.run.Run(ctx, Cmd{
		Name:  v.tools.Hocr2pdf,
		Args:  []string{"-r", strconv.Itoa(v.dpi), "-i", ws.Join(p.ImageName()), "-o", out},
		Stdin: hocrFile,
	})
	if err != nil {
		return &PageError{Page: p.Number, Stage: StageOCR, Err: err}
	}
	if _, err := os.Stat(out); err != nil {
		return &PageError{Page: p.Number, Stage: StageOCR,
			Err: fmt.Errorf("hocr2pdf exited cleanly but %s is missing", p.OCRPDFName())}
	}
	return nil
}

// hocrToPDFBuiltin renders the page in-process. The raster is in PNM, which
// the PDF library cannot embed, so it is converted to PNG first.
func (v *Invoker) hocrToPDFBuiltin(ctx context.Context, ws *Workspace, p Page) error {
	png := ws.Join(p.PNGName())
	if _, err := v.run.Run(ctx, Cmd{
		Name: v.tools.Convert,
		Args: []string{ws.Join(p.ImageName()), png},
	}); err != nil {
		return &PageError{Page: p.Number, Stage: StageOCR, Err: err}
	}

	imageData, err := os.ReadFile(png)
	if err != nil {
		return &PageError{Page: p.Number, Stage: StageOCR, Err: err}
	}
	hocrData, err := os.ReadFile(ws.Join(p.HOCRName()))
	if err != nil {
		return &PageError{Page: p.Number, Stage: StageOCR, Err: err}
	}

	doc, err := hocr.Parse(hocrData)
	if err != nil {
		return &PageError{Page: p.Number, Stage: StageOCR, Err: err}
	}
	pdfData, err := hocrpdf.Render(imageData, doc.Pages[0], hocrpdf.Options{})
	if err != nil {
		return &PageError{Page: p.Number, Stage: StageOCR, Err: err}
	}
	if err := os.WriteFile(ws.Join(p.OCRPDFName()), pdfData, 0o644); err != nil {
		return &PageError{Page: p.Number, Stage: StageOCR, Err: err}
	}
	return nil
}

// tesseractLanguages parses `tesseract --list-langs`, which prints a header
// line followed by one language code per line (on stderr in older versions).
func (v *Invoker) tesseractLanguages(ctx context.Context) ([]string, error) {
	result, err := v.run.Run(ctx, Cmd{
		Name:           v.tools.Tesseract,
		Args:           []string{"--list-langs"},
		CombinedOutput: true,
	})
	if err != nil {
		return nil, err
	}
	var langs []string
	for _, line := range strings.Split(result.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, " ") {
			continue
		}
		langs = append(langs, line)
	}
	return langs, nil
}

// cuneiformLanguages parses the "Supported languages: eng ger ..." line that
// cuneiform prints when invoked with -l alone.
func (v *Invoker) cuneiformLanguages(ctx context.Context) ([]string, error) {
	result, err := v.run.Run(ctx, Cmd{
		Name:           v.tools.Cuneiform,
		Args:           []string{"-l"},
		CombinedOutput: true,
	})
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(result.Stdout, "\n") {
		if _, rest, found := strings.Cut(line, "languages:"); found {
			return strings.Fields(strings.TrimSuffix(strings.TrimSpace(rest), ".")), nil
		}
	}
	return nil, fmt.Errorf("cuneiform did not report a language list")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
