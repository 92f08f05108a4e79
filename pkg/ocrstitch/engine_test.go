package ocrstitch

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestAutoEnginePriority(t *testing.T) {
	// exclusive PATH so engines installed on the test host are invisible
	dir := t.TempDir()
	t.Setenv("PATH", dir)
	tools := DefaultTools()

	_, err := AutoEngine(tools)
	require.Error(t, err, "no engine installed")
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)

	writeStub(t, dir, "ocroscript", `exit 0`)
	engine, err := AutoEngine(tools)
	require.NoError(t, err)
	assert.Equal(t, EngineOcropus, engine)

	writeStub(t, dir, "cuneiform", `exit 0`)
	engine, err = AutoEngine(tools)
	require.NoError(t, err)
	assert.Equal(t, EngineCuneiform, engine)

	writeStub(t, dir, "tesseract", `exit 0`)
	engine, err = AutoEngine(tools)
	require.NoError(t, err)
	assert.Equal(t, EngineTesseract, engine)
}

func TestEngineMergeStrategy(t *testing.T) {
	assert.True(t, EngineTesseract.Incremental())
	assert.False(t, EngineCuneiform.Incremental())
	assert.False(t, EngineOcropus.Incremental())
}

func newTestInvoker(t *testing.T, engine Engine) *Invoker {
	log := zaptest.NewLogger(t)
	return &Invoker{
		run:    NewRunner(log, 0),
		tools:  DefaultTools(),
		engine: engine,
		lang:   "eng",
		dpi:    300,
		log:    log,
	}
}

func TestTesseractLanguages(t *testing.T) {
	dir := stubDir(t)
	// tesseract prints the list to stderr with a header line
	writeStub(t, dir, "tesseract", `echo "List of available languages (3):" >&2
echo "eng" >&2
echo "deu" >&2
echo "fra" >&2`)

	langs, err := newTestInvoker(t, EngineTesseract).Languages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"eng", "deu", "fra"}, langs)
}

func TestCuneiformLanguages(t *testing.T) {
	dir := stubDir(t)
	writeStub(t, dir, "cuneiform", `echo "Cuneiform for Linux 1.1.0"
echo "Supported languages: eng ger fra rus spa ita."`)

	langs, err := newTestInvoker(t, EngineCuneiform).Languages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"eng", "ger", "fra", "rus", "spa", "ita"}, langs)
}

func TestOcropusLanguagesUnavailable(t *testing.T) {
	langs, err := newTestInvoker(t, EngineOcropus).Languages(context.Background())
	require.NoError(t, err)
	assert.Nil(t, langs, "ocropus cannot enumerate languages")
}

func TestTesseractPage(t *testing.T) {
	dir := stubDir(t)
	// args: <image> <base> -l <lang> pdf
	writeStub(t, dir, "tesseract", `echo "ocr of $1" > "$2.pdf"`)

	ws, err := NewWorkspace("", false, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer ws.Close()

	p := Page{Number: 1, ID: "001"}
	require.NoError(t, os.WriteFile(ws.Join(p.ImageName()), []byte("raster"), 0o644))

	require.NoError(t, newTestInvoker(t, EngineTesseract).OCRPage(context.Background(), ws, p))
	data, err := os.ReadFile(ws.Join(p.OCRPDFName()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "001.ppm")
}

func TestTesseractFallbackToPlainPage(t *testing.T) {
	dir := stubDir(t)
	writeStub(t, dir, "tesseract", `exit 1`)

	ws, err := NewWorkspace("", false, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer ws.Close()

	p := Page{Number: 2, ID: "002"}
	require.NoError(t, os.WriteFile(ws.Join(p.PDFName()), []byte("%PDF-plain-page"), 0o644))
	require.NoError(t, os.WriteFile(ws.Join(p.ImageName()), []byte("raster"), 0o644))

	require.NoError(t, newTestInvoker(t, EngineTesseract).OCRPage(context.Background(), ws, p))
	data, err := os.ReadFile(ws.Join(p.OCRPDFName()))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-plain-page", string(data), "fallback must reuse the non-OCR page")
}

func TestCuneiformPageExternalConverter(t *testing.T) {
	dir := stubDir(t)
	writeStub(t, dir, "cuneiform", `out=""
next=0
for a in "$@"; do
  if [ "$next" = 1 ]; then out="$a"; next=0; fi
  if [ "$a" = "-o" ]; then next=1; fi
done
echo "<html/>" > "$out"`)
	writeStub(t, dir, "hocr2pdf", `out=""
next=0
for a in "$@"; do
  if [ "$next" = 1 ]; then out="$a"; next=0; fi
  if [ "$a" = "-o" ]; then next=1; fi
done
cat > /dev/null
echo "%PDF-from-hocr" > "$out"`)

	ws, err := NewWorkspace("", false, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer ws.Close()

	p := Page{Number: 1, ID: "001"}
	require.NoError(t, os.WriteFile(ws.Join(p.ImageName()), []byte("raster"), 0o644))

	inv := newTestInvoker(t, EngineCuneiform)
	inv.useHocr2pdf = true
	require.NoError(t, inv.OCRPage(context.Background(), ws, p))

	data, err := os.ReadFile(ws.Join(p.OCRPDFName()))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-from-hocr\n", string(data))
}

func TestCuneiformMissingOutputIsPageError(t *testing.T) {
	dir := stubDir(t)
	writeStub(t, dir, "cuneiform", `exit 0`) // clean exit, no artifact

	ws, err := NewWorkspace("", false, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer ws.Close()

	p := Page{Number: 4, ID: "004"}
	err = newTestInvoker(t, EngineCuneiform).OCRPage(context.Background(), ws, p)
	require.Error(t, err)
	require.True(t, IsPageError(err))

	var pageErr *PageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, 4, pageErr.Page)
	assert.Equal(t, StageOCR, pageErr.Stage)
}

func TestOcropusPageCapturesStdout(t *testing.T) {
	dir := stubDir(t)
	writeStub(t, dir, "ocroscript", `echo "<html><body>hocr</body></html>"`)
	writeStub(t, dir, "hocr2pdf", `out=""
next=0
for a in "$@"; do
  if [ "$next" = 1 ]; then out="$a"; next=0; fi
  if [ "$a" = "-o" ]; then next=1; fi
done
cat > /dev/null
echo "%PDF-x" > "$out"`)

	ws, err := NewWorkspace("", false, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer ws.Close()

	p := Page{Number: 1, ID: "001"}
	require.NoError(t, os.WriteFile(ws.Join(p.ImageName()), []byte("raster"), 0o644))

	inv := newTestInvoker(t, EngineOcropus)
	inv.useHocr2pdf = true
	require.NoError(t, inv.OCRPage(context.Background(), ws, p))

	hocrData, err := os.ReadFile(ws.Join(p.HOCRName()))
	require.NoError(t, err)
	assert.Contains(t, string(hocrData), "hocr")
	_, err = os.Stat(ws.Join(p.OCRPDFName()))
	assert.NoError(t, err)
}
