package ocrstitch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// stubPdftkConcat fakes `pdftk in... cat output dest`: dest receives the
// concatenated contents of the inputs, and every invocation's argument
// vector is appended to a log file.
func stubPdftkConcat(t *testing.T, dir string) string {
	argLog := filepath.Join(dir, "pdftk-args.log")
	writeStub(t, dir, "pdftk", `echo "$@" >> "`+argLog+`"
out=""
next=0
for a in "$@"; do
  if [ "$next" = 1 ]; then out="$a"; next=0; fi
  if [ "$a" = "output" ]; then next=1; fi
done
: > "$out"
for a in "$@"; do
  case "$a" in
    cat) break ;;
    *) cat "$a" >> "$out" ;;
  esac
done`)
	return argLog
}

func newTestMerger(t *testing.T) *Merger {
	log := zaptest.NewLogger(t)
	return &Merger{run: NewRunner(log, 0), pdftk: "pdftk", log: log}
}

func writePagePDF(t *testing.T, ws *Workspace, p Page) {
	t.Helper()
	require.NoError(t, os.WriteFile(ws.Join(p.OCRPDFName()), []byte("<"+p.ID+">"), 0o644))
}

func TestBatchMergesAscending(t *testing.T) {
	dir := stubDir(t)
	argLog := stubPdftkConcat(t, dir)

	ws, err := NewWorkspace("", false, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer ws.Close()

	pages := []Page{{1, "001"}, {2, "002"}, {3, "003"}}
	for _, p := range pages {
		writePagePDF(t, ws, p)
	}

	require.NoError(t, newTestMerger(t).Batch(context.Background(), ws, pages))

	merged, err := os.ReadFile(ws.Join(MergedName))
	require.NoError(t, err)
	assert.Equal(t, "<001><002><003>", string(merged))

	args, err := os.ReadFile(argLog)
	require.NoError(t, err)
	assert.Contains(t, string(args), "001_ocr.pdf")
}

func TestBatchSkippedPagesMergeCleanly(t *testing.T) {
	dir := stubDir(t)
	stubPdftkConcat(t, dir)

	ws, err := NewWorkspace("", false, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer ws.Close()

	// page 2 failed upstream: only 1 and 3 survive
	survivors := []Page{{1, "001"}, {3, "003"}}
	for _, p := range survivors {
		writePagePDF(t, ws, p)
	}

	require.NoError(t, newTestMerger(t).Batch(context.Background(), ws, survivors))
	merged, err := os.ReadFile(ws.Join(MergedName))
	require.NoError(t, err)
	assert.Equal(t, "<001><003>", string(merged))
}

func TestBatchNoPages(t *testing.T) {
	ws, err := NewWorkspace("", false, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer ws.Close()

	err = newTestMerger(t).Batch(context.Background(), ws, nil)
	require.Error(t, err)
	var mergeErr *MergeError
	assert.ErrorAs(t, err, &mergeErr)
}

func TestBatchMissingOutputIsMergeError(t *testing.T) {
	dir := stubDir(t)
	writeStub(t, dir, "pdftk", `exit 0`) // clean exit, no output file

	ws, err := NewWorkspace("", false, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer ws.Close()
	writePagePDF(t, ws, Page{1, "001"})

	err = newTestMerger(t).Batch(context.Background(), ws, []Page{{1, "001"}})
	require.Error(t, err)
	var mergeErr *MergeError
	require.ErrorAs(t, err, &mergeErr)
	assert.Contains(t, mergeErr.Error(), "missing")
}

func TestAppendPageIncremental(t *testing.T) {
	dir := stubDir(t)
	stubPdftkConcat(t, dir)

	ws, err := NewWorkspace("", false, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer ws.Close()

	m := newTestMerger(t)
	pages := Pages(3)
	for i, p := range pages {
		writePagePDF(t, ws, p)
		// leftovers from earlier stages
		require.NoError(t, os.WriteFile(ws.Join(p.PDFName()), []byte("x"), 0o644))
		require.NoError(t, os.WriteFile(ws.Join(p.ImageName()), []byte("x"), 0o644))

		require.NoError(t, m.AppendPage(context.Background(), ws, p))

		merged, err := os.ReadFile(ws.Join(MergedName))
		require.NoError(t, err)
		want := strings.Join([]string{"<001>", "<002>", "<003>"}[:i+1], "")
		assert.Equal(t, want, string(merged), "running document after page %d", p.Number)

		// intermediates for this and all earlier pages are gone
		for _, q := range pages[:i+1] {
			for _, name := range q.intermediates() {
				_, statErr := os.Stat(ws.Join(name))
				assert.True(t, os.IsNotExist(statErr), "%s still on disk after merging page %d", name, p.Number)
			}
		}
	}
}

func TestAppendPageKeepRetainsIntermediates(t *testing.T) {
	dir := stubDir(t)
	stubPdftkConcat(t, dir)

	wsDir := filepath.Join(t.TempDir(), "work")
	ws, err := NewWorkspace(wsDir, true, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer ws.Close()

	p := Page{1, "001"}
	writePagePDF(t, ws, p)
	require.NoError(t, newTestMerger(t).AppendPage(context.Background(), ws, p))

	_, statErr := os.Stat(ws.Join(p.OCRPDFName()))
	assert.NoError(t, statErr, "keep mode must retain per-page artifacts")
}

func TestVerifyMissingMerged(t *testing.T) {
	ws, err := NewWorkspace("", false, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer ws.Close()

	err = newTestMerger(t).Verify(ws, 3)
	require.Error(t, err)
	var mergeErr *MergeError
	assert.ErrorAs(t, err, &mergeErr)
}

func TestVerifyUnparseableMergedIsDiagnosticOnly(t *testing.T) {
	ws, err := NewWorkspace("", false, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, os.WriteFile(ws.Join(MergedName), []byte("not a pdf"), 0o644))

	assert.NoError(t, newTestMerger(t).Verify(ws, 3))
}
