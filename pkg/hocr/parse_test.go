package hocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tesseractSample = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
 <meta http-equiv="Content-Type" content="text/html;charset=utf-8"/>
 <meta name='ocr-system' content='tesseract 4.1.1'/>
</head>
<body>
 <div class='ocr_page' id='page_1' title='image "001.ppm"; bbox 0 0 2480 3508; ppageno 0'>
  <div class='ocr_carea' id='block_1_1' title="bbox 210 180 2270 420">
   <p class='ocr_par' id='par_1_1' title="bbox 210 180 2270 420">
    <span class='ocr_line' id='line_1_1' title="bbox 210 180 2270 300; baseline 0 -8">
     <span class='ocrx_word' id='word_1_1' title='bbox 210 180 570 300; x_wconf 96'>Annual</span>
     <span class='ocrx_word' id='word_1_2' title='bbox 600 180 1050 300; x_wconf 93'>Report</span>
    </span>
    <span class='ocr_line' id='line_1_2' title="bbox 210 320 990 420; baseline 0 -6">
     <span class='ocrx_word' id='word_1_3' title='bbox 210 320 990 420; x_wconf 91'>2019</span>
    </span>
   </p>
  </div>
 </div>
</body>
</html>`

func TestParseTesseract(t *testing.T) {
	doc, err := Parse([]byte(tesseractSample))
	require.NoError(t, err)

	assert.Equal(t, "tesseract 4.1.1", doc.System)
	require.Len(t, doc.Pages, 1)

	page := doc.Pages[0]
	assert.Equal(t, 1, page.Number)
	assert.Equal(t, "001.ppm", page.Image)
	assert.Equal(t, BBox{0, 0, 2480, 3508}, page.BBox)
	require.Len(t, page.Lines, 2)

	line := page.Lines[0]
	require.Len(t, line.Words, 2)
	assert.Equal(t, "Annual", line.Words[0].Text)
	assert.Equal(t, BBox{210, 180, 570, 300}, line.Words[0].BBox)
	assert.Equal(t, 96.0, line.Words[0].Confidence)
	assert.Equal(t, "Report", line.Words[1].Text)

	require.Len(t, page.Lines[1].Words, 1)
	assert.Equal(t, "2019", page.Lines[1].Words[0].Text)
}

func TestParseBareLineText(t *testing.T) {
	// Cuneiform-shaped output: line content without word spans.
	sample := `<html><body>
	<div class="ocr_page" title="bbox 0 0 1000 1400">
	 <span class="ocr_line" title="bbox 10 10 400 60">stray line text</span>
	</div>
	</body></html>`

	doc, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	require.Len(t, doc.Pages[0].Lines, 1)

	words := doc.Pages[0].Lines[0].Words
	require.Len(t, words, 1)
	assert.Equal(t, "stray line text", words[0].Text)
	assert.Equal(t, BBox{10, 10, 400, 60}, words[0].BBox)
}

func TestParseMultiplePages(t *testing.T) {
	sample := `<html><body>
	<div class="ocr_page" title="bbox 0 0 100 100"><span class="ocr_line" title="bbox 1 1 50 20"><span class="ocrx_word" title="bbox 1 1 20 20">one</span></span></div>
	<div class="ocr_page" title="bbox 0 0 100 100"><span class="ocr_line" title="bbox 1 1 50 20"><span class="ocrx_word" title="bbox 1 1 20 20">two</span></span></div>
	</body></html>`

	doc, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, 1, doc.Pages[0].Number)
	assert.Equal(t, 2, doc.Pages[1].Number)
	assert.Equal(t, "two", doc.Pages[1].Lines[0].Words[0].Text)
}

func TestParseLatin1Charset(t *testing.T) {
	raw := []byte(`<html><head><meta http-equiv="Content-Type" content="text/html;charset=iso-8859-1"></head><body>
	<div class="ocr_page" title="bbox 0 0 100 100">
	 <span class="ocr_line" title="bbox 1 1 50 20"><span class="ocrx_word" title="bbox 1 1 20 20">caf` + "\xe9" + `</span></span>
	</div></body></html>`)

	doc, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "café", doc.Pages[0].Lines[0].Words[0].Text)
}

func TestParseNoPages(t *testing.T) {
	_, err := Parse([]byte(`<html><body><p>not hocr at all</p></body></html>`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ocr_page")
}

func TestBBox(t *testing.T) {
	b := BBox{10, 20, 110, 70}
	assert.Equal(t, 100.0, b.Width())
	assert.Equal(t, 50.0, b.Height())
	assert.False(t, b.Empty())
	assert.True(t, BBox{}.Empty())
	assert.True(t, BBox{50, 50, 50, 90}.Empty())
}
