// Package hocr parses hOCR data, the HTML-based format OCR engines use to
// report recognized text together with its position on the page image.
//
// The parser extracts the subset of the hOCR hierarchy needed to rebuild a
// text layer: pages ('ocr_page'), lines ('ocr_line') and words ('ocrx_word'
// or 'ocr_word'), each with its bounding box. Intermediate grouping elements
// (content areas, paragraphs) are descended through but not modeled.
//
// Key Types:
//
// - Doc: a parsed hOCR document
// - Page: one page with its pixel dimensions
// - Line: a line of text
// - Word: a recognized word with bounding box and confidence
// - BBox: a rectangle in page pixel coordinates
//
// Main Functions:
//
// - Parse: parses raw hOCR bytes into a Doc
package hocr

// Doc is a parsed hOCR document.
type Doc struct {
	System string // OCR system reported in the document head, if any
	Pages  []Page
}

// Page is one page of recognized text.
type Page struct {
	Number int    // 1-based page number
	Image  string // source image referenced by the page, if any
	BBox   BBox   // page extent in pixels
	Lines  []Line
}

// Line is a single line of text on a page.
type Line struct {
	BBox  BBox
	Words []Word
}

// Word is one recognized word.
type Word struct {
	Text       string
	BBox       BBox
	Confidence float64 // x_wconf value, 0 when absent
}

// BBox is a rectangle in page pixel coordinates. X1,Y1 is the top-left
// corner, X2,Y2 the bottom-right.
type BBox struct {
	X1, Y1, X2, Y2 float64
}

// Width returns the horizontal extent of the box.
func (b BBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Empty reports whether the box has no area.
func (b BBox) Empty() bool { return b.X2 <= b.X1 || b.Y2 <= b.Y1 }
