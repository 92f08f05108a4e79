package ocrstitch

import (
	"fmt"
	"strconv"
)

// Page is one page of the input document with its stable identifier.
type Page struct {
	Number int    // 1-based ordinal
	ID     string // zero-padded identifier
}

// minIDWidth keeps artifact names at least three digits wide so small
// documents still produce the conventional 001.pdf style names.
const minIDWidth = 3

// PageID returns the zero-padded identifier for page n of a document with
// total pages. The width grows with the digit count of total, so identifiers
// sort lexicographically in the same order as numerically.
func PageID(n, total int) string {
	width := len(strconv.Itoa(total))
	if width < minIDWidth {
		width = minIDWidth
	}
	return fmt.Sprintf("%0*d", width, n)
}

// Pages enumerates all pages of a document in ascending order.
func Pages(total int) []Page {
	pages := make([]Page, 0, total)
	for n := 1; n <= total; n++ {
		pages = append(pages, Page{Number: n, ID: PageID(n, total)})
	}
	return pages
}

// Artifact names inside the workspace.

// PDFName is the extracted single-page PDF.
func (p Page) PDFName() string { return p.ID + ".pdf" }

// ImageName is the rasterized page image.
func (p Page) ImageName() string { return p.ID + ".ppm" }

// CleanedName is the unpaper output before it replaces the raster.
func (p Page) CleanedName() string { return p.ID + "_clean.ppm" }

// PNGName is the PNG conversion used by the built-in hOCR renderer.
func (p Page) PNGName() string { return p.ID + ".png" }

// HOCRName is the positioned-text output of the hOCR engines.
func (p Page) HOCRName() string { return p.ID + ".hocr" }

// OCRPDFName is the per-page OCR'd PDF consumed by the merge step.
func (p Page) OCRPDFName() string { return p.ID + "_ocr.pdf" }

// intermediates are every per-page artifact that the incremental merge
// strategy deletes once the page has been folded into the running document.
func (p Page) intermediates() []string {
	return []string{p.PDFName(), p.ImageName(), p.CleanedName(), p.PNGName(), p.HOCRName(), p.OCRPDFName()}
}
