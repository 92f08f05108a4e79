// Package hocrpdf renders a page image and its hOCR text into a single-page
// searchable PDF.
//
// The page image is drawn full-bleed and the recognized words are placed in
// an invisible text layer on top, each word horizontally scaled so that its
// selection rectangle matches the printed word underneath. The text can be
// toggled visible in PDF readers that expose optional content groups, and
// in debug mode it is drawn in red with its bounding boxes.
package hocrpdf

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/ocrstitch/ocrstitch/pkg/hocr"
)

// Options controls text layer rendering.
type Options struct {
	Debug     bool   // draw the text visibly with bounding boxes
	LayerName string // optional content group name, defaults to "OCR Text"
	Font      Font
}

// Font selects the typeface used for the hidden text layer.
type Font struct {
	Name        string  // core PDF font name
	Style       string  // "", "B", "I" or "BI"
	Size        float64 // base size before per-word scaling
	AscentRatio float64 // baseline offset as a fraction of font size
}

// DefaultFont is Helvetica, which renders predictable string widths for the
// per-word scaling step.
var DefaultFont = Font{Name: "Helvetica", Size: 10, AscentRatio: 0.718}

// Render builds a one-page PDF from a page image (PNG or JPEG) and the hOCR
// page describing it. hOCR pixel coordinates are mapped onto the PDF page,
// one point per pixel, and the image is stretched to the page box.
func Render(imageData []byte, page hocr.Page, opts Options) ([]byte, error) {
	if len(imageData) == 0 {
		return nil, fmt.Errorf("no image data")
	}
	if page.BBox.Empty() {
		return nil, fmt.Errorf("page %d has no usable bounding box", page.Number)
	}
	format, err := detectFormat(imageData)
	if err != nil {
		return nil, fmt.Errorf("page %d image: %w", page.Number, err)
	}
	if opts.LayerName == "" {
		opts.LayerName = "OCR Text"
	}
	if opts.Font.Name == "" {
		opts.Font = DefaultFont
	}

	w, h := page.BBox.Width(), page.BBox.Height()
	pdf := fpdf.New("P", "pt", "", "")
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})

	imgOpts := fpdf.ImageOptions{ImageType: format}
	pdf.RegisterImageOptionsReader("page", imgOpts, bytes.NewReader(imageData))
	pdf.ImageOptions("page", 0, 0, w, h, false, imgOpts, 0, "")

	if err := drawTextLayer(pdf, page, opts); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing page %d PDF: %w", page.Number, err)
	}
	return buf.Bytes(), nil
}

// drawTextLayer places every word of the page into an optional content
// group, invisible unless debug rendering is on.
func drawTextLayer(pdf *fpdf.Fpdf, page hocr.Page, opts Options) error {
	layer := pdf.AddLayer(opts.LayerName, true)
	pdf.BeginLayer(layer)
	pdf.SetFont(opts.Font.Name, opts.Font.Style, opts.Font.Size)

	if opts.Debug {
		pdf.SetTextColor(255, 0, 0)
	} else {
		pdf.SetAlpha(0.0, "Normal")
	}

	var words, badEncodings int
	for _, line := range page.Lines {
		for _, word := range line.Words {
			drawWord(pdf, word, opts, &badEncodings)
			words++
		}
	}
	pdf.EndLayer()

	// A handful of unconvertible characters is normal OCR noise. A large
	// share means the wrong charset assumption and a useless layer.
	if words > 0 && badEncodings > words/10 {
		return fmt.Errorf("page %d: %d of %d words failed character encoding", page.Number, badEncodings, words)
	}
	return nil
}

func drawWord(pdf *fpdf.Fpdf, word hocr.Word, opts Options, badEncodings *int) {
	latin1, err := charmap.ISO8859_1.NewEncoder().String(word.Text)
	if err != nil {
		*badEncodings++
		latin1 = word.Text
	}

	x, y := word.BBox.X1, word.BBox.Y1
	if strWidth := pdf.GetStringWidth(latin1); strWidth > 0 {
		pdf.SetFontSize(opts.Font.Size * word.BBox.Width() / strWidth)
	}
	fontSize, _ := pdf.GetFontSize()
	baseline := y + fontSize*opts.Font.AscentRatio

	pdf.Text(x, baseline, latin1)
	pdf.SetFontSize(opts.Font.Size)

	if opts.Debug {
		pdf.Rect(x, y, word.BBox.Width(), word.BBox.Height(), "D")
	}
}

func detectFormat(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("unsupported image format: %w", err)
	}
	return strings.ToUpper(format), nil
}
