package hocr

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
)

// Parse converts raw hOCR bytes into a Doc.
//
// Documents declaring an ISO-8859-1 charset (cuneiform emits these) are
// decoded to UTF-8 before parsing. A document with no ocr_page elements is
// an error; pages without words are kept, so a blank page still occupies
// its slot in the page sequence.
func Parse(data []byte) (Doc, error) {
	var doc Doc

	decoded := data
	if cs := declaredCharset(string(data)); cs != "" && cs != "utf-8" {
		var err error
		decoded, err = charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return doc, fmt.Errorf("decoding %s hOCR: %w", cs, err)
		}
	}

	root, err := html.Parse(strings.NewReader(string(decoded)))
	if err != nil {
		return doc, fmt.Errorf("parsing hOCR markup: %w", err)
	}

	doc.System = headMeta(root, "ocr-system")

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "ocr_page") {
			doc.Pages = append(doc.Pages, parsePage(n, len(doc.Pages)+1))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if len(doc.Pages) == 0 {
		return doc, fmt.Errorf("no ocr_page elements in hOCR data")
	}
	return doc, nil
}

func parsePage(n *html.Node, number int) Page {
	page := Page{Number: number}
	props := titleProps(n)
	page.BBox = props.bbox
	page.Image = props.image

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "ocr_line") {
			if line, ok := parseLine(n); ok {
				page.Lines = append(page.Lines, line)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return page
}

func parseLine(n *html.Node) (Line, bool) {
	line := Line{BBox: titleProps(n).bbox}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (hasClass(n, "ocrx_word") || hasClass(n, "ocr_word")) {
			props := titleProps(n)
			text := strings.TrimSpace(nodeText(n))
			if text != "" {
				line.Words = append(line.Words, Word{
					Text:       text,
					BBox:       props.bbox,
					Confidence: props.confidence,
				})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}

	// Some engines emit bare text inside ocr_line with no word spans.
	// Treat the whole line as one word spanning the line box.
	if len(line.Words) == 0 {
		if text := strings.TrimSpace(nodeText(n)); text != "" {
			line.Words = append(line.Words, Word{Text: text, BBox: line.BBox})
		}
	}
	return line, len(line.Words) > 0
}

// props holds the properties parsed from an hOCR title attribute,
// e.g. `bbox 12 30 260 60; x_wconf 93; image "p01.ppm"`.
type props struct {
	bbox       BBox
	confidence float64
	image      string
}

func titleProps(n *html.Node) props {
	var p props
	for _, field := range strings.Split(attr(n, "title"), ";") {
		parts := strings.Fields(strings.TrimSpace(field))
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "bbox":
			if len(parts) == 5 {
				coords := make([]float64, 4)
				ok := true
				for i, s := range parts[1:] {
					v, err := strconv.ParseFloat(s, 64)
					if err != nil {
						ok = false
						break
					}
					coords[i] = v
				}
				if ok {
					p.bbox = BBox{coords[0], coords[1], coords[2], coords[3]}
				}
			}
		case "x_wconf":
			if len(parts) == 2 {
				p.confidence, _ = strconv.ParseFloat(parts[1], 64)
			}
		case "image":
			if len(parts) >= 2 {
				p.image = strings.Trim(strings.Join(parts[1:], " "), `"`)
			}
		}
	}
	return p
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}

// headMeta returns the content of a <meta name=...> element in the head.
func headMeta(root *html.Node, name string) string {
	var result string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" && attr(n, "name") == name {
			result = attr(n, "content")
			return
		}
		for c := n.FirstChild; c != nil && result == ""; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return result
}

// declaredCharset extracts a charset declaration from a meta tag, if the
// document carries one. Matching is textual so it works before the document
// has been decoded.
func declaredCharset(content string) string {
	i := strings.Index(strings.ToLower(content), "charset=")
	if i < 0 {
		return ""
	}
	rest := content[i+len("charset="):]
	end := strings.IndexFunc(rest, func(r rune) bool {
		return r == '"' || r == '\'' || r == ';' || r == '>' || r == ' ' || r == '\n'
	})
	if end < 0 {
		end = len(rest)
	}
	return strings.ToLower(strings.TrimSpace(rest[:end]))
}
