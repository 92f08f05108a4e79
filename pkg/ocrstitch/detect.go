package ocrstitch

import (
	"regexp"
	"strings"
)

// ocgPatterns match optional content group (layer) names in raw PDF data.
// OCR tools that layer their text, including this one, register such groups.
var ocgPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/Type\s*/OCG\s*/Name\s*\(([^)]+)\)`),
	regexp.MustCompile(`<</Type/OCG/Name\(([^)]+)\)`),
	regexp.MustCompile(`/Name\s*\(([^)]+)\)[\s\S]{1,50}/Type\s*/OCG`),
}

// DetectOCRLayers scans raw PDF data for layer names that look like an
// existing OCR text layer. The result is advisory: running OCR again only
// duplicates text, so the pipeline warns and proceeds.
func DetectOCRLayers(pdfData []byte) []string {
	content := string(pdfData)

	seen := make(map[string]bool)
	var suspects []string
	for _, pattern := range ocgPatterns {
		for _, match := range pattern.FindAllStringSubmatch(content, -1) {
			name := unescapePDFName(match[1])
			if seen[name] {
				continue
			}
			seen[name] = true
			if strings.Contains(strings.ToLower(name), "ocr") {
				suspects = append(suspects, name)
			}
		}
	}
	return suspects
}

func unescapePDFName(s string) string {
	s = strings.ReplaceAll(s, `\(`, "(")
	s = strings.ReplaceAll(s, `\)`, ")")
	s = strings.ReplaceAll(s, `\\`, `\`)
	return s
}
