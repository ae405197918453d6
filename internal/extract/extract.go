// Package extract provides text extraction from downloaded decision
// documents.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"unicode/utf8"
)

// pdfMagic is the header every PDF document starts with.
var pdfMagic = []byte("%PDF-")

// Text reads the file at path and returns its textual content. The format
// is detected from the content, not the filename: PDF is what the court
// publishes, but anything else is treated as plain text.
func Text(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if bytes.HasPrefix(content, pdfMagic) {
		return pdfText(content)
	}
	return plainText(content)
}

func plainText(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("document is not valid UTF-8 text")
	}
	return string(content), nil
}
