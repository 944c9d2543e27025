package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	apperr "pdfchat/internal/pkg/errors"
)

// PDF pulls the plain text out of the PDF at path. A readable file that
// yields no text at all returns ErrNoContent; the pipeline must fail such
// jobs instead of indexing empty content.
func PDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	text := Sanitize(buf.String())
	if text == "" {
		return "", apperr.ErrNoContent
	}
	return text, nil
}

// Sanitize collapses the run-on whitespace PDF extraction tends to produce
// while keeping paragraph breaks intact for the chunker.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	out := strings.Join(lines, "\n")
	for strings.Contains(out, "\n\n\n") {
		out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(out)
}
