package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfText extracts line-oriented text from a PDF. The primary method walks
// each page's rows so grid columns stay on one line; scanned or oddly
// encoded documents sometimes yield nothing that way, in which case the
// plain content-stream text is the fallback.
func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	if text := pdfTextByRows(reader); usableText(text) {
		return text, nil
	}

	text, err := pdfPlainText(reader)
	if err != nil {
		return "", err
	}
	if !usableText(text) {
		return "", fmt.Errorf("pdf yielded no usable text")
	}
	return text, nil
}

func pdfTextByRows(reader *pdf.Reader) string {
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			var words []string
			for _, word := range row.Content {
				if s := strings.TrimSpace(word.S); s != "" {
					words = append(words, s)
				}
			}
			if len(words) > 0 {
				b.WriteString(strings.Join(words, " "))
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

func pdfPlainText(reader *pdf.Reader) (string, error) {
	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plain text: %w", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(raw), nil
}

func usableText(text string) bool {
	return len(strings.TrimSpace(text)) >= 20
}
