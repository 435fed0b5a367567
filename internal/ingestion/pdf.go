package ingestion

import (
	"bytes"
	"io"
	"os/exec"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// ExtractTextFromPDF reads the text layer, falling back to pdftotext when the
// library finds none or cannot parse the file.
func ExtractTextFromPDF(path string) (string, error) {
	text, err := readPDFText(path)
	if err == nil && text != "" {
		return text, nil
	}
	out, cliErr := exec.Command("pdftotext", "-layout", path, "-").Output()
	if cliErr == nil {
		return strings.TrimSpace(string(out)), nil
	}
	return text, err
}

func readPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	b, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(&buf, b); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
