package ingestion

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrUnsupportedFile = errors.New("unsupported file type")

// ExtractText detects the file type and returns its text.
func ExtractText(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case ".pdf":
		return ExtractTextFromPDF(path)
	default:
		return "", fmt.Errorf("%s: %w", ext, ErrUnsupportedFile)
	}
}
