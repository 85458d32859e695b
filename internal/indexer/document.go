package indexer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// IndexDocument extracts text from a local file (PDF or plain text),
// chunks and embeds it, and upserts the records under a "doc:" ref.
// Returns the number of records written.
func (ix *Indexer) IndexDocument(ctx context.Context, path string) (int, error) {
	text, err := extractText(path)
	if err != nil {
		return 0, fmt.Errorf("extracting text from %s: %w", path, err)
	}

	name := filepath.Base(path)
	return ix.index(ctx, "doc:"+name, "document", name, text)
}

func extractText(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return extractPDFText(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return string(data), nil
}
