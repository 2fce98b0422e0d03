// Package docs loads the persona's profile documents from a directory into
// the name→content mapping consumed by the retrieval store. Supported inputs
// are PDF (text extracted page by page), plain text, and markdown files.
// Documents are loaded once at startup and treated as immutable afterwards.
package docs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Load reads every supported file directly under dir and returns a mapping of
// document name (base filename without extension) to its plain-text content.
// Hidden files and subdirectories are skipped. Two files sharing a stem
// (resume.pdf + resume.txt) would produce an ambiguous document name and are
// rejected. A directory with no supported files is an error — the agent is
// useless without grounding documents.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("docs: reading %s: %w", dir, err)
	}

	documents := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		path := filepath.Join(dir, entry.Name())

		var content string
		switch ext {
		case ".pdf":
			content, err = extractPDF(path)
		case ".txt", ".md":
			content, err = readText(path)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("docs: loading %s: %w", entry.Name(), err)
		}

		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if _, exists := documents[name]; exists {
			return nil, fmt.Errorf("docs: duplicate document name %q in %s", name, dir)
		}
		documents[name] = content
	}

	if len(documents) == 0 {
		return nil, fmt.Errorf("docs: no .pdf, .txt, or .md files found in %s", dir)
	}
	return documents, nil
}

// extractPDF returns the concatenated plain text of every page in the PDF.
func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	body, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("reading extracted text: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", fmt.Errorf("no extractable text")
	}
	return text, nil
}

// readText returns the trimmed content of a text or markdown file.
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
