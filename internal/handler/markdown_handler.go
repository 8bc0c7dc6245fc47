package handler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// MarkdownHandler passes markdown and plain-text files through unchanged;
// it is the identity handler §4.2's parser consumes directly.
type MarkdownHandler struct{}

// NewMarkdownHandler returns the pass-through handler for .md/.markdown/.txt.
func NewMarkdownHandler() *MarkdownHandler {
	return &MarkdownHandler{}
}

func (*MarkdownHandler) SupportedExtensions() []string {
	return []string{".md", ".markdown", ".txt"}
}

func (*MarkdownHandler) Priority() int { return 1 }

func (*MarkdownHandler) Name() string { return "markdown" }

func (*MarkdownHandler) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown" || ext == ".txt"
}

func (h *MarkdownHandler) Process(_ context.Context, path string, _ Options) (DocumentContent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DocumentContent{}, err
	}
	return DocumentContent{
		Markdown:    string(data),
		Title:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		ContentType: "text/markdown",
	}, nil
}
