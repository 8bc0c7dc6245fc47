package handler

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"docsum/internal/archive"
)

// ArchiveHandler wraps §4.1's safe zip ingestion and HTML->markdown
// flattening behind the Handler interface, registering for .zip.
type ArchiveHandler struct {
	opts archive.Options
}

// NewArchiveHandler returns a .zip handler bounded by opts.
func NewArchiveHandler(opts archive.Options) *ArchiveHandler {
	return &ArchiveHandler{opts: opts}
}

func (*ArchiveHandler) SupportedExtensions() []string { return []string{".zip"} }

func (*ArchiveHandler) Priority() int { return 1 }

func (*ArchiveHandler) Name() string { return "archive" }

func (*ArchiveHandler) CanHandle(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".zip"
}

func (h *ArchiveHandler) Process(_ context.Context, path string, opts Options) (DocumentContent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DocumentContent{}, err
	}
	ingestOpts := h.opts
	if opts.MaxSizeBytes > 0 {
		ingestOpts.MaxSize = opts.MaxSizeBytes
	}
	markdown, info, err := archive.Ingest(data, ingestOpts)
	if err != nil {
		return DocumentContent{}, err
	}
	return DocumentContent{
		Markdown:    markdown,
		Title:       strings.TrimSuffix(filepath.Base(info.MainFileName), filepath.Ext(info.MainFileName)),
		ContentType: "application/zip",
		Metadata: map[string]string{
			"main_file_name": info.MainFileName,
			"is_gutenberg":   boolStr(info.IsGutenberg),
		},
	}, nil
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
