package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"docsum/internal/apperr"
)

func buildZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Create(%s): %v", name, err)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatalf("Write(%s): %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zw.Close: %v", err)
	}
	return buf.Bytes()
}

func buildZipStored(t *testing.T, name string, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		t.Fatalf("CreateHeader: %v", err)
	}
	if _, err := w.Write(content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zw.Close: %v", err)
	}
	return buf.Bytes()
}

func TestIngestPlainMarkdown(t *testing.T) {
	data := buildZip(t, map[string][]byte{"book.md": []byte("# Hello\nWorld")})
	md, info, err := Ingest(data, DefaultOptions())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !info.IsValid {
		t.Fatal("expected IsValid")
	}
	if md != "# Hello\nWorld" {
		t.Errorf("markdown = %q", md)
	}
}

func TestIngestRejectsTooManyEntries(t *testing.T) {
	files := make(map[string][]byte)
	for i := 0; i < 1001; i++ {
		files[itoa(i)+".txt"] = []byte("x")
	}
	data := buildZip(t, files)
	_, _, err := Ingest(data, DefaultOptions())
	assertKind(t, err, apperr.ArchiveRejected)
}

func TestIngestRejectsNoTextFiles(t *testing.T) {
	data := buildZip(t, map[string][]byte{"image.png": []byte{0, 1, 2}})
	_, _, err := Ingest(data, DefaultOptions())
	assertKind(t, err, apperr.ArchiveRejected)
}

// TestIngestRejectsSuspiciousRatio reproduces the zip-bomb scenario: a
// highly compressible payload whose uncompressed/compressed ratio exceeds
// the 100.0 bound must be rejected without fully reading the entry.
func TestIngestRejectsSuspiciousRatio(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 10*1024*1024) // 10 MiB, highly compressible
	data := buildZipCompressed(t, "bomb.txt", payload)
	_, info, err := Ingest(data, DefaultOptions())
	assertKind(t, err, apperr.ArchiveRejected)
	if info.IsValid {
		t.Fatal("expected IsValid=false")
	}
}

func buildZipCompressed(t *testing.T, name string, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		t.Fatalf("CreateHeader: %v", err)
	}
	if _, err := w.Write(content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zw.Close: %v", err)
	}
	return buf.Bytes()
}

func TestIngestGutenbergStrip(t *testing.T) {
	html := "<html><body>" +
		"*** START OF THE PROJECT GUTENBERG EBOOK X ***\n<p>Hello</p>\n" +
		"*** END OF THE PROJECT GUTENBERG EBOOK X ***" +
		"</body></html>"
	data := buildZipStored(t, "pg1342.html", []byte(html))
	md, info, err := Ingest(data, DefaultOptions())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !info.IsGutenberg {
		t.Error("expected IsGutenberg")
	}
	if md != "Hello" {
		t.Errorf("markdown = %q, want %q", md, "Hello")
	}
}

func TestMainEntrySelectionPrefersHTMLThenSize(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"small.html": []byte("<p>short</p>"),
		"big.txt":    bytes.Repeat([]byte("word "), 1000),
	})
	_, info, err := Ingest(data, DefaultOptions())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if info.MainFileName != "small.html" {
		t.Errorf("MainFileName = %q, want small.html (HTML outranks larger text file)", info.MainFileName)
	}
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	if appErr.Kind != kind {
		t.Errorf("Kind = %v, want %v", appErr.Kind, kind)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
