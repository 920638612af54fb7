package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for name, body := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestReadAndDescribe(t *testing.T) {
	data := buildZip(t, map[string]string{
		"dist/package.json": `{"name":"app"}`,
		"dist/index.html":   "<html></html>",
	})
	path := filepath.Join(t.TempDir(), "dist-v7.zip")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	read, err := Read(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(read, data) {
		t.Fatalf("read bytes differ from file")
	}
	summary, err := Describe(read)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(summary.Entries))
	}
	if summary.UncompressedSize != uint64(len(`{"name":"app"}`)+len("<html></html>")) {
		t.Fatalf("unexpected uncompressed size: %d", summary.UncompressedSize)
	}
}

func TestReadMissing(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "missing.zip")); err == nil {
		t.Fatalf("expected error for missing archive")
	}
	if _, err := Read(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestDescribeNotZip(t *testing.T) {
	if _, err := Describe([]byte("plain text")); err == nil {
		t.Fatalf("expected error for non-zip payload")
	}
}
