package dataset

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to create entry %s: %v", name, err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close archive: %v", err)
	}
}

func TestExtractArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "data.zip")
	writeZip(t, archive, map[string]string{
		"benign/a.png":    "aaa",
		"malignant/b.png": "bbb",
	})

	dest := filepath.Join(dir, "out")
	if err := ExtractArchive(archive, dest); err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "benign", "a.png"))
	if err != nil {
		t.Fatalf("failed to read extracted file: %v", err)
	}
	if string(got) != "aaa" {
		t.Errorf("expected content aaa, got %s", got)
	}
	if _, err := os.Stat(filepath.Join(dest, "malignant", "b.png")); err != nil {
		t.Errorf("expected malignant/b.png to exist: %v", err)
	}
}

func TestExtractArchiveRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeZip(t, archive, map[string]string{
		"../escape.txt": "nope",
	})

	if err := ExtractArchive(archive, filepath.Join(dir, "out")); err == nil {
		t.Error("expected error for entry escaping destination, got nil")
	}
}

func TestExtractArchiveMissingFile(t *testing.T) {
	dir := t.TempDir()
	if err := ExtractArchive(filepath.Join(dir, "missing.zip"), dir); err == nil {
		t.Error("expected error for missing archive, got nil")
	}
}
