package fileset

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	jpg := filepath.Join(dir, "a.jpg")
	pdf := filepath.Join(dir, "b.pdf")
	touch(t, jpg)
	touch(t, pdf)

	// Explicitly named files are kept even when unsupported, so the batch
	// can report them instead of silently dropping them.
	tasks, err := Collect([]string{jpg, pdf})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, expected 2", len(tasks))
	}
	if tasks[0].RelPath != "a.jpg" || tasks[1].RelPath != "b.pdf" {
		t.Errorf("unexpected rel paths: %v", tasks)
	}
}

func TestCollectDirectoryPreservesStructure(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "top.jpg"))
	touch(t, filepath.Join(root, "sub", "nested.mp4"))
	touch(t, filepath.Join(root, "sub", "skip.txt"))

	tasks, err := Collect([]string{root})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, expected 2 (unsupported files inside folders are skipped)", len(tasks))
	}

	rels := map[string]bool{}
	for _, task := range tasks {
		rels[task.RelPath] = true
	}
	if !rels["top.jpg"] || !rels[filepath.Join("sub", "nested.mp4")] {
		t.Errorf("unexpected rel paths: %v", rels)
	}
}

func TestCollectMissingInput(t *testing.T) {
	if _, err := Collect([]string{"/does/not/exist"}); err == nil {
		t.Fatal("expected error for missing input")
	}
}

func TestUniqueOutputPath(t *testing.T) {
	dir := t.TempDir()

	first := UniqueOutputPath("/in/photo.jpg", dir, "_compressed")
	if first != filepath.Join(dir, "photo_compressed.jpg") {
		t.Fatalf("unexpected first path: %s", first)
	}

	touch(t, first)
	second := UniqueOutputPath("/in/photo.jpg", dir, "_compressed")
	if second != filepath.Join(dir, "photo_compressed_1.jpg") {
		t.Fatalf("unexpected second path: %s", second)
	}

	touch(t, second)
	third := UniqueOutputPath("/in/photo.jpg", dir, "_compressed")
	if third != filepath.Join(dir, "photo_compressed_2.jpg") {
		t.Fatalf("unexpected third path: %s", third)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.bytes); got != tt.expected {
			t.Errorf("FormatBytes(%d) = %q, expected %q", tt.bytes, got, tt.expected)
		}
	}
}

func TestFormatETA(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "2m"},
		{30 * time.Minute, "30m"},
		{90 * time.Minute, "1h 30m"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}
	for _, tt := range tests {
		if got := FormatETA(tt.d); got != tt.expected {
			t.Errorf("FormatETA(%v) = %q, expected %q", tt.d, got, tt.expected)
		}
	}
}
