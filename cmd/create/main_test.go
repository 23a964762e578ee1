package main

import (
	"os"
	"path/filepath"
	"testing"
)

// Concrete scenario 6 (spec.md §8): a directory containing both .txt and
// .bin files only contributes its .txt children to the pipeline.
func TestExpandPathsFiltersToTxt(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.bin", "notes.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %s", name, err)
		}
	}

	docs, err := expandPaths([]string{dir})
	if err != nil {
		t.Fatalf("expandPaths: %s", err)
	}

	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2 (.txt files only): %v", len(docs), docs)
	}
	for _, d := range docs {
		if filepath.Ext(d.Path) != ".txt" {
			t.Errorf("unexpected non-.txt document in result: %s", d.Path)
		}
	}
}

func TestExpandPathsDirectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "standalone.bin")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %s", err)
	}

	docs, err := expandPaths([]string{path})
	if err != nil {
		t.Fatalf("expandPaths: %s", err)
	}
	if len(docs) != 1 || docs[0].Path != path {
		t.Fatalf("got %v, want a single document for the explicitly named file", docs)
	}
}

func TestExpandPathsDeduplicates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %s", err)
	}

	docs, err := expandPaths([]string{path, dir})
	if err != nil {
		t.Fatalf("expandPaths: %s", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1 after de-duplication: %v", len(docs), docs)
	}
}
