package invidx

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// Concrete scenario 5 (spec.md §8): a corrupt contents_start pointing past
// EOF must surface as a format error, not a panic or a silent empty read.
func TestOpenIndexFileCorruptContentsStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.dat")

	data := make([]byte, 100)
	binary.LittleEndian.PutUint64(data[0:8], 1_000_000_000)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %s", err)
	}

	_, err := OpenIndexFile(path, false)
	if err == nil {
		t.Fatal("expected a format error opening a file with contents_start past EOF")
	}
}

func TestIndexFileWriterReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idx.dat")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %s", err)
	}
	w, err := NewIndexFileWriter(f)
	if err != nil {
		t.Fatalf("NewIndexFileWriter: %s", err)
	}

	idx := NewPartialIndex()
	idx.Merge(BuildSingle(0, []byte("a.txt"), "alpha beta"))
	if err := WriteIndex(idx, w); err != nil {
		t.Fatalf("WriteIndex: %s", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %s", err)
	}
	f.Close()

	r, err := OpenIndexFile(path, false)
	if err != nil {
		t.Fatalf("OpenIndexFile: %s", err)
	}
	defer r.Close()

	var terms []string
	sawDocument := false
	for {
		e := r.Peek()
		if e == nil {
			break
		}
		if e.IsDocument() {
			sawDocument = true
		} else {
			terms = append(terms, e.Term)
		}
		if _, err := r.Advance(); err != nil {
			t.Fatalf("Advance: %s", err)
		}
	}

	if !sawDocument {
		t.Error("expected a document record in the contents table")
	}
	if len(terms) != 2 || terms[0] != "alpha" || terms[1] != "beta" {
		t.Errorf("terms = %v, want [alpha beta] in sorted order", terms)
	}
}
