package invidx

import (
	"os"
	"path/filepath"
	"testing"
)

func flushPartial(t *testing.T, tmpDir *TmpDir, idx PartialIndex) string {
	t.Helper()
	path, err := WriteIndexToTmpFile(idx, tmpDir)
	if err != nil {
		t.Fatalf("WriteIndexToTmpFile: %s", err)
	}
	return path
}

// Document records must never be coalesced across readers, even when two
// readers both have a document record waiting at the front of their
// contents table at the same merge step.
func TestMergeStreamsDoesNotCoalesceDocuments(t *testing.T) {
	dir := t.TempDir()
	tmpDir := NewTmpDir(dir)

	p1 := BuildSingle(0, []byte("a.txt"), "shared term")
	p2 := BuildSingle(1, []byte("b.txt"), "shared word")

	path1 := flushPartial(t, tmpDir, p1)
	path2 := flushPartial(t, tmpDir, p2)

	outPath := filepath.Join(dir, "merged.dat")
	out, err := os.Create(outPath)
	if err != nil {
		t.Fatalf("create: %s", err)
	}
	if err := mergeStreams([]string{path1, path2}, out, outPath); err != nil {
		t.Fatalf("mergeStreams: %s", err)
	}
	out.Close()

	r, err := OpenIndexFile(outPath, false)
	if err != nil {
		t.Fatalf("OpenIndexFile: %s", err)
	}
	defer r.Close()

	docEntries := 0
	for {
		e := r.Peek()
		if e == nil {
			break
		}
		if e.IsDocument() {
			docEntries++
		}
		if _, err := r.Advance(); err != nil {
			t.Fatalf("Advance: %s", err)
		}
	}

	if docEntries != 2 {
		t.Errorf("got %d document entries after merge, want 2 (one per source document)", docEntries)
	}
}

func TestMergeStreamsCombinesSharedTerm(t *testing.T) {
	dir := t.TempDir()
	tmpDir := NewTmpDir(dir)

	p1 := BuildSingle(0, []byte("a.txt"), "shared")
	p2 := BuildSingle(1, []byte("b.txt"), "shared")

	path1 := flushPartial(t, tmpDir, p1)
	path2 := flushPartial(t, tmpDir, p2)

	outPath := filepath.Join(dir, "merged.dat")
	out, err := os.Create(outPath)
	if err != nil {
		t.Fatalf("create: %s", err)
	}
	if err := mergeStreams([]string{path1, path2}, out, outPath); err != nil {
		t.Fatalf("mergeStreams: %s", err)
	}
	out.Close()

	idx, err := OpenIndex(outPath)
	if err != nil {
		t.Fatalf("OpenIndex: %s", err)
	}
	defer idx.Close()

	matches, found := idx.Search("shared")
	if !found {
		t.Fatal(`expected "shared" to be found`)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2 (one contents entry covering both documents)", len(matches))
	}
}

func TestFileMergerFinishNoInput(t *testing.T) {
	dir := t.TempDir()
	m := NewFileMerger(dir)
	if err := m.Finish(); err == nil {
		t.Fatal("expected an error finishing a FileMerger with no input files")
	}
}

// Pushing more than NStreams files through AddFile must drain stack 0 into a
// merged file on stack 1, exercising the hierarchical cascade directly
// rather than through Finish's single-surviving-file flatten path.
func TestFileMergerAddFileCascadesToNextLevel(t *testing.T) {
	dir := t.TempDir()
	tmpDir := NewTmpDir(dir)
	m := NewFileMerger(dir)

	const n = NStreams + 3
	for i := 0; i < n; i++ {
		p := BuildSingle(DocumentId(i), []byte(itoa(i)+".txt"), "word"+itoa(i))
		path := flushPartial(t, tmpDir, p)
		if err := m.AddFile(path); err != nil {
			t.Fatalf("AddFile(%d): %s", i, err)
		}
	}

	if len(m.stacks) < 2 {
		t.Fatalf("stacks = %v, want at least 2 levels after pushing %d files past NStreams=%d", m.stacks, n, NStreams)
	}
	if len(m.stacks[0]) != n-NStreams {
		t.Errorf("stack 0 has %d files, want %d (the files pushed after the first cascade)", len(m.stacks[0]), n-NStreams)
	}
	if len(m.stacks[1]) != 1 {
		t.Errorf("stack 1 has %d files, want 1 (the merge of the first NStreams files)", len(m.stacks[1]))
	}

	if err := m.Finish(); err != nil {
		t.Fatalf("Finish: %s", err)
	}

	idx, err := OpenIndex(filepath.Join(dir, MergedFileName))
	if err != nil {
		t.Fatalf("OpenIndex: %s", err)
	}
	defer idx.Close()

	if idx.CorpusSize() != n {
		t.Errorf("CorpusSize = %d, want %d", idx.CorpusSize(), n)
	}
	for i := 0; i < n; i++ {
		if _, found := idx.Search("word" + itoa(i)); !found {
			t.Errorf("expected %q to survive the cascade", "word"+itoa(i))
		}
	}
}
