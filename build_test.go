package invidx

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, contents := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
			t.Fatalf("write %s: %s", name, err)
		}
	}
	return dir
}

func buildAndOpen(t *testing.T, docs []InputDocument, opts BuildOptions) *LoadedIndex {
	t.Helper()
	outDir := t.TempDir()
	opts.OutputDir = outDir
	if err := Build(docs, opts); err != nil {
		t.Fatalf("Build: %s", err)
	}
	idx, err := OpenIndex(filepath.Join(outDir, MergedFileName))
	if err != nil {
		t.Fatalf("OpenIndex: %s", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

// Concrete scenario 1 (spec.md §8): two files sharing the term "bar".
func TestBuildSearchTwoDocumentsSharedTerm(t *testing.T) {
	dir := writeTestFiles(t, map[string]string{
		"a.txt": "foo bar",
		"b.txt": "bar baz",
	})
	docs := []InputDocument{
		{Path: filepath.Join(dir, "a.txt"), StoredPath: []byte("a.txt")},
		{Path: filepath.Join(dir, "b.txt"), StoredPath: []byte("b.txt")},
	}

	idx := buildAndOpen(t, docs, BuildOptions{NWorkers: 2})

	matches, found := idx.Search("bar")
	if !found {
		t.Fatal(`expected "bar" to be found`)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}

	byPath := make(map[string][]Span)
	for _, m := range matches {
		byPath[string(m.Doc.Path)] = m.Spans
	}
	if spans, ok := byPath["a.txt"]; !ok || len(spans) != 1 || spans[0] != (Span{4, 6}) {
		t.Errorf("a.txt spans = %v, want [{4 6}]", spans)
	}
	if spans, ok := byPath["b.txt"]; !ok || len(spans) != 1 || spans[0] != (Span{0, 2}) {
		t.Errorf("b.txt spans = %v, want [{0 2}]", spans)
	}
}

// Concrete scenario 2: repeated casing of the same word within one document.
func TestBuildSearchCaseFolding(t *testing.T) {
	dir := writeTestFiles(t, map[string]string{"c.txt": "Foo FOO foo"})
	docs := []InputDocument{{Path: filepath.Join(dir, "c.txt"), StoredPath: []byte("c.txt")}}

	idx := buildAndOpen(t, docs, BuildOptions{SingleThreaded: true})

	matches, found := idx.Search("foo")
	if !found || len(matches) != 1 {
		t.Fatalf("expected exactly one matching document, found=%v matches=%v", found, matches)
	}
	want := []Span{{0, 2}, {4, 6}, {8, 10}}
	if len(matches[0].Spans) != len(want) {
		t.Fatalf("got %d spans, want %d", len(matches[0].Spans), len(want))
	}
	for i, sp := range matches[0].Spans {
		if sp != want[i] {
			t.Errorf("span %d = %+v, want %+v", i, sp, want[i])
		}
	}
}

// Concrete scenario 3: many small files sharing one word end up under a
// single contents entry. Under the default flush threshold the whole corpus
// is flushed as one temp file, so no stack cascade happens here; see
// TestBuildHierarchicalMergeForcedByThreshold for that.
func TestBuildHierarchicalMerge(t *testing.T) {
	files := make(map[string]string)
	var docs []InputDocument
	const n = 2 * NStreams
	for i := 0; i < n; i++ {
		name := filepathName(i)
		files[name] = "hello"
	}
	dir := writeTestFiles(t, files)
	for i := 0; i < n; i++ {
		name := filepathName(i)
		docs = append(docs, InputDocument{Path: filepath.Join(dir, name), StoredPath: []byte(name)})
	}

	idx := buildAndOpen(t, docs, BuildOptions{NWorkers: 4})

	matches, found := idx.Search("hello")
	if !found {
		t.Fatal(`expected "hello" to be found`)
	}
	if len(matches) != n {
		t.Fatalf("got %d matches, want %d", len(matches), n)
	}
	for _, m := range matches {
		if len(m.Spans) != 1 || m.Spans[0] != (Span{0, 4}) {
			t.Errorf("doc %s spans = %v, want [{0 4}]", m.Doc.Path, m.Spans)
		}
	}
}

// TestBuildHierarchicalMerge above flushes once for the whole corpus (every
// document fits under the default 10^8-word threshold), so it never
// exercises FileMerger.AddFile's cascade. This test sets the threshold to 1,
// so the accumulator (one word per document) is flushed every second
// document, producing enough temp files to drive the stack past NStreams
// and into a real hierarchical merge.
func TestBuildHierarchicalMergeForcedByThreshold(t *testing.T) {
	files := make(map[string]string)
	var docs []InputDocument
	const n = 3*NStreams + 1
	for i := 0; i < n; i++ {
		name := filepathName(i)
		files[name] = "word" + itoa(i)
	}
	dir := writeTestFiles(t, files)
	for i := 0; i < n; i++ {
		name := filepathName(i)
		docs = append(docs, InputDocument{Path: filepath.Join(dir, name), StoredPath: []byte(name)})
	}

	idx := buildAndOpen(t, docs, BuildOptions{NWorkers: 4, FlushThreshold: 1})

	if idx.CorpusSize() != n {
		t.Fatalf("CorpusSize = %d, want %d", idx.CorpusSize(), n)
	}
	for i := 0; i < n; i++ {
		term := "word" + itoa(i)
		if _, found := idx.Search(term); !found {
			t.Errorf("expected %q to be found after a forced hierarchical merge", term)
		}
	}
}

func filepathName(i int) string {
	return "doc" + itoa(i) + ".txt"
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf []byte
	for i > 0 {
		buf = append([]byte{byte('0' + i%10)}, buf...)
		i /= 10
	}
	return string(buf)
}

// Boundary behavior: empty input list fails with "no documents...".
func TestBuildEmptyInput(t *testing.T) {
	outDir := t.TempDir()
	err := Build(nil, BuildOptions{OutputDir: outDir})
	if err == nil {
		t.Fatal("expected an error building from zero documents")
	}
}

// Boundary behavior: a single empty file still produces one document entry.
func TestBuildSingleEmptyFile(t *testing.T) {
	dir := writeTestFiles(t, map[string]string{"empty.txt": ""})
	docs := []InputDocument{{Path: filepath.Join(dir, "empty.txt"), StoredPath: []byte("empty.txt")}}

	idx := buildAndOpen(t, docs, BuildOptions{SingleThreaded: true})

	if idx.CorpusSize() != 1 {
		t.Fatalf("CorpusSize = %d, want 1", idx.CorpusSize())
	}
	if len(idx.terms) != 0 {
		t.Errorf("expected no terms, got %v", idx.terms)
	}
}

// Boundary behavior: a single token at byte 0.
func TestBuildSingleTokenAtStart(t *testing.T) {
	dir := writeTestFiles(t, map[string]string{"one.txt": "alone"})
	docs := []InputDocument{{Path: filepath.Join(dir, "one.txt"), StoredPath: []byte("one.txt")}}

	idx := buildAndOpen(t, docs, BuildOptions{SingleThreaded: true})

	matches, found := idx.Search("alone")
	if !found || len(matches) != 1 {
		t.Fatalf("expected one match, found=%v matches=%v", found, matches)
	}
	if matches[0].Spans[0] != (Span{0, 4}) {
		t.Errorf("span = %+v, want {0 4}", matches[0].Spans[0])
	}
}

// Concrete scenario 4: UTF-8 text highlights round-trip.
func TestBuildSearchUTF8(t *testing.T) {
	dir := writeTestFiles(t, map[string]string{"d.txt": "résumé café"})
	docs := []InputDocument{{Path: filepath.Join(dir, "d.txt"), StoredPath: []byte(filepath.Join(dir, "d.txt"))}}

	idx := buildAndOpen(t, docs, BuildOptions{SingleThreaded: true})

	for _, term := range []string{"résumé", "café"} {
		matches, found := idx.Search(term)
		if !found || len(matches) != 1 {
			t.Fatalf("expected a match for %q, found=%v matches=%v", term, found, matches)
		}
		highlighted, err := idx.Highlight(matches[0].Doc, matches[0].Spans)
		if err != nil {
			t.Fatalf("Highlight(%q): %s", term, err)
		}
		if !contains(highlighted, term) {
			t.Errorf("highlighted text %q does not contain %q", highlighted, term)
		}
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

// Boundary behavior: directories only contribute their .txt children — but
// this step happens in cmd/create, not Build itself; Build indexes whatever
// InputDocuments it is given, so this test exercises the lower-level
// guarantee that a .bin-like binary blob with no term runes still builds an
// index holding its one document record rather than erroring.
func TestBuildIgnoresBinaryLikeContent(t *testing.T) {
	dir := writeTestFiles(t, map[string]string{"x.bin": "\x00\x01\x02\x03"})
	docs := []InputDocument{{Path: filepath.Join(dir, "x.bin"), StoredPath: []byte("x.bin")}}

	idx := buildAndOpen(t, docs, BuildOptions{SingleThreaded: true})
	if idx.CorpusSize() != 1 {
		t.Fatalf("CorpusSize = %d, want 1", idx.CorpusSize())
	}
}
