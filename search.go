package invidx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"slices"

	"github.com/go-mmap/mmap"
)

// LoadedIndex is a finished index file opened for querying. Opening
// memory-maps the file (mirroring the teacher's own mmap'd catalog reads)
// and walks the whole contents table once, decoding every term's HitLists
// and every document record into the in-memory term → HitList and
// DocumentId → Document maps spec.md §4.8 requires, so memory use grows
// with the size of the index.
type LoadedIndex struct {
	path string
	file *mmap.File

	terms map[string][]Hit
	docs  map[DocumentId]Document

	trie *PrefixTrie

	catalog *documentCatalog // optional, see SPEC_FULL.md "document content catalog"
}

// OpenIndex opens path (normally index.bat) and loads its contents table.
func OpenIndex(path string) (*LoadedIndex, error) {
	f, err := mmap.Open(path)
	if err != nil {
		return nil, stageErr(StageSearch, path, err)
	}

	idx := &LoadedIndex{
		path:  path,
		file:  f,
		terms: make(map[string][]Hit),
		docs:  make(map[DocumentId]Document),
		trie:  NewPrefixTrie(),
	}

	if err := idx.load(); err != nil {
		f.Close()
		return nil, stageErr(StageSearch, path, err)
	}

	return idx, nil
}

// AttachCatalog wires an optional precomputed document-content catalog
// (see catalog.go) so Search can render highlights without re-reading the
// original file from disk.
func (idx *LoadedIndex) AttachCatalog(c *documentCatalog) { idx.catalog = c }

// Close releases the memory-mapped file.
func (idx *LoadedIndex) Close() error {
	return idx.file.Close()
}

func (idx *LoadedIndex) load() error {
	if _, err := idx.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var contentsStart uint64
	if err := binary.Read(idx.file, binary.LittleEndian, &contentsStart); err != nil {
		return fmt.Errorf("read contents_start: %w", err)
	}

	info, err := os.Stat(idx.path)
	if err != nil {
		return err
	}
	if contentsStart > uint64(info.Size()) {
		return fmt.Errorf("contents_start %d is past end of file (size %d)", contentsStart, info.Size())
	}

	if _, err := idx.file.Seek(int64(contentsStart), io.SeekStart); err != nil {
		return fmt.Errorf("seek to contents table at %d: %w", contentsStart, err)
	}

	contents := make([]byte, 0)
	if tail, err := io.ReadAll(idx.file); err != nil {
		return fmt.Errorf("read contents table: %w", err)
	} else {
		contents = tail
	}

	off := 0
	for off < len(contents) {
		if off+24 > len(contents) {
			return fmt.Errorf("truncated contents entry at table offset %d", off)
		}
		entryOffset := binary.LittleEndian.Uint64(contents[off : off+8])
		nbytes := binary.LittleEndian.Uint64(contents[off+8 : off+16])
		df := binary.LittleEndian.Uint32(contents[off+16 : off+20])
		termLen := binary.LittleEndian.Uint32(contents[off+20 : off+24])
		off += 24

		if off+int(termLen) > len(contents) {
			return fmt.Errorf("truncated term (wanted %d bytes) at table offset %d", termLen, off)
		}
		term := string(contents[off : off+int(termLen)])
		off += int(termLen)

		e := Entry{Term: term, DF: df, Offset: entryOffset, NBytes: nbytes}

		if e.IsDocument() {
			if err := idx.loadDocument(e); err != nil {
				return err
			}
			continue
		}

		if err := idx.loadTerm(e); err != nil {
			return err
		}
		idx.trie.Insert(term)
	}

	return nil
}

func (idx *LoadedIndex) loadDocument(e Entry) error {
	if _, err := idx.file.Seek(int64(e.Offset), io.SeekStart); err != nil {
		return fmt.Errorf("seek to document record: %w", err)
	}

	var docID uint32
	if err := binary.Read(idx.file, binary.LittleEndian, &docID); err != nil {
		return fmt.Errorf("read document id: %w", err)
	}
	var pathLen uint64
	if err := binary.Read(idx.file, binary.LittleEndian, &pathLen); err != nil {
		return fmt.Errorf("read document path length: %w", err)
	}
	path := make([]byte, pathLen)
	if _, err := io.ReadFull(idx.file, path); err != nil {
		return fmt.Errorf("read document path: %w", err)
	}

	idx.docs[DocumentId(docID)] = Document{ID: DocumentId(docID), Path: path}
	return nil
}

func (idx *LoadedIndex) loadTerm(e Entry) error {
	if _, err := idx.file.Seek(int64(e.Offset), io.SeekStart); err != nil {
		return fmt.Errorf("seek to term payload: %w", err)
	}
	data := make([]byte, e.NBytes)
	if _, err := io.ReadFull(idx.file, data); err != nil {
		return fmt.Errorf("read term payload (%d bytes): %w", e.NBytes, err)
	}

	hits, err := SplitHitLists(data, e.DF)
	if err != nil {
		return fmt.Errorf("term %q: %w", e.Term, err)
	}
	idx.terms[e.Term] = hits
	return nil
}

// Match is one document's highlighted occurrences of a searched term.
type Match struct {
	Doc   Document
	Spans []Span
}

// Search looks up term and returns every document containing it, with the
// spans sorted ascending, per spec.md §4.8. Reports "not found" via the
// returned bool when the term was never indexed.
func (idx *LoadedIndex) Search(term string) ([]Match, bool) {
	hits, ok := idx.terms[term]
	if !ok {
		return nil, false
	}

	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		doc, ok := idx.docs[h.DocID]
		if !ok {
			log.Printf("search: term %q references unknown document id %d (dropped during merge)", term, h.DocID)
			continue
		}
		spans := slices.Clone(h.Spans)
		slices.SortFunc(spans, func(a, b Span) int {
			if a.Start != b.Start {
				return int(a.Start) - int(b.Start)
			}
			return int(a.End) - int(b.End)
		})
		matches = append(matches, Match{Doc: doc, Spans: spans})
	}

	return matches, true
}

// CorpusSize returns the number of documents this index was built from.
func (idx *LoadedIndex) CorpusSize() int { return len(idx.docs) }

// Prefix returns up to limit indexed terms starting with prefix (the
// autocomplete supplement in SPEC_FULL.md).
func (idx *LoadedIndex) Prefix(prefix string, limit int) []string {
	return idx.trie.WithPrefix(prefix, limit)
}

const (
	highlightOpen  = "\x1b[31m"
	highlightClose = "\x1b[0m"
)

// Highlight reads doc's original text — from the attached catalog if one
// is present, else from disk at doc.Path — and wraps each of spans with
// highlightOpen/highlightClose. Invalid spans (out of bounds, or
// start > end) are skipped, leaving the surrounding text untouched
// (spec.md §4.8).
func (idx *LoadedIndex) Highlight(doc Document, spans []Span) (string, error) {
	text, err := idx.documentText(doc)
	if err != nil {
		return "", stageErr(StageSearch, string(doc.Path), err)
	}

	sorted := slices.Clone(spans)
	slices.SortFunc(sorted, func(a, b Span) int { return int(a.Start) - int(b.Start) })

	var buf bytes.Buffer
	last := 0
	for _, sp := range sorted {
		start, end := int(sp.Start), int(sp.End)
		if start > len(text)-1 || end > len(text)-1 || start > end || start < last {
			continue
		}
		buf.WriteString(text[last:start])
		buf.WriteString(highlightOpen)
		buf.WriteString(text[start : end+1])
		buf.WriteString(highlightClose)
		last = end + 1
	}
	buf.WriteString(text[last:])

	return buf.String(), nil
}

func (idx *LoadedIndex) documentText(doc Document) (string, error) {
	if idx.catalog != nil {
		if text, ok := idx.catalog.content(doc.ID); ok {
			return text, nil
		}
	}

	data, err := os.ReadFile(string(doc.Path))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
