package invidx

// defaultLargeIndexWordCount is the reference threshold (spec: 10^8
// occurrences) above which InMemoryMerger flushes its accumulator instead of
// continuing to grow it. Overridable per PartialIndex via
// NewPartialIndexWithThreshold, so tests can drive the flush path (and in
// turn FileMerger's stack cascade) without building a corpus of that size.
const defaultLargeIndexWordCount = 100_000_000

// PartialIndex is an in-memory index covering a bounded subset of the
// corpus: as small as a single document, or as large as several merged
// documents below the size threshold.
//
// Invariants (spec.md §3):
//   - every Terms[t] slice is non-empty
//   - a PartialIndex built from a single document holds exactly one HitList
//     per term
//   - WordCount is the sum of occurrence counts across all HitLists, not the
//     number of distinct terms
type PartialIndex struct {
	WordCount uint64
	Terms     map[string][]HitList
	Docs      map[DocumentId]Document
	threshold uint64
}

// NewPartialIndex returns an empty PartialIndex using the default flush
// threshold.
func NewPartialIndex() PartialIndex {
	return NewPartialIndexWithThreshold(0)
}

// NewPartialIndexWithThreshold returns an empty PartialIndex that reports
// IsLarge once WordCount exceeds threshold. A threshold of 0 uses
// defaultLargeIndexWordCount.
func NewPartialIndexWithThreshold(threshold uint64) PartialIndex {
	if threshold == 0 {
		threshold = defaultLargeIndexWordCount
	}
	return PartialIndex{
		Terms:     make(map[string][]HitList),
		Docs:      make(map[DocumentId]Document),
		threshold: threshold,
	}
}

// BuildSingle tokenizes text and produces a single-document PartialIndex.
//
// text is lower-cased per rune to find term keys, but Spans always index
// into the original (unfolded) text, since that is what a caller will later
// highlight.
func BuildSingle(docID DocumentId, path []byte, text string) PartialIndex {
	idx := NewPartialIndex()

	spansByTerm := make(map[string][]Span)
	var order []string
	for sp := range splitSpans(text) {
		term := foldTerm(text[sp.Start : sp.End+1])
		if _, ok := spansByTerm[term]; !ok {
			order = append(order, term)
		}
		spansByTerm[term] = append(spansByTerm[term], sp)
		idx.WordCount++
	}

	for _, term := range order {
		idx.Terms[term] = []HitList{EncodeHitList(docID, spansByTerm[term])}
	}

	idx.Docs[docID] = Document{ID: docID, Path: path}

	return idx
}

// Merge appends other's HitLists onto self's, term by term, and folds in
// other's documents and word count.
//
// If self and other are each ordered by document id, and every id in other
// exceeds every id in self, the merged Terms[t] slices remain ordered by
// document id — true for the standard pipeline build order (spec.md §4.2).
func (p *PartialIndex) Merge(other PartialIndex) {
	for term, hits := range other.Terms {
		p.Terms[term] = append(p.Terms[term], hits...)
	}
	for id, doc := range other.Docs {
		p.Docs[id] = doc
	}
	p.WordCount += other.WordCount
}

// IsEmpty reports whether this index holds no occurrences.
func (p *PartialIndex) IsEmpty() bool {
	return p.WordCount == 0
}

// IsLarge reports whether this index has grown past the point where it
// should be flushed to disk rather than accumulate further.
func (p *PartialIndex) IsLarge() bool {
	return p.WordCount > p.threshold
}
