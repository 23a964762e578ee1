package invidx

import (
	"encoding/binary"
	"fmt"
)

// hitListSentinel delimits concatenated HitLists belonging to the same term
// across different documents when merged on disk. Stored as an int32 so its
// bit pattern (0xFFFFFFFF) never collides with a real document id, which is
// always a positive uint32.
const hitListSentinel uint32 = 0xFFFFFFFF // int32(-1) reinterpreted

// HitList is the little-endian-encoded, on-disk form of one (term,
// document) pair's positional data:
//
//	sentinel (-1 : int32), document_id (uint32), (start, end uint32)...
//
// It is kept as raw bytes, not a parsed struct, because the pipeline's
// InMemoryMerger and the FileMerger's stream merge never need to inspect a
// HitList's contents — they only concatenate or copy it verbatim. Only the
// Searcher (search.go) decodes HitLists.
type HitList []byte

// EncodeHitList builds the on-disk HitList for one document's occurrences
// of a single term.
func EncodeHitList(docID DocumentId, spans []Span) HitList {
	buf := make([]byte, 8+8*len(spans))
	binary.LittleEndian.PutUint32(buf[0:4], hitListSentinel)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(docID))

	off := 8
	for _, sp := range spans {
		binary.LittleEndian.PutUint32(buf[off:off+4], sp.Start)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], sp.End)
		off += 8
	}

	return HitList(buf)
}

// Hit is the decoded form of one HitList: which document, and the spans of
// every occurrence of the term in it.
type Hit struct {
	DocID DocumentId
	Spans []Span
}

// SplitHitLists decodes a payload byte range containing df concatenated
// HitLists (as produced by a final, merged contents-table entry) into their
// individual Hits.
func SplitHitLists(data []byte, df uint32) ([]Hit, error) {
	hits := make([]Hit, 0, df)

	off := 0
	for i := uint32(0); i < df; i++ {
		if off+8 > len(data) {
			return nil, fmt.Errorf("truncated hit list entry %d of %d", i, df)
		}
		sentinel := binary.LittleEndian.Uint32(data[off : off+4])
		if sentinel != hitListSentinel {
			return nil, fmt.Errorf("hit list entry %d: missing sentinel", i)
		}
		docID := DocumentId(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += 8

		var spans []Span
		for off+8 <= len(data) {
			// A hit list's span pairs run up to the next sentinel or EOF.
			if off+4 <= len(data) && binary.LittleEndian.Uint32(data[off:off+4]) == hitListSentinel && i+1 < df {
				break
			}
			start := binary.LittleEndian.Uint32(data[off : off+4])
			end := binary.LittleEndian.Uint32(data[off+4 : off+8])
			spans = append(spans, Span{start, end})
			off += 8
		}

		hits = append(hits, Hit{DocID: docID, Spans: spans})
	}

	if off != len(data) {
		return nil, fmt.Errorf("truncated hit list: %d trailing bytes", len(data)-off)
	}

	return hits, nil
}
