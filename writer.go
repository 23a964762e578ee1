package invidx

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"slices"
)

const indexHeaderSize = 8

// IndexFileWriter writes one index file: a placeholder header, a payload of
// HitList groups and document records, and a contents table, per spec.md
// §4.5 / §6.1. All integers are little-endian.
type IndexFileWriter struct {
	f      *os.File
	bw     *bufio.Writer
	offset uint64

	contentsBuf bytes.Buffer
}

// NewIndexFileWriter writes the placeholder 8-byte header and returns a
// writer positioned at the start of the payload.
func NewIndexFileWriter(f *os.File) (*IndexFileWriter, error) {
	bw := bufio.NewWriter(f)
	if err := binary.Write(bw, binary.LittleEndian, uint64(0)); err != nil {
		return nil, fmt.Errorf("write index header: %w", err)
	}
	return &IndexFileWriter{f: f, bw: bw, offset: indexHeaderSize}, nil
}

// Offset returns the writer's current position in the payload.
func (w *IndexFileWriter) Offset() uint64 { return w.offset }

// WritePayload appends buf to the payload verbatim, advancing the offset.
func (w *IndexFileWriter) WritePayload(buf []byte) error {
	if _, err := w.bw.Write(buf); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	w.offset += uint64(len(buf))
	return nil
}

// WriteDocument appends a document record: id, path length, path bytes.
func (w *IndexFileWriter) WriteDocument(doc Document) error {
	if err := binary.Write(w.bw, binary.LittleEndian, uint32(doc.ID)); err != nil {
		return fmt.Errorf("write document id: %w", err)
	}
	if err := binary.Write(w.bw, binary.LittleEndian, uint64(len(doc.Path))); err != nil {
		return fmt.Errorf("write document path length: %w", err)
	}
	if _, err := w.bw.Write(doc.Path); err != nil {
		return fmt.Errorf("write document path: %w", err)
	}
	w.offset += 4 + 8 + uint64(len(doc.Path))
	return nil
}

// RecordContentsEntry appends a fixed-prefix + variable-tail record to the
// in-memory contents buffer. It does not touch the file; Finish flushes it.
// A term_len == 0 and df == 0 entry is the on-disk tag for a document
// record (spec.md §6.1).
func (w *IndexFileWriter) RecordContentsEntry(term string, df uint32, offset, nbytes uint64) {
	var hdr [24]byte
	binary.LittleEndian.PutUint64(hdr[0:8], offset)
	binary.LittleEndian.PutUint64(hdr[8:16], nbytes)
	binary.LittleEndian.PutUint32(hdr[16:20], df)
	binary.LittleEndian.PutUint32(hdr[20:24], uint32(len(term)))
	w.contentsBuf.Write(hdr[:])
	w.contentsBuf.WriteString(term)
}

// Finish flushes the contents buffer, then backpatches the header with the
// contents table's starting offset.
func (w *IndexFileWriter) Finish() error {
	contentsStart := w.offset
	if _, err := w.contentsBuf.WriteTo(w.bw); err != nil {
		return fmt.Errorf("write contents table: %w", err)
	}
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("flush index file: %w", err)
	}
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek to index header: %w", err)
	}
	if err := binary.Write(w.f, binary.LittleEndian, contentsStart); err != nil {
		return fmt.Errorf("write contents_start: %w", err)
	}
	return nil
}

// WriteIndex serializes index to out: terms in sorted byte order (each
// term's HitLists written verbatim, back to back), followed by one document
// record per entry in index.Docs. The caller calls Finish.
func WriteIndex(index PartialIndex, out *IndexFileWriter) error {
	terms := make([]string, 0, len(index.Terms))
	for t := range index.Terms {
		terms = append(terms, t)
	}
	slices.Sort(terms)

	for _, term := range terms {
		hits := index.Terms[term]
		start := out.Offset()
		for _, hit := range hits {
			if err := out.WritePayload(hit); err != nil {
				return err
			}
		}
		stop := out.Offset()
		out.RecordContentsEntry(term, uint32(len(hits)), start, stop-start)
	}

	docIDs := make([]DocumentId, 0, len(index.Docs))
	for id := range index.Docs {
		docIDs = append(docIDs, id)
	}
	slices.Sort(docIDs)

	for _, id := range docIDs {
		doc := index.Docs[id]
		start := out.Offset()
		if err := out.WriteDocument(doc); err != nil {
			return err
		}
		stop := out.Offset()
		out.RecordContentsEntry("", 0, start, stop-start)
	}

	return nil
}

// WriteIndexToTmpFile serializes index to a fresh temp file allocated from
// tmpDir and returns its path, per spec.md §4.4's FlushWriter contract.
func WriteIndexToTmpFile(index PartialIndex, tmpDir *TmpDir) (string, error) {
	path, f, err := tmpDir.Create()
	if err != nil {
		return "", err
	}
	defer f.Close()

	w, err := NewIndexFileWriter(f)
	if err != nil {
		return "", stageErr(StageWrite, path, err)
	}
	if err := WriteIndex(index, w); err != nil {
		return "", stageErr(StageWrite, path, err)
	}
	if err := w.Finish(); err != nil {
		return "", stageErr(StageWrite, path, err)
	}

	return path, nil
}
