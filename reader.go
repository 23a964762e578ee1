package invidx

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// Entry is one contents-table record: a term (or the empty string, tagging
// a document record when df == 0) and the payload range it describes.
type Entry struct {
	Term   string
	DF     uint32
	Offset uint64
	NBytes uint64
}

// IsDocument reports whether this entry tags a document record rather than
// a term's HitList group.
func (e Entry) IsDocument() bool { return e.Term == "" && e.DF == 0 }

// IndexFileReader streams an index file's contents table in order,
// buffering one lookahead entry (next) so callers can peek before
// deciding whether to consume it. It holds two independent handles onto
// the same file: main (the payload, read sequentially in contents-table
// order) and contents (the contents table itself).
type IndexFileReader struct {
	path string

	main         *os.File
	contents     *bufio.Reader
	contentsFile *os.File

	next *Entry
}

// OpenIndexFile opens path for reading its contents table and payload. If
// deleteOnOpen is set, the file is unlinked immediately after the first
// contents entry is read — the open handles keep the inode alive on POSIX
// until the reader is closed, which is how FileMerger reclaims temp files
// as soon as they are consumed.
func OpenIndexFile(path string, deleteOnOpen bool) (*IndexFileReader, error) {
	main, err := os.Open(path)
	if err != nil {
		return nil, stageErr(StageRead, path, err)
	}

	var contentsStart uint64
	if err := binary.Read(main, binary.LittleEndian, &contentsStart); err != nil {
		main.Close()
		return nil, stageErr(StageRead, path, fmt.Errorf("read contents_start: %w", err))
	}

	info, err := main.Stat()
	if err != nil {
		main.Close()
		return nil, stageErr(StageRead, path, err)
	}
	if contentsStart > uint64(info.Size()) {
		main.Close()
		return nil, stageErr(StageRead, path, fmt.Errorf("contents_start %d is past end of file (size %d)", contentsStart, info.Size()))
	}

	contentsFile, err := os.Open(path)
	if err != nil {
		main.Close()
		return nil, stageErr(StageRead, path, err)
	}
	if _, err := contentsFile.Seek(int64(contentsStart), io.SeekStart); err != nil {
		main.Close()
		contentsFile.Close()
		return nil, stageErr(StageRead, path, fmt.Errorf("seek to contents table at %d: %w", contentsStart, err))
	}

	r := &IndexFileReader{
		path:         path,
		main:         main,
		contents:     bufio.NewReader(contentsFile),
		contentsFile: contentsFile,
	}

	first, err := readEntry(r.contents)
	if err != nil {
		main.Close()
		contentsFile.Close()
		return nil, stageErr(StageRead, path, err)
	}
	r.next = first

	if deleteOnOpen {
		if err := os.Remove(path); err != nil {
			main.Close()
			contentsFile.Close()
			return nil, stageErr(StageRead, path, err)
		}
	}

	return r, nil
}

// Close releases both of the reader's open handles.
func (r *IndexFileReader) Close() error {
	err1 := r.main.Close()
	err2 := r.contentsFile.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// readEntry reads one contents-table record. It returns (nil, nil) on a
// clean EOF at the start of a record, and a Format error for any other
// truncation (spec.md §4.6).
func readEntry(r *bufio.Reader) (*Entry, error) {
	var hdr [24]byte
	n, err := io.ReadFull(r, hdr[:])
	if err != nil {
		if n == 0 && err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("truncated contents entry: %w", err)
	}

	e := Entry{
		Offset: binary.LittleEndian.Uint64(hdr[0:8]),
		NBytes: binary.LittleEndian.Uint64(hdr[8:16]),
		DF:     binary.LittleEndian.Uint32(hdr[16:20]),
	}
	termLen := binary.LittleEndian.Uint32(hdr[20:24])

	termBytes := make([]byte, termLen)
	if _, err := io.ReadFull(r, termBytes); err != nil {
		return nil, fmt.Errorf("truncated term (wanted %d bytes): %w", termLen, err)
	}
	if !utf8.Valid(termBytes) {
		return nil, fmt.Errorf("invalid UTF-8 in term")
	}
	e.Term = string(termBytes)

	return &e, nil
}

// Peek returns the next entry without consuming it, or nil if the contents
// table is exhausted.
func (r *IndexFileReader) Peek() *Entry { return r.next }

// Advance returns the current lookahead entry and reads the following one,
// returning nil once the contents table is exhausted.
func (r *IndexFileReader) Advance() (*Entry, error) {
	cur := r.next
	n, err := readEntry(r.contents)
	if err != nil {
		return cur, err
	}
	r.next = n
	return cur, nil
}

// IsAt reports whether the lookahead entry's term equals term.
func (r *IndexFileReader) IsAt(term string) bool {
	return r.next != nil && r.next.Term == term
}

// MoveEntryTo copies the lookahead entry's payload bytes verbatim to out,
// then advances. The caller must have already emitted (or plans to emit)
// the corresponding contents entry on out itself.
func (r *IndexFileReader) MoveEntryTo(out *IndexFileWriter) error {
	if r.next == nil {
		return fmt.Errorf("move_entry_to: no entry to move")
	}

	buf := make([]byte, r.next.NBytes)
	if _, err := io.ReadFull(r.main, buf); err != nil {
		return fmt.Errorf("move_entry_to: read %d bytes at payload: %w", r.next.NBytes, err)
	}
	if err := out.WritePayload(buf); err != nil {
		return err
	}

	n, err := readEntry(r.contents)
	if err != nil {
		return err
	}
	r.next = n
	return nil
}
