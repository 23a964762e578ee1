package invidx

import (
	"fmt"
	"os"
	"path/filepath"
)

// NStreams bounds how many temp files FileMerger holds open at once — both
// within one merge step and as the fan-in of the hierarchical merge tree
// (spec.md §4.7).
const NStreams = 8

// MergedFileName is the name of the sealed, final index file.
const MergedFileName = "index.bat"

// FileMerger hierarchically combines an arbitrary number of temp index
// files into one final file, bounded to NStreams open files at a time.
// Stack k holds up to NStreams files representing roughly NStreams^k
// original partials.
type FileMerger struct {
	outputDir string
	tmpDir    *TmpDir
	stacks    [][]string
}

// NewFileMerger returns a FileMerger that will assemble the final index
// file into outputDir.
func NewFileMerger(outputDir string) *FileMerger {
	return &FileMerger{
		outputDir: outputDir,
		tmpDir:    NewTmpDir(outputDir),
	}
}

// AddFile pushes a newly flushed temp file onto stack 0, draining (merging)
// full stacks upward as needed.
func (m *FileMerger) AddFile(path string) error {
	level := 0
	for {
		if level == len(m.stacks) {
			m.stacks = append(m.stacks, nil)
		}
		m.stacks[level] = append(m.stacks[level], path)
		if len(m.stacks[level]) < NStreams {
			return nil
		}

		toMerge := m.stacks[level]
		m.stacks[level] = nil

		mergedPath, f, err := m.tmpDir.Create()
		if err != nil {
			return err
		}
		if err := mergeStreams(toMerge, f, mergedPath); err != nil {
			f.Close()
			return err
		}
		f.Close()

		path = mergedPath
		level++
	}
}

// Finish flattens all stacks (higher levels first, each level in reverse
// insertion order, so the largest inputs group together) and repeatedly
// merges NStreams files at a time until exactly one remains, which is
// renamed to the final index file.
func (m *FileMerger) Finish() error {
	var tmp []string
	for level := len(m.stacks) - 1; level >= 0; level-- {
		stack := m.stacks[level]
		for i := len(stack) - 1; i >= 0; i-- {
			tmp = append(tmp, stack[i])
		}
	}

	for len(tmp) > 1 {
		n := min(NStreams, len(tmp))
		batch := tmp[:n]
		rest := tmp[n:]

		mergedPath, f, err := m.tmpDir.Create()
		if err != nil {
			return err
		}
		if err := mergeStreams(batch, f, mergedPath); err != nil {
			f.Close()
			return err
		}
		f.Close()

		tmp = append(rest, mergedPath)
	}

	if len(tmp) == 0 {
		return fmt.Errorf("no documents parsed or none contained any words")
	}

	finalPath := filepath.Join(m.outputDir, MergedFileName)
	if err := os.Rename(tmp[0], finalPath); err != nil {
		return stageErr(StageMerge, tmp[0], err)
	}
	return nil
}

// mergeStreams performs the multi-way merge over files' sorted contents
// tables, per spec.md §4.7.1, writing the result to out.
func mergeStreams(paths []string, out *os.File, outPath string) error {
	readers := make([]*IndexFileReader, 0, len(paths))
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()

	for _, p := range paths {
		r, err := OpenIndexFile(p, true)
		if err != nil {
			return err
		}
		readers = append(readers, r)
	}

	writer, err := NewIndexFileWriter(out)
	if err != nil {
		return stageErr(StageMerge, outPath, err)
	}

	active := 0
	for _, r := range readers {
		if r.Peek() != nil {
			active++
		}
	}

	for active > 0 {
		// A document record (empty term) always takes priority, but unlike
		// terms it is never coalesced across readers: two readers can each
		// have an unrelated document waiting at the front at the same time,
		// and each must get its own contents entry. So the document case
		// picks exactly one reader to move, while the term case scans every
		// reader for the lexicographically smallest term and accumulates df
		// across every reader sitting on that same term.
		docReader := -1
		for i, r := range readers {
			if e := r.Peek(); e != nil && e.IsDocument() {
				docReader = i
				break
			}
		}

		if docReader >= 0 {
			start := writer.Offset()
			r := readers[docReader]
			if err := r.MoveEntryTo(writer); err != nil {
				return stageErr(StageMerge, outPath, err)
			}
			if r.Peek() == nil {
				active--
			}
			writer.RecordContentsEntry("", 0, start, writer.Offset()-start)
			continue
		}

		var term string
		haveTerm := false
		var df uint32

		for _, r := range readers {
			e := r.Peek()
			if e == nil {
				continue
			}
			if !haveTerm || e.Term < term {
				term = e.Term
				df = e.DF
				haveTerm = true
			} else if e.Term == term {
				df += e.DF
			}
		}

		// Structurally impossible: docReader was -1, so no active reader's
		// front entry is a document record, which means every active reader
		// must be sitting on a term entry.
		assert(haveTerm, "merge: selection rule produced no term while %d readers are active", active)

		// Track the output offset directly rather than a hand-computed
		// running total, so the recorded offset always matches where this
		// term's bytes actually landed in the merged file.
		start := writer.Offset()

		for _, r := range readers {
			if r.IsAt(term) {
				if err := r.MoveEntryTo(writer); err != nil {
					return stageErr(StageMerge, outPath, err)
				}
				if r.Peek() == nil {
					active--
				}
			}
		}

		writer.RecordContentsEntry(term, df, start, writer.Offset()-start)
	}

	if err := writer.Finish(); err != nil {
		return stageErr(StageMerge, outPath, err)
	}
	return nil
}
