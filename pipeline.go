package invidx

import (
	"fmt"
	"os"
	"sync"
)

// BuildUpdate reports progress from the pipeline so a caller (e.g.
// cmd/create) can drive a progress bar, mirroring the teacher's
// InjestProgressCh/SerializeProgressCh pattern.
type BuildUpdate struct {
	Stage string // "read", "flush", "merge"
	Path  string
}

// InputDocument is one file the pipeline should index.
type InputDocument struct {
	// Path is the filesystem path to read.
	Path string
	// StoredPath is the byte sequence recorded in the index file for this
	// document (spec.md §3: "Path is stored as an opaque byte sequence").
	StoredPath []byte
}

// BuildOptions configures a Build run.
type BuildOptions struct {
	OutputDir string
	// NWorkers is the number of concurrent Reader+Tokenizer worker
	// goroutines buildPipelined spawns (each pairs the two stages the way
	// the teacher's InjestFiles worker pairs file-read with index
	// computation, builder.go:106-157); ignored when SingleThreaded is
	// set. Defaults to 1 if <= 0.
	NWorkers int
	// SingleThreaded collapses all five stages into one straight-line
	// loop sharing one accumulator (spec.md §9's debugging mode).
	SingleThreaded bool
	// FlushThreshold overrides the in-memory accumulator's word-count
	// threshold (spec: 10^8 occurrences) above which it is flushed to a
	// temp file instead of growing further. Zero uses the package
	// default; tests use a small value to drive the flush path (and in
	// turn FileMerger's stack cascade) without an enormous corpus.
	FlushThreshold uint64
	// CatalogPath, if non-empty, tells Build to also write a gzip
	// document content catalog (see WriteDocumentCatalog) to this path
	// once the index is sealed.
	CatalogPath string
	// Progress, if non-nil, receives BuildUpdate values as the build runs.
	// The pipeline closes it when the build finishes (success or error).
	Progress chan<- BuildUpdate
}

// Build runs the five-stage pipeline (Reader → Tokenizer → InMemoryMerger →
// FlushWriter → FileMerger) over docs and produces a sealed index file at
// opts.OutputDir/index.bat.
func Build(docs []InputDocument, opts BuildOptions) error {
	if opts.Progress != nil {
		defer close(opts.Progress)
	}
	if err := EnsureDir(opts.OutputDir); err != nil {
		return err
	}

	if opts.SingleThreaded {
		return buildSingleThreaded(docs, opts)
	}
	return buildPipelined(docs, opts)
}

// buildSingleThreaded runs the same stage logic as buildPipelined, but
// serially in the calling goroutine, sharing one accumulator across all
// documents. It exists for debugging, per spec.md §9.
func buildSingleThreaded(docs []InputDocument, opts BuildOptions) error {
	flushDir := NewTmpDir(opts.OutputDir)
	merger := NewFileMerger(opts.OutputDir)

	var catalogTexts [][]byte
	if opts.CatalogPath != "" {
		catalogTexts = make([][]byte, len(docs))
	}

	acc := NewPartialIndexWithThreshold(opts.FlushThreshold)
	for i, d := range docs {
		text, err := readDocumentText(d.Path)
		if err != nil {
			return stageErr(StageRead, d.Path, err)
		}
		progress(opts.Progress, BuildUpdate{Stage: "read", Path: d.Path})
		if catalogTexts != nil {
			catalogTexts[i] = []byte(text)
		}

		single := BuildSingle(DocumentId(i), d.StoredPath, text)
		acc.Merge(single)

		if acc.IsLarge() {
			path, err := WriteIndexToTmpFile(acc, flushDir)
			if err != nil {
				return err
			}
			progress(opts.Progress, BuildUpdate{Stage: "flush", Path: path})
			if err := merger.AddFile(path); err != nil {
				return err
			}
			progress(opts.Progress, BuildUpdate{Stage: "merge", Path: path})
			acc = NewPartialIndexWithThreshold(opts.FlushThreshold)
		}
	}

	if !acc.IsEmpty() || len(acc.Docs) > 0 {
		path, err := WriteIndexToTmpFile(acc, flushDir)
		if err != nil {
			return err
		}
		progress(opts.Progress, BuildUpdate{Stage: "flush", Path: path})
		if err := merger.AddFile(path); err != nil {
			return err
		}
		progress(opts.Progress, BuildUpdate{Stage: "merge", Path: path})
	}

	if err := merger.Finish(); err != nil {
		return err
	}
	if catalogTexts != nil {
		return writeCatalogFromTexts(opts.CatalogPath, catalogTexts)
	}
	return nil
}

// docWork is one unit of Reader+Tokenizer work: a document identity paired
// with the id it must be assigned, fixed by its position in docs regardless
// of which worker goroutine ends up reading it or in what order.
type docWork struct {
	id  DocumentId
	doc InputDocument
}

// buildPipelined wires up the concurrent stage goroutines over bounded
// channels. Document ids are assigned by each doc's position in docs
// (spec.md §5), not by emission order, since with NWorkers > 1 several
// documents can be read and tokenized concurrently and complete in any
// order.
func buildPipelined(docs []InputDocument, opts BuildOptions) error {
	nWorkers := opts.NWorkers
	if nWorkers <= 0 {
		nWorkers = 1
	}
	if nWorkers > len(docs) {
		nWorkers = max(1, len(docs))
	}

	indexCh := make(chan PartialIndex, nWorkers*2)
	flushCh := make(chan PartialIndex, 4)
	pathCh := make(chan string, NStreams)

	// abort is closed the moment any I/O stage errors. Every blocking send
	// in the pipeline also selects on it, so a downed stage's upstream
	// peers unblock and unwind instead of hanging on a channel nobody is
	// draining anymore — the Go equivalent of Rust mpsc's "send to a
	// dropped receiver fails immediately" (spec.md §5).
	abort := make(chan struct{})
	var abortOnce sync.Once
	raise := func() { abortOnce.Do(func() { close(abort) }) }

	var readErr, flushErr, mergeErr error
	var readErrOnce sync.Once
	setReadErr := func(err error) {
		readErrOnce.Do(func() { readErr = err })
		raise()
	}

	var catalogTexts [][]byte
	if opts.CatalogPath != "" {
		catalogTexts = make([][]byte, len(docs))
	}

	var wg sync.WaitGroup

	// Reader+Tokenizer worker pool: a feeder goroutine hands out docWork
	// items, and NWorkers goroutines each read a document's text and
	// tokenize it into a single-document PartialIndex, mirroring the
	// teacher's InjestFiles worker pool (builder.go:106-157) where each
	// worker both reads a file and computes its index entry.
	workCh := make(chan docWork, nWorkers*2)
	go func() {
		defer close(workCh)
		for i, d := range docs {
			select {
			case workCh <- docWork{DocumentId(i), d}:
			case <-abort:
				return
			}
		}
	}()

	wg.Add(nWorkers)
	for range nWorkers {
		go func() {
			defer wg.Done()
			for w := range workCh {
				text, err := readDocumentText(w.doc.Path)
				if err != nil {
					setReadErr(stageErr(StageRead, w.doc.Path, err))
					return
				}
				progress(opts.Progress, BuildUpdate{Stage: "read", Path: w.doc.Path})
				if catalogTexts != nil {
					catalogTexts[w.id] = []byte(text)
				}

				single := BuildSingle(w.id, w.doc.StoredPath, text)
				select {
				case indexCh <- single:
				case <-abort:
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(indexCh)
	}()

	// InMemoryMerger stage. Pure CPU, infallible.
	var mergeWg sync.WaitGroup
	mergeWg.Add(1)
	go func() {
		defer mergeWg.Done()
		defer close(flushCh)
		acc := NewPartialIndexWithThreshold(opts.FlushThreshold)
		for in := range indexCh {
			acc.Merge(in)
			if acc.IsLarge() {
				select {
				case flushCh <- acc:
				case <-abort:
					return
				}
				acc = NewPartialIndexWithThreshold(opts.FlushThreshold)
			}
		}
		if !acc.IsEmpty() || len(acc.Docs) > 0 {
			select {
			case flushCh <- acc:
			case <-abort:
			}
		}
	}()

	// FlushWriter stage.
	mergeWg.Add(1)
	go func() {
		defer mergeWg.Done()
		defer close(pathCh)
		tmpDir := NewTmpDir(opts.OutputDir)
		for idx := range flushCh {
			path, err := WriteIndexToTmpFile(idx, tmpDir)
			if err != nil {
				flushErr = err
				raise()
				return
			}
			progress(opts.Progress, BuildUpdate{Stage: "flush", Path: path})
			select {
			case pathCh <- path:
			case <-abort:
				return
			}
		}
	}()

	// FileMerger stage runs inline on the driver goroutine, per spec.md §5
	// ("FileMerger runs inline on the driver thread after FlushWriter").
	merger := NewFileMerger(opts.OutputDir)
	for path := range pathCh {
		if err := merger.AddFile(path); err != nil {
			mergeErr = err
			raise()
			break
		}
		progress(opts.Progress, BuildUpdate{Stage: "merge", Path: path})
	}

	mergeWg.Wait()

	// Return the first error in source-to-sink order.
	for _, err := range []error{readErr, flushErr, mergeErr} {
		if err != nil {
			return err
		}
	}

	if err := merger.Finish(); err != nil {
		return err
	}
	if catalogTexts != nil {
		return writeCatalogFromTexts(opts.CatalogPath, catalogTexts)
	}
	return nil
}

// writeCatalogFromTexts assembles the DocumentId-keyed map WriteDocumentCatalog
// expects from the per-worker texts collected during the build.
func writeCatalogFromTexts(path string, texts [][]byte) error {
	contents := make(map[DocumentId][]byte, len(texts))
	for i, t := range texts {
		if t != nil {
			contents[DocumentId(i)] = t
		}
	}
	return WriteDocumentCatalog(path, len(texts), contents)
}

func readDocumentText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func progress(ch chan<- BuildUpdate, u BuildUpdate) {
	if ch != nil {
		ch <- u
	}
}

// assert is a light algorithmic-invariant guard for conditions that should
// be structurally impossible (spec.md §7's "Logic" error kind).
func assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
