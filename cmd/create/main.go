// Command create builds a disk-resident inverted index over a set of
// files, per SPEC_FULL.md §6.3. Usage:
//
//	create [--single-threaded] [--out dir] [--threads N] [--catalog path] <path>...
//
// Directory arguments are expanded to their immediate *.txt children;
// file arguments are indexed directly.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ckplabs/invidx"
	"github.com/schollz/progressbar/v3"
)

var (
	flagOutDir         = flag.String("out", "./out", "directory to place the generated index file")
	flagThreads        = flag.Int("threads", 4, "number of concurrent reader/tokenizer workers")
	flagSingleThreaded = flag.Bool("single-threaded", false, "collapse the pipeline into one straight-line loop, for debugging")
	flagCatalog        = flag.String("catalog", "", "also write a gzip document content catalog to this path")
	verboseOutput      bool
)

func verbose(format string, a ...any) {
	if verboseOutput {
		fmt.Printf(format, a...)
	}
}

func main() {
	flag.BoolVar(&verboseOutput, "v", false, "verbose output")
	flag.BoolVar(&verboseOutput, "verbose", false, "verbose output")
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		log.Fatal("create: at least one file or directory argument is required")
	}
	if *flagThreads <= 0 || *flagThreads > 100 {
		log.Fatal("create: --threads needs to be between 1 and 100")
	}

	docs, err := expandPaths(paths)
	if err != nil {
		log.Fatal(err)
	}
	if len(docs) == 0 {
		log.Fatal("create: no files to index")
	}
	verbose("indexing %d files with %d workers\n", len(docs), *flagThreads)

	progressCh := make(chan invidx.BuildUpdate)

	bar := progressbar.NewOptions(
		len(docs),
		progressbar.OptionSetDescription("Building index"),
		progressbar.OptionThrottle(50*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progressCh {
			if u.Stage == "read" {
				bar.Add(1)
			}
			verbose("%s: %s\n", u.Stage, u.Path)
		}
		bar.Finish()
	}()

	opts := invidx.BuildOptions{
		OutputDir:      *flagOutDir,
		NWorkers:       *flagThreads,
		SingleThreaded: *flagSingleThreaded,
		CatalogPath:    *flagCatalog,
		Progress:       progressCh,
	}
	err = invidx.Build(docs, opts)
	<-done
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("wrote %s\n", filepath.Join(*flagOutDir, invidx.MergedFileName))
	if *flagCatalog != "" {
		fmt.Printf("wrote %s\n", *flagCatalog)
	}
}

// expandPaths turns CLI path arguments into InputDocuments. Directories
// contribute their immediate *.txt children (spec.md §6.3); plain files are
// included directly. Duplicate resulting paths are indexed once.
func expandPaths(paths []string) ([]invidx.InputDocument, error) {
	seen := invidx.NewSet[string]()
	var docs []invidx.InputDocument

	add := func(p string) {
		if seen.Has(p) {
			return
		}
		seen.Insert(p)
		docs = append(docs, invidx.InputDocument{Path: p, StoredPath: []byte(p)})
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}

		if !info.IsDir() {
			add(p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", p, err)
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".txt" {
				continue
			}
			add(filepath.Join(p, e.Name()))
		}
	}

	return docs, nil
}
