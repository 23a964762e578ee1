// Command search queries an index file built by create, per
// SPEC_FULL.md §6.3. Usage:
//
//	search --index-file <path> --term <word>
//
// prints every matching document with its occurrences of term
// highlighted. With --serve instead, it starts an HTTP query API over the
// same index.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/ckplabs/invidx"
)

var (
	flagIndexFile = flag.String("index-file", "out/index.bat", "path to the index file to query")
	flagTerm      = flag.String("term", "", "term to search for")
	flagCatalog   = flag.String("catalog", "", "optional path to a document content catalog (see invidx.WriteDocumentCatalog)")
	flagServe     = flag.Bool("serve", false, "start an HTTP query server instead of a one-shot lookup")
	flagPort      = flag.String("port", "8080", "port to listen on with --serve")
)

func main() {
	flag.Parse()

	idx, err := invidx.OpenIndex(*flagIndexFile)
	if err != nil {
		log.Fatal(err)
	}
	defer idx.Close()

	if *flagCatalog != "" {
		cat, err := invidx.OpenDocumentCatalog(*flagCatalog)
		if err != nil {
			log.Fatal(err)
		}
		idx.AttachCatalog(cat)
	}

	if *flagServe {
		serve(idx)
		return
	}

	if *flagTerm == "" {
		log.Fatal("search: --term is required (or pass --serve)")
	}

	matches, found := idx.Search(*flagTerm)
	if !found {
		fmt.Printf("no documents contain %q\n", *flagTerm)
		return
	}

	fmt.Printf("%d document(s) contain %q\n", len(matches), *flagTerm)
	for _, m := range matches {
		highlighted, err := idx.Highlight(m.Doc, m.Spans)
		if err != nil {
			log.Printf("highlight %s: %s\n", m.Doc.Path, err)
			continue
		}
		fmt.Printf("\n--- %s ---\n%s\n", m.Doc.Path, highlighted)
	}
}

func serve(idx *invidx.LoadedIndex) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	srv := NewServer(idx, *flagPort)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed to start: %s", err)
		}
	}()
	fmt.Printf("serving %s on :%s\n", filepath.Base(*flagIndexFile), *flagPort)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("error at server shutdown: %s", err)
		}
	}()
	wg.Wait()
}
