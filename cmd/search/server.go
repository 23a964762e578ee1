package main

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ckplabs/invidx"
)

// Server exposes a LoadedIndex over HTTP: GET /search?q=term and
// GET /prefix?q=pre, both JSON. Adapted from the teacher's http.Server +
// ServeMux + request-logging-middleware shape; simplified to a JSON API
// since this repo carries no HTML template assets to render against.
type Server struct {
	hs     *http.Server
	logger *log.Logger

	Index *invidx.LoadedIndex
}

func NewServer(idx *invidx.LoadedIndex, port string) *Server {
	srv := &Server{Index: idx, logger: log.Default()}
	srv.hs = &http.Server{
		Addr:    net.JoinHostPort("0.0.0.0", port),
		Handler: srv.serveHandler(),
	}
	return srv
}

func (s *Server) Start() error {
	return s.hs.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.hs.Shutdown(ctx)
}

func (s *Server) serveHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /search", s.logRequest(s.serveSearch()))
	mux.Handle("GET /prefix", s.logRequest(s.servePrefix()))
	mux.Handle("GET /stats", s.logRequest(s.serveStats()))

	return mux
}

type searchResultDoc struct {
	Path         string `json:"path"`
	Highlight    string `json:"highlight,omitempty"`
	HighlightErr string `json:"highlight_error,omitempty"`
}

type searchResponse struct {
	Query        string            `json:"query"`
	Found        bool              `json:"found"`
	NumResults   int               `json:"num_results"`
	ResponseTime string            `json:"response_time"`
	Results      []searchResultDoc `json:"results"`
}

func (s *Server) serveSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		query := req.URL.Query().Get("q")
		if query == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		start := time.Now()
		matches, found := s.Index.Search(query)
		duration := time.Since(start)

		resp := searchResponse{
			Query:        query,
			Found:        found,
			NumResults:   len(matches),
			ResponseTime: duration.String(),
		}
		for _, m := range matches {
			doc := searchResultDoc{Path: string(m.Doc.Path)}
			if text, err := s.Index.Highlight(m.Doc, m.Spans); err != nil {
				doc.HighlightErr = err.Error()
			} else {
				doc.Highlight = text
			}
			resp.Results = append(resp.Results, doc)
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store, no-cache")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			s.logger.Printf("error encoding search response: %s", err)
		}
	}
}

func (s *Server) servePrefix() http.HandlerFunc {
	type prefixResponse struct {
		Matches []string `json:"matches"`
	}

	return func(w http.ResponseWriter, req *http.Request) {
		qvals := req.URL.Query()
		query := qvals.Get("q")

		limit := 15
		if l := qvals.Get("limit"); l != "" {
			if n, err := strconv.Atoi(l); err == nil && n > 0 {
				limit = n
			}
		}

		var resp prefixResponse
		if len(query) >= 3 {
			resp.Matches = s.Index.Prefix(query, limit)
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(&resp); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

func (s *Server) serveStats() http.HandlerFunc {
	type statsResponse struct {
		CorpusSize int `json:"corpus_size"`
	}

	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(statsResponse{CorpusSize: s.Index.CorpusSize()})
	}
}

// Request logging middleware, unchanged in shape from the teacher's.
func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()

		lrw := newLoggingResponseWriter(w)
		next.ServeHTTP(lrw, req)

		duration := time.Since(start)

		s.logger.Printf("method=%s path=%s status=%d duration=%s",
			req.Method,
			req.URL.EscapedPath(),
			lrw.statusCode,
			duration)
	})
}

// loggingResponseWriter wraps an http.ResponseWriter to capture the status
// code that was written, since there's no read method for it otherwise.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newLoggingResponseWriter(w http.ResponseWriter) *loggingResponseWriter {
	return &loggingResponseWriter{w, http.StatusOK}
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
