// Package httpapi serves the three JSON request endpoints (spec §6):
// alignedslice, ngmeta, ngshard. Each is a strict error boundary (spec
// §7): every failure inside the request is caught, classified via
// internal/apierr, and returned as HTTP 400 — never a 5xx.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/ngalign/ngalign/internal/store"
)

// Stores resolves a bucket name to a Blobstore. *store.Client
// implements this in production; tests wire in a fake backed by
// store.Memory.
type Stores interface {
	Bucket(name string) store.Bucket
}

// Server wires the three handlers to a shared object-store client, the
// way the teacher's dial/listen path shares one resource across every
// connection it serves.
type Server struct {
	Stores Stores
}

// NewServer returns a Server backed by stores.
func NewServer(stores Stores) *Server {
	return &Server{Stores: stores}
}

// Routes returns the full handler, including CORS and request logging
// middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/alignedslice", s.handleAlignedSlice)
	mux.HandleFunc("/ngmeta", s.handleNgMeta)
	mux.HandleFunc("/ngshard", s.handleNgShard)
	return withLogging(withCORS(mux))
}

// withCORS is permissive by design: the original service's flask_cors
// setup carries no origin allowlist either.
// TODO: Limit origin list here.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s status=%d duration=%s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeSuccess implements spec §6's success response: 200 "success"
// with Content-Type text/html.
func writeSuccess(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("success"))
}

// warnf logs a non-fatal configuration warning in the teacher's
// color.Red style (client/main.go's QPP sizing warnings).
func warnf(format string, args ...interface{}) {
	color.Red(format, args...)
}
