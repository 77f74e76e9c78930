// Package middleware provides the HTTP middleware of the portfolio site:
// server-side view caching, response cache and security headers, and request
// timing.
package middleware

import (
	"bytes"
	"net/http"
)

// hookWriter runs before once, right before the status line is written, so
// middleware can rewrite headers after the handler ran.
type hookWriter struct {
	http.ResponseWriter
	before      func(h http.Header, status int)
	status      int
	wroteHeader bool
}

func newHookWriter(w http.ResponseWriter, before func(h http.Header, status int)) *hookWriter {
	return &hookWriter{ResponseWriter: w, before: before, status: http.StatusOK}
}

func (w *hookWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	w.before(w.Header(), code)
	w.ResponseWriter.WriteHeader(code)
}

func (w *hookWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", http.DetectContentType(b))
		}
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// finish runs the hook for handlers that wrote nothing.
func (w *hookWriter) finish() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
}

func (w *hookWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// recorder buffers a complete response so it can be cached before it is sent.
type recorder struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newRecorder() *recorder {
	return &recorder{header: http.Header{}, status: http.StatusOK}
}

func (r *recorder) Header() http.Header {
	return r.header
}

func (r *recorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = code
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(b)
}

// flush copies the recorded response to w.
func (r *recorder) flush(w http.ResponseWriter, withBody bool) {
	for name, values := range r.header {
		w.Header()[name] = values
	}
	w.WriteHeader(r.status)
	if withBody {
		_, _ = w.Write(r.body.Bytes())
	}
}
