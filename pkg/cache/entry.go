package cache

import (
	"net/http"
	"time"
)

// ResponseEntry is a cached HTTP response produced by a view.
type ResponseEntry struct {
	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// Body is the response body
	Body []byte `json:"body"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`
}

// hopHeaders are never stored with a cached response.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Set-Cookie",
	"Transfer-Encoding",
	"X-Cache",
}

// NewResponseEntry snapshots a response for caching.
func NewResponseEntry(status int, header http.Header, body []byte) *ResponseEntry {
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
	return &ResponseEntry{
		StatusCode: status,
		Headers:    h,
		Body:       append([]byte(nil), body...),
		CachedAt:   time.Now(),
	}
}

// Age returns how long ago the entry was cached.
func (e *ResponseEntry) Age() time.Duration {
	age := time.Since(e.CachedAt)
	if age < 0 {
		return 0
	}
	return age
}

// Replay writes the entry on w.
func (e *ResponseEntry) Replay(w http.ResponseWriter) error {
	for name, values := range e.Headers {
		w.Header()[name] = append([]string(nil), values...)
	}
	w.WriteHeader(e.StatusCode)
	_, err := w.Write(e.Body)
	return err
}
