package middleware

import (
	"net/http"
	"time"

	"github.com/Sternrassler/portfolio-cache/pkg/cache"
)

// Cache status header values.
const (
	HeaderXCache = "X-Cache"
	CacheHit     = "HIT"
	CacheMiss    = "MISS"
)

// ViewOptions configures CacheView.
type ViewOptions struct {
	// TTL of stored responses. Zero uses the manager's default timeout.
	TTL time.Duration

	// Preset is the Cache-Control preset applied to cached responses.
	Preset string
}

// CacheView caches successful GET responses of next in mgr, keyed by path and
// query parameters. HEAD requests are answered from the cache but never
// populate it. Conditional requests matching the stored ETag get 304.
func CacheView(mgr *cache.Manager, opts ViewOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := mgr.Keys().APIKey(r.URL.Path, queryParams(r))

			if entry, ok := cache.GetJSON[cache.ResponseEntry](ctx, mgr, key); ok {
				serveEntry(w, r, &entry)
				return
			}

			if r.Method == http.MethodHead {
				w.Header().Set(HeaderXCache, CacheMiss)
				next.ServeHTTP(w, r)
				return
			}

			rec := newRecorder()
			next.ServeHTTP(rec, r)

			if rec.status == http.StatusOK {
				cache.SetHeaders(rec.header, rec.body.Bytes(), opts.Preset)
				cache.SetJSON(ctx, mgr, key, cache.NewResponseEntry(rec.status, rec.header, rec.body.Bytes()), opts.TTL)
			}

			rec.header.Set(HeaderXCache, CacheMiss)
			if rec.status == http.StatusOK && cache.NotModified(r, rec.header.Get("ETag")) {
				writeNotModified(w, rec.header)
				return
			}
			rec.flush(w, true)
		})
	}
}

func serveEntry(w http.ResponseWriter, r *http.Request, entry *cache.ResponseEntry) {
	if entry.Headers == nil {
		entry.Headers = http.Header{}
	}
	w.Header().Set(HeaderXCache, CacheHit)

	if cache.NotModified(r, entry.Headers.Get("ETag")) {
		writeNotModified(w, entry.Headers)
		return
	}
	if r.Method == http.MethodHead {
		for name, values := range entry.Headers {
			w.Header()[name] = values
		}
		w.WriteHeader(entry.StatusCode)
		return
	}
	_ = entry.Replay(w)
}

func writeNotModified(w http.ResponseWriter, h http.Header) {
	for _, name := range []string{"ETag", "Cache-Control", "Vary", HeaderXCache} {
		if v := h.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
	w.WriteHeader(http.StatusNotModified)
}

func queryParams(r *http.Request) map[string]any {
	query := r.URL.Query()
	if len(query) == 0 {
		return nil
	}
	params := make(map[string]any, len(query))
	for name, values := range query {
		if len(values) == 1 {
			params[name] = values[0]
		} else {
			params[name] = values
		}
	}
	return params
}
