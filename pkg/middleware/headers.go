package middleware

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Cache-Control values by request class.
const (
	noCacheControl = "no-cache, no-store, must-revalidate"
	staticMaxAge   = 365 * 24 * time.Hour
	feedMaxAge     = time.Hour
	htmlMaxAge     = 5 * time.Minute
	jsonMaxAge     = time.Minute
)

var noCachePrefixes = []string{"/admin/", "/api/", "/logout/", "/s/"}

// CacheControl sets Cache-Control, Expires and Pragma from the request path
// and the response content type. Admin, API, logout and short-link paths are
// never cached by clients; static assets are cached for a year. A matched
// class replaces any Cache-Control set further in; other responses keep it.
func CacheControl(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		hw := newHookWriter(w, func(h http.Header, _ int) {
			applyCacheControl(h, path, time.Now())
		})
		next.ServeHTTP(hw, r)
		hw.finish()
	})
}

func applyCacheControl(h http.Header, path string, now time.Time) {
	for _, prefix := range noCachePrefixes {
		if strings.HasPrefix(path, prefix) {
			h.Set("Cache-Control", noCacheControl)
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
			return
		}
	}

	switch {
	case strings.HasPrefix(path, "/static/"), strings.HasPrefix(path, "/media/"):
		setMaxAge(h, staticMaxAge, now, "public, max-age=31536000, immutable")
		return
	case strings.Contains(path, "/feed/"), strings.HasSuffix(path, ".xml"):
		setMaxAge(h, feedMaxAge, now, "")
		return
	}

	contentType := strings.ToLower(h.Get("Content-Type"))
	switch {
	case strings.Contains(contentType, "text/html"):
		setMaxAge(h, htmlMaxAge, now, "")
	case strings.Contains(contentType, "application/json"):
		setMaxAge(h, jsonMaxAge, now, "")
	}
}

func setMaxAge(h http.Header, maxAge time.Duration, now time.Time, cacheControl string) {
	if cacheControl == "" {
		cacheControl = "public, max-age=" + strconv.Itoa(int(maxAge.Seconds()))
	}
	h.Set("Cache-Control", cacheControl)
	h.Set("Expires", now.Add(maxAge).UTC().Format(http.TimeFormat))
}

type nonceKey struct{}

// Nonce returns the CSP nonce of the request, or "" outside SecurityHeaders.
func Nonce(ctx context.Context) string {
	nonce, _ := ctx.Value(nonceKey{}).(string)
	return nonce
}

func newNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func contentSecurityPolicy(nonce string) string {
	return strings.Join([]string{
		"default-src 'self'",
		"script-src 'self' 'nonce-" + nonce + "' https://cdn.tailwindcss.com https://unpkg.com https://cdn.jsdelivr.net https://cdnjs.cloudflare.com",
		"style-src 'self' 'nonce-" + nonce + "' https://fonts.googleapis.com https://cdn.jsdelivr.net",
		"font-src 'self' https://fonts.gstatic.com data:",
		"img-src 'self' data: https: blob:",
		"media-src 'self' https:",
		"connect-src 'self' https://api.github.com https://cdn.jsdelivr.net",
		"worker-src 'self' blob:",
		"object-src 'none'",
		"base-uri 'self'",
		"frame-ancestors 'none'",
		"form-action 'self'",
		"upgrade-insecure-requests",
	}, "; ")
}

// SecurityHeaders generates a CSP nonce for every request, exposes it through
// Nonce and sets the security headers on the response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nonce, err := newNonce()
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		secure := r.TLS != nil
		root := r.URL.Path == "/"
		hw := newHookWriter(w, func(h http.Header, _ int) {
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "1; mode=block")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("X-DNS-Prefetch-Control", "on")
			if secure {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			h.Set("Content-Security-Policy", contentSecurityPolicy(nonce))
			if root {
				h.Set("Link", "</static/css/custom.css>; rel=preload; as=style, </static/js/main.js>; rel=preload; as=script")
			}
		})

		ctx := context.WithValue(r.Context(), nonceKey{}, nonce)
		next.ServeHTTP(hw, r.WithContext(ctx))
		hw.finish()
	})
}

// Vary adds Accept-Encoding and User-Agent to the Vary header.
func Vary(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hw := newHookWriter(w, func(h http.Header, _ int) {
			mergeVary(h, "Accept-Encoding", "User-Agent")
		})
		next.ServeHTTP(hw, r)
		hw.finish()
	})
}

func mergeVary(h http.Header, names ...string) {
	var values []string
	seen := make(map[string]bool)
	for _, line := range h.Values("Vary") {
		for _, v := range strings.Split(line, ",") {
			v = strings.TrimSpace(v)
			if v == "" || seen[strings.ToLower(v)] {
				continue
			}
			seen[strings.ToLower(v)] = true
			values = append(values, v)
		}
	}
	for _, name := range names {
		if !seen[strings.ToLower(name)] {
			seen[strings.ToLower(name)] = true
			values = append(values, name)
		}
	}
	h.Set("Vary", strings.Join(values, ", "))
}
