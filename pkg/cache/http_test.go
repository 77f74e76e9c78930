package cache

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPreset_CacheControl(t *testing.T) {
	tests := []struct {
		preset string
		want   string
	}{
		{PresetStatic, "public, max-age=2592000, immutable"},
		{PresetDynamic, "public, max-age=60, stale-while-revalidate=300"},
		{PresetAPI, "private, max-age=300, must-revalidate"},
		{PresetPrivate, "private, no-cache, no-store"},
		{"unknown", "public, max-age=60, stale-while-revalidate=300"},
		{"", "public, max-age=60, stale-while-revalidate=300"},
	}

	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			if got := LookupPreset(tt.preset).CacheControl(); got != tt.want {
				t.Errorf("CacheControl() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSetHeaders(t *testing.T) {
	tests := []struct {
		name         string
		existingETag string
		body         []byte
		preset       string
		wantCC       string
		wantETag     func(string) bool
	}{
		{
			name:     "static preset",
			body:     []byte("body"),
			preset:   PresetStatic,
			wantCC:   "public, max-age=2592000, immutable",
			wantETag: func(e string) bool { return e == WeakETag([]byte("body")) },
		},
		{
			name:     "private preset",
			body:     []byte("secret"),
			preset:   PresetPrivate,
			wantCC:   "private, no-cache, no-store",
			wantETag: func(e string) bool { return strings.HasPrefix(e, `W/"`) },
		},
		{
			name:         "existing etag kept",
			existingETag: `"v1"`,
			body:         []byte("body"),
			preset:       PresetAPI,
			wantCC:       "private, max-age=300, must-revalidate",
			wantETag:     func(e string) bool { return e == `"v1"` },
		},
		{
			name:     "empty body has no etag",
			preset:   PresetDynamic,
			wantCC:   "public, max-age=60, stale-while-revalidate=300",
			wantETag: func(e string) bool { return e == "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.existingETag != "" {
				h.Set("ETag", tt.existingETag)
			}

			SetHeaders(h, tt.body, tt.preset)

			if got := h.Get("Cache-Control"); got != tt.wantCC {
				t.Errorf("Cache-Control = %q, want %q", got, tt.wantCC)
			}
			if got := h.Get("ETag"); !tt.wantETag(got) {
				t.Errorf("unexpected ETag %q", got)
			}
		})
	}
}

func TestWeakETag(t *testing.T) {
	a := WeakETag([]byte("hello"))
	b := WeakETag([]byte("hello"))
	c := WeakETag([]byte("world"))

	if a != b {
		t.Errorf("same body produced %s and %s", a, b)
	}
	if a == c {
		t.Errorf("different bodies produced the same ETag %s", a)
	}
	// W/" + 16 hex digits + "
	if len(a) != 20 || !strings.HasPrefix(a, `W/"`) || !strings.HasSuffix(a, `"`) {
		t.Errorf("WeakETag() = %s, want W/\"<16 hex>\"", a)
	}
}

func TestNotModified(t *testing.T) {
	etag := WeakETag([]byte("body"))
	strong := strings.TrimPrefix(etag, "W/")

	tests := []struct {
		name        string
		ifNoneMatch string
		etag        string
		want        bool
	}{
		{name: "no header", etag: etag, want: false},
		{name: "exact match", ifNoneMatch: etag, etag: etag, want: true},
		{name: "strong form matches weakly", ifNoneMatch: strong, etag: etag, want: true},
		{name: "list contains match", ifNoneMatch: `"other", ` + etag, etag: etag, want: true},
		{name: "wildcard", ifNoneMatch: "*", etag: etag, want: true},
		{name: "mismatch", ifNoneMatch: `W/"0000000000000000"`, etag: etag, want: false},
		{name: "empty etag", ifNoneMatch: "*", etag: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/posts/", nil)
			if tt.ifNoneMatch != "" {
				r.Header.Set("If-None-Match", tt.ifNoneMatch)
			}
			if got := NotModified(r, tt.etag); got != tt.want {
				t.Errorf("NotModified() = %v, want %v", got, tt.want)
			}
		})
	}
}
