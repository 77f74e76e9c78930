package cache

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Preset names.
const (
	PresetStatic  = "static"
	PresetDynamic = "dynamic"
	PresetAPI     = "api"
	PresetPrivate = "private"
)

// Preset is a fixed set of Cache-Control directives.
type Preset struct {
	Public               bool
	Private              bool
	NoCache              bool
	NoStore              bool
	MaxAge               int // seconds, 0 = omitted
	StaleWhileRevalidate int // seconds, 0 = omitted
	MustRevalidate       bool
	Immutable            bool
}

var presets = map[string]Preset{
	PresetStatic: {
		Public:    true,
		MaxAge:    int(StaticTimeout.Seconds()),
		Immutable: true,
	},
	PresetDynamic: {
		Public:               true,
		MaxAge:               60,
		StaleWhileRevalidate: 300,
	},
	PresetAPI: {
		Private:        true,
		MaxAge:         300,
		MustRevalidate: true,
	},
	PresetPrivate: {
		Private: true,
		NoCache: true,
		NoStore: true,
	},
}

// LookupPreset returns the named preset, falling back to dynamic.
func LookupPreset(name string) Preset {
	if p, ok := presets[name]; ok {
		return p
	}
	return presets[PresetDynamic]
}

// CacheControl renders the directives in a fixed order.
func (p Preset) CacheControl() string {
	parts := make([]string, 0, 6)
	if p.Public {
		parts = append(parts, "public")
	}
	if p.Private {
		parts = append(parts, "private")
	}
	if p.NoCache {
		parts = append(parts, "no-cache")
	}
	if p.NoStore {
		parts = append(parts, "no-store")
	}
	if p.MaxAge > 0 {
		parts = append(parts, "max-age="+strconv.Itoa(p.MaxAge))
	}
	if p.StaleWhileRevalidate > 0 {
		parts = append(parts, "stale-while-revalidate="+strconv.Itoa(p.StaleWhileRevalidate))
	}
	if p.MustRevalidate {
		parts = append(parts, "must-revalidate")
	}
	if p.Immutable {
		parts = append(parts, "immutable")
	}
	return strings.Join(parts, ", ")
}

// SetHeaders sets Cache-Control from the named preset (unknown names use
// dynamic) and adds a weak ETag derived from body when none is present.
func SetHeaders(h http.Header, body []byte, preset string) {
	h.Set("Cache-Control", LookupPreset(preset).CacheControl())

	if h.Get("ETag") == "" && len(body) > 0 {
		h.Set("ETag", WeakETag(body))
	}
}

// WeakETag returns W/"<hash>" for body.
func WeakETag(body []byte) string {
	sum := strconv.FormatUint(xxhash.Sum64(body), 16)
	for len(sum) < 16 {
		sum = "0" + sum
	}
	return `W/"` + sum + `"`
}

// NotModified reports whether the request's If-None-Match matches etag using
// weak comparison.
func NotModified(r *http.Request, etag string) bool {
	if r == nil || etag == "" {
		return false
	}
	inm := r.Header.Get("If-None-Match")
	if inm == "" {
		return false
	}
	if strings.TrimSpace(inm) == "*" {
		return true
	}

	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(inm, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}
	return false
}
