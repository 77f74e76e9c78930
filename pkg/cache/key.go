package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

const (
	// DefaultKeyPrefix is the global namespace every key starts with.
	DefaultKeyPrefix = "portfolio"

	// DefaultMaxKeyLength matches the memcached-family key limit.
	DefaultMaxKeyLength = 250

	keySeparator  = ":"
	kwargsHashLen = 8
)

// KeyBuilder builds deterministic cache keys.
//
// Format: <prefix>:<namespace>:<positional...>[:<kwargs-hash>]
//
// Example:
//
//	portfolio:model:BlogPost:single:3
//	portfolio:api:/api/posts/:1f0c9a3e
type KeyBuilder struct {
	prefix    string
	maxLength int
}

// NewKeyBuilder creates a key builder. Empty prefix and non-positive max
// length fall back to the defaults.
func NewKeyBuilder(prefix string, maxLength int) *KeyBuilder {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxKeyLength
	}
	return &KeyBuilder{prefix: prefix, maxLength: maxLength}
}

// Prefix returns the global key prefix.
func (b *KeyBuilder) Prefix() string {
	return b.prefix
}

// Build generates a key from a namespace, positional parts and keyword
// parameters. Keyword parameters are order independent: they are serialized
// with sorted keys and reduced to a short hash.
//
// Keys longer than the max length are truncated on a character boundary, so
// very long inputs may collide.
func (b *KeyBuilder) Build(namespace string, positional []any, keyword map[string]any) string {
	parts := make([]string, 0, len(positional)+3)
	parts = append(parts, b.prefix, namespace)

	for _, arg := range positional {
		parts = append(parts, stringify(arg))
	}

	if len(keyword) > 0 {
		parts = append(parts, hashKeywords(keyword))
	}

	return truncateKey(strings.Join(parts, keySeparator), b.maxLength)
}

// truncateKey cuts key to at most max bytes without splitting a UTF-8
// sequence.
func truncateKey(key string, max int) string {
	if len(key) <= max {
		return key
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(key[cut]) {
		cut--
	}
	return key[:cut]
}

// ModelKey builds a key for model data: model:<Model>:<action>[:<pk>].
// An empty action means "list". A nil, empty or zero pk is omitted.
func (b *KeyBuilder) ModelKey(model string, pk any, action string) string {
	if action == "" {
		action = "list"
	}
	if isEmptyPK(pk) {
		return b.Build("model", []any{model, action}, nil)
	}
	return b.Build("model", []any{model, action, pk}, nil)
}

// APIKey builds a key for an API response. The endpoint is positional and the
// query parameters are hashed.
func (b *KeyBuilder) APIKey(endpoint string, params map[string]any) string {
	return b.Build("api", []any{endpoint}, params)
}

// TemplateKey builds a key for a rendered template fragment.
func (b *KeyBuilder) TemplateKey(template, contextHash string) string {
	return b.Build("template", []any{template, contextHash}, nil)
}

// ModelPattern returns the invalidation pattern for every key of a model.
// Glob metacharacters in model are escaped, so a model name only ever matches
// itself.
func ModelPattern(model string) string {
	return "model" + keySeparator + EscapeGlob(model)
}

var globEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

// EscapeGlob escapes the Redis MATCH metacharacters in s.
func EscapeGlob(s string) string {
	return globEscaper.Replace(s)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// hashKeywords serializes keyword parameters deterministically. encoding/json
// sorts map keys; values it cannot encode are stringified first.
func hashKeywords(keyword map[string]any) string {
	data, err := json.Marshal(keyword)
	if err != nil {
		fallback := make(map[string]string, len(keyword))
		for k, v := range keyword {
			fallback[k] = stringify(v)
		}
		data, _ = json.Marshal(fallback)
	}

	sum := strconv.FormatUint(xxhash.Sum64(data), 16)
	for len(sum) < 16 {
		sum = "0" + sum
	}
	return sum[:kwargsHashLen]
}

func isEmptyPK(pk any) bool {
	if pk == nil {
		return true
	}
	v := reflect.ValueOf(pk)
	switch v.Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return v.IsZero()
	default:
		return false
	}
}
