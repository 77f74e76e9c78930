// Package testutil provides testing utilities for the portfolio cache.
package testutil

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrStoreDown is the default error injected by FakeStore.Fail.
var ErrStoreDown = errors.New("fake store unavailable")

// FakeStore is an in-memory cache store with pattern scan support and
// failure injection. It satisfies cache.Store and cache.PatternScanner.
type FakeStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	failing map[string]error

	// Tracking
	GetCount    int
	SetCount    int
	DeleteCount int
	ScanCalls   int
}

// NewFakeStore creates an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		entries: make(map[string][]byte),
		ttls:    make(map[string]time.Duration),
		failing: make(map[string]error),
	}
}

// Fail makes the named operation ("get", "set", "delete", "scan",
// "delete_keys") return err. A nil err uses ErrStoreDown.
func (s *FakeStore) Fail(op string, err error) {
	if err == nil {
		err = ErrStoreDown
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[op] = err
}

// Recover clears every injected failure.
func (s *FakeStore) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = make(map[string]error)
}

// Put seeds a key without counting it as a Set.
func (s *FakeStore) Put(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
}

// Has reports whether key is stored.
func (s *FakeStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok
}

// TTL returns the TTL the key was last written with.
func (s *FakeStore) TTL(key string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ttls[key]
}

// Keys returns all stored keys, sorted.
func (s *FakeStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedKeys()
}

func (s *FakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCount++
	if err := s.failing["get"]; err != nil {
		return nil, false, err
	}
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *FakeStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetCount++
	if err := s.failing["set"]; err != nil {
		return err
	}
	s.entries[key] = append([]byte(nil), value...)
	s.ttls[key] = ttl
	return nil
}

func (s *FakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeleteCount++
	if err := s.failing["delete"]; err != nil {
		return err
	}
	delete(s.entries, key)
	delete(s.ttls, key)
	return nil
}

// Scan walks the sorted key space; the cursor is an offset into it. Only
// exact matches and a trailing "*" wildcard are supported. Backslash escapes
// match the next character literally.
func (s *FakeStore) Scan(_ context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ScanCalls++
	if err := s.failing["scan"]; err != nil {
		return nil, 0, err
	}
	if count <= 0 {
		count = 10
	}

	all := s.sortedKeys()
	start := int(cursor)
	if start >= len(all) {
		return nil, 0, nil
	}
	end := start + int(count)
	if end > len(all) {
		end = len(all)
	}

	var keys []string
	for _, k := range all[start:end] {
		if globMatch(match, k) {
			keys = append(keys, k)
		}
	}

	var next uint64
	if end < len(all) {
		next = uint64(end)
	}
	return keys, next, nil
}

func (s *FakeStore) DeleteKeys(_ context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failing["delete_keys"]; err != nil {
		return 0, err
	}
	var n int64
	for _, k := range keys {
		if _, ok := s.entries[k]; ok {
			delete(s.entries, k)
			delete(s.ttls, k)
			n++
		}
	}
	return n, nil
}

func (s *FakeStore) sortedKeys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func globMatch(pattern, key string) bool {
	literal, wildcard := unescapeGlob(pattern)
	if wildcard {
		return strings.HasPrefix(key, literal)
	}
	return literal == key
}

// unescapeGlob returns the literal part of pattern and whether it ends with
// an unescaped "*".
func unescapeGlob(pattern string) (string, bool) {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			i++
			b.WriteByte(pattern[i])
		case c == '*' && i == len(pattern)-1:
			return b.String(), true
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), false
}
