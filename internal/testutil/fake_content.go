package testutil

import (
	"context"
	"sync"

	"github.com/Sternrassler/portfolio-cache/pkg/content"
)

// FakeContent is a configurable content.Source.
type FakeContent struct {
	mu sync.Mutex

	Posts   []content.PostSummary
	Tools   []content.ToolSummary
	Profile *content.PersonalInfo
	Links   []content.SocialLink

	// Errors returned by the matching query, when set.
	PostsErr   error
	ToolsErr   error
	ProfileErr error
	LinksErr   error

	// Tracking
	Calls map[string]int
}

// NewFakeContent returns a source populated with a small site.
func NewFakeContent() *FakeContent {
	return &FakeContent{
		Posts: []content.PostSummary{
			{ID: 2, Title: "Caching in Go", Slug: "caching-in-go", Excerpt: "Notes on cache warming"},
			{ID: 1, Title: "Hello", Slug: "hello", Excerpt: ""},
		},
		Tools: []content.ToolSummary{
			{ID: 1, Name: "Summarizer", Slug: "summarizer", Description: "Summarizes text"},
		},
		Profile: &content.PersonalInfo{Name: "Ada Lovelace", Email: "ada@example.com", Title: "Engineer"},
		Links: []content.SocialLink{
			{Name: "GitHub", URL: "https://github.com/example", Icon: "github"},
		},
		Calls: make(map[string]int),
	}
}

func (f *FakeContent) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Calls == nil {
		f.Calls = make(map[string]int)
	}
	f.Calls[name]++
}

// CallCount returns how often the named query ran.
func (f *FakeContent) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[name]
}

func (f *FakeContent) PublishedPosts(_ context.Context, limit int) ([]content.PostSummary, error) {
	f.record("posts")
	if f.PostsErr != nil {
		return nil, f.PostsErr
	}
	if limit < len(f.Posts) {
		return f.Posts[:limit], nil
	}
	return f.Posts, nil
}

func (f *FakeContent) VisibleTools(_ context.Context, limit int) ([]content.ToolSummary, error) {
	f.record("tools")
	if f.ToolsErr != nil {
		return nil, f.ToolsErr
	}
	if limit < len(f.Tools) {
		return f.Tools[:limit], nil
	}
	return f.Tools, nil
}

func (f *FakeContent) PersonalInfo(_ context.Context) (*content.PersonalInfo, error) {
	f.record("profile")
	if f.ProfileErr != nil {
		return nil, f.ProfileErr
	}
	if f.Profile == nil {
		return nil, content.ErrNotFound
	}
	return f.Profile, nil
}

func (f *FakeContent) SocialLinks(_ context.Context) ([]content.SocialLink, error) {
	f.record("links")
	if f.LinksErr != nil {
		return nil, f.LinksErr
	}
	return f.Links, nil
}
