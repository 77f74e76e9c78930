// Package content reads the small, cacheable slices of site content: published
// blog posts, visible AI tools, the owner's profile and social links.
package content

import (
	"context"
	"errors"
)

// ErrNotFound indicates a singleton record does not exist yet.
var ErrNotFound = errors.New("content not found")

// PostSummary is the list view of a published blog post.
type PostSummary struct {
	ID      int64  `json:"id" db:"id"`
	Title   string `json:"title" db:"title"`
	Slug    string `json:"slug" db:"slug"`
	Excerpt string `json:"excerpt" db:"excerpt"`
}

// ToolSummary is the list view of a visible AI tool.
type ToolSummary struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Slug        string `json:"slug" db:"slug"`
	Description string `json:"description" db:"description"`
}

// PersonalInfo is the site owner's public profile.
type PersonalInfo struct {
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
	Title string `json:"title" db:"title"`
}

// SocialLink is an active link shown in the site footer.
type SocialLink struct {
	Name string `json:"name" db:"name"`
	URL  string `json:"url" db:"url"`
	Icon string `json:"icon" db:"icon"`
}

// Source is the read interface consumed by the cache warmer and the content
// API handlers.
type Source interface {
	PublishedPosts(ctx context.Context, limit int) ([]PostSummary, error)
	VisibleTools(ctx context.Context, limit int) ([]ToolSummary, error)
	// PersonalInfo returns ErrNotFound when no profile exists.
	PersonalInfo(ctx context.Context) (*PersonalInfo, error)
	SocialLinks(ctx context.Context) ([]SocialLink, error)
}
