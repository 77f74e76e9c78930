package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Repository implements Source over a SQL database.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a content repository.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// PublishedPosts returns the newest published posts.
func (r *Repository) PublishedPosts(ctx context.Context, limit int) ([]PostSummary, error) {
	query := r.db.Rebind(`
		SELECT id, title, slug, COALESCE(excerpt, '') AS excerpt
		FROM blog_posts
		WHERE status = 'published'
		ORDER BY published_at DESC, id DESC
		LIMIT ?`)

	posts := []PostSummary{}
	if err := r.db.SelectContext(ctx, &posts, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list published posts: %w", err)
	}
	return posts, nil
}

// VisibleTools returns tools flagged as visible.
func (r *Repository) VisibleTools(ctx context.Context, limit int) ([]ToolSummary, error) {
	query := r.db.Rebind(`
		SELECT id, name, slug, COALESCE(description, '') AS description
		FROM ai_tools
		WHERE is_visible = TRUE
		ORDER BY id
		LIMIT ?`)

	tools := []ToolSummary{}
	if err := r.db.SelectContext(ctx, &tools, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list visible tools: %w", err)
	}
	return tools, nil
}

// PersonalInfo returns the profile of the first site admin.
func (r *Repository) PersonalInfo(ctx context.Context) (*PersonalInfo, error) {
	query := `
		SELECT full_name AS name, email, COALESCE(title, '') AS title
		FROM site_admins
		ORDER BY id
		LIMIT 1`

	var info PersonalInfo
	if err := r.db.GetContext(ctx, &info, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get personal info: %w", err)
	}
	return &info, nil
}

// SocialLinks returns the active social links in display order.
func (r *Repository) SocialLinks(ctx context.Context) ([]SocialLink, error) {
	query := `
		SELECT name, url, COALESCE(icon, '') AS icon
		FROM social_links
		WHERE is_active = TRUE
		ORDER BY sort_order, id`

	links := []SocialLink{}
	if err := r.db.SelectContext(ctx, &links, query); err != nil {
		return nil, fmt.Errorf("failed to list social links: %w", err)
	}
	return links, nil
}
