package content

import (
	"context"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE blog_posts (
    id INTEGER PRIMARY KEY,
    title TEXT NOT NULL,
    slug TEXT NOT NULL,
    excerpt TEXT,
    status TEXT NOT NULL,
    published_at TEXT
);
CREATE TABLE ai_tools (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    slug TEXT NOT NULL,
    description TEXT,
    is_visible BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE TABLE site_admins (
    id INTEGER PRIMARY KEY,
    full_name TEXT NOT NULL,
    email TEXT NOT NULL,
    title TEXT
);
CREATE TABLE social_links (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    url TEXT NOT NULL,
    icon TEXT,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    sort_order INTEGER NOT NULL DEFAULT 0
);`

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)
	return db
}

func TestRepository_PublishedPosts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	db.MustExec(`INSERT INTO blog_posts (id, title, slug, excerpt, status, published_at) VALUES
		(1, 'Old', 'old', 'first', 'published', '2024-01-01'),
		(2, 'Draft', 'draft', NULL, 'draft', NULL),
		(3, 'New', 'new', NULL, 'published', '2024-06-01')`)

	posts, err := repo.PublishedPosts(ctx, 20)
	require.NoError(t, err)
	require.Equal(t, []PostSummary{
		{ID: 3, Title: "New", Slug: "new", Excerpt: ""},
		{ID: 1, Title: "Old", Slug: "old", Excerpt: "first"},
	}, posts)
}

func TestRepository_PublishedPosts_Limit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	for i := 1; i <= 25; i++ {
		db.MustExec(`INSERT INTO blog_posts (id, title, slug, status, published_at) VALUES (?, ?, ?, 'published', ?)`,
			i, fmt.Sprintf("Post %d", i), fmt.Sprintf("post-%d", i), fmt.Sprintf("2024-01-%02d", i))
	}

	posts, err := repo.PublishedPosts(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, posts, 20)
	require.Equal(t, int64(25), posts[0].ID)
}

func TestRepository_PublishedPosts_Empty(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	posts, err := repo.PublishedPosts(context.Background(), 20)
	require.NoError(t, err)
	require.NotNil(t, posts)
	require.Empty(t, posts)
}

func TestRepository_VisibleTools(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	db.MustExec(`INSERT INTO ai_tools (id, name, slug, description, is_visible) VALUES
		(1, 'Summarizer', 'summarizer', 'Summarizes text', TRUE),
		(2, 'Hidden', 'hidden', NULL, FALSE),
		(3, 'Tagger', 'tagger', NULL, TRUE)`)

	tools, err := repo.VisibleTools(context.Background(), 50)
	require.NoError(t, err)
	require.Equal(t, []ToolSummary{
		{ID: 1, Name: "Summarizer", Slug: "summarizer", Description: "Summarizes text"},
		{ID: 3, Name: "Tagger", Slug: "tagger", Description: ""},
	}, tools)
}

func TestRepository_PersonalInfo(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	_, err := repo.PersonalInfo(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	db.MustExec(`INSERT INTO site_admins (id, full_name, email, title) VALUES
		(1, 'Ada Lovelace', 'ada@example.com', NULL),
		(2, 'Second', 'second@example.com', 'Editor')`)

	info, err := repo.PersonalInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, &PersonalInfo{Name: "Ada Lovelace", Email: "ada@example.com", Title: ""}, info)
}

func TestRepository_SocialLinks(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	db.MustExec(`INSERT INTO social_links (id, name, url, icon, is_active, sort_order) VALUES
		(1, 'GitHub', 'https://github.com/example', 'github', TRUE, 2),
		(2, 'Old Blog', 'https://old.example.com', NULL, FALSE, 0),
		(3, 'Mastodon', 'https://mastodon.social/@example', NULL, TRUE, 1)`)

	links, err := repo.SocialLinks(context.Background())
	require.NoError(t, err)
	require.Equal(t, []SocialLink{
		{Name: "Mastodon", URL: "https://mastodon.social/@example", Icon: ""},
		{Name: "GitHub", URL: "https://github.com/example", Icon: "github"},
	}, links)
}
