package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/portfolio-cache/pkg/content"
	"github.com/rs/zerolog"
)

// Row limits for the warm queries.
const (
	WarmPostsLimit = 20
	WarmToolsLimit = 50
)

// WarmSource names the query that populates a warm target.
type WarmSource int

const (
	SourcePublishedPosts WarmSource = iota
	SourceVisibleTools
	SourcePersonalInfo
	SourceSocialLinks
)

func (s WarmSource) String() string {
	switch s {
	case SourcePublishedPosts:
		return "published_posts"
	case SourceVisibleTools:
		return "visible_tools"
	case SourcePersonalInfo:
		return "personal_info"
	case SourceSocialLinks:
		return "social_links"
	default:
		return fmt.Sprintf("WarmSource(%d)", int(s))
	}
}

// FetchFunc loads the data for a warm target. A nil result means there is
// nothing to cache.
type FetchFunc func(ctx context.Context) (any, error)

// WarmTarget is a cache entry the warmer keeps populated.
type WarmTarget struct {
	Name   string
	Key    string
	Source WarmSource
	Fetch  FetchFunc
	TTL    time.Duration
}

// Warm outcome statuses.
const (
	WarmStatusWarmed  = "warmed"
	WarmStatusSkipped = "skipped"
	WarmStatusError   = "error"
)

// WarmDetail reports what happened to one target.
type WarmDetail struct {
	Name   string `json:"name"`
	Key    string `json:"key"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// WarmSummary is the result of a warming run.
type WarmSummary struct {
	Warmed  int          `json:"warmed"`
	Skipped int          `json:"skipped"`
	Errors  int          `json:"errors"`
	Details []WarmDetail `json:"details"`
}

// DefaultWarmTargets returns the site's warm targets with their fetch
// functions bound to src.
func DefaultWarmTargets(keys *KeyBuilder, src content.Source) []WarmTarget {
	targets := []WarmTarget{
		{
			Name:   "blog_posts_list",
			Key:    keys.ModelKey("BlogPost", nil, "list"),
			Source: SourcePublishedPosts,
			TTL:    MediumTimeout,
		},
		{
			Name:   "ai_tools_list",
			Key:    keys.ModelKey("AITool", nil, "list"),
			Source: SourceVisibleTools,
			TTL:    LongTimeout,
		},
		{
			Name:   "personal_info",
			Key:    keys.ModelKey("PersonalInfo", nil, "single"),
			Source: SourcePersonalInfo,
			TTL:    VeryLongTimeout,
		},
		{
			Name:   "social_links",
			Key:    keys.ModelKey("SocialLink", nil, "list"),
			Source: SourceSocialLinks,
			TTL:    VeryLongTimeout,
		},
	}
	for i := range targets {
		targets[i].Fetch = FetchFor(targets[i].Source, src)
	}
	return targets
}

// FetchFor binds a warm source to its query on src.
func FetchFor(source WarmSource, src content.Source) FetchFunc {
	switch source {
	case SourcePublishedPosts:
		return func(ctx context.Context) (any, error) {
			return src.PublishedPosts(ctx, WarmPostsLimit)
		}
	case SourceVisibleTools:
		return func(ctx context.Context) (any, error) {
			return src.VisibleTools(ctx, WarmToolsLimit)
		}
	case SourcePersonalInfo:
		return func(ctx context.Context) (any, error) {
			info, err := src.PersonalInfo(ctx)
			if errors.Is(err, content.ErrNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			return info, nil
		}
	case SourceSocialLinks:
		return func(ctx context.Context) (any, error) {
			return src.SocialLinks(ctx)
		}
	default:
		return func(context.Context) (any, error) {
			return nil, fmt.Errorf("unknown warm source %s", source)
		}
	}
}

// Warmer pre-populates frequently read entries.
type Warmer struct {
	manager *Manager
	targets []WarmTarget
	logger  zerolog.Logger
}

// NewWarmer creates a warmer for targets.
func NewWarmer(manager *Manager, targets []WarmTarget, logger zerolog.Logger) *Warmer {
	return &Warmer{
		manager: manager,
		targets: targets,
		logger:  logger,
	}
}

// Targets returns the configured targets.
func (w *Warmer) Targets() []WarmTarget {
	return w.targets
}

// WarmAll populates every target that is not cached yet. Existing entries are
// never overwritten. A failing target is counted and does not stop the others.
func (w *Warmer) WarmAll(ctx context.Context) WarmSummary {
	summary := WarmSummary{Details: make([]WarmDetail, 0, len(w.targets))}

	for _, target := range w.targets {
		detail := w.warm(ctx, target)
		switch detail.Status {
		case WarmStatusWarmed:
			summary.Warmed++
		case WarmStatusSkipped:
			summary.Skipped++
		default:
			summary.Errors++
			w.logger.Error().
				Str("target", target.Name).
				Str("error", detail.Error).
				Msg("Cache warm error")
		}
		summary.Details = append(summary.Details, detail)
	}

	w.logger.Info().
		Int("warmed", summary.Warmed).
		Int("skipped", summary.Skipped).
		Int("errors", summary.Errors).
		Msg("Cache warming complete")

	return summary
}

func (w *Warmer) warm(ctx context.Context, target WarmTarget) WarmDetail {
	detail := WarmDetail{Name: target.Name, Key: target.Key}

	if _, ok := w.manager.Get(ctx, target.Key); ok {
		detail.Status = WarmStatusSkipped
		return detail
	}

	if target.Fetch == nil {
		detail.Status = WarmStatusError
		detail.Error = "no fetch function"
		return detail
	}

	data, err := target.Fetch(ctx)
	if err != nil {
		detail.Status = WarmStatusError
		detail.Error = err.Error()
		return detail
	}
	if data == nil {
		detail.Status = WarmStatusSkipped
		return detail
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		detail.Status = WarmStatusError
		detail.Error = fmt.Sprintf("marshal: %v", err)
		return detail
	}

	if !w.manager.Set(ctx, target.Key, encoded, target.TTL) {
		detail.Status = WarmStatusError
		detail.Error = "cache store rejected write"
		return detail
	}

	w.logger.Debug().Str("target", target.Name).Str("key", target.Key).Dur("ttl", target.TTL).Msg("Warmed cache target")
	detail.Status = WarmStatusWarmed
	return detail
}
