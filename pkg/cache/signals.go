package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ModelChangedChannel carries the name of a model whose rows changed. Every
// subscribed process invalidates that model's cached entries.
const ModelChangedChannel = "portfolio:cache:model-changed"

// PublishModelChange announces that model's data changed.
func PublishModelChange(ctx context.Context, client redis.UniversalClient, model string) error {
	if err := client.Publish(ctx, ModelChangedChannel, model).Err(); err != nil {
		return fmt.Errorf("publish model change: %w", err)
	}
	return nil
}

// ModelInvalidator is the part of Manager the listener needs.
type ModelInvalidator interface {
	InvalidateForModel(ctx context.Context, model string) int
}

// ModelChangeListener invalidates cached model data when change signals
// arrive over Redis Pub/Sub.
type ModelChangeListener struct {
	invalidator ModelInvalidator
	client      redis.UniversalClient
	logger      zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// NewModelChangeListener creates a listener.
func NewModelChangeListener(invalidator ModelInvalidator, client redis.UniversalClient, logger zerolog.Logger) *ModelChangeListener {
	return &ModelChangeListener{
		invalidator: invalidator,
		client:      client,
		logger:      logger,
	}
}

// Start subscribes and handles signals. It blocks until ctx is cancelled or
// Close is called.
func (l *ModelChangeListener) Start(ctx context.Context) {
	subCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		cancel()
		return
	}
	l.cancel = cancel
	l.mu.Unlock()

	pubsub := l.client.Subscribe(subCtx, ModelChangedChannel)
	defer pubsub.Close()

	l.logger.Info().Str("channel", ModelChangedChannel).Msg("Listening for model changes")

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			l.Handle(subCtx, msg.Payload)
		}
	}
}

// Handle invalidates the model named by payload.
func (l *ModelChangeListener) Handle(ctx context.Context, payload string) int {
	model := strings.TrimSpace(payload)
	if model == "" {
		return 0
	}
	deleted := l.invalidator.InvalidateForModel(ctx, model)
	l.logger.Info().Str("model", model).Int("deleted", deleted).Msg("Model change invalidated cache")
	return deleted
}

// Close stops the listener.
func (l *ModelChangeListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.cancel != nil {
		l.cancel()
	}
	return nil
}
