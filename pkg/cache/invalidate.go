package cache

import (
	"context"
	"errors"
)

// InvalidatePattern deletes every key starting with <prefix>:<pattern>.
//
// Keys are collected with cursor-based SCAN and removed with one bulk delete.
// SCAN is not a snapshot: keys written during the scan may or may not be
// removed. It returns the number of deleted keys, and 0 when the store cannot
// scan or fails.
func (m *Manager) InvalidatePattern(ctx context.Context, pattern string) int {
	match := m.keys.Prefix() + keySeparator + pattern + "*"
	log := m.logger.With().Str("pattern", pattern).Logger()

	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := m.scanner.Scan(ctx, cursor, match, scanBatchSize)
		if errors.Is(err, ErrScanUnsupported) {
			log.Warn().Msg("Cache store does not support pattern invalidation")
			return 0
		}
		if err != nil {
			m.metrics.RecordError()
			log.Error().Err(err).Msg("Pattern invalidation scan failed")
			return 0
		}
		keys = append(keys, batch...)
		if next == 0 {
			break
		}
		cursor = next
	}

	var deleted int
	if len(keys) > 0 {
		n, err := m.scanner.DeleteKeys(ctx, keys...)
		if err != nil {
			m.metrics.RecordError()
			log.Error().Err(err).Int("matched", len(keys)).Msg("Pattern invalidation delete failed")
			return 0
		}
		deleted = int(n)
		m.metrics.RecordDeletes(deleted)
	}

	log.Info().Int("deleted", deleted).Msg("Invalidated keys matching pattern")
	return deleted
}

// InvalidateForModel deletes every cached entry of a model.
func (m *Manager) InvalidateForModel(ctx context.Context, model string) int {
	return m.InvalidatePattern(ctx, ModelPattern(model))
}
