package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/identifier/internal/mapping"
	"example.com/backstage/services/identifier/internal/metrics"
	"example.com/backstage/services/identifier/internal/models"
)

// CachedMappingStore puts a read-through Redis cache in front of a
// mapping.Store. Issued identifiers never change, so only positive lookups
// are cached and entries need no invalidation. Cache failures fall back to
// the underlying store.
type CachedMappingStore struct {
	store   mapping.Store
	cache   *RedisCache
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewCachedMappingStore wraps store. collector may be nil.
func NewCachedMappingStore(store mapping.Store, cache *RedisCache, ttl time.Duration, collector *metrics.Metrics) *CachedMappingStore {
	return &CachedMappingStore{store: store, cache: cache, ttl: ttl, metrics: collector}
}

func (s *CachedMappingStore) CreateBatch(ctx context.Context, batch *models.BatchRecord) error {
	if err := s.store.CreateBatch(ctx, batch); err != nil {
		return err
	}
	s.put(ctx, BatchKey(batch.BatchNumber), batch)
	return nil
}

func (s *CachedMappingStore) GetBatch(ctx context.Context, batchNumber string) (*models.BatchRecord, error) {
	var cached models.BatchRecord
	if s.get(ctx, BatchKey(batchNumber), &cached) {
		return &cached, nil
	}
	batch, err := s.store.GetBatch(ctx, batchNumber)
	if err != nil {
		return nil, err
	}
	s.put(ctx, BatchKey(batchNumber), batch)
	return batch, nil
}

func (s *CachedMappingStore) CreateMapping(ctx context.Context, m *models.SerialMapping) error {
	if err := s.store.CreateMapping(ctx, m); err != nil {
		return err
	}
	s.put(ctx, ShortSerialKey(m.ShortSerial), m.FullSerial)
	s.put(ctx, FullSerialKey(m.FullSerial), m.ShortSerial)
	return nil
}

func (s *CachedMappingStore) ResolveShortToFull(ctx context.Context, short string) (string, error) {
	var full string
	if s.get(ctx, ShortSerialKey(short), &full) {
		return full, nil
	}
	full, err := s.store.ResolveShortToFull(ctx, short)
	if err != nil {
		return "", err
	}
	s.put(ctx, ShortSerialKey(short), full)
	return full, nil
}

func (s *CachedMappingStore) ResolveFullToShort(ctx context.Context, full string) (string, error) {
	var short string
	if s.get(ctx, FullSerialKey(full), &short) {
		return short, nil
	}
	short, err := s.store.ResolveFullToShort(ctx, full)
	if err != nil {
		return "", err
	}
	s.put(ctx, FullSerialKey(full), short)
	return short, nil
}

// Request lookups only happen on redelivery, so they skip the cache.
func (s *CachedMappingStore) GetBatchByRequest(ctx context.Context, requestID string) (*models.BatchRecord, error) {
	return s.store.GetBatchByRequest(ctx, requestID)
}

func (s *CachedMappingStore) GetMappingByRequest(ctx context.Context, requestID string) (*models.SerialMapping, error) {
	return s.store.GetMappingByRequest(ctx, requestID)
}

func (s *CachedMappingStore) ListUnindexed(ctx context.Context, limit int) ([]models.SerialMapping, error) {
	return s.store.ListUnindexed(ctx, limit)
}

func (s *CachedMappingStore) MarkIndexed(ctx context.Context, ids []uuid.UUID) error {
	return s.store.MarkIndexed(ctx, ids)
}

func (s *CachedMappingStore) get(ctx context.Context, key string, dest interface{}) bool {
	if !s.cache.Enabled() {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	switch {
	case err == nil:
		s.count(metrics.CounterCacheHits)
		return true
	case errors.Is(err, ErrCacheMiss):
	default:
		log.Warn().Err(err).Str("key", key).Msg("mapping cache read failed")
	}
	s.count(metrics.CounterCacheMisses)
	return false
}

func (s *CachedMappingStore) put(ctx context.Context, key string, value interface{}) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("mapping cache write failed")
	}
}

func (s *CachedMappingStore) count(name string) {
	if s.metrics != nil {
		s.metrics.IncrementCounter(name)
	}
}
