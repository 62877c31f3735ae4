package mapping

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/backstage/services/identifier/internal/identifier"
	"example.com/backstage/services/identifier/internal/models"
)

// MemoryStore is a Store held in process memory. A single mutex makes the
// duplicate checks and the insert of CreateMapping one atomic step.
type MemoryStore struct {
	mu        sync.RWMutex
	batches   map[string]models.BatchRecord
	batchReqs map[string]string
	byShort   map[string]*models.SerialMapping
	byFull    map[string]*models.SerialMapping
	byRequest map[string]*models.SerialMapping
	inserted  []*models.SerialMapping
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		batches:   make(map[string]models.BatchRecord),
		batchReqs: make(map[string]string),
		byShort:   make(map[string]*models.SerialMapping),
		byFull:    make(map[string]*models.SerialMapping),
		byRequest: make(map[string]*models.SerialMapping),
	}
}

func (s *MemoryStore) CreateBatch(ctx context.Context, batch *models.BatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[batch.BatchNumber]; ok {
		return &identifier.Error{Kind: identifier.ErrDuplicateBatch, Field: "batch_number", Value: batch.BatchNumber}
	}
	if batch.RequestID != nil {
		if _, ok := s.batchReqs[*batch.RequestID]; ok {
			return &identifier.Error{Kind: identifier.ErrDuplicateBatch, Field: "request_id", Value: *batch.RequestID}
		}
	}
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now()
	}
	s.batches[batch.BatchNumber] = *batch
	if batch.RequestID != nil {
		s.batchReqs[*batch.RequestID] = batch.BatchNumber
	}
	return nil
}

func (s *MemoryStore) GetBatch(ctx context.Context, batchNumber string) (*models.BatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[batchNumber]
	if !ok {
		return nil, identifier.NotFound(batchNumber)
	}
	return &b, nil
}

func (s *MemoryStore) GetBatchByRequest(ctx context.Context, requestID string) (*models.BatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	number, ok := s.batchReqs[requestID]
	if !ok {
		return nil, identifier.NotFound(requestID)
	}
	b := s.batches[number]
	return &b, nil
}

func (s *MemoryStore) CreateMapping(ctx context.Context, m *models.SerialMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byFull[m.FullSerial]; ok {
		return &identifier.Error{Kind: identifier.ErrDuplicateFull, Field: "full_serial", Value: m.FullSerial}
	}
	if _, ok := s.byShort[m.ShortSerial]; ok {
		return &identifier.Error{Kind: identifier.ErrDuplicateShort, Field: "short_serial", Value: m.ShortSerial}
	}
	if m.RequestID != nil {
		if _, ok := s.byRequest[*m.RequestID]; ok {
			return &identifier.Error{Kind: identifier.ErrDuplicateShort, Field: "request_id", Value: *m.RequestID}
		}
	}

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	stored := *m
	s.byFull[stored.FullSerial] = &stored
	s.byShort[stored.ShortSerial] = &stored
	if stored.RequestID != nil {
		s.byRequest[*stored.RequestID] = &stored
	}
	s.inserted = append(s.inserted, &stored)
	return nil
}

func (s *MemoryStore) ResolveShortToFull(ctx context.Context, short string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byShort[short]
	if !ok {
		return "", identifier.NotFound(short)
	}
	return m.FullSerial, nil
}

func (s *MemoryStore) ResolveFullToShort(ctx context.Context, full string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byFull[full]
	if !ok {
		return "", identifier.NotFound(full)
	}
	return m.ShortSerial, nil
}

func (s *MemoryStore) GetMappingByRequest(ctx context.Context, requestID string) (*models.SerialMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byRequest[requestID]
	if !ok {
		return nil, identifier.NotFound(requestID)
	}
	out := *m
	return &out, nil
}

func (s *MemoryStore) ListUnindexed(ctx context.Context, limit int) ([]models.SerialMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.SerialMapping
	for _, m := range s.inserted {
		if len(out) >= limit {
			break
		}
		if !m.Indexed {
			out = append(out, *m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) MarkIndexed(ctx context.Context, ids []uuid.UUID) error {
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, m := range s.inserted {
		if _, ok := want[m.ID]; ok {
			m.Indexed = true
			m.UpdatedAt = now
		}
	}
	return nil
}

// Len returns the number of stored mappings.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.inserted)
}
