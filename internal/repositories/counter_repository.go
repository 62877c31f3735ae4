package repositories

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/backstage/services/identifier/internal/models"
	"example.com/backstage/services/identifier/internal/sequence"
)

// nextValueSQL creates the counter at 1 or increments it, in one statement.
// The WHERE clause on the conflict branch leaves an exhausted counter
// untouched and returns no row.
const nextValueSQL = `INSERT INTO sequence_counters (scope, last_value, created_at, updated_at)
VALUES (?, 1, ?, ?)
ON CONFLICT (scope) DO UPDATE
SET last_value = sequence_counters.last_value + 1, updated_at = excluded.updated_at
WHERE sequence_counters.last_value < ?
RETURNING last_value`

// CounterRepository is a durable sequence.CounterStore backed by the
// sequence_counters table
type CounterRepository struct {
	db *gorm.DB
}

// NewCounterRepository creates a new counter repository
func NewCounterRepository(db *gorm.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

// Next implements sequence.CounterStore
func (r *CounterRepository) Next(ctx context.Context, scope sequence.Scope, max int64) (int64, error) {
	if max < 1 {
		return 0, sequence.ErrExhausted
	}

	now := time.Now().UTC()
	var values []int64
	err := r.db.WithContext(ctx).
		Raw(nextValueSQL, scope.String(), now, now, max).
		Scan(&values).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to advance sequence counter")
	}
	if len(values) == 0 {
		return 0, sequence.ErrExhausted
	}
	return values[0], nil
}

// Get returns the stored counter for scope
func (r *CounterRepository) Get(ctx context.Context, scope sequence.Scope) (*models.SequenceCounter, error) {
	var counter models.SequenceCounter
	err := r.db.WithContext(ctx).Where("scope = ?", scope.String()).First(&counter).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sequence counter")
	}
	return &counter, nil
}
