// Package mapping keeps the one-to-one association between short and full
// serial numbers, and the register of issued batch numbers.
package mapping

import (
	"context"

	"github.com/google/uuid"

	"example.com/backstage/services/identifier/internal/models"
)

// Store is the persistence contract for issued identifiers. Records are
// append-only: once created they are never modified, apart from the search
// projection flag.
type Store interface {
	// CreateBatch records an issued batch number. It fails with
	// identifier.ErrDuplicateBatch if the number, or its request id, already
	// exists.
	CreateBatch(ctx context.Context, batch *models.BatchRecord) error
	// GetBatch returns an issued batch or identifier.ErrNotFound.
	GetBatch(ctx context.Context, batchNumber string) (*models.BatchRecord, error)
	// GetBatchByRequest returns the batch issued for a queued request id or
	// identifier.ErrNotFound.
	GetBatchByRequest(ctx context.Context, requestID string) (*models.BatchRecord, error)

	// CreateMapping stores m atomically. It fails with
	// identifier.ErrDuplicateFull if the full serial is already mapped, or
	// identifier.ErrDuplicateShort if only the short serial is, or if the
	// request id was already served. On failure nothing is written.
	CreateMapping(ctx context.Context, m *models.SerialMapping) error
	// ResolveShortToFull returns the full serial for a short serial or
	// identifier.ErrNotFound.
	ResolveShortToFull(ctx context.Context, short string) (string, error)
	// ResolveFullToShort returns the short serial for a full serial or
	// identifier.ErrNotFound.
	ResolveFullToShort(ctx context.Context, full string) (string, error)
	// GetMappingByRequest returns the mapping issued for a queued request id
	// or identifier.ErrNotFound.
	GetMappingByRequest(ctx context.Context, requestID string) (*models.SerialMapping, error)

	// ListUnindexed returns up to limit mappings not yet projected into the
	// search index, oldest first.
	ListUnindexed(ctx context.Context, limit int) ([]models.SerialMapping, error)
	// MarkIndexed flags mappings as projected.
	MarkIndexed(ctx context.Context, ids []uuid.UUID) error
}
