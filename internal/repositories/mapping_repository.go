package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/backstage/services/identifier/internal/identifier"
	"example.com/backstage/services/identifier/internal/models"
)

// MappingRepository is the SQL mapping.Store. Uniqueness of both serials is
// enforced by the database's unique indexes.
type MappingRepository struct {
	db *gorm.DB
}

// NewMappingRepository creates a new mapping repository
func NewMappingRepository(db *gorm.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// CreateBatch records an issued batch number
func (r *MappingRepository) CreateBatch(ctx context.Context, batch *models.BatchRecord) error {
	err := r.db.WithContext(ctx).Create(batch).Error
	if err != nil {
		if isDuplicateKey(err) {
			return &identifier.Error{Kind: identifier.ErrDuplicateBatch, Field: "batch_number", Value: batch.BatchNumber}
		}
		return errors.Wrap(err, "failed to create batch record")
	}
	return nil
}

// GetBatch gets an issued batch by its number
func (r *MappingRepository) GetBatch(ctx context.Context, batchNumber string) (*models.BatchRecord, error) {
	var batch models.BatchRecord
	err := r.db.WithContext(ctx).Where("batch_number = ?", batchNumber).First(&batch).Error
	if err != nil {
		if isRecordNotFound(err) {
			return nil, identifier.NotFound(batchNumber)
		}
		return nil, errors.Wrap(err, "failed to get batch record")
	}
	return &batch, nil
}

// GetBatchByRequest gets the batch issued for a queued request
func (r *MappingRepository) GetBatchByRequest(ctx context.Context, requestID string) (*models.BatchRecord, error) {
	var batch models.BatchRecord
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&batch).Error
	if err != nil {
		if isRecordNotFound(err) {
			return nil, identifier.NotFound(requestID)
		}
		return nil, errors.Wrap(err, "failed to get batch record by request")
	}
	return &batch, nil
}

// CreateMapping inserts a short/full pair
func (r *MappingRepository) CreateMapping(ctx context.Context, m *models.SerialMapping) error {
	err := r.db.WithContext(ctx).Create(m).Error
	if err == nil {
		return nil
	}
	if !isDuplicateKey(err) {
		return errors.Wrap(err, "failed to create serial mapping")
	}

	// The insert was rejected as a whole; work out which side collided.
	// Existing rows are immutable, so the answer cannot change under us.
	if _, lookupErr := r.ResolveFullToShort(ctx, m.FullSerial); lookupErr == nil {
		return &identifier.Error{Kind: identifier.ErrDuplicateFull, Field: "full_serial", Value: m.FullSerial}
	} else if !errors.Is(lookupErr, identifier.ErrNotFound) {
		log.Error().Err(lookupErr).Str("full_serial", m.FullSerial).Msg("failed to classify duplicate mapping")
	}
	return &identifier.Error{Kind: identifier.ErrDuplicateShort, Field: "short_serial", Value: m.ShortSerial}
}

// ResolveShortToFull looks up the full serial behind a short serial
func (r *MappingRepository) ResolveShortToFull(ctx context.Context, short string) (string, error) {
	var m models.SerialMapping
	err := r.db.WithContext(ctx).Select("full_serial").Where("short_serial = ?", short).First(&m).Error
	if err != nil {
		if isRecordNotFound(err) {
			return "", identifier.NotFound(short)
		}
		return "", errors.Wrap(err, "failed to resolve short serial")
	}
	return m.FullSerial, nil
}

// ResolveFullToShort looks up the short serial for a full serial
func (r *MappingRepository) ResolveFullToShort(ctx context.Context, full string) (string, error) {
	var m models.SerialMapping
	err := r.db.WithContext(ctx).Select("short_serial").Where("full_serial = ?", full).First(&m).Error
	if err != nil {
		if isRecordNotFound(err) {
			return "", identifier.NotFound(full)
		}
		return "", errors.Wrap(err, "failed to resolve full serial")
	}
	return m.ShortSerial, nil
}

// GetMappingByRequest gets the mapping issued for a queued request
func (r *MappingRepository) GetMappingByRequest(ctx context.Context, requestID string) (*models.SerialMapping, error) {
	var m models.SerialMapping
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&m).Error
	if err != nil {
		if isRecordNotFound(err) {
			return nil, identifier.NotFound(requestID)
		}
		return nil, errors.Wrap(err, "failed to get serial mapping by request")
	}
	return &m, nil
}

// ListUnindexed returns mappings not yet projected into the search index
func (r *MappingRepository) ListUnindexed(ctx context.Context, limit int) ([]models.SerialMapping, error) {
	var out []models.SerialMapping
	err := r.db.WithContext(ctx).
		Where("indexed = ?", false).
		Order("created_at, id").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list unindexed mappings")
	}
	return out, nil
}

// MarkIndexed flags mappings as projected
func (r *MappingRepository) MarkIndexed(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.SerialMapping{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{"indexed": true, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return errors.Wrap(err, "failed to mark mappings indexed")
	}
	return nil
}
