package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// SequenceCounter is the durable state of one allocation scope
type SequenceCounter struct {
	Scope     string    `gorm:"primaryKey;size:64" json:"scope"`
	LastValue int64     `gorm:"not null;default:0" json:"last_value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name used by the raw upsert
func (SequenceCounter) TableName() string {
	return "sequence_counters"
}

// BatchRecord is an issued batch number
type BatchRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	BatchNumber string    `gorm:"size:16;not null;uniqueIndex" json:"batch_number"`
	SiteID      int       `gorm:"not null;index:idx_batch_scope" json:"site_id"`
	BatchType   int       `gorm:"not null;index:idx_batch_scope" json:"batch_type"`
	BatchDate   time.Time `gorm:"type:date;not null;index:idx_batch_scope" json:"batch_date"`
	Sequence    int       `gorm:"not null" json:"sequence"`
	RequestID   *string   `gorm:"size:64;uniqueIndex" json:"request_id,omitempty"`
}

// SerialMapping links a short serial to exactly one full serial. The decoded
// fields are stored alongside so they can be queried and projected into the
// search index without decoding.
type SerialMapping struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	ShortSerial   string    `gorm:"size:13;not null;uniqueIndex" json:"short_serial"`
	FullSerial    string    `gorm:"size:30;not null;uniqueIndex" json:"full_serial"`
	BatchNumber   string    `gorm:"size:16;not null;index" json:"batch_number"`
	SiteID        int       `gorm:"not null" json:"site_id"`
	StrainCode    int       `gorm:"not null" json:"strain_code"`
	StrainFamily  string    `gorm:"size:16;not null" json:"strain_family"`
	BatchType     int       `gorm:"not null" json:"batch_type"`
	BatchDate     time.Time `gorm:"type:date;not null" json:"batch_date"`
	BatchSequence int       `gorm:"not null" json:"batch_sequence"`
	UnitSequence  int       `gorm:"not null" json:"unit_sequence"`
	WeightTenths  int       `gorm:"not null" json:"weight_tenths_gram"`
	PackSize      int       `gorm:"not null" json:"pack_size"`
	Indexed       bool      `gorm:"not null;default:false;index" json:"indexed"`
	RequestID     *string   `gorm:"size:64;uniqueIndex" json:"request_id,omitempty"`
}

// BeforeCreate assigns an ID if none was set
func (b *BatchRecord) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// BeforeCreate assigns an ID if none was set
func (m *SerialMapping) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// SetupModels migrates every table the service owns
func SetupModels(db *gorm.DB) error {
	if err := db.AutoMigrate(&SequenceCounter{}, &BatchRecord{}, &SerialMapping{}); err != nil {
		return errors.Wrap(err, "failed to migrate identifier tables")
	}
	return nil
}
