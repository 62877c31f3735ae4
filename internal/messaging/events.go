package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outgoing event types
const (
	BatchIssued  = "BatchIssued"
	SerialIssued = "SerialIssued"
)

// Incoming request types, sent by terminals that issue identifiers offline
const (
	IssueBatch  = "IssueBatch"
	IssueSerial = "IssueSerial"
)

// Event is the envelope of everything published to the events queue
type Event struct {
	ID         uuid.UUID   `json:"id"`
	EventType  string      `json:"eventType"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data"`
}

// NewEvent wraps data in an envelope with a fresh ID
func NewEvent(eventType string, data interface{}) Event {
	return Event{
		ID:         uuid.New(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// BatchIssuedData is the payload of a BatchIssued event
type BatchIssuedData struct {
	BatchNumber string `json:"batch_number"`
	SiteID      int    `json:"site_id"`
	BatchType   string `json:"batch_type"`
	Date        string `json:"date"`
	Sequence    int    `json:"sequence"`
	RequestID   string `json:"request_id,omitempty"`
}

// SerialIssuedData is the payload of a SerialIssued event
type SerialIssuedData struct {
	FullSerial   string          `json:"full_serial"`
	ShortSerial  string          `json:"short_serial"`
	BatchNumber  string          `json:"batch_number"`
	SiteID       int             `json:"site_id"`
	StrainCode   int             `json:"strain_code"`
	StrainFamily string          `json:"strain_family"`
	UnitSequence int             `json:"unit_sequence"`
	WeightGrams  decimal.Decimal `json:"weight_grams"`
	PackSize     int             `json:"pack_size"`
	RequestID    string          `json:"request_id,omitempty"`
}

// AzureBusMessage is the envelope of an incoming request
type AzureBusMessage struct {
	EventType string          `json:"eventType"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// IssueBatchCommand asks for a new batch number
type IssueBatchCommand struct {
	SiteID    int    `json:"site_id" validate:"required,site_id"`
	BatchType int    `json:"batch_type" validate:"required,batch_type"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
}

// IssueSerialCommand asks for a new serial pair in an issued batch
type IssueSerialCommand struct {
	BatchNumber string           `json:"batch_number" validate:"required,batch_number"`
	StrainCode  int              `json:"strain_code" validate:"required,strain_code"`
	WeightGrams *decimal.Decimal `json:"weight_grams" validate:"required"`
	PackSize    *int             `json:"pack_size" validate:"required,pack_size"`
}

type requestIDKey struct{}

// WithRequestID tags ctx with the id of the queued request being served.
// Issues made under the same request id return the identifiers of the first.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFrom returns the request id set by WithRequestID, or ""
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
