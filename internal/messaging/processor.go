package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/identifier/internal/identifier"
	"example.com/backstage/services/identifier/internal/validation"
)

// Issuer is the part of the identifier service the processor drives
type Issuer interface {
	IssueBatch(ctx context.Context, site identifier.SiteID, batchType identifier.BatchType, date time.Time) (string, error)
	IssueSerial(ctx context.Context, batchNumber string, strain identifier.StrainCode, weightTenths int, pack identifier.PackSize) (string, string, error)
}

// MessageProcessor handles one received message
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error
}

// PermanentError marks a message that will fail the same way on every
// delivery. The consumer dead-letters these instead of retrying.
type PermanentError struct {
	Reason string
	Err    error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func permanent(reason string, err error) error {
	return &PermanentError{Reason: reason, Err: err}
}

// IsPermanent reports whether err should not be retried
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Processor dispatches identifier requests to the service
type Processor struct {
	issuer Issuer
}

// NewProcessor creates a new processor
func NewProcessor(issuer Issuer) *Processor {
	return &Processor{issuer: issuer}
}

func (p *Processor) ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	return p.Handle(ctx, message.Body)
}

// Handle processes a raw request body
func (p *Processor) Handle(ctx context.Context, body []byte) error {
	var msg AzureBusMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return permanent("malformed message", err)
	}

	logger := log.With().Str("eventType", msg.EventType).Str("requestId", msg.RequestID).Logger()
	logger.Info().Msg("Processing message")
	ctx = WithRequestID(ctx, msg.RequestID)

	switch msg.EventType {
	case IssueBatch:
		var cmd IssueBatchCommand
		if err := decodeCommand(msg.Data, &cmd); err != nil {
			return err
		}
		date, err := time.Parse("2006-01-02", cmd.Date)
		if err != nil {
			return permanent("invalid date", err)
		}
		number, err := p.issuer.IssueBatch(ctx, identifier.SiteID(cmd.SiteID), identifier.BatchType(cmd.BatchType), date)
		if err != nil {
			return classify(err)
		}
		logger.Info().Str("batch_number", number).Msg("batch issued from request")
		return nil

	case IssueSerial:
		var cmd IssueSerialCommand
		if err := decodeCommand(msg.Data, &cmd); err != nil {
			return err
		}
		tenths, err := identifier.WeightFromGrams(*cmd.WeightGrams)
		if err != nil {
			return permanent("invalid weight", err)
		}
		full, short, err := p.issuer.IssueSerial(ctx, cmd.BatchNumber, identifier.StrainCode(cmd.StrainCode), tenths, identifier.PackSize(*cmd.PackSize))
		if err != nil {
			return classify(err)
		}
		logger.Info().Str("full_serial", full).Str("short_serial", short).Msg("serial issued from request")
		return nil

	default:
		return permanent("unsupported event type", errors.Errorf("unknown eventType %q", msg.EventType))
	}
}

func decodeCommand(data json.RawMessage, cmd interface{}) error {
	if err := json.Unmarshal(data, cmd); err != nil {
		return permanent("malformed command", err)
	}
	if err := validation.Struct(cmd); err != nil {
		return permanent("invalid command", err)
	}
	return nil
}

// classify marks service errors that a retry cannot fix as permanent
func classify(err error) error {
	switch {
	case errors.Is(err, identifier.ErrFieldOutOfRange),
		errors.Is(err, identifier.ErrNotFound),
		identifier.IsDecodingError(err):
		return permanent("rejected request", err)
	case errors.Is(err, identifier.ErrSequenceExhausted):
		return permanent("sequence exhausted", err)
	case identifier.IsInvariantViolation(err):
		return permanent("invariant violation", err)
	}
	return err
}
