package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/identifier/internal/identifier"
	"example.com/backstage/services/identifier/internal/mapping"
	"example.com/backstage/services/identifier/internal/messaging"
	"example.com/backstage/services/identifier/internal/metrics"
	"example.com/backstage/services/identifier/internal/models"
	"example.com/backstage/services/identifier/internal/sequence"
	"example.com/backstage/services/identifier/internal/tracing"
)

// ErrSearchUnavailable is returned by searches when no index is configured
var ErrSearchUnavailable = errors.New("search index not configured")

// Indexer projects serial mappings into the search index and reads them back
type Indexer interface {
	IndexSerial(ctx context.Context, m *models.SerialMapping) error
	SearchBatch(ctx context.Context, batchNumber string, size int) ([]map[string]interface{}, error)
}

const (
	defaultSearchLimit = 100
	maxSearchLimit     = 1000
)

// IdentifierService issues, decodes and resolves traceability identifiers
type IdentifierService struct {
	allocator *sequence.Allocator
	store     mapping.Store
	publisher messaging.Publisher
	indexer   Indexer
	tracer    tracing.Tracer
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option customises an IdentifierService
type Option func(*IdentifierService)

// WithClock sets the clock used to reject batches dated in the future
func WithClock(now func() time.Time) Option {
	return func(s *IdentifierService) {
		s.now = now
	}
}

// NewIdentifierService creates a new identifier service. publisher, indexer,
// tracer and collector may be nil.
func NewIdentifierService(
	allocator *sequence.Allocator,
	store mapping.Store,
	publisher messaging.Publisher,
	indexer Indexer,
	tracer tracing.Tracer,
	collector *metrics.Metrics,
	opts ...Option,
) *IdentifierService {
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	if tracer == nil {
		tracer = tracing.Disabled()
	}

	s := &IdentifierService{
		allocator: allocator,
		store:     store,
		publisher: publisher,
		indexer:   indexer,
		tracer:    tracer,
		metrics:   collector,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueBatch allocates and records a new batch number for (site, type, date).
// Dates after today are rejected.
func (s *IdentifierService) IssueBatch(ctx context.Context, site identifier.SiteID, batchType identifier.BatchType, date time.Time) (number string, err error) {
	start := time.Now()
	txn := s.tracer.StartTransaction("issue-batch")
	defer s.tracer.EndTransaction(txn)
	defer func() {
		s.finish(metrics.OpIssueBatch, start, err)
		if err != nil {
			s.tracer.RecordError(txn, err)
		}
	}()

	day := identifier.Day(date)
	if day.After(identifier.Day(s.now())) {
		return "", identifier.OutOfRange("date", identifier.FormatDate(day))
	}
	batch := identifier.BatchNumber{Site: site, Type: batchType, Date: day, Sequence: 1}
	if err := batch.Validate(); err != nil {
		return "", err
	}

	requestID := messaging.RequestIDFrom(ctx)
	prior, err := s.batchForRequest(ctx, requestID)
	if err != nil {
		return "", err
	}
	if prior != nil {
		return prior.BatchNumber, nil
	}

	span := s.tracer.StartSpan("allocate-batch-sequence", txn)
	batch.Sequence, err = s.allocator.AllocateBatchSequence(ctx, site, batchType, day)
	span.End()
	if err != nil {
		return "", err
	}

	number, err = identifier.EncodeBatch(batch)
	if err != nil {
		return "", err
	}
	rec := mapping.NewBatchRecord(batch, number)
	if requestID != "" {
		rec.RequestID = &requestID
	}
	if err := s.store.CreateBatch(ctx, rec); err != nil {
		// A concurrent delivery of the same request won the insert.
		if prior, lookupErr := s.batchForRequest(ctx, requestID); lookupErr == nil && prior != nil {
			return prior.BatchNumber, nil
		}
		s.invariant(err, "batch_number", number)
		return "", err
	}

	s.count(metrics.CounterBatchesIssued)
	s.tracer.AddAttribute(txn, "batch_number", number)
	log.Info().
		Str("batch_number", number).
		Int("site_id", int(site)).
		Str("batch_type", batchType.String()).
		Int("sequence", batch.Sequence).
		Msg("Batch number issued")

	s.publish(ctx, messaging.NewEvent(messaging.BatchIssued, batchIssuedData(rec)))
	return number, nil
}

// IssueSerial allocates a unit in an issued batch and records its full and
// short serial pair.
func (s *IdentifierService) IssueSerial(ctx context.Context, batchNumber string, strain identifier.StrainCode, weightTenths int, pack identifier.PackSize) (full, short string, err error) {
	start := time.Now()
	txn := s.tracer.StartTransaction("issue-serial")
	defer s.tracer.EndTransaction(txn)
	defer func() {
		s.finish(metrics.OpIssueSerial, start, err)
		if err != nil {
			s.tracer.RecordError(txn, err)
		}
	}()

	batch, err := identifier.DecodeBatch(batchNumber)
	if err != nil {
		return "", "", err
	}

	serial := identifier.FullSerial{
		Site:          batch.Site,
		Strain:        strain,
		BatchType:     batch.Type,
		Date:          batch.Date,
		BatchSequence: batch.Sequence,
		UnitSequence:  1,
		WeightTenths:  weightTenths,
		PackSize:      pack,
	}
	if err := serial.Validate(); err != nil {
		return "", "", err
	}
	if _, err := identifier.EncodeShortSerial(batch.Site, batch.Date, 1); err != nil {
		return "", "", err
	}

	requestID := messaging.RequestIDFrom(ctx)
	prior, err := s.mappingForRequest(ctx, requestID)
	if err != nil {
		return "", "", err
	}
	if prior != nil {
		return prior.FullSerial, prior.ShortSerial, nil
	}
	if _, err := s.store.GetBatch(ctx, batchNumber); err != nil {
		return "", "", err
	}

	span := s.tracer.StartSpan("allocate-serial-sequences", txn)
	serial.UnitSequence, err = s.allocator.AllocateUnitSequence(ctx, batch)
	if err != nil {
		span.End()
		return "", "", err
	}
	shortSeq, err := s.allocator.AllocateShortSequence(ctx, batch.Site, batch.Date)
	span.End()
	if err != nil {
		return "", "", err
	}

	full, err = identifier.EncodeFullSerial(serial)
	if err != nil {
		return "", "", err
	}
	short, err = identifier.EncodeShortSerial(batch.Site, batch.Date, shortSeq)
	if err != nil {
		return "", "", err
	}

	m := mapping.NewSerialMapping(serial, full, short)
	m.ID = uuid.New()
	if requestID != "" {
		m.RequestID = &requestID
	}
	if err := s.store.CreateMapping(ctx, m); err != nil {
		if prior, lookupErr := s.mappingForRequest(ctx, requestID); lookupErr == nil && prior != nil {
			return prior.FullSerial, prior.ShortSerial, nil
		}
		s.invariant(err, "full_serial", full)
		return "", "", err
	}

	s.count(metrics.CounterSerialsIssued)
	s.tracer.AddAttribute(txn, "full_serial", full)
	log.Info().
		Str("full_serial", full).
		Str("short_serial", short).
		Str("batch_number", batchNumber).
		Int("unit_sequence", serial.UnitSequence).
		Msg("Serial issued")

	s.publish(ctx, messaging.NewEvent(messaging.SerialIssued, serialIssuedData(m)))
	s.index(ctx, m)
	return full, short, nil
}

// Decode parses an identifier of any of the three kinds, chosen by length. A
// short serial is resolved through the store before decoding.
func (s *IdentifierService) Decode(ctx context.Context, id string) (rec *DecodedRecord, err error) {
	start := time.Now()
	defer func() {
		s.finish(metrics.OpDecode, start, err)
		if identifier.IsDecodingError(err) {
			s.count(metrics.CounterDecodeFailures)
		}
	}()

	switch len(id) {
	case identifier.BatchNumberLength:
		batch, err := identifier.DecodeBatch(id)
		if err != nil {
			return nil, err
		}
		return &DecodedRecord{Kind: KindBatch, Identifier: id, BatchNumber: id, Batch: batch}, nil

	case identifier.FullSerialLength:
		serial, err := identifier.DecodeFullSerial(id)
		if err != nil {
			return nil, err
		}
		return newSerialRecord(KindFullSerial, id, serial, id, ""), nil

	case identifier.ShortSerialLength:
		if _, err := identifier.DecodeShortSerial(id); err != nil {
			return nil, err
		}
		full, err := s.store.ResolveShortToFull(ctx, id)
		if err != nil {
			return nil, err
		}
		serial, err := identifier.DecodeFullSerial(full)
		if err != nil {
			return nil, errors.Wrapf(err, "stored full serial for %s", id)
		}
		return newSerialRecord(KindShortSerial, id, serial, full, id), nil
	}

	return nil, &identifier.Error{Kind: identifier.ErrInvalidLength, Field: "identifier", Value: id}
}

// Validate reports whether id is a well-formed identifier. Full serials are
// checked offline. Batch numbers and short serials must also have been issued.
func (s *IdentifierService) Validate(ctx context.Context, id string) bool {
	var err error
	switch len(id) {
	case identifier.FullSerialLength:
		_, err = identifier.DecodeFullSerial(id)
	case identifier.BatchNumberLength:
		if _, err = identifier.DecodeBatch(id); err == nil {
			_, err = s.store.GetBatch(ctx, id)
		}
	case identifier.ShortSerialLength:
		if _, err = identifier.DecodeShortSerial(id); err == nil {
			_, err = s.store.ResolveShortToFull(ctx, id)
		}
	default:
		return false
	}

	if err != nil && !errors.Is(err, identifier.ErrNotFound) && !identifier.IsDecodingError(err) &&
		!errors.Is(err, identifier.ErrFieldOutOfRange) {
		log.Error().Err(err).Str("identifier", id).Msg("Failed to validate identifier")
	}
	return err == nil
}

// ResolveShort returns the full serial a short serial was issued for.
func (s *IdentifierService) ResolveShort(ctx context.Context, short string) (full string, err error) {
	start := time.Now()
	defer func() { s.finish(metrics.OpResolveShort, start, err) }()

	if _, err := identifier.DecodeShortSerial(short); err != nil {
		return "", err
	}
	full, err = s.store.ResolveShortToFull(ctx, short)
	if err != nil {
		return "", err
	}
	s.count(metrics.CounterShortResolved)
	return full, nil
}

// ResolveFull returns the short serial issued alongside a full serial.
func (s *IdentifierService) ResolveFull(ctx context.Context, full string) (string, error) {
	if _, err := identifier.DecodeFullSerial(full); err != nil {
		return "", err
	}
	return s.store.ResolveFullToShort(ctx, full)
}

// BatchSerials lists the indexed serials of an issued batch, ordered by unit
// sequence. limit defaults to 100 and is capped at 1000.
func (s *IdentifierService) BatchSerials(ctx context.Context, batchNumber string, limit int) ([]map[string]interface{}, error) {
	if _, err := identifier.DecodeBatch(batchNumber); err != nil {
		return nil, err
	}
	if s.indexer == nil {
		return nil, ErrSearchUnavailable
	}
	if _, err := s.store.GetBatch(ctx, batchNumber); err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = defaultSearchLimit
	case limit > maxSearchLimit:
		limit = maxSearchLimit
	}
	docs, err := s.indexer.SearchBatch(ctx, batchNumber, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to search serials of batch %s", batchNumber)
	}
	return docs, nil
}

// ReIndex projects mappings the search index missed, batchSize at a time,
// and returns how many were indexed.
func (s *IdentifierService) ReIndex(ctx context.Context, batchSize int) (total int, err error) {
	if s.indexer == nil {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	start := time.Now()
	defer func() { s.finish(metrics.OpReindex, start, err) }()

	for {
		pending, err := s.store.ListUnindexed(ctx, batchSize)
		if err != nil {
			return total, err
		}
		if len(pending) == 0 {
			return total, nil
		}

		ids := make([]uuid.UUID, 0, len(pending))
		var indexErr error
		for i := range pending {
			if err := s.indexer.IndexSerial(ctx, &pending[i]); err != nil {
				indexErr = errors.Wrapf(err, "failed to index %s", pending[i].ShortSerial)
				break
			}
			ids = append(ids, pending[i].ID)
		}

		if len(ids) > 0 {
			if err := s.store.MarkIndexed(ctx, ids); err != nil {
				return total, err
			}
			total += len(ids)
			s.countBy(metrics.CounterSerialsIndexed, int64(len(ids)))
		}
		if indexErr != nil {
			return total, indexErr
		}
		if len(pending) < batchSize {
			return total, nil
		}
	}
}

// batchForRequest returns the batch already issued for requestID, or nil.
// The issued event is published again so the requester learns the number.
func (s *IdentifierService) batchForRequest(ctx context.Context, requestID string) (*models.BatchRecord, error) {
	if requestID == "" {
		return nil, nil
	}
	rec, err := s.store.GetBatchByRequest(ctx, requestID)
	if errors.Is(err, identifier.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.count(metrics.CounterRequestsReplayed)
	log.Info().Str("requestId", requestID).Str("batch_number", rec.BatchNumber).Msg("Request already served, returning issued batch")
	s.publish(ctx, messaging.NewEvent(messaging.BatchIssued, batchIssuedData(rec)))
	return rec, nil
}

// mappingForRequest is batchForRequest for serial pairs.
func (s *IdentifierService) mappingForRequest(ctx context.Context, requestID string) (*models.SerialMapping, error) {
	if requestID == "" {
		return nil, nil
	}
	m, err := s.store.GetMappingByRequest(ctx, requestID)
	if errors.Is(err, identifier.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.count(metrics.CounterRequestsReplayed)
	log.Info().Str("requestId", requestID).Str("full_serial", m.FullSerial).Msg("Request already served, returning issued serial")
	s.publish(ctx, messaging.NewEvent(messaging.SerialIssued, serialIssuedData(m)))
	return m, nil
}

func batchIssuedData(rec *models.BatchRecord) messaging.BatchIssuedData {
	return messaging.BatchIssuedData{
		BatchNumber: rec.BatchNumber,
		SiteID:      rec.SiteID,
		BatchType:   identifier.BatchType(rec.BatchType).String(),
		Date:        identifier.FormatDate(rec.BatchDate),
		Sequence:    rec.Sequence,
		RequestID:   deref(rec.RequestID),
	}
}

func serialIssuedData(m *models.SerialMapping) messaging.SerialIssuedData {
	return messaging.SerialIssuedData{
		FullSerial:   m.FullSerial,
		ShortSerial:  m.ShortSerial,
		BatchNumber:  m.BatchNumber,
		SiteID:       m.SiteID,
		StrainCode:   m.StrainCode,
		StrainFamily: m.StrainFamily,
		UnitSequence: m.UnitSequence,
		WeightGrams:  identifier.WeightToGrams(m.WeightTenths),
		PackSize:     m.PackSize,
		RequestID:    deref(m.RequestID),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *IdentifierService) publish(ctx context.Context, event messaging.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.count(metrics.CounterEventsFailed)
		log.Warn().Err(err).Str("eventType", event.EventType).Msg("Failed to publish event")
		return
	}
	s.count(metrics.CounterEventsPublished)
}

// index projects m right away. Failures are picked up by ReIndex.
func (s *IdentifierService) index(ctx context.Context, m *models.SerialMapping) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.IndexSerial(ctx, m); err != nil {
		log.Warn().Err(err).Str("short_serial", m.ShortSerial).Msg("Failed to index serial, reindex job will retry")
		return
	}
	if err := s.store.MarkIndexed(ctx, []uuid.UUID{m.ID}); err != nil {
		log.Warn().Err(err).Str("short_serial", m.ShortSerial).Msg("Failed to mark serial indexed")
		return
	}
	s.count(metrics.CounterSerialsIndexed)
}

// invariant reports store conflicts that mean a sequence was handed out twice
func (s *IdentifierService) invariant(err error, field, value string) {
	if !identifier.IsInvariantViolation(err) {
		return
	}
	s.count(metrics.CounterInvariantViolations)
	log.Error().Err(err).Str(field, value).Msg("Identifier invariant violated: allocated value already stored")
}

func (s *IdentifierService) finish(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordOperation(op, start, err)
	if errors.Is(err, identifier.ErrSequenceExhausted) {
		s.metrics.IncrementCounter(metrics.CounterSequencesExhausted)
	}
}

func (s *IdentifierService) count(name string) {
	s.countBy(name, 1)
}

func (s *IdentifierService) countBy(name string, n int64) {
	if s.metrics != nil {
		s.metrics.IncrementCounterBy(name, n)
	}
}
