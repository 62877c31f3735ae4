package services

import (
	"example.com/backstage/services/identifier/internal/identifier"
)

// IdentifierKind names the form an identifier was presented in
type IdentifierKind string

const (
	KindBatch       IdentifierKind = "batch_number"
	KindFullSerial  IdentifierKind = "full_serial"
	KindShortSerial IdentifierKind = "short_serial"
)

// DecodedRecord is the result of Decode. Serial is nil for batch numbers.
type DecodedRecord struct {
	Kind        IdentifierKind
	Identifier  string
	BatchNumber string
	FullSerial  string
	ShortSerial string
	Batch       identifier.BatchNumber
	Serial      *identifier.FullSerial
}

func newSerialRecord(kind IdentifierKind, id string, serial identifier.FullSerial, full, short string) *DecodedRecord {
	return &DecodedRecord{
		Kind:        kind,
		Identifier:  id,
		BatchNumber: serial.Batch().String(),
		FullSerial:  full,
		ShortSerial: short,
		Batch:       serial.Batch(),
		Serial:      &serial,
	}
}
