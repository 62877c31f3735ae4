// Package identifier encodes and decodes the fixed-width numeric identifiers
// used for seed-to-sale traceability: 16-digit batch numbers, 30-digit full
// serial numbers protected by a Luhn check digit, and 13-digit short serials
// printed on barcodes.
//
// All functions in this package are pure and safe for concurrent use.
package identifier

import (
	"fmt"
	"time"
)

// Fixed widths of the encoded identifiers.
const (
	BatchNumberLength = 16
	FullSerialLength  = 30
	ShortSerialLength = 13
)

// Value limits of the numeric fields.
const (
	MaxSiteID        = 99
	MaxBatchSequence = 9999
	MaxUnitSequence  = 99999
	MaxShortSequence = 99999
	MinStrainCode    = 100
	MaxStrainCode    = 999
	MaxWeightTenths  = 9999
	MaxPackSize      = 9
)

// SiteID identifies one of up to 99 independently operated sites.
type SiteID int

// Valid reports whether the site fits its two-digit field.
func (s SiteID) Valid() bool {
	return s >= 1 && s <= MaxSiteID
}

// BatchType is the record type a batch number was issued for.
type BatchType int

const (
	BatchProduction  BatchType = 10
	BatchTransfer    BatchType = 20
	BatchStockTake   BatchType = 30
	BatchHarvest     BatchType = 40
	BatchProcessing  BatchType = 50
	BatchPackaging   BatchType = 60
	BatchReturn      BatchType = 70
	BatchDestruction BatchType = 80
	BatchAdjustment  BatchType = 90
)

var batchTypeNames = map[BatchType]string{
	BatchProduction:  "production",
	BatchTransfer:    "transfer",
	BatchStockTake:   "stock_take",
	BatchHarvest:     "harvest",
	BatchProcessing:  "processing",
	BatchPackaging:   "packaging",
	BatchReturn:      "return",
	BatchDestruction: "destruction",
	BatchAdjustment:  "adjustment",
}

// Valid reports whether t is one of the enumerated batch type codes.
func (t BatchType) Valid() bool {
	_, ok := batchTypeNames[t]
	return ok
}

func (t BatchType) String() string {
	if name, ok := batchTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("batch_type(%d)", int(t))
}

// StrainFamily is the leading digit of a strain code.
type StrainFamily int

const (
	FamilySativa   StrainFamily = 1
	FamilyIndica   StrainFamily = 2
	FamilyHybrid   StrainFamily = 3
	FamilyCBD      StrainFamily = 4
	FamilyReserved StrainFamily = 5
)

func (f StrainFamily) String() string {
	switch f {
	case FamilySativa:
		return "sativa"
	case FamilyIndica:
		return "indica"
	case FamilyHybrid:
		return "hybrid"
	case FamilyCBD:
		return "cbd"
	case FamilyReserved:
		return "reserved"
	}
	return "unknown"
}

// StrainCode is a three-digit strain identifier.
type StrainCode int

// Valid reports whether the code is within 100-999.
func (c StrainCode) Valid() bool {
	return c >= MinStrainCode && c <= MaxStrainCode
}

// Family derives the strain family from the leading digit. Leading digits
// 5-9 are reserved for future families and map to FamilyReserved.
func (c StrainCode) Family() StrainFamily {
	lead := int(c) / 100
	switch {
	case lead >= 1 && lead <= 4:
		return StrainFamily(lead)
	case lead >= 5 && lead <= 9:
		return FamilyReserved
	}
	return 0
}

// PackSize is the single-digit pack size code. Zero means bulk.
type PackSize int

const (
	PackBulk   PackSize = 0
	PackSingle PackSize = 1
	PackTwin   PackSize = 2
	PackFive   PackSize = 5
)

// Valid reports whether the pack size fits its one-digit field.
func (p PackSize) Valid() bool {
	return p >= 0 && p <= MaxPackSize
}

func (p PackSize) String() string {
	if p == PackBulk {
		return "bulk"
	}
	return fmt.Sprintf("%d-pack", int(p))
}

// BatchNumber is the decoded form of a 16-digit batch number.
type BatchNumber struct {
	Site     SiteID
	Type     BatchType
	Date     time.Time
	Sequence int
}

// FullSerial is the decoded form of a full serial number, without its check
// digit.
type FullSerial struct {
	Site          SiteID
	Strain        StrainCode
	BatchType     BatchType
	Date          time.Time
	BatchSequence int
	UnitSequence  int
	WeightTenths  int
	PackSize      PackSize
}

// Batch returns the batch number the serial belongs to.
func (s FullSerial) Batch() BatchNumber {
	return BatchNumber{
		Site:     s.Site,
		Type:     s.BatchType,
		Date:     s.Date,
		Sequence: s.BatchSequence,
	}
}

// ShortSerial is the decoded form of a 13-digit short serial.
type ShortSerial struct {
	Site     SiteID
	Date     time.Time
	Sequence int
}

// Day truncates t to its calendar date in UTC, keeping t's own year, month
// and day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// civilDate builds a UTC date and reports whether the fields named a real
// calendar day (time.Date silently normalises 2025-02-30 into March).
func civilDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
