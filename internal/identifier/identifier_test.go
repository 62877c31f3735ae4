package identifier

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exampleDate = time.Date(2025, 12, 6, 0, 0, 0, 0, time.UTC)

func exampleSerial() FullSerial {
	return FullSerial{
		Site:          1,
		Strain:        100,
		BatchType:     BatchProduction,
		Date:          exampleDate,
		BatchSequence: 1,
		UnitSequence:  1,
		WeightTenths:  35,
		PackSize:      PackSingle,
	}
}

func TestEncodeBatchWorkedExample(t *testing.T) {
	got, err := EncodeBatch(BatchNumber{Site: 1, Type: BatchProduction, Date: exampleDate, Sequence: 1})
	require.NoError(t, err)
	assert.Equal(t, "0110202512060001", got)
}

func TestBatchRoundTrip(t *testing.T) {
	records := []BatchNumber{
		{Site: 1, Type: BatchProduction, Date: exampleDate, Sequence: 1},
		{Site: 99, Type: BatchAdjustment, Date: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), Sequence: 9999},
		{Site: 42, Type: BatchStockTake, Date: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC), Sequence: 250},
	}
	for _, r := range records {
		s, err := EncodeBatch(r)
		require.NoError(t, err)
		require.Len(t, s, BatchNumberLength)

		back, err := DecodeBatch(s)
		require.NoError(t, err)
		assert.Equal(t, r, back)
	}
}

func TestEncodeBatchOutOfRange(t *testing.T) {
	base := BatchNumber{Site: 1, Type: BatchProduction, Date: exampleDate, Sequence: 1}
	tests := map[string]func(b *BatchNumber){
		"site 100":      func(b *BatchNumber) { b.Site = 100 },
		"site 0":        func(b *BatchNumber) { b.Site = 0 },
		"type 15":       func(b *BatchNumber) { b.Type = 15 },
		"sequence 0":    func(b *BatchNumber) { b.Sequence = 0 },
		"sequence 1e4":  func(b *BatchNumber) { b.Sequence = 10000 },
		"zero date":     func(b *BatchNumber) { b.Date = time.Time{} },
		"year too wide": func(b *BatchNumber) { b.Date = time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			b := base
			mutate(&b)
			_, err := EncodeBatch(b)
			assert.ErrorIs(t, err, ErrFieldOutOfRange)
			assert.Empty(t, b.String())
		})
	}
}

func TestDecodeBatchErrors(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"011020251206001", ErrInvalidLength},
		{"01102025120600011", ErrInvalidLength},
		{"0110202512060a01", ErrInvalidLength},
		{"0115202512060001", ErrInvalidBatchType},
		{"0100202512060001", ErrInvalidBatchType},
		{"0110202513060001", ErrInvalidDate},
		{"0110202502300001", ErrInvalidDate},
		{"0110000001010001", ErrInvalidDate},
		{"0010202512060001", ErrFieldOutOfRange},
		{"0110202512060000", ErrFieldOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := DecodeBatch(tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncodeFullSerialWorkedExample(t *testing.T) {
	got, err := EncodeFullSerial(exampleSerial())
	require.NoError(t, err)
	assert.Equal(t, "011001020251206000100001003517", got)
	assert.True(t, VerifyFullSerial(got))

	again, err := EncodeFullSerial(exampleSerial())
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestDecodeFullSerialWorkedExample(t *testing.T) {
	got, err := DecodeFullSerial("011001020251206000100001003517")
	require.NoError(t, err)
	assert.Equal(t, exampleSerial(), got)
	assert.Equal(t, FamilySativa, got.Strain.Family())
	assert.Equal(t, "0110202512060001", got.Batch().String())
}

func TestFullSerialRoundTrip(t *testing.T) {
	records := []FullSerial{
		exampleSerial(),
		{Site: 99, Strain: 999, BatchType: BatchAdjustment, Date: time.Date(2030, 6, 30, 0, 0, 0, 0, time.UTC),
			BatchSequence: 9999, UnitSequence: 99999, WeightTenths: 9999, PackSize: 9},
		{Site: 7, Strain: 410, BatchType: BatchPackaging, Date: exampleDate,
			BatchSequence: 12, UnitSequence: 345, WeightTenths: 0, PackSize: PackBulk},
	}
	for _, r := range records {
		s, err := EncodeFullSerial(r)
		require.NoError(t, err)
		require.Len(t, s, FullSerialLength)

		back, err := DecodeFullSerial(s)
		require.NoError(t, err)
		assert.Equal(t, r, back)
	}
}

func TestEncodeFullSerialOutOfRange(t *testing.T) {
	tests := map[string]func(s *FullSerial){
		"strain 99":       func(s *FullSerial) { s.Strain = 99 },
		"strain 1000":     func(s *FullSerial) { s.Strain = 1000 },
		"unit 0":          func(s *FullSerial) { s.UnitSequence = 0 },
		"unit 100000":     func(s *FullSerial) { s.UnitSequence = 100000 },
		"weight negative": func(s *FullSerial) { s.WeightTenths = -1 },
		"weight 1000g":    func(s *FullSerial) { s.WeightTenths = 10000 },
		"pack 10":         func(s *FullSerial) { s.PackSize = 10 },
		"site 100":        func(s *FullSerial) { s.Site = 100 },
		"batch seq 0":     func(s *FullSerial) { s.BatchSequence = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			s := exampleSerial()
			mutate(&s)
			_, err := EncodeFullSerial(s)
			assert.ErrorIs(t, err, ErrFieldOutOfRange)
		})
	}
}

func TestDecodeFullSerialErrors(t *testing.T) {
	valid := "011001020251206000100001003517"

	_, err := DecodeFullSerial(valid[:29])
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = DecodeFullSerial("0110010202512060001000010035171")
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = DecodeFullSerial("011001020251206000100001003518")
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.True(t, IsDecodingError(err))

	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"strain family zero", "01050102025120600010000100351", ErrInvalidStrainFamily},
		{"unknown batch type", "01100112025120600010000100351", ErrInvalidBatchType},
		{"bad date", "01100102025123200010000100351", ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFullSerial(withCheckDigit(t, tt.payload))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeFullSerialReservedFamily(t *testing.T) {
	s := exampleSerial()
	s.Strain = 742
	encoded, err := EncodeFullSerial(s)
	require.NoError(t, err)

	got, err := DecodeFullSerial(encoded)
	require.NoError(t, err)
	assert.Equal(t, FamilyReserved, got.Strain.Family())
	assert.Equal(t, "reserved", got.Strain.Family().String())
}

func TestShortSerial(t *testing.T) {
	got, err := EncodeShortSerial(1, exampleDate, 1)
	require.NoError(t, err)
	assert.Equal(t, "0125120600001", got)

	back, err := DecodeShortSerial(got)
	require.NoError(t, err)
	assert.Equal(t, ShortSerial{Site: 1, Date: exampleDate, Sequence: 1}, back)
	assert.Equal(t, got, back.String())
}

func TestShortSerialErrors(t *testing.T) {
	_, err := EncodeShortSerial(0, exampleDate, 1)
	assert.ErrorIs(t, err, ErrFieldOutOfRange)
	_, err = EncodeShortSerial(1, exampleDate, 100000)
	assert.ErrorIs(t, err, ErrFieldOutOfRange)
	_, err = EncodeShortSerial(1, time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC), 1)
	assert.ErrorIs(t, err, ErrFieldOutOfRange)

	_, err = DecodeShortSerial("012512060000")
	assert.ErrorIs(t, err, ErrInvalidLength)
	_, err = DecodeShortSerial("0125133100001")
	assert.ErrorIs(t, err, ErrInvalidDate)
	_, err = DecodeShortSerial("0125120600000")
	assert.ErrorIs(t, err, ErrFieldOutOfRange)
}

func TestWeightFromGrams(t *testing.T) {
	tenths, err := WeightFromGrams(decimal.RequireFromString("3.5"))
	require.NoError(t, err)
	assert.Equal(t, 35, tenths)

	tenths, err = WeightFromGrams(decimal.RequireFromString("999.9"))
	require.NoError(t, err)
	assert.Equal(t, 9999, tenths)

	for _, in := range []string{"3.55", "1000", "-0.1"} {
		_, err := WeightFromGrams(decimal.RequireFromString(in))
		assert.ErrorIs(t, err, ErrFieldOutOfRange, in)
	}

	assert.Equal(t, "3.5", WeightToGrams(35).String())
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsInvariantViolation(ErrDuplicateShort))
	assert.False(t, IsInvariantViolation(ErrNotFound))
	assert.False(t, IsDecodingError(OutOfRange("site_id", 100)))
	assert.Equal(t, "field out of range: site_id=100", OutOfRange("site_id", 100).Error())
}

func withCheckDigit(t *testing.T, payload string) string {
	t.Helper()
	require.Len(t, payload, FullSerialLength-1)
	for d := byte('0'); d <= '9'; d++ {
		candidate := payload + string(d)
		if VerifyFullSerial(candidate) {
			return candidate
		}
	}
	t.Fatalf("no check digit for %s", payload)
	return ""
}
