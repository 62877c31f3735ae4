package identifier

import (
	"example.com/backstage/services/identifier/internal/checksum"
)

// Full serial layout:
//
//	SS CCC TT YYYYMMDD BBBB UUUUU WWWW P K
//
// site, strain, batch type, date, batch sequence, unit sequence, weight in
// tenths of a gram, pack size, Luhn check digit over the preceding 29 digits.

// Validate checks every field against its fixed width and domain.
func (s FullSerial) Validate() error {
	if err := s.Batch().Validate(); err != nil {
		if e, ok := err.(*Error); ok && e.Field == "sequence" {
			e.Field = "batch_sequence"
		}
		return err
	}
	if !s.Strain.Valid() {
		return OutOfRange("strain_code", int(s.Strain))
	}
	if s.UnitSequence < 1 || s.UnitSequence > MaxUnitSequence {
		return OutOfRange("unit_sequence", s.UnitSequence)
	}
	if s.WeightTenths < 0 || s.WeightTenths > MaxWeightTenths {
		return OutOfRange("weight_tenths_gram", s.WeightTenths)
	}
	if !s.PackSize.Valid() {
		return OutOfRange("pack_size", int(s.PackSize))
	}
	return nil
}

// EncodeFullSerial renders s as a full serial number with its check digit.
// The output depends only on s.
func EncodeFullSerial(s FullSerial) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	date, _ := encodeDate("date", s.Date)
	payload := pad(int(s.Site), 2) +
		pad(int(s.Strain), 3) +
		pad(int(s.BatchType), 2) +
		date +
		pad(s.BatchSequence, 4) +
		pad(s.UnitSequence, 5) +
		pad(s.WeightTenths, 4) +
		pad(int(s.PackSize), 1)
	return checksum.Append(payload)
}

// DecodeFullSerial parses and verifies a full serial number. Checks run in
// order: length, check digit, then field structure.
func DecodeFullSerial(s string) (FullSerial, error) {
	if len(s) != FullSerialLength || !isDigits(s) {
		return FullSerial{}, newError(ErrInvalidLength, "full_serial", s)
	}
	if !checksum.Verify(s) {
		return FullSerial{}, newError(ErrChecksumMismatch, "full_serial", s)
	}

	strain := StrainCode(atoi(s[2:5]))
	if strain.Family() == 0 {
		return FullSerial{}, newError(ErrInvalidStrainFamily, "strain_code", s[2:5])
	}
	bt := BatchType(atoi(s[5:7]))
	if !bt.Valid() {
		return FullSerial{}, newError(ErrInvalidBatchType, "batch_type", s[5:7])
	}
	date, err := decodeDate(s[7:15])
	if err != nil {
		return FullSerial{}, err
	}

	out := FullSerial{
		Site:          SiteID(atoi(s[0:2])),
		Strain:        strain,
		BatchType:     bt,
		Date:          date,
		BatchSequence: atoi(s[15:19]),
		UnitSequence:  atoi(s[19:24]),
		WeightTenths:  atoi(s[24:28]),
		PackSize:      PackSize(atoi(s[28:29])),
	}
	if !out.Site.Valid() {
		return FullSerial{}, OutOfRange("site_id", s[0:2])
	}
	if out.BatchSequence < 1 {
		return FullSerial{}, OutOfRange("batch_sequence", s[15:19])
	}
	if out.UnitSequence < 1 {
		return FullSerial{}, OutOfRange("unit_sequence", s[19:24])
	}
	return out, nil
}

// VerifyFullSerial reports whether s has the right length and a matching
// check digit. It does not look at the fields.
func VerifyFullSerial(s string) bool {
	return len(s) == FullSerialLength && checksum.Verify(s)
}
