package identifier

// Batch number layout: SS TT YYYYMMDD NNNN.

// Validate checks every field against its fixed width and domain.
func (b BatchNumber) Validate() error {
	if !b.Site.Valid() {
		return OutOfRange("site_id", int(b.Site))
	}
	if !b.Type.Valid() {
		return OutOfRange("batch_type", int(b.Type))
	}
	if b.Sequence < 1 || b.Sequence > MaxBatchSequence {
		return OutOfRange("sequence", b.Sequence)
	}
	if _, err := encodeDate("date", b.Date); err != nil {
		return err
	}
	return nil
}

// String returns the encoded batch number, or an empty string when the
// record cannot be encoded.
func (b BatchNumber) String() string {
	s, err := EncodeBatch(b)
	if err != nil {
		return ""
	}
	return s
}

// EncodeBatch renders b as a 16-digit batch number.
func EncodeBatch(b BatchNumber) (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}
	date, _ := encodeDate("date", b.Date)
	return pad(int(b.Site), 2) + pad(int(b.Type), 2) + date + pad(b.Sequence, 4), nil
}

// DecodeBatch parses a 16-digit batch number. It is the exact inverse of
// EncodeBatch.
func DecodeBatch(s string) (BatchNumber, error) {
	if len(s) != BatchNumberLength || !isDigits(s) {
		return BatchNumber{}, newError(ErrInvalidLength, "batch_number", s)
	}

	bt := BatchType(atoi(s[2:4]))
	if !bt.Valid() {
		return BatchNumber{}, newError(ErrInvalidBatchType, "batch_type", s[2:4])
	}
	date, err := decodeDate(s[4:12])
	if err != nil {
		return BatchNumber{}, err
	}

	b := BatchNumber{
		Site:     SiteID(atoi(s[0:2])),
		Type:     bt,
		Date:     date,
		Sequence: atoi(s[12:16]),
	}
	if !b.Site.Valid() {
		return BatchNumber{}, OutOfRange("site_id", s[0:2])
	}
	if b.Sequence < 1 {
		return BatchNumber{}, OutOfRange("sequence", s[12:16])
	}
	return b, nil
}
