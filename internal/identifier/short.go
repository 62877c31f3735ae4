package identifier

import "time"

// Short serial layout: SS YYMMDD NNNNN. It carries no check digit, so a
// structurally valid short serial is only trustworthy once it resolves
// through the mapping store.

// shortCentury is the century short serial years are read in.
const shortCentury = 2000

// EncodeShortSerial renders a 13-digit short serial.
func EncodeShortSerial(site SiteID, date time.Time, sequence int) (string, error) {
	if !site.Valid() {
		return "", OutOfRange("site_id", int(site))
	}
	if date.IsZero() {
		return "", OutOfRange("date", "zero date")
	}
	y, m, d := date.Date()
	if y < shortCentury || y > shortCentury+99 {
		return "", OutOfRange("date", y)
	}
	if sequence < 1 || sequence > MaxShortSequence {
		return "", OutOfRange("short_sequence", sequence)
	}
	return pad(int(site), 2) + pad(y-shortCentury, 2) + pad(int(m), 2) + pad(d, 2) + pad(sequence, 5), nil
}

// DecodeShortSerial parses the structure of a short serial.
func DecodeShortSerial(s string) (ShortSerial, error) {
	if len(s) != ShortSerialLength || !isDigits(s) {
		return ShortSerial{}, newError(ErrInvalidLength, "short_serial", s)
	}
	date, ok := civilDate(shortCentury+atoi(s[2:4]), atoi(s[4:6]), atoi(s[6:8]))
	if !ok {
		return ShortSerial{}, newError(ErrInvalidDate, "date", s[2:8])
	}

	out := ShortSerial{
		Site:     SiteID(atoi(s[0:2])),
		Date:     date,
		Sequence: atoi(s[8:13]),
	}
	if !out.Site.Valid() {
		return ShortSerial{}, OutOfRange("site_id", s[0:2])
	}
	if out.Sequence < 1 {
		return ShortSerial{}, OutOfRange("short_sequence", s[8:13])
	}
	return out, nil
}

// String returns the encoded short serial, or an empty string when the
// record cannot be encoded.
func (s ShortSerial) String() string {
	out, err := EncodeShortSerial(s.Site, s.Date, s.Sequence)
	if err != nil {
		return ""
	}
	return out
}
