package identifier

import (
	"fmt"
	"time"
)

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// atoi parses a run of ASCII digits already checked by isDigits.
func atoi(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}

func pad(n, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}

func encodeDate(field string, t time.Time) (string, error) {
	if t.IsZero() {
		return "", OutOfRange(field, "zero date")
	}
	y, m, d := t.Date()
	if y < 1 || y > 9999 {
		return "", OutOfRange(field, y)
	}
	return pad(y, 4) + pad(int(m), 2) + pad(d, 2), nil
}

func decodeDate(s string) (time.Time, error) {
	t, ok := civilDate(atoi(s[0:4]), atoi(s[4:6]), atoi(s[6:8]))
	if !ok || t.Year() < 1 {
		return time.Time{}, newError(ErrInvalidDate, "date", s)
	}
	return t, nil
}

// FormatDate renders a date the way it is embedded in batch numbers.
func FormatDate(t time.Time) string {
	return t.Format("20060102")
}
