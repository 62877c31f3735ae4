// Package checksum computes and verifies the Luhn check digit carried by
// full serial numbers.
package checksum

import (
	"github.com/pkg/errors"
)

// ErrNotDigits is returned when the input holds anything but ASCII digits.
var ErrNotDigits = errors.New("checksum input must contain only digits")

// Compute returns the check digit for payload. The digit immediately left of
// the check position (the last payload digit) is the first one doubled.
func Compute(payload string) (int, error) {
	if len(payload) == 0 {
		return 0, errors.Wrap(ErrNotDigits, "empty payload")
	}

	sum := 0
	double := true
	for i := len(payload) - 1; i >= 0; i-- {
		c := payload[i]
		if c < '0' || c > '9' {
			return 0, errors.Wrapf(ErrNotDigits, "unexpected %q at position %d", c, i)
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	return (10 - sum%10) % 10, nil
}

// Append returns payload followed by its check digit.
func Append(payload string) (string, error) {
	digit, err := Compute(payload)
	if err != nil {
		return "", err
	}
	return payload + string(rune('0'+digit)), nil
}

// Verify reports whether the last digit of s is the check digit of the
// digits before it.
func Verify(s string) bool {
	if len(s) < 2 {
		return false
	}
	last := s[len(s)-1]
	if last < '0' || last > '9' {
		return false
	}
	digit, err := Compute(s[:len(s)-1])
	if err != nil {
		return false
	}
	return digit == int(last-'0')
}
