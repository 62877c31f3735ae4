package repositories

import (
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// isDuplicateKey reports whether err is a unique constraint violation. Drivers
// that do not translate their errors are matched on the message.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
