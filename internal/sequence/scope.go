package sequence

import (
	"fmt"
	"time"

	"example.com/backstage/services/identifier/internal/identifier"
)

// Scope names an independent counter. Two different scopes never share a
// value space or a lock.
type Scope string

// BatchScope is the counter for batches of one type at one site on one day.
func BatchScope(site identifier.SiteID, batchType identifier.BatchType, date time.Time) Scope {
	return Scope(fmt.Sprintf("batch:%02d:%02d:%s", int(site), int(batchType), identifier.FormatDate(date)))
}

// UnitScope is the counter for units inside one batch.
func UnitScope(batchNumber string) Scope {
	return Scope("unit:" + batchNumber)
}

// ShortScope is the counter for short serials at one site on one day.
func ShortScope(site identifier.SiteID, date time.Time) Scope {
	return Scope(fmt.Sprintf("short:%02d:%s", int(site), identifier.FormatDate(date)))
}

func (s Scope) String() string {
	return string(s)
}
