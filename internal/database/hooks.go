package database

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/backstage/services/identifier/internal/metrics"
)

const startTimeKey = "metrics:start_time"

// RegisterHooks records the duration and outcome of every gorm operation
func RegisterHooks(db *gorm.DB, collector *metrics.Metrics) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(startTimeKey, time.Now())
	}
	after := func(queryType string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			ok := tx.Error == nil || errors.Is(tx.Error, gorm.ErrRecordNotFound)
			collector.RecordDatabaseQuery(queryType, ok, getDuration(tx))
		}
	}

	cb := db.Callback()
	regs := []error{
		cb.Create().Before("gorm:create").Register("duration:create", before),
		cb.Create().After("gorm:create").Register("metrics:create", after(metrics.DBQueryTypeInsert)),
		cb.Query().Before("gorm:query").Register("duration:query", before),
		cb.Query().After("gorm:query").Register("metrics:query", after(metrics.DBQueryTypeSelect)),
		cb.Update().Before("gorm:update").Register("duration:update", before),
		cb.Update().After("gorm:update").Register("metrics:update", after(metrics.DBQueryTypeUpdate)),
		cb.Delete().Before("gorm:delete").Register("duration:delete", before),
		cb.Delete().After("gorm:delete").Register("metrics:delete", after(metrics.DBQueryTypeDelete)),
		cb.Raw().Before("gorm:raw").Register("duration:raw", before),
		cb.Raw().After("gorm:raw").Register("metrics:raw", after(metrics.DBQueryTypeRaw)),
		cb.Row().Before("gorm:row").Register("duration:row", before),
		cb.Row().After("gorm:row").Register("metrics:row", after(metrics.DBQueryTypeRaw)),
	}
	for _, err := range regs {
		if err != nil {
			return errors.Wrap(err, "failed to register gorm metrics hooks")
		}
	}
	return nil
}

func getDuration(tx *gorm.DB) time.Duration {
	if start, ok := tx.InstanceGet(startTimeKey); ok {
		return time.Since(start.(time.Time))
	}
	return 0
}
