package mapping

import (
	"example.com/backstage/services/identifier/internal/identifier"
	"example.com/backstage/services/identifier/internal/models"
)

// NewSerialMapping builds the stored form of a freshly encoded serial pair.
func NewSerialMapping(s identifier.FullSerial, full, short string) *models.SerialMapping {
	return &models.SerialMapping{
		ShortSerial:   short,
		FullSerial:    full,
		BatchNumber:   s.Batch().String(),
		SiteID:        int(s.Site),
		StrainCode:    int(s.Strain),
		StrainFamily:  s.Strain.Family().String(),
		BatchType:     int(s.BatchType),
		BatchDate:     identifier.Day(s.Date),
		BatchSequence: s.BatchSequence,
		UnitSequence:  s.UnitSequence,
		WeightTenths:  s.WeightTenths,
		PackSize:      int(s.PackSize),
	}
}

// NewBatchRecord builds the stored form of an issued batch number.
func NewBatchRecord(b identifier.BatchNumber, number string) *models.BatchRecord {
	return &models.BatchRecord{
		BatchNumber: number,
		SiteID:      int(b.Site),
		BatchType:   int(b.Type),
		BatchDate:   identifier.Day(b.Date),
		Sequence:    b.Sequence,
	}
}
