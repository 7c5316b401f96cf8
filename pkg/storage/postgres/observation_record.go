package postgres

import (
	"time"

	"tvcollector/pkg/storage"
)

// ObservationRecord is the persisted form of a webhook observation. Rows are
// append-only; the composite index serves the latest-per-symbol read.
type ObservationRecord struct {
	ID uint `gorm:"primaryKey"`

	Symbol string `gorm:"type:text;not null;index:idx_observation_symbol_timestamp,priority:1"`

	Price float64 `gorm:"type:numeric;not null"`
	ATR   float64 `gorm:"column:atr;type:numeric;not null"`

	Timestamp time.Time `gorm:"not null;autoCreateTime;index:idx_observation_symbol_timestamp,priority:2,sort:desc"`
}

// TableName overrides the default table name for GORM.
func (ObservationRecord) TableName() string {
	return "observation"
}

func (r ObservationRecord) toObservation() storage.Observation {
	return storage.Observation{
		ID:        r.ID,
		Symbol:    r.Symbol,
		Price:     r.Price,
		ATR:       r.ATR,
		Timestamp: r.Timestamp,
	}
}

func toObservations(records []ObservationRecord) []storage.Observation {
	out := make([]storage.Observation, 0, len(records))
	for _, r := range records {
		out = append(out, r.toObservation())
	}
	return out
}
