package postgres

import (
	"context"
	"fmt"

	"tvcollector/pkg/storage"
)

// Append inserts a new observation row. ID and Timestamp are assigned here;
// the insert either commits fully or fails with a wrapped storage.ErrStorage.
func (p *PostgresClient) Append(ctx context.Context, symbol string, price, atr float64) (storage.Observation, error) {
	record := &ObservationRecord{
		Symbol: symbol,
		Price:  price,
		ATR:    atr,
	}

	tx := p.DB.WithContext(ctx).Create(record)
	if tx.Error != nil {
		return storage.Observation{}, fmt.Errorf("%w: insert observation: %v", storage.ErrStorage, tx.Error)
	}

	return record.toObservation(), nil
}

// LatestPerSymbol returns the row with the highest (timestamp, id) for each
// distinct symbol, most recently updated symbol first.
func (p *PostgresClient) LatestPerSymbol(ctx context.Context) ([]storage.Observation, error) {
	var records []ObservationRecord

	err := p.DB.WithContext(ctx).Raw(`
		SELECT id, symbol, price, atr, timestamp FROM (
			SELECT DISTINCT ON (symbol) id, symbol, price, atr, timestamp
			FROM observation
			ORDER BY symbol, timestamp DESC, id DESC
		) latest
		ORDER BY timestamp DESC, id DESC
	`).Scan(&records).Error
	if err != nil {
		return nil, fmt.Errorf("%w: query latest per symbol: %v", storage.ErrStorage, err)
	}

	return toObservations(records), nil
}

// All returns observations ordered by timestamp descending, capped at limit
// rows when limit > 0.
func (p *PostgresClient) All(ctx context.Context, limit int) ([]storage.Observation, error) {
	var records []ObservationRecord

	q := p.DB.WithContext(ctx).Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("%w: query observations: %v", storage.ErrStorage, err)
	}

	return toObservations(records), nil
}
