package storage

import (
	"context"
	"errors"
	"time"
)

// ErrStorage marks failures of the persistence medium itself, as opposed to
// an empty result. Callers match it with errors.Is.
var ErrStorage = errors.New("storage unavailable")

// Observation is a single price/volatility reading for a symbol. ID is a
// surrogate key used only to break timestamp ties and is never exposed.
type Observation struct {
	ID        uint      `json:"-"`
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	ATR       float64   `json:"atr"`
	Timestamp time.Time `json:"timestamp"`
}

// ExitPrice is the derived stop-loss level, one ATR below the current price.
// It is computed on read and never persisted.
func (o Observation) ExitPrice() float64 {
	return o.Price - o.ATR
}

// Store is an append-only log of observations. Implementations must be safe
// for concurrent use: appends are atomic, and reads see every append that
// committed before the read began. Inputs are assumed validated; the store
// assigns ID and Timestamp itself.
type Store interface {
	// Append durably records an observation and returns it with the
	// store-assigned ID and Timestamp.
	Append(ctx context.Context, symbol string, price, atr float64) (Observation, error)

	// LatestPerSymbol returns one observation per distinct symbol, the one
	// with the highest (Timestamp, ID), ordered by Timestamp descending.
	// No data yields an empty slice, not an error.
	LatestPerSymbol(ctx context.Context) ([]Observation, error)

	// All returns observations ordered by Timestamp descending, capped at
	// limit rows when limit > 0.
	All(ctx context.Context, limit int) ([]Observation, error)
}
