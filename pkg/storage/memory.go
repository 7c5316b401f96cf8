package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps observations in process memory. It backs tests and
// DB-less local runs with the same contract as the Postgres store.
type MemoryStore struct {
	mu           sync.Mutex
	observations []Observation
	nextID       uint
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		observations: make([]Observation, 0),
		nextID:       1,
		now:          time.Now,
	}
}

func (m *MemoryStore) Append(ctx context.Context, symbol string, price, atr float64) (Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obs := Observation{
		ID:        m.nextID,
		Symbol:    symbol,
		Price:     price,
		ATR:       atr,
		Timestamp: m.now(),
	}
	m.nextID++
	m.observations = append(m.observations, obs)
	return obs, nil
}

func (m *MemoryStore) LatestPerSymbol(ctx context.Context) ([]Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	latest := make(map[string]Observation, len(m.observations))
	for _, obs := range m.observations {
		cur, ok := latest[obs.Symbol]
		if !ok || obs.Timestamp.After(cur.Timestamp) ||
			(obs.Timestamp.Equal(cur.Timestamp) && obs.ID > cur.ID) {
			latest[obs.Symbol] = obs
		}
	}

	out := make([]Observation, 0, len(latest))
	for _, obs := range latest {
		out = append(out, obs)
	}
	sortByTimestampDesc(out)
	return out, nil
}

func (m *MemoryStore) All(ctx context.Context, limit int) ([]Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy to avoid race
	out := make([]Observation, len(m.observations))
	copy(out, m.observations)
	sortByTimestampDesc(out)

	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the total number of stored observations.
func (m *MemoryStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.observations)
}

func sortByTimestampDesc(obs []Observation) {
	sort.Slice(obs, func(i, j int) bool {
		if !obs[i].Timestamp.Equal(obs[j].Timestamp) {
			return obs[i].Timestamp.After(obs[j].Timestamp)
		}
		return obs[i].ID > obs[j].ID
	})
}
