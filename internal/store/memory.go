package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"agripulse-api/internal/models"
)

// Memory keeps records in process memory. Used for local development and
// tests; data does not survive a restart.
type Memory struct {
	mu      sync.RWMutex
	records []models.PriceRecord
	nextID  int
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Insert(ctx context.Context, rec *models.PriceRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	stored := *rec
	stored.ID = fmt.Sprintf("mem-%d", m.nextID)
	m.records = append(m.records, stored)
	return stored.ID, nil
}

func (m *Memory) Latest(ctx context.Context) (*models.PriceRecord, error) {
	recs, err := m.Recent(ctx, 1)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

func (m *Memory) Recent(ctx context.Context, limit int) ([]models.PriceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.PriceRecord, len(m.records))
	copy(out, m.records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
