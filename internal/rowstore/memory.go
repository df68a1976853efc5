package rowstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/odyssey-erp/gudang/internal/shared"
)

// Memory keeps tables in process, preserving append order.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]Row
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]Row)}
}

func (m *Memory) List(_ context.Context, table string) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.tables[table]
	out := make([]Row, len(rows))
	for i, row := range rows {
		out[i] = row.Clone()
	}
	return out, nil
}

func (m *Memory) Append(_ context.Context, table string, rows []Row) error {
	if table == "" {
		return fmt.Errorf("%w: rowstore table required", shared.ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.tables[table] = append(m.tables[table], row.Clone())
	}
	return nil
}

func (m *Memory) Update(_ context.Context, table string, match Match, fields Row) (int, error) {
	if err := checkMatch(table, match); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	affected := 0
	for _, row := range m.tables[table] {
		if !match.Matches(row) {
			continue
		}
		for k, v := range fields {
			row[k] = v
		}
		affected++
	}
	return affected, nil
}

func (m *Memory) Delete(_ context.Context, table string, match Match) (int, error) {
	if err := checkMatch(table, match); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[table]
	kept := rows[:0]
	for _, row := range rows {
		if match.Matches(row) {
			continue
		}
		kept = append(kept, row)
	}
	affected := len(rows) - len(kept)
	m.tables[table] = kept
	return affected, nil
}
