package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ppiankov/journeywatch/internal/model"
)

// Memory is a process-local Store. Data is lost on exit.
type Memory struct {
	mu     sync.RWMutex
	alerts map[string]*model.Alert
	order  []string
}

func NewMemory() *Memory {
	return &Memory{alerts: make(map[string]*model.Alert)}
}

func (m *Memory) FindRecentUnresolved(_ context.Context, journeyID, userID string, since time.Time) (*model.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *model.Alert
	for _, id := range m.order {
		a := m.alerts[id]
		if a.JourneyID != journeyID || a.UserID != userID || !a.Unresolved() || a.CreatedAt.Before(since) {
			continue
		}
		if best == nil || a.CreatedAt.After(best.CreatedAt) {
			best = a
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (m *Memory) Insert(_ context.Context, a model.Alert) (model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.alerts[a.ID]; exists {
		return model.Alert{}, fmt.Errorf("store: insert %s: duplicate id", a.ID)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	cp := a
	m.alerts[a.ID] = &cp
	m.order = append(m.order, a.ID)
	return a, nil
}

func (m *Memory) Get(_ context.Context, id string) (model.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.alerts[id]
	if !ok {
		return model.Alert{}, fmt.Errorf("store: get %s: %w", id, ErrNotFound)
	}
	return *a, nil
}

func (m *Memory) List(_ context.Context, f Filter) ([]model.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Alert
	for _, id := range m.order {
		if a := m.alerts[id]; f.match(a) {
			out = append(out, *a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > f.limit() {
		out = out[:f.limit()]
	}
	return out, nil
}

func (m *Memory) SetStatus(_ context.Context, id string, status model.AlertStatus, at time.Time) error {
	if !validStatus(status) {
		return fmt.Errorf("store: set status %s: invalid status %q", id, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return fmt.Errorf("store: set status %s: %w", id, ErrNotFound)
	}
	applyStatus(a, status, at)
	return nil
}

func (m *Memory) Close() error { return nil }
