package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"antroute/internal/model"
)

// Memory is the store used when no DATABASE_URL is set.
type Memory struct {
	mu         sync.Mutex
	runs       map[string]model.Run
	runOrder   []string // creation order, newest last
	progress   map[string][]model.ProgressPoint
	deliveries map[string]*Delivery
	delOrder   []string
	dedup      map[string]string // runID|eventType|url|key -> delivery id
}

func NewMemory() *Memory {
	return &Memory{
		runs:       map[string]model.Run{},
		progress:   map[string][]model.ProgressPoint{},
		deliveries: map[string]*Delivery{},
		dedup:      map[string]string{},
	}
}

func (m *Memory) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if _, ok := m.runs[run.ID]; ok {
		return model.Run{}, fmt.Errorf("run %s: %w", run.ID, ErrConflict)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = model.RunRunning
	}
	m.runs[run.ID] = run
	m.runOrder = append(m.runOrder, run.ID)
	return run, nil
}

func (m *Memory) CompleteRun(ctx context.Context, run model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.runs[run.ID]
	if !ok {
		return ErrNotFound
	}
	run.CreatedAt = prev.CreatedAt
	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return model.Run{}, ErrNotFound
	}
	return r, nil
}

// ListRuns pages newest first; the cursor is the id of the last item returned.
func (m *Memory) ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	start := len(m.runOrder) - 1
	if cursor != "" {
		found := false
		for i := len(m.runOrder) - 1; i >= 0; i-- {
			if m.runOrder[i] == cursor {
				start, found = i-1, true
				break
			}
		}
		if !found {
			return nil, "", fmt.Errorf("cursor %q: %w", cursor, ErrBadCursor)
		}
	}
	out := []model.Run{}
	i := start
	for ; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[m.runOrder[i]])
	}
	next := ""
	if i >= 0 && len(out) > 0 {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) SaveProgress(ctx context.Context, runID string, points []model.ProgressPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return ErrNotFound
	}
	m.progress[runID] = append([]model.ProgressPoint(nil), points...)
	return nil
}

func (m *Memory) ListProgress(ctx context.Context, runID string) ([]model.ProgressPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return nil, ErrNotFound
	}
	return append([]model.ProgressPoint{}, m.progress[runID]...), nil
}

func (m *Memory) EnqueueDelivery(ctx context.Context, runID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := runID + "|" + eventType + "|" + url + "|" + dedupKey(payload)
	if id, ok := m.dedup[key]; ok {
		return id, nil
	}
	id := uuid.New().String()
	m.deliveries[id] = &Delivery{
		ID: id, RunID: runID, EventType: eventType, URL: url, Secret: secret,
		Payload: payload, Status: DeliveryPending, NextAttemptAt: time.Now(),
	}
	m.delOrder = append(m.delOrder, id)
	m.dedup[key] = id
	return id, nil
}

func (m *Memory) FetchDueDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []Delivery{}
	for _, id := range m.delOrder {
		d := m.deliveries[id]
		if (d.Status == DeliveryPending || d.Status == DeliveryRetry) && !d.NextAttemptAt.After(now) {
			out = append(out, *d)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = DeliveryDelivered
		d.LastError = ""
		return nil
	}
	d.Status = DeliveryRetry
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.NextAttemptAt = time.Now().Add(time.Minute)
	}
	return nil
}

func (m *Memory) FailDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = DeliveryFailed
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	return nil
}

func (m *Memory) ListDeliveries(ctx context.Context, runID string) ([]Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Delivery{}
	for _, id := range m.delOrder {
		if d := m.deliveries[id]; d.RunID == runID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
