package webhooks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"antroute/internal/model"
	"antroute/internal/store"
)

const EventRunCompleted = "run.completed"

type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// RunFinished enqueues a run.completed callback when the run asked for one.
// It returns the delivery id, or "" when nothing was enqueued.
func (p *Publisher) RunFinished(ctx context.Context, run model.Run) (string, error) {
	if run.CallbackURL == "" {
		return "", nil
	}
	evt := model.RunCompletedEvent{
		ID:         "evt_" + uuid.New().String(),
		Type:       EventRunCompleted,
		RunID:      run.ID,
		Status:     run.Status,
		Algorithm:  run.Algorithm,
		Cost:       run.Cost,
		RouteCount: run.RouteCount,
		GapPercent: run.GapPercent,
		OccurredAt: time.Now().UTC(),
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return "", err
	}
	return p.Store.EnqueueDelivery(ctx, run.ID, EventRunCompleted, run.CallbackURL, run.CallbackSecret, body)
}
