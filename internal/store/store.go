package store

import (
	"context"
	"errors"
	"time"

	"antroute/internal/model"
)

// Store persists runs, their progress trace and queued callbacks.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.Run) (model.Run, error)
	CompleteRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, error)
	ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error)

	// Progress
	SaveProgress(ctx context.Context, runID string, points []model.ProgressPoint) error
	ListProgress(ctx context.Context, runID string) ([]model.ProgressPoint, error)

	// Callback deliveries
	EnqueueDelivery(ctx context.Context, runID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueDeliveries(ctx context.Context, limit int) ([]Delivery, error)
	MarkDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListDeliveries(ctx context.Context, runID string) ([]Delivery, error)

	Ping(ctx context.Context) error
}

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("already exists")
	// ErrBadCursor is returned by ListRuns for a cursor naming no run.
	ErrBadCursor = errors.New("unknown cursor")
)

const (
	DeliveryPending   = "pending"
	DeliveryRetry     = "retry"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)
