package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"antroute/internal/model"
)

func TestMemoryRunLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	run, err := m.CreateRun(ctx, model.Run{Algorithm: "aco", Instance: "E-n22-k4"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.ID == "" || run.Status != model.RunRunning || run.CreatedAt.IsZero() {
		t.Fatalf("defaults not applied: %+v", run)
	}
	if _, err := m.CreateRun(ctx, model.Run{ID: run.ID}); !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}

	run.Status = model.RunCompleted
	run.Cost = 375.3
	if err := m.CompleteRun(ctx, run); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}
	got, err := m.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != model.RunCompleted || got.CompletedAt == nil || got.Cost != 375.3 {
		t.Fatalf("unexpected run %+v", got)
	}

	if _, err := m.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := m.CompleteRun(ctx, model.Run{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryListRunsPaging(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if _, err := m.CreateRun(ctx, model.Run{ID: id}); err != nil {
			t.Fatalf("CreateRun %s: %v", id, err)
		}
	}
	page, next, _ := m.ListRuns(ctx, "", 2)
	if len(page) != 2 || page[0].ID != "e" || page[1].ID != "d" || next != "d" {
		t.Fatalf("first page: %v next=%q", ids(page), next)
	}
	page, next, _ = m.ListRuns(ctx, next, 2)
	if len(page) != 2 || page[0].ID != "c" || next != "b" {
		t.Fatalf("second page: %v next=%q", ids(page), next)
	}
	page, next, _ = m.ListRuns(ctx, next, 2)
	if len(page) != 1 || page[0].ID != "a" || next != "" {
		t.Fatalf("last page: %v next=%q", ids(page), next)
	}
	if page, _, err := m.ListRuns(ctx, "missing", 2); !errors.Is(err, ErrBadCursor) || len(page) != 0 {
		t.Fatalf("unknown cursor: want ErrBadCursor and no items, got %v %v", ids(page), err)
	}
}

func ids(rs []model.Run) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestMemoryProgress(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.SaveProgress(ctx, "nope", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	run, _ := m.CreateRun(ctx, model.Run{})
	pts := []model.ProgressPoint{{Iteration: 0, BestCost: 10}, {Iteration: 1, BestCost: 9}}
	if err := m.SaveProgress(ctx, run.ID, pts); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}
	pts[0].BestCost = 0
	got, err := m.ListProgress(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListProgress: %v", err)
	}
	if len(got) != 2 || got[0].BestCost != 10 {
		t.Fatalf("progress must be copied on save: %+v", got)
	}
}

func TestMemoryDeliveryQueue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	body := []byte(`{"id":"evt_1"}`)
	id, err := m.EnqueueDelivery(ctx, "run1", "run.completed", "http://hook", "s3cret", body)
	if err != nil {
		t.Fatalf("EnqueueDelivery: %v", err)
	}
	if again, _ := m.EnqueueDelivery(ctx, "run1", "run.completed", "http://hook", "s3cret", body); again != id {
		t.Fatalf("duplicate event should dedup to %s, got %s", id, again)
	}

	due, _ := m.FetchDueDeliveries(ctx, 10)
	if len(due) != 1 || due[0].Secret != "s3cret" {
		t.Fatalf("want one due delivery, got %+v", due)
	}

	later := time.Now().Add(time.Hour)
	if err := m.MarkDelivery(ctx, id, false, &later, "boom", 500, 12); err != nil {
		t.Fatalf("MarkDelivery: %v", err)
	}
	if due, _ := m.FetchDueDeliveries(ctx, 10); len(due) != 0 {
		t.Fatalf("retry scheduled in the future must not be due: %+v", due)
	}

	if err := m.FailDelivery(ctx, id, "gave up", 500, 10); err != nil {
		t.Fatalf("FailDelivery: %v", err)
	}
	list, _ := m.ListDeliveries(ctx, "run1")
	if len(list) != 1 || list[0].Status != DeliveryFailed || list[0].Attempts != 2 {
		t.Fatalf("unexpected deliveries %+v", list)
	}
	if err := m.MarkDelivery(ctx, "missing", true, nil, "", 200, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
