//go:build postgres_integration

package store

import (
	"context"
	"os"
	"testing"

	"antroute/internal/model"
)

func TestPostgresRunLifecycle(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer p.Close()
	ctx := context.Background()
	if err := p.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := p.MigrateDir("../../db/migrations"); err != nil {
		t.Fatalf("MigrateDir: %v", err)
	}

	run, err := p.CreateRun(ctx, model.Run{Algorithm: "greedy", Instance: "it"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	run.Status = model.RunCompleted
	run.Cost = 42
	run.Routes = [][]int{{0, 1, 2}}
	if err := p.CompleteRun(ctx, run); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}
	if err := p.SaveProgress(ctx, run.ID, []model.ProgressPoint{{Iteration: 0, BestCost: 42, BestRoutes: 1}}); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}
	got, err := p.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Cost != 42 || len(got.Routes) != 1 {
		t.Fatalf("unexpected run %+v", got)
	}
	pts, err := p.ListProgress(ctx, run.ID)
	if err != nil || len(pts) != 1 {
		t.Fatalf("ListProgress: %v %v", pts, err)
	}
	id, err := p.EnqueueDelivery(ctx, run.ID, "run.completed", "http://example.invalid/hook", "s", []byte(`{"id":"evt_it"}`))
	if err != nil {
		t.Fatalf("EnqueueDelivery: %v", err)
	}
	again, err := p.EnqueueDelivery(ctx, run.ID, "run.completed", "http://example.invalid/hook", "s", []byte(`{"id":"evt_it"}`))
	if err != nil || again != id {
		t.Fatalf("duplicate enqueue should return %s, got %s (%v)", id, again, err)
	}
}
