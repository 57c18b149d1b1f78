package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"antroute/internal/api"
	"antroute/internal/model"
	"antroute/internal/opt"
)

const fiveJSON = `{
  "name": "five",
  "capacity": 6,
  "optimalCost": 30,
  "vertices": [
    {"id": 0, "x": 0, "y": 0, "depot": true},
    {"id": 1, "x": 0, "y": 3, "demand": 1},
    {"id": 2, "x": 4, "y": 3, "demand": 2},
    {"id": 3, "x": 4, "y": 0, "demand": 3},
    {"id": 4, "x": 8, "y": 0, "demand": 4}
  ]
}`

func TestSolveWritesProgressAndSummary(t *testing.T) {
	dir := t.TempDir()
	inst := filepath.Join(dir, "five.json")
	if err := os.WriteFile(inst, []byte(fiveJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	progress := filepath.Join(dir, "progress.json")
	out := filepath.Join(dir, "run.json")
	t.Setenv("SOLVER_CONFIG", "")

	args := []string{"solve", "--instance", inst, "--algorithm", "aco-2opt", "--seed", "5",
		"--ants", "4", "--iterations", "6", "--progress", progress, "--out", out, "--quiet",
		"--config", filepath.Join(dir, "missing-ok.yaml")}
	// an explicit config path must exist
	if err := newApp().Run(args); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
	args = args[:len(args)-2]
	if err := newApp().Run(args); err != nil {
		t.Fatalf("run: %v", err)
	}

	var pts []model.ProgressPoint
	b, err := os.ReadFile(progress)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(b, &pts); err != nil || len(pts) != 6 {
		t.Fatalf("progress: %d points, err %v", len(pts), err)
	}

	var run model.Run
	b, err = os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(b, &run); err != nil {
		t.Fatal(err)
	}
	if run.Algorithm != opt.AlgorithmACO2Opt || run.RouteCount < 2 || run.Status != model.RunCompleted {
		t.Fatalf("summary: %+v", run)
	}
}

func TestSolveRequiresInstance(t *testing.T) {
	if err := newApp().Run([]string{"solve"}); err == nil {
		t.Fatal("expected error without --instance")
	}
}

func TestPrintSolution(t *testing.T) {
	var in model.InstanceIn
	if err := json.Unmarshal([]byte(fiveJSON), &in); err != nil {
		t.Fatal(err)
	}
	inst, err := api.BuildInstance(in)
	if err != nil {
		t.Fatal(err)
	}
	sol, err := opt.NewGreedy().Solve(context.Background(), inst)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	printSolution(&buf, sol)
	want := "Route #1: 1 2 3\nRoute #2: 4\nCost 30.00\n"
	if got := buf.String(); !strings.HasPrefix(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}
