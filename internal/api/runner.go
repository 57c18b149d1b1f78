package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"antroute/internal/buildinfo"
	"antroute/internal/cvrp"
	"antroute/internal/metrics"
	"antroute/internal/model"
	"antroute/internal/opt"
)

const (
	eventProgress  = "progress"
	eventCompleted = "completed"
)

// pendingRun is a validated request ready to be solved.
type pendingRun struct {
	run    model.Run
	inst   *cvrp.Instance
	solver opt.Solver
	plog   *opt.ProgressLog
}

// prepareRun validates req, builds the solver and records the run as running.
func (s *Server) prepareRun(ctx context.Context, req model.RunRequest) (*pendingRun, error) {
	inst, err := BuildInstance(req.Instance)
	if err != nil {
		return nil, err
	}
	alg, p, mm, err := ResolveParams(s.Config.Solver, req)
	if err != nil {
		return nil, err
	}
	seed := req.Seed
	if seed == 0 {
		seed = s.Config.Solver.Seed
	}
	workers := req.Workers
	if workers == 0 {
		workers = s.Config.Solver.Workers
	}

	pr := &pendingRun{inst: inst}
	pr.plog = &opt.ProgressLog{Sink: s.saveProgress}
	solver, err := opt.New(alg, p, mm,
		opt.WithSeed(seed),
		opt.WithWorkers(workers),
		opt.WithObserver(pr.plog),
		opt.WithLogger(s.Logger),
		opt.WithResetHook(func(int) { metrics.PheromoneResets.Inc() }),
	)
	if err != nil {
		return nil, err
	}
	eng, isEngine := solver.(*opt.Engine)
	if isEngine && (req.AntsPerVertex || s.Config.Solver.AntsPerVertex) {
		eng.SetAntCount(inst.Graph.VertexCount())
	}
	pr.solver = solver

	run := model.Run{
		ID:             req.RunName,
		Name:           req.RunName,
		Status:         model.RunRunning,
		Algorithm:      alg,
		Instance:       inst.Name,
		VertexCount:    inst.Graph.VertexCount(),
		Seed:           seed,
		OptimalCost:    req.Instance.OptimalCost,
		Host:           buildinfo.Host(),
		CallbackURL:    req.CallbackURL,
		CallbackSecret: req.CallbackSecret,
	}
	if isEngine {
		run.Params = effectiveParams(eng.Params(), alg, mm, workers)
	}
	run, err = s.Store.CreateRun(ctx, run)
	if err != nil {
		return nil, err
	}
	pr.run = run
	pr.plog.OnRecord = func(pt opt.Progress) {
		metrics.SolverIterations.WithLabelValues(alg).Inc()
		s.Broker.Publish(run.ID, model.ProgressEvent{RunID: run.ID, Type: eventProgress, ProgressPoint: toPoint(pt)})
	}
	return pr, nil
}

func effectiveParams(p opt.Params, alg string, mm opt.MaxMinParams, workers int) model.SolverParams {
	sp := model.SolverParams{
		AntCount:         p.AntCount,
		MaxIterations:    p.MaxIterations,
		Alpha:            p.Alpha,
		Beta:             p.Beta,
		EvaporationRate:  p.EvaporationRate,
		Q:                p.Q,
		InitialPheromone: p.InitialPheromone,
		Workers:          workers,
	}
	if alg == opt.AlgorithmMaxMin || alg == opt.AlgorithmMaxMin2Opt {
		lo, hi := mm.Bounds(p)
		dgb, limit := mm.DepositGlobalBest, mm.StagnationLimit
		sp.PheromoneMin, sp.PheromoneMax = &lo, &hi
		sp.DepositGlobalBest, sp.StagnationLimit = &dgb, &limit
	}
	return sp
}

// start runs pr in the background bounded by the configured run timeout.
func (s *Server) start(pr *pendingRun) {
	ctx, cancel := s.runContext()
	s.track(pr.run.ID, cancel)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.execute(ctx, pr)
	}()
}

// solveNow runs pr on the caller's goroutine; cancelling ctx cancels the run.
func (s *Server) solveNow(ctx context.Context, pr *pendingRun) model.Run {
	rctx, cancel := s.runContext()
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	s.track(pr.run.ID, cancel)
	return s.execute(rctx, pr)
}

func (s *Server) runContext() (context.Context, context.CancelFunc) {
	if secs := s.Config.Solver.MaxRunSeconds; secs > 0 {
		return context.WithTimeout(context.Background(), time.Duration(secs)*time.Second)
	}
	return context.WithCancel(context.Background())
}

func (s *Server) execute(ctx context.Context, pr *pendingRun) model.Run {
	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()

	run := pr.run
	started := time.Now()
	sol, err := pr.solver.Solve(ctx, pr.inst)
	elapsed := time.Since(started)
	s.untrack(run.ID)
	run.ElapsedMs = elapsed.Milliseconds()

	switch {
	case err == nil:
		run.Status = model.RunCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		run.Status = model.RunCancelled
		run.Error = err.Error()
	default:
		run.Status = model.RunFailed
		run.Error = err.Error()
	}
	if sol != nil {
		summarize(&run, sol)
	}
	s.Logger.Printf("run=%s solver=%s instance=%q status=%s cost=%.2f routes=%d elapsed=%s",
		run.ID, run.Algorithm, run.Instance, run.Status, run.Cost, run.RouteCount, elapsed.Round(time.Millisecond))

	// the run context may already be done; persistence gets its own deadline
	pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pr.plog.Flush(pctx, run.ID); err != nil {
		s.Logger.Printf("run=%s flush progress: %v", run.ID, err)
	}
	now := time.Now().UTC()
	run.CompletedAt = &now
	if err := s.Store.CompleteRun(pctx, run); err != nil {
		s.Logger.Printf("run=%s complete: %v", run.ID, err)
	}
	metrics.ObserveRun(run.Algorithm, run.Status, elapsed.Seconds(), run.Cost)
	s.Broker.Publish(run.ID, model.ProgressEvent{RunID: run.ID, Type: eventCompleted, Status: run.Status,
		ProgressPoint: model.ProgressPoint{ElapsedMs: run.ElapsedMs, BestCost: run.Cost, BestRoutes: run.RouteCount}})
	if _, err := s.Pub.RunFinished(pctx, run); err != nil {
		s.Logger.Printf("run=%s enqueue callback: %v", run.ID, err)
	}
	return run
}

func summarize(run *model.Run, sol *cvrp.Solution) {
	run.Cost = sol.Cost()
	run.RouteCount = sol.RouteCount()
	run.Routes = sol.RouteIDs()
	run.AvgUtilization = sol.AverageUtilization()
	run.GapPercent = gapPercent(run.Cost, run.OptimalCost)
}

func gapPercent(cost float64, optimal *float64) *float64 {
	if optimal == nil || *optimal <= 0 {
		return nil
	}
	g := (cost - *optimal) / *optimal * 100
	return &g
}

func toPoint(p opt.Progress) model.ProgressPoint {
	return model.ProgressPoint{
		Iteration:  p.Iteration,
		ElapsedMs:  p.Elapsed.Milliseconds(),
		BestCost:   p.BestCost,
		BestRoutes: p.BestRoutes,
	}
}

func (s *Server) saveProgress(ctx context.Context, runID string, records []opt.Progress) error {
	pts := make([]model.ProgressPoint, len(records))
	for i, r := range records {
		pts[i] = toPoint(r)
	}
	if err := s.Store.SaveProgress(ctx, runID, pts); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}
