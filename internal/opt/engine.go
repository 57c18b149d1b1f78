package opt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"antroute/internal/cvrp"
)

var ErrNoSolution = errors.New("opt: no feasible solution found")

var nowFunc = time.Now

// Engine is the ant colony loop shared by every variant. What differs between
// variants is the injected Refiner and PheromonePolicy.
//
// An Engine owns the pheromone field of the instance graph for the duration of
// Solve; concurrent Solve calls must use distinct graphs.
type Engine struct {
	name     string
	params   Params
	refiner  Refiner
	policy   PheromonePolicy
	seed     int64
	workers  int
	observer ProgressObserver
	logger   *log.Logger
	onReset  func(iteration int)
}

type Option func(*Engine)

// WithSeed fixes the run seed. Equal seeds give identical solutions.
func WithSeed(seed int64) Option { return func(e *Engine) { e.seed = seed } }

// WithWorkers bounds the number of ants built concurrently; <= 0 means GOMAXPROCS.
func WithWorkers(n int) Option { return func(e *Engine) { e.workers = n } }

func WithObserver(o ProgressObserver) Option { return func(e *Engine) { e.observer = o } }

// WithLogger enables "new best" and stagnation lines. Nil keeps the engine silent.
func WithLogger(l *log.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithResetHook is called after each stagnation reset of the pheromone field.
func WithResetHook(fn func(iteration int)) Option { return func(e *Engine) { e.onReset = fn } }

func newEngine(name string, p Params, r Refiner, pol PheromonePolicy, opts ...Option) *Engine {
	e := &Engine{name: name, params: p, refiner: r, policy: pol, seed: defaultSeed}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Name() string { return e.name }

func (e *Engine) Params() Params { return e.params }

func (e *Engine) SetParams(p Params) { e.params = p }

// SetAntCount overrides the colony size for the next Solve.
func (e *Engine) SetAntCount(n int) { e.params.AntCount = n }

func (e *Engine) Seed() int64 { return e.seed }

type antResult struct {
	sol  *cvrp.Solution
	cost float64
	err  error
}

// Solve runs MaxIterations iterations. If ctx is cancelled the best solution
// found so far is returned together with ctx.Err().
func (e *Engine) Solve(ctx context.Context, in *cvrp.Instance) (*cvrp.Solution, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p := e.params
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if mm, ok := e.policy.(*MaxMin); ok {
		if err := mm.Params.Validate(); err != nil {
			return nil, err
		}
	}
	workers := e.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g := in.Graph
	e.policy.Reset(g, p)
	start := nowFunc()
	results := make([]antResult, p.AntCount)

	var best *cvrp.Solution
	bestCost := math.Inf(1)

	for iter := 0; iter < p.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return best, err
		}

		var grp errgroup.Group
		grp.SetLimit(workers)
		for ant := 0; ant < p.AntCount; ant++ {
			ant := ant // per-iteration copy (Go <1.22 loop semantics)
			grp.Go(func() error {
				sol, err := constructSolution(in, p, antRand(e.seed, iter, ant))
				if err != nil {
					results[ant] = antResult{err: err}
					return nil
				}
				sol = e.refiner.Refine(sol)
				if err := sol.Validate(); err != nil {
					if cvrp.IsIntegrityViolation(err) {
						return fmt.Errorf("iteration %d ant %d: %w", iter, ant, err)
					}
					results[ant] = antResult{err: err}
					return nil
				}
				results[ant] = antResult{sol: sol, cost: sol.Cost()}
				return nil
			})
		}
		if err := grp.Wait(); err != nil {
			return best, err
		}

		it := Iteration{Index: iter, Solutions: make([]*cvrp.Solution, 0, len(results))}
		iterCost := math.Inf(1)
		for _, r := range results {
			if r.sol == nil {
				continue
			}
			it.Solutions = append(it.Solutions, r.sol)
			if r.cost < iterCost {
				it.Best, iterCost = r.sol, r.cost
			}
			if r.cost < bestCost {
				best, bestCost = r.sol.Clone(), r.cost
				it.Improved = true
			}
		}
		if it.Improved && e.logger != nil {
			e.logger.Printf("solver=%s instance=%q iter=%d new_best=%.2f routes=%d", e.name, in.Name, iter, bestCost, best.RouteCount())
		}
		it.GlobalBest = best

		if e.policy.Update(g, p, it) {
			if e.logger != nil {
				e.logger.Printf("solver=%s instance=%q iter=%d stagnation reset", e.name, in.Name, iter)
			}
			if e.onReset != nil {
				e.onReset(iter)
			}
		}

		if e.observer != nil {
			rec := Progress{Iteration: iter, Elapsed: nowFunc().Sub(start)}
			if best != nil {
				rec.BestCost, rec.BestRoutes = bestCost, best.RouteCount()
			}
			e.observer.RecordIteration(rec)
		}
		clear(results)
	}

	if best == nil {
		return nil, ErrNoSolution
	}
	return best, nil
}
