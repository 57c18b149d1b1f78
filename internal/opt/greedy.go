package opt

import (
	"context"
	"fmt"
	"log"
	"sort"

	"antroute/internal/cvrp"
	"antroute/internal/graph"
)

// Greedy is the nearest-feasible-neighbour heuristic. It is deterministic and
// ignores pheromone.
type Greedy struct {
	observer ProgressObserver
	logger   *log.Logger
}

func NewGreedy(opts ...Option) *Greedy {
	e := &Engine{}
	for _, o := range opts {
		o(e)
	}
	return &Greedy{observer: e.observer, logger: e.logger}
}

func (g *Greedy) Name() string { return AlgorithmGreedy }

// Solve extends the open route with the closest unvisited customer that keeps
// it feasible, closing the route and opening a new one when none fits. Ties in
// distance keep graph insertion order.
func (g *Greedy) Solve(ctx context.Context, in *cvrp.Instance) (*cvrp.Solution, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	start := nowFunc()
	unvisited := in.Graph.Customers()
	var routes []*cvrp.Route

	for len(unvisited) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		route, err := in.NewRoute()
		if err != nil {
			return nil, err
		}
		for len(unvisited) > 0 {
			next := nearestFeasible(in.Graph, route, unvisited)
			if next == nil {
				break
			}
			if err := route.Append(next); err != nil {
				return nil, err
			}
			unvisited = removeVertex(unvisited, next.ID)
		}
		if route.CustomerCount() == 0 {
			// Validate rules this out; guard against looping forever anyway
			return nil, fmt.Errorf("%w: no remaining customer fits an empty route", cvrp.ErrUnservableCustomer)
		}
		routes = append(routes, route)
	}

	sol := cvrp.NewSolution(in.Graph, routes)
	if err := sol.Validate(); err != nil {
		return nil, err
	}
	if g.observer != nil {
		g.observer.RecordIteration(Progress{Elapsed: nowFunc().Sub(start), BestCost: sol.Cost(), BestRoutes: sol.RouteCount()})
	}
	if g.logger != nil {
		g.logger.Printf("solver=%s instance=%q cost=%.2f routes=%d", AlgorithmGreedy, in.Name, sol.Cost(), sol.RouteCount())
	}
	return sol, nil
}

func nearestFeasible(g *graph.Graph, route *cvrp.Route, unvisited []*graph.Vertex) *graph.Vertex {
	from := route.Last().ID
	byDistance := append([]*graph.Vertex(nil), unvisited...)
	sort.SliceStable(byDistance, func(i, j int) bool {
		return g.Distance(from, byDistance[i].ID) < g.Distance(from, byDistance[j].ID)
	})
	for _, c := range byDistance {
		if fits(route, c) {
			return c
		}
	}
	return nil
}
