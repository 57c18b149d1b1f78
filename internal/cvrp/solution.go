package cvrp

import (
	"fmt"
	"math"

	"antroute/internal/graph"
)

// Solution is an ordered set of routes over one graph.
type Solution struct {
	g      *graph.Graph
	routes []*Route
}

// NewSolution snapshots the route slice; the routes themselves are shared.
func NewSolution(g *graph.Graph, routes []*Route) *Solution {
	return &Solution{g: g, routes: append([]*Route(nil), routes...)}
}

// SolutionFromRoutes reconstructs a solution from explicit vertex sequences,
// each starting at the depot. When statedCost is non-nil it must agree with the
// recomputed cost. Every failure wraps ErrFormatMismatch.
func SolutionFromRoutes(g *graph.Graph, capacity int, maxLength float64, routes [][]int, statedCost *float64) (*Solution, error) {
	built := make([]*Route, 0, len(routes))
	for i, ids := range routes {
		r, err := RouteFromIDs(g, ids, capacity, maxLength)
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i+1, err)
		}
		built = append(built, r)
	}
	s := NewSolution(g, built)
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormatMismatch, err)
	}
	if statedCost != nil && !costsAgree(*statedCost, s.Cost()) {
		return nil, fmt.Errorf("%w: stated cost %.4f, computed %.4f", ErrFormatMismatch, *statedCost, s.Cost())
	}
	return s, nil
}

func costsAgree(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= 1e-6*scale
}

// Cost is the sum of route lengths.
func (s *Solution) Cost() float64 {
	total := 0.0
	for _, r := range s.routes {
		total += r.Length()
	}
	return total
}

func (s *Solution) RouteCount() int { return len(s.routes) }

// Demand is the total demand served across all routes.
func (s *Solution) Demand() int {
	total := 0
	for _, r := range s.routes {
		total += r.Demand()
	}
	return total
}

// Routes returns the routes in order. Callers must not modify them.
func (s *Solution) Routes() []*Route { return s.routes }

func (s *Solution) Graph() *graph.Graph { return s.g }

// Validate checks every route is feasible and every customer is visited
// exactly once.
func (s *Solution) Validate() error {
	seen := make(map[int]int, s.g.VertexCount())
	for i, r := range s.routes {
		if !r.Valid() {
			return fmt.Errorf("%w: route %d demand=%d/%d length=%.2f/%g", ErrRouteInfeasible, i+1, r.Demand(), r.capacity, r.Length(), r.maxLength)
		}
		for _, v := range r.vertices[1:] {
			if prev, dup := seen[v.ID]; dup {
				return fmt.Errorf("%w: customer %d on routes %d and %d", ErrDuplicateVisit, v.ID, prev, i+1)
			}
			seen[v.ID] = i + 1
		}
	}
	for _, c := range s.g.Customers() {
		if _, ok := seen[c.ID]; !ok {
			return fmt.Errorf("%w: %d", ErrCustomerMissing, c.ID)
		}
	}
	return nil
}

func (s *Solution) Valid() bool { return s.Validate() == nil }

// AverageUtilization is the mean of route demand over capacity.
func (s *Solution) AverageUtilization() float64 {
	if len(s.routes) == 0 {
		return 0
	}
	total := 0.0
	for _, r := range s.routes {
		total += r.CapacityUtilization()
	}
	return total / float64(len(s.routes))
}

// Clone deep copies every route.
func (s *Solution) Clone() *Solution {
	routes := make([]*Route, len(s.routes))
	for i, r := range s.routes {
		routes[i] = r.Clone()
	}
	return &Solution{g: s.g, routes: routes}
}

// RouteIDs returns each route as vertex ids, depot first.
func (s *Solution) RouteIDs() [][]int {
	out := make([][]int, len(s.routes))
	for i, r := range s.routes {
		out[i] = r.IDs()
	}
	return out
}

func (s *Solution) String() string {
	return fmt.Sprintf("solution cost=%.2f routes=%d demand=%d", s.Cost(), len(s.routes), s.Demand())
}
