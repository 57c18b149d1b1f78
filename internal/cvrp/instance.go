package cvrp

import (
	"fmt"
	"math"

	"antroute/internal/graph"
)

// Instance is one problem to solve: a graph, the vehicle capacity and the
// maximum length of a single route.
type Instance struct {
	Name           string
	Graph          *graph.Graph
	Capacity       int
	MaxRouteLength float64 // <= 0 means unbounded
}

// RouteLimit returns the effective route length limit.
func (in *Instance) RouteLimit() float64 {
	if in.MaxRouteLength <= 0 {
		return math.Inf(1)
	}
	return in.MaxRouteLength
}

// Validate checks the structural preconditions a solver relies on. It also
// rejects instances no solver could finish: a customer whose demand exceeds the
// capacity, or whose direct round trip from the depot exceeds the route limit.
func (in *Instance) Validate() error {
	if in == nil || in.Graph == nil {
		return fmt.Errorf("%w: nil graph", ErrInvalidInstance)
	}
	if in.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidInstance, in.Capacity)
	}
	if math.IsNaN(in.MaxRouteLength) {
		return fmt.Errorf("%w: max route length is NaN", ErrInvalidInstance)
	}
	depot, ok := in.Graph.Depot()
	if !ok {
		return ErrNoDepot
	}
	limit := in.RouteLimit()
	for _, c := range in.Graph.Customers() {
		if c.Demand > in.Capacity {
			return fmt.Errorf("%w: customer %d demand %d exceeds capacity %d", ErrUnservableCustomer, c.ID, c.Demand, in.Capacity)
		}
		if rt := 2 * depot.DistanceTo(c); rt > limit {
			return fmt.Errorf("%w: customer %d round trip %.2f exceeds route limit %.2f", ErrUnservableCustomer, c.ID, rt, limit)
		}
	}
	return nil
}

// NewRoute opens an empty route for this instance.
func (in *Instance) NewRoute() (*Route, error) {
	return NewRoute(in.Graph, in.Capacity, in.RouteLimit())
}

func (in *Instance) String() string {
	return fmt.Sprintf("instance %q: %d vertices, capacity %d, max distance %g", in.Name, in.Graph.VertexCount(), in.Capacity, in.RouteLimit())
}
