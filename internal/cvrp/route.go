package cvrp

import (
	"fmt"
	"math"
	"strings"

	"antroute/internal/graph"
)

// Route is one vehicle trip. It always starts at the depot and implicitly
// returns to it; the terminal depot is not stored.
type Route struct {
	g         *graph.Graph
	depot     *graph.Vertex
	capacity  int
	maxLength float64
	vertices  []*graph.Vertex
}

// NewRoute returns a route holding only the depot. A maxLength <= 0 means
// unbounded.
func NewRoute(g *graph.Graph, capacity int, maxLength float64) (*Route, error) {
	if maxLength <= 0 {
		maxLength = math.Inf(1)
	}
	if g == nil {
		return nil, fmt.Errorf("%w: nil graph", ErrInvalidInstance)
	}
	depot, ok := g.Depot()
	if !ok {
		return nil, ErrNoDepot
	}
	return &Route{
		g:         g,
		depot:     depot,
		capacity:  capacity,
		maxLength: maxLength,
		vertices:  []*graph.Vertex{depot},
	}, nil
}

// RouteFromIDs rebuilds a route from an explicit vertex sequence that starts at
// the depot. Any malformed input wraps ErrFormatMismatch.
func RouteFromIDs(g *graph.Graph, ids []int, capacity int, maxLength float64) (*Route, error) {
	r, err := NewRoute(g, capacity, maxLength)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: empty route", ErrFormatMismatch)
	}
	if ids[0] != r.depot.ID {
		return nil, fmt.Errorf("%w: route must start at depot %d, starts at %d", ErrFormatMismatch, r.depot.ID, ids[0])
	}
	for _, id := range ids[1:] {
		v, ok := g.Vertex(id)
		if !ok {
			return nil, fmt.Errorf("%w: %w: %d", ErrFormatMismatch, ErrUnknownVertex, id)
		}
		if err := r.Append(v); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormatMismatch, err)
		}
	}
	return r, nil
}

// Append adds v to the end of the route.
func (r *Route) Append(v *graph.Vertex) error {
	if r.Contains(v.ID) {
		return fmt.Errorf("%w: %d", ErrVertexInRoute, v.ID)
	}
	r.vertices = append(r.vertices, v)
	return nil
}

// RemoveLast undoes the most recent Append. The depot anchor is never removed.
func (r *Route) RemoveLast() (*graph.Vertex, bool) {
	n := len(r.vertices)
	if n <= 1 {
		return nil, false
	}
	v := r.vertices[n-1]
	r.vertices[n-1] = nil
	r.vertices = r.vertices[:n-1]
	return v, true
}

// Contains reports whether id is already on the route.
func (r *Route) Contains(id int) bool {
	for _, v := range r.vertices {
		if v.ID == id {
			return true
		}
	}
	return false
}

// Length is the sum of consecutive edge weights plus the return to the depot.
func (r *Route) Length() float64 {
	if len(r.vertices) < 2 {
		return 0
	}
	total := 0.0
	for i := 0; i < len(r.vertices)-1; i++ {
		total += r.g.Distance(r.vertices[i].ID, r.vertices[i+1].ID)
	}
	return total + r.g.Distance(r.vertices[len(r.vertices)-1].ID, r.depot.ID)
}

// Demand is the total demand of the customers on the route.
func (r *Route) Demand() int {
	total := 0
	for _, v := range r.vertices {
		if !v.Depot {
			total += v.Demand
		}
	}
	return total
}

// Valid reports whether the route fits the vehicle capacity and length limit.
func (r *Route) Valid() bool {
	return r.Demand() <= r.capacity && r.Length() <= r.maxLength
}

// Clone returns an independent copy of the vertex sequence.
func (r *Route) Clone() *Route {
	c := *r
	c.vertices = append(make([]*graph.Vertex, 0, len(r.vertices)), r.vertices...)
	return &c
}

// ReverseSegment reverses positions i..j in place. Position 0 is the depot and
// cannot be moved.
func (r *Route) ReverseSegment(i, j int) error {
	if i < 1 || j >= len(r.vertices) || i > j {
		return fmt.Errorf("cvrp: segment [%d,%d] out of range for %d vertices", i, j, len(r.vertices))
	}
	for ; i < j; i, j = i+1, j-1 {
		r.vertices[i], r.vertices[j] = r.vertices[j], r.vertices[i]
	}
	return nil
}

// Vertices returns the visiting sequence, depot first. Callers must not modify it.
func (r *Route) Vertices() []*graph.Vertex { return r.vertices }

// IDs returns the visiting sequence as vertex ids, depot first.
func (r *Route) IDs() []int {
	out := make([]int, len(r.vertices))
	for i, v := range r.vertices {
		out[i] = v.ID
	}
	return out
}

// Last returns the most recently appended vertex, or the depot.
func (r *Route) Last() *graph.Vertex { return r.vertices[len(r.vertices)-1] }

// Len counts the stored vertices including the depot.
func (r *Route) Len() int { return len(r.vertices) }

func (r *Route) CustomerCount() int { return len(r.vertices) - 1 }

func (r *Route) Capacity() int { return r.capacity }

func (r *Route) MaxLength() float64 { return r.maxLength }

func (r *Route) Graph() *graph.Graph { return r.g }

// CapacityUtilization is demand over capacity.
func (r *Route) CapacityUtilization() float64 {
	if r.capacity <= 0 {
		return 0
	}
	return float64(r.Demand()) / float64(r.capacity)
}

// LengthUtilization is length over the route limit; 0 when unbounded.
func (r *Route) LengthUtilization() float64 {
	if r.maxLength <= 0 || math.IsInf(r.maxLength, 1) {
		return 0
	}
	return r.Length() / r.maxLength
}

func (r *Route) String() string {
	ids := make([]string, len(r.vertices))
	for i, v := range r.vertices {
		ids[i] = fmt.Sprint(v.ID)
	}
	return fmt.Sprintf("%s length=%.2f demand=%d/%d", strings.Join(ids, " -> "), r.Length(), r.Demand(), r.capacity)
}
