package graph

import (
	"fmt"
	"math"
)

// Edge is an undirected connection with U < V. Weight is fixed at creation;
// pheromone is the only mutable field and never drops below zero.
type Edge struct {
	u, v      int
	weight    float64
	pheromone float64
}

func newEdge(a, b *Vertex) (*Edge, error) {
	if a.ID == b.ID {
		return nil, fmt.Errorf("%w: %d", ErrSelfLoop, a.ID)
	}
	w := a.DistanceTo(b)
	if w <= 0 {
		return nil, fmt.Errorf("%w: vertices %d and %d share coordinates (%d,%d)", ErrNonPositiveWeight, a.ID, b.ID, a.X, a.Y)
	}
	k := keyOf(a.ID, b.ID)
	return &Edge{u: k.u, v: k.v, weight: w}, nil
}

// U is the smaller vertex id.
func (e *Edge) U() int { return e.u }

// V is the larger vertex id.
func (e *Edge) V() int { return e.v }

func (e *Edge) Weight() float64 { return e.weight }

func (e *Edge) Pheromone() float64 { return e.pheromone }

// SetPheromone overwrites the pheromone value, clamped to >= 0.
func (e *Edge) SetPheromone(p float64) {
	if p < 0 || math.IsNaN(p) {
		p = 0
	}
	e.pheromone = p
}

// AddPheromone adds delta (which may be negative), clamped to >= 0.
func (e *Edge) AddPheromone(delta float64) { e.SetPheromone(e.pheromone + delta) }

// Scale multiplies the pheromone by f, clamped to >= 0.
func (e *Edge) Scale(f float64) { e.SetPheromone(e.pheromone * f) }

// Other returns the endpoint opposite to id.
func (e *Edge) Other(id int) (int, bool) {
	switch id {
	case e.u:
		return e.v, true
	case e.v:
		return e.u, true
	}
	return 0, false
}

func (e *Edge) String() string {
	return fmt.Sprintf("edge %d-%d weight=%.2f pheromone=%.4f", e.u, e.v, e.weight, e.pheromone)
}
