// Package graph holds the complete weighted graph a CVRP instance is solved on:
// a depot plus customers, one edge per vertex pair, and a pheromone value per edge.
package graph

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrDuplicateVertex   = errors.New("graph: duplicate vertex id")
	ErrDepotDemand       = errors.New("graph: depot must have zero demand")
	ErrMultipleDepots    = errors.New("graph: graph already has a depot")
	ErrInvalidVertex     = errors.New("graph: invalid vertex")
	ErrNonPositiveWeight = errors.New("graph: edge weight must be positive")
	ErrSelfLoop          = errors.New("graph: self loop")
)

// Vertex is a depot or customer location. Immutable once added to a Graph.
type Vertex struct {
	ID     int
	X, Y   int
	Demand int
	Depot  bool
}

// DistanceTo returns the Euclidean distance between two vertices.
func (v *Vertex) DistanceTo(o *Vertex) float64 {
	dx := float64(v.X - o.X)
	dy := float64(v.Y - o.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

func (v *Vertex) String() string {
	return fmt.Sprintf("vertex %d (%d,%d) demand=%d", v.ID, v.X, v.Y, v.Demand)
}

type edgeKey struct{ u, v int }

func keyOf(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// Graph is a full mesh over its vertices. Vertices and edges are enumerated
// in insertion order.
type Graph struct {
	vertices map[int]*Vertex
	order    []*Vertex
	edges    map[edgeKey]*Edge
	edgeList []*Edge
	depotID  int
	hasDepot bool
}

func New() *Graph {
	return &Graph{
		vertices: map[int]*Vertex{},
		edges:    map[edgeKey]*Edge{},
	}
}

// AddVertex inserts v and eagerly creates an edge to every existing vertex.
// On error the graph is left unchanged.
func (g *Graph) AddVertex(v Vertex) (*Vertex, error) {
	if v.ID < 0 || v.Demand < 0 {
		return nil, fmt.Errorf("%w: id=%d demand=%d", ErrInvalidVertex, v.ID, v.Demand)
	}
	if _, ok := g.vertices[v.ID]; ok {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateVertex, v.ID)
	}
	if v.Depot {
		if v.Demand != 0 {
			return nil, fmt.Errorf("%w: vertex %d has demand %d", ErrDepotDemand, v.ID, v.Demand)
		}
		if g.hasDepot {
			return nil, fmt.Errorf("%w: %d, cannot add %d", ErrMultipleDepots, g.depotID, v.ID)
		}
	}
	nv := &Vertex{ID: v.ID, X: v.X, Y: v.Y, Demand: v.Demand, Depot: v.Depot}

	// weights first so a coincident vertex is rejected before anything is stored
	pending := make([]*Edge, 0, len(g.order))
	for _, other := range g.order {
		e, err := newEdge(nv, other)
		if err != nil {
			return nil, err
		}
		pending = append(pending, e)
	}

	g.vertices[nv.ID] = nv
	g.order = append(g.order, nv)
	for _, e := range pending {
		g.edges[edgeKey{e.u, e.v}] = e
		g.edgeList = append(g.edgeList, e)
	}
	if nv.Depot {
		g.depotID = nv.ID
		g.hasDepot = true
	}
	return nv, nil
}

// Vertex looks up a vertex by id.
func (g *Graph) Vertex(id int) (*Vertex, bool) {
	v, ok := g.vertices[id]
	return v, ok
}

// Edge looks up the undirected edge between a and b.
func (g *Graph) Edge(a, b int) (*Edge, bool) {
	e, ok := g.edges[keyOf(a, b)]
	return e, ok
}

// Distance returns the weight of the edge between a and b. A full mesh has an
// edge for every pair of known vertices, so a miss is a programming error and panics.
func (g *Graph) Distance(a, b int) float64 {
	if a == b {
		return 0
	}
	e, ok := g.edges[keyOf(a, b)]
	if !ok {
		panic(fmt.Sprintf("graph: no edge between %d and %d", a, b))
	}
	return e.weight
}

// Adjacent returns every other vertex; nil when id is unknown.
func (g *Graph) Adjacent(id int) []*Vertex {
	if _, ok := g.vertices[id]; !ok {
		return nil
	}
	out := make([]*Vertex, 0, len(g.order)-1)
	for _, v := range g.order {
		if v.ID != id {
			out = append(out, v)
		}
	}
	return out
}

// Depot returns the depot vertex if one was added.
func (g *Graph) Depot() (*Vertex, bool) {
	if !g.hasDepot {
		return nil, false
	}
	return g.vertices[g.depotID], true
}

// Vertices returns all vertices in insertion order. The slice must not be modified.
func (g *Graph) Vertices() []*Vertex { return g.order }

// Customers returns the non-depot vertices in insertion order.
func (g *Graph) Customers() []*Vertex {
	out := make([]*Vertex, 0, len(g.order))
	for _, v := range g.order {
		if !v.Depot {
			out = append(out, v)
		}
	}
	return out
}

// Edges returns all edges in creation order. The slice must not be modified.
func (g *Graph) Edges() []*Edge { return g.edgeList }

func (g *Graph) VertexCount() int { return len(g.order) }

func (g *Graph) EdgeCount() int { return len(g.edgeList) }

// FillPheromone sets every edge to the same pheromone value.
func (g *Graph) FillPheromone(value float64) {
	for _, e := range g.edgeList {
		e.SetPheromone(value)
	}
}
