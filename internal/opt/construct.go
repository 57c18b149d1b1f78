package opt

import (
	"fmt"
	"math"
	"math/rand"

	"antroute/internal/cvrp"
	"antroute/internal/graph"
)

// fits probes a candidate: append, check, undo.
func fits(r *cvrp.Route, v *graph.Vertex) bool {
	if err := r.Append(v); err != nil {
		return false
	}
	ok := r.Valid()
	r.RemoveLast()
	return ok
}

// constructSolution builds one ant's solution. Each route is seeded with a
// uniformly random unvisited customer and then extended by roulette selection
// over the customers that keep it feasible.
func constructSolution(in *cvrp.Instance, p Params, rng *rand.Rand) (*cvrp.Solution, error) {
	unvisited := in.Graph.Customers()
	var routes []*cvrp.Route
	feasible := make([]*graph.Vertex, 0, len(unvisited))
	weights := make([]float64, 0, len(unvisited))

	for len(unvisited) > 0 {
		route, err := in.NewRoute()
		if err != nil {
			return nil, err
		}
		k := rng.Intn(len(unvisited))
		if err := route.Append(unvisited[k]); err != nil {
			return nil, err
		}
		unvisited = removeAt(unvisited, k)

		for len(unvisited) > 0 {
			cur := route.Last()
			feasible, weights = feasible[:0], weights[:0]
			for _, c := range unvisited {
				if !fits(route, c) {
					continue
				}
				e, ok := in.Graph.Edge(cur.ID, c.ID)
				if !ok {
					return nil, fmt.Errorf("opt: no edge between %d and %d", cur.ID, c.ID)
				}
				feasible = append(feasible, c)
				weights = append(weights, fastPow(e.Pheromone(), p.Alpha)*fastPow(1/e.Weight(), p.Beta))
			}
			if len(feasible) == 0 {
				break
			}
			next := feasible[pickWeighted(weights, rng)]
			if err := route.Append(next); err != nil {
				return nil, err
			}
			unvisited = removeVertex(unvisited, next.ID)
		}
		routes = append(routes, route)
	}
	return cvrp.NewSolution(in.Graph, routes), nil
}

// pickWeighted is a roulette wheel over weights. When the total is zero or not
// finite it falls back to a uniform pick.
func pickWeighted(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if !(sum > 0) || math.IsInf(sum, 0) {
		return rng.Intn(len(weights))
	}
	r := rng.Float64() * sum
	acc := 0.0
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if r < acc {
			return i
		}
	}
	// rounding at the top end lands on the last positive weight
	return last
}

func fastPow(x, p float64) float64 {
	switch p {
	case 0:
		return 1
	case 1:
		return x
	case 2:
		return x * x
	}
	return math.Pow(x, p)
}

// removeAt deletes index i keeping order, so iteration stays deterministic.
func removeAt(vs []*graph.Vertex, i int) []*graph.Vertex {
	copy(vs[i:], vs[i+1:])
	vs[len(vs)-1] = nil
	return vs[:len(vs)-1]
}

func removeVertex(vs []*graph.Vertex, id int) []*graph.Vertex {
	for i, v := range vs {
		if v.ID == id {
			return removeAt(vs, i)
		}
	}
	return vs
}
