package opt

import (
	"antroute/internal/cvrp"
	"antroute/internal/graph"
)

// Iteration is what a pheromone policy sees after the per-iteration barrier.
type Iteration struct {
	Index      int
	Solutions  []*cvrp.Solution // feasible ants, in ant order
	Best       *cvrp.Solution   // cheapest of Solutions, nil when none
	GlobalBest *cvrp.Solution
	Improved   bool // GlobalBest changed this iteration
}

// PheromonePolicy owns every write to the pheromone field during a run.
type PheromonePolicy interface {
	// Reset initializes the field at run start.
	Reset(g *graph.Graph, p Params)
	// Update runs once per iteration; it reports whether the field was
	// reinitialized because the search stagnated.
	Update(g *graph.Graph, p Params, it Iteration) (reset bool)
}

// AntSystem evaporates every edge and lets every feasible ant deposit Q/cost.
type AntSystem struct{}

func (AntSystem) Reset(g *graph.Graph, p Params) { g.FillPheromone(p.InitialPheromone) }

func (AntSystem) Update(g *graph.Graph, p Params, it Iteration) bool {
	evaporate(g, p.EvaporationRate)
	for _, s := range it.Solutions {
		deposit(g, s, p.Q)
	}
	return false
}

func evaporate(g *graph.Graph, rho float64) {
	for _, e := range g.Edges() {
		e.Scale(1 - rho)
	}
}

// deposit adds q/cost to every edge the solution traverses, including each
// return to the depot.
func deposit(g *graph.Graph, s *cvrp.Solution, q float64) {
	if s == nil {
		return
	}
	cost := s.Cost()
	if !(cost > 0) {
		return
	}
	amount := q / cost
	depot, ok := g.Depot()
	if !ok {
		return
	}
	for _, r := range s.Routes() {
		vs := r.Vertices()
		for i := 0; i+1 < len(vs); i++ {
			if e, ok := g.Edge(vs[i].ID, vs[i+1].ID); ok {
				e.AddPheromone(amount)
			}
		}
		if len(vs) > 1 {
			if e, ok := g.Edge(vs[len(vs)-1].ID, depot.ID); ok {
				e.AddPheromone(amount)
			}
		}
	}
}
