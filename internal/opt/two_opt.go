package opt

import "antroute/internal/cvrp"

// Refiner post-processes an ant's solution before it competes for best.
type Refiner interface {
	Refine(s *cvrp.Solution) *cvrp.Solution
}

type identity struct{}

func (identity) Refine(s *cvrp.Solution) *cvrp.Solution { return s }

// TwoOpt improves each route independently by segment reversal.
type TwoOpt struct{}

func (TwoOpt) Refine(s *cvrp.Solution) *cvrp.Solution {
	routes := s.Routes()
	out := make([]*cvrp.Route, len(routes))
	for i, r := range routes {
		out[i] = improveRoute(r)
	}
	return cvrp.NewSolution(s.Graph(), out)
}

// improveRoute reverses [i..j] for 1 <= i < j <= n-1 and keeps the first
// feasible, strictly shorter result, rescanning until a full pass finds
// nothing. Routes with fewer than three customers are returned as is.
func improveRoute(r *cvrp.Route) *cvrp.Route {
	if r.CustomerCount() < 3 {
		return r
	}
	best := r
	bestLen := r.Length()
	n := r.Len()
	for improved := true; improved; {
		improved = false
	scan:
		for i := 1; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				c := best.Clone()
				if err := c.ReverseSegment(i, j); err != nil {
					continue
				}
				if l := c.Length(); c.Valid() && l < bestLen {
					best, bestLen = c, l
					improved = true
					break scan
				}
			}
		}
	}
	return best
}
