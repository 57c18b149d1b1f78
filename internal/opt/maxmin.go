package opt

import (
	"math"

	"antroute/internal/graph"
)

// MaxMin keeps every edge inside [min, max] and lets a single solution
// deposit. After StagnationLimit iterations without a new global best the field
// is reinitialized.
type MaxMin struct {
	Params MaxMinParams

	lo, hi     float64
	initial    float64
	stagnation int
}

func NewMaxMin(mm MaxMinParams) *MaxMin { return &MaxMin{Params: mm} }

func (m *MaxMin) Reset(g *graph.Graph, p Params) {
	m.lo, m.hi = m.Params.Bounds(p)
	m.initial = math.Min(math.Max(p.InitialPheromone, m.lo), m.hi)
	m.stagnation = 0
	g.FillPheromone(m.initial)
}

func (m *MaxMin) Update(g *graph.Graph, p Params, it Iteration) bool {
	if it.Improved {
		m.stagnation = 0
	} else {
		m.stagnation++
	}

	evaporate(g, p.EvaporationRate)
	depositor := it.Best
	if m.Params.DepositGlobalBest {
		depositor = it.GlobalBest
	}
	deposit(g, depositor, p.Q)
	m.clamp(g)

	if m.stagnation >= m.Params.StagnationLimit {
		g.FillPheromone(m.initial)
		m.stagnation = 0
		return true
	}
	return false
}

func (m *MaxMin) clamp(g *graph.Graph) {
	for _, e := range g.Edges() {
		switch p := e.Pheromone(); {
		case p < m.lo:
			e.SetPheromone(m.lo)
		case p > m.hi:
			e.SetPheromone(m.hi)
		}
	}
}

// Bounds returns the interval in effect for the current run.
func (m *MaxMin) Bounds() (lo, hi float64) { return m.lo, m.hi }

// Stagnation is the number of iterations since the last global improvement.
func (m *MaxMin) Stagnation() int { return m.stagnation }
