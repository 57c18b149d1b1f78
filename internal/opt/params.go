package opt

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidParams = errors.New("opt: invalid parameters")

// Params configures every ant colony variant.
type Params struct {
	AntCount         int     `yaml:"antCount" json:"antCount"`
	MaxIterations    int     `yaml:"maxIterations" json:"maxIterations"`
	Alpha            float64 `yaml:"alpha" json:"alpha"`
	Beta             float64 `yaml:"beta" json:"beta"`
	EvaporationRate  float64 `yaml:"evaporationRate" json:"evaporationRate"`
	Q                float64 `yaml:"q" json:"q"`
	InitialPheromone float64 `yaml:"initialPheromone" json:"initialPheromone"`
}

func DefaultParams() Params {
	return Params{
		AntCount:         200,
		MaxIterations:    200,
		Alpha:            1,
		Beta:             5,
		EvaporationRate:  0.1,
		Q:                100,
		InitialPheromone: 0.1,
	}
}

func (p Params) Validate() error {
	switch {
	case p.AntCount < 1:
		return fmt.Errorf("%w: antCount must be >= 1, got %d", ErrInvalidParams, p.AntCount)
	case p.MaxIterations < 1:
		return fmt.Errorf("%w: maxIterations must be >= 1, got %d", ErrInvalidParams, p.MaxIterations)
	case !finiteNonNeg(p.Alpha):
		return fmt.Errorf("%w: alpha must be finite and >= 0, got %g", ErrInvalidParams, p.Alpha)
	case !finiteNonNeg(p.Beta):
		return fmt.Errorf("%w: beta must be finite and >= 0, got %g", ErrInvalidParams, p.Beta)
	case !(p.EvaporationRate > 0 && p.EvaporationRate < 1):
		return fmt.Errorf("%w: evaporationRate must be in (0,1), got %g", ErrInvalidParams, p.EvaporationRate)
	case !(p.Q > 0) || math.IsInf(p.Q, 0):
		return fmt.Errorf("%w: q must be positive, got %g", ErrInvalidParams, p.Q)
	case !(p.InitialPheromone > 0) || math.IsInf(p.InitialPheromone, 0):
		return fmt.Errorf("%w: initialPheromone must be positive, got %g", ErrInvalidParams, p.InitialPheromone)
	}
	return nil
}

func finiteNonNeg(f float64) bool { return f >= 0 && !math.IsInf(f, 0) }

// MaxMinParams configures the Max-Min pheromone policy. Zero bounds are
// derived from Params: max = 1/(rho*tau0), min = max/10.
type MaxMinParams struct {
	PheromoneMin      float64 `yaml:"pheromoneMin" json:"pheromoneMin"`
	PheromoneMax      float64 `yaml:"pheromoneMax" json:"pheromoneMax"`
	DepositGlobalBest bool    `yaml:"depositGlobalBest" json:"depositGlobalBest"`
	StagnationLimit   int     `yaml:"stagnationLimit" json:"stagnationLimit"`
}

func DefaultMaxMinParams() MaxMinParams {
	return MaxMinParams{DepositGlobalBest: true, StagnationLimit: 20}
}

// Bounds returns the effective [min, max] pheromone interval.
func (m MaxMinParams) Bounds(p Params) (lo, hi float64) {
	if m.PheromoneMin == 0 && m.PheromoneMax == 0 {
		hi = 1 / (p.EvaporationRate * p.InitialPheromone)
		return hi * 0.1, hi
	}
	return m.PheromoneMin, m.PheromoneMax
}

func (m MaxMinParams) Validate() error {
	if m.StagnationLimit < 1 {
		return fmt.Errorf("%w: stagnationLimit must be >= 1, got %d", ErrInvalidParams, m.StagnationLimit)
	}
	if m.PheromoneMin == 0 && m.PheromoneMax == 0 {
		return nil
	}
	if m.PheromoneMin < 0 || !(m.PheromoneMax > m.PheromoneMin) || math.IsInf(m.PheromoneMax, 0) {
		return fmt.Errorf("%w: need 0 <= pheromoneMin < pheromoneMax, got [%g, %g]", ErrInvalidParams, m.PheromoneMin, m.PheromoneMax)
	}
	return nil
}
