// Package opt holds the CVRP solvers: a greedy nearest-neighbour heuristic and
// an ant colony engine with pluggable refinement and pheromone policies.
package opt

import (
	"context"
	"errors"
	"fmt"

	"antroute/internal/cvrp"
)

const (
	AlgorithmGreedy     = "greedy"
	AlgorithmACO        = "aco"
	AlgorithmACO2Opt    = "aco-2opt"
	AlgorithmMaxMin     = "aco-maxmin"
	AlgorithmMaxMin2Opt = "aco-maxmin-2opt"
)

var ErrUnknownAlgorithm = errors.New("opt: unknown algorithm")

type Solver interface {
	Name() string
	Solve(ctx context.Context, in *cvrp.Instance) (*cvrp.Solution, error)
}

// Algorithms lists the names accepted by New.
func Algorithms() []string {
	return []string{AlgorithmGreedy, AlgorithmACO, AlgorithmACO2Opt, AlgorithmMaxMin, AlgorithmMaxMin2Opt}
}

// NewAntColony is the base Ant System: no refinement, every ant deposits.
func NewAntColony(p Params, opts ...Option) *Engine {
	return newEngine(AlgorithmACO, p, identity{}, AntSystem{}, opts...)
}

// NewAntColony2Opt refines each ant's routes with 2-opt before they compete.
func NewAntColony2Opt(p Params, opts ...Option) *Engine {
	return newEngine(AlgorithmACO2Opt, p, TwoOpt{}, AntSystem{}, opts...)
}

// NewAntColonyMaxMin bounds the pheromone field and lets one solution deposit.
func NewAntColonyMaxMin(p Params, mm MaxMinParams, opts ...Option) *Engine {
	return newEngine(AlgorithmMaxMin, p, identity{}, NewMaxMin(mm), opts...)
}

func NewAntColonyMaxMin2Opt(p Params, mm MaxMinParams, opts ...Option) *Engine {
	return newEngine(AlgorithmMaxMin2Opt, p, TwoOpt{}, NewMaxMin(mm), opts...)
}

// New builds a solver by algorithm name.
func New(algorithm string, p Params, mm MaxMinParams, opts ...Option) (Solver, error) {
	switch algorithm {
	case AlgorithmGreedy:
		return NewGreedy(opts...), nil
	case AlgorithmACO:
		return NewAntColony(p, opts...), nil
	case AlgorithmACO2Opt:
		return NewAntColony2Opt(p, opts...), nil
	case AlgorithmMaxMin:
		return NewAntColonyMaxMin(p, mm, opts...), nil
	case AlgorithmMaxMin2Opt:
		return NewAntColonyMaxMin2Opt(p, mm, opts...), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
}
