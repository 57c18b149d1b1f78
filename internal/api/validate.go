package api

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"antroute/internal/config"
	"antroute/internal/cvrp"
	"antroute/internal/graph"
	"antroute/internal/model"
	"antroute/internal/opt"
)

var ErrBadRequest = errors.New("invalid request")

// BuildInstance turns the wire form into a validated instance.
func BuildInstance(in model.InstanceIn) (*cvrp.Instance, error) {
	if len(in.Vertices) == 0 {
		return nil, fmt.Errorf("%w: instance has no vertices", cvrp.ErrInvalidInstance)
	}
	g := graph.New()
	for _, v := range in.Vertices {
		if _, err := g.AddVertex(graph.Vertex{ID: v.ID, X: v.X, Y: v.Y, Demand: v.Demand, Depot: v.Depot}); err != nil {
			return nil, fmt.Errorf("vertex %d: %w", v.ID, err)
		}
	}
	inst := &cvrp.Instance{Name: in.Name, Graph: g, Capacity: in.Capacity, MaxRouteLength: in.MaxRouteLength}
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

// ResolveParams overlays the request on the configured solver defaults.
func ResolveParams(def config.Solver, req model.RunRequest) (string, opt.Params, opt.MaxMinParams, error) {
	alg := strings.TrimSpace(req.Algorithm)
	if alg == "" {
		alg = def.Algorithm
	}
	if !slices.Contains(opt.Algorithms(), alg) {
		return "", opt.Params{}, opt.MaxMinParams{}, fmt.Errorf("%w: %q (allowed: %s)", opt.ErrUnknownAlgorithm, alg, strings.Join(opt.Algorithms(), ","))
	}
	p := def.Params
	if in := req.Params; in != nil {
		setInt(&p.AntCount, in.AntCount)
		setInt(&p.MaxIterations, in.MaxIterations)
		setFloat(&p.Alpha, in.Alpha)
		setFloat(&p.Beta, in.Beta)
		setFloat(&p.EvaporationRate, in.EvaporationRate)
		setFloat(&p.Q, in.Q)
		setFloat(&p.InitialPheromone, in.InitialPheromone)
	}
	if err := p.Validate(); err != nil {
		return "", opt.Params{}, opt.MaxMinParams{}, err
	}
	mm := def.MaxMin
	if in := req.MaxMin; in != nil {
		setFloat(&mm.PheromoneMin, in.PheromoneMin)
		setFloat(&mm.PheromoneMax, in.PheromoneMax)
		setInt(&mm.StagnationLimit, in.StagnationLimit)
		if in.DepositGlobalBest != nil {
			mm.DepositGlobalBest = *in.DepositGlobalBest
		}
	}
	if err := mm.Validate(); err != nil {
		return "", opt.Params{}, opt.MaxMinParams{}, err
	}
	if req.Workers < 0 {
		return "", opt.Params{}, opt.MaxMinParams{}, fmt.Errorf("%w: workers must be >= 0", ErrBadRequest)
	}
	if req.CallbackURL != "" && !strings.HasPrefix(req.CallbackURL, "http://") && !strings.HasPrefix(req.CallbackURL, "https://") {
		return "", opt.Params{}, opt.MaxMinParams{}, fmt.Errorf("%w: callbackUrl must be http(s)", ErrBadRequest)
	}
	return alg, p, mm, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
