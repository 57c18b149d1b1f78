// Package cvrp models a Capacitated Vehicle Routing Problem instance and the
// routes and solutions built over it. Feasibility is derived from the graph on
// every call; nothing is cached.
package cvrp

import "errors"

var (
	// structural preconditions
	ErrNoDepot            = errors.New("cvrp: graph has no depot")
	ErrInvalidInstance    = errors.New("cvrp: invalid instance")
	ErrUnservableCustomer = errors.New("cvrp: customer cannot be served by any vehicle")

	// route mutation
	ErrVertexInRoute = errors.New("cvrp: vertex already in route")
	ErrUnknownVertex = errors.New("cvrp: vertex not in graph")

	// feasibility and integrity
	ErrRouteInfeasible = errors.New("cvrp: route violates capacity or length limit")
	ErrCustomerMissing = errors.New("cvrp: customer not visited")
	ErrDuplicateVisit  = errors.New("cvrp: customer visited more than once")

	// externally supplied routes
	ErrFormatMismatch = errors.New("cvrp: format mismatch")
)

// IsIntegrityViolation reports whether err means a solution does not cover
// every customer exactly once.
func IsIntegrityViolation(err error) bool {
	return errors.Is(err, ErrDuplicateVisit) || errors.Is(err, ErrCustomerMissing)
}
