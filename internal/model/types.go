package model

import "time"

// Wire types for the HTTP API and the batch CLI.

type VertexIn struct {
	ID     int  `json:"id"`
	X      int  `json:"x"`
	Y      int  `json:"y"`
	Demand int  `json:"demand,omitempty"`
	Depot  bool `json:"depot,omitempty"`
}

type InstanceIn struct {
	Name           string     `json:"name"`
	Capacity       int        `json:"capacity"`
	MaxRouteLength float64    `json:"maxRouteLength,omitempty"`
	OptimalCost    *float64   `json:"optimalCost,omitempty"`
	Vertices       []VertexIn `json:"vertices"`
}

// ParamsIn overrides solver defaults; nil fields keep the configured value.
type ParamsIn struct {
	AntCount         *int     `json:"antCount,omitempty"`
	MaxIterations    *int     `json:"maxIterations,omitempty"`
	Alpha            *float64 `json:"alpha,omitempty"`
	Beta             *float64 `json:"beta,omitempty"`
	EvaporationRate  *float64 `json:"evaporationRate,omitempty"`
	Q                *float64 `json:"q,omitempty"`
	InitialPheromone *float64 `json:"initialPheromone,omitempty"`
}

type MaxMinIn struct {
	PheromoneMin      *float64 `json:"pheromoneMin,omitempty"`
	PheromoneMax      *float64 `json:"pheromoneMax,omitempty"`
	DepositGlobalBest *bool    `json:"depositGlobalBest,omitempty"`
	StagnationLimit   *int     `json:"stagnationLimit,omitempty"`
}

type RunRequest struct {
	Instance       InstanceIn `json:"instance"`
	Algorithm      string     `json:"algorithm"`
	Seed           int64      `json:"seed,omitempty"`
	Params         *ParamsIn  `json:"params,omitempty"`
	MaxMin         *MaxMinIn  `json:"maxMin,omitempty"`
	AntsPerVertex  bool       `json:"antsPerVertex,omitempty"`
	Workers        int        `json:"workers,omitempty"`
	RunName        string     `json:"runName,omitempty"`
	CallbackURL    string     `json:"callbackUrl,omitempty"`
	CallbackSecret string     `json:"callbackSecret,omitempty"`
}

// SolverParams is the effective configuration a run was solved with.
type SolverParams struct {
	AntCount          int      `json:"antCount"`
	MaxIterations     int      `json:"maxIterations"`
	Alpha             float64  `json:"alpha"`
	Beta              float64  `json:"beta"`
	EvaporationRate   float64  `json:"evaporationRate"`
	Q                 float64  `json:"q"`
	InitialPheromone  float64  `json:"initialPheromone"`
	PheromoneMin      *float64 `json:"pheromoneMin,omitempty"`
	PheromoneMax      *float64 `json:"pheromoneMax,omitempty"`
	DepositGlobalBest *bool    `json:"depositGlobalBest,omitempty"`
	StagnationLimit   *int     `json:"stagnationLimit,omitempty"`
	Workers           int      `json:"workers,omitempty"`
}

const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

type Run struct {
	ID             string            `json:"id"`
	Name           string            `json:"name,omitempty"`
	Status         string            `json:"status"`
	Algorithm      string            `json:"algorithm"`
	Instance       string            `json:"instance"`
	VertexCount    int               `json:"vertexCount"`
	Seed           int64             `json:"seed"`
	Params         SolverParams      `json:"params"`
	Cost           float64           `json:"cost,omitempty"`
	RouteCount     int               `json:"routeCount,omitempty"`
	Routes         [][]int           `json:"routes,omitempty"`
	ElapsedMs      int64             `json:"elapsedMs"`
	AvgUtilization float64           `json:"avgUtilization,omitempty"`
	OptimalCost    *float64          `json:"optimalCost,omitempty"`
	GapPercent     *float64          `json:"gapPercent,omitempty"`
	Error          string            `json:"error,omitempty"`
	Host           map[string]string `json:"host,omitempty"`
	CallbackURL    string            `json:"callbackUrl,omitempty"`
	CallbackSecret string            `json:"-"`
	CreatedAt      time.Time         `json:"createdAt"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`
}

type ProgressPoint struct {
	Iteration  int     `json:"iteration"`
	ElapsedMs  int64   `json:"elapsedMs"`
	BestCost   float64 `json:"bestCost"`
	BestRoutes int     `json:"bestRoutes"`
}

// ProgressEvent is what live subscribers of a run receive.
type ProgressEvent struct {
	RunID string `json:"runId"`
	Type  string `json:"type"` // progress | completed
	ProgressPoint
	Status string `json:"status,omitempty"`
}

type CheckRequest struct {
	Instance InstanceIn `json:"instance"`
	Routes   [][]int    `json:"routes"`
	Cost     *float64   `json:"cost,omitempty"`
}

type RouteOut struct {
	Vertices    []int   `json:"vertices"`
	Length      float64 `json:"length"`
	Demand      int     `json:"demand"`
	Utilization float64 `json:"utilization"`
}

type CheckResponse struct {
	Valid          bool       `json:"valid"`
	Cost           float64    `json:"cost"`
	RouteCount     int        `json:"routeCount"`
	Demand         int        `json:"demand"`
	AvgUtilization float64    `json:"avgUtilization"`
	GapPercent     *float64   `json:"gapPercent,omitempty"`
	Routes         []RouteOut `json:"routes"`
}

type ListRunsResponse struct {
	Items      []Run  `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// RunCompletedEvent is the body of a run.completed callback.
type RunCompletedEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	RunID      string    `json:"runId"`
	Status     string    `json:"status"`
	Algorithm  string    `json:"algorithm"`
	Cost       float64   `json:"cost"`
	RouteCount int       `json:"routeCount"`
	GapPercent *float64  `json:"gapPercent,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
