package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"antroute/internal/cvrp"
	"antroute/internal/metrics"
	"antroute/internal/model"
	"antroute/internal/opt"
)

const maxBodyBytes = 8 << 20

// RunsHandler handles POST/GET /v1/runs
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/runs" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req model.RunRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		pr, err := s.prepareRun(r.Context(), req)
		if err != nil {
			writeError(w, r, "Invalid run request", err)
			return
		}
		if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
			writeJSON(w, http.StatusOK, s.solveNow(r.Context(), pr))
			return
		}
		s.start(pr)
		w.Header().Set("Location", "/v1/runs/"+pr.run.ID)
		writeJSON(w, http.StatusAccepted, pr.run)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 1000 {
				writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be in [1,1000]", r.URL.Path)
				return
			}
			limit = n
		}
		items, next, err := s.Store.ListRuns(r.Context(), cursor, limit)
		if err != nil {
			writeError(w, r, "List runs failed", err)
			return
		}
		writeJSON(w, http.StatusOK, model.ListRunsResponse{Items: items, NextCursor: next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// RunByIDHandler handles /v1/runs/{id}, /progress, /ws and /deliveries
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	sub := ""
	if len(parts) > 1 {
		sub = parts[1]
	}
	switch sub {
	case "":
		s.runResource(w, r, id)
	case "progress":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		pts, err := s.Store.ListProgress(r.Context(), id)
		if err != nil {
			writeError(w, r, "Progress unavailable", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runId": id, "items": pts})
	case "ws":
		s.RunProgressWS(w, r, id)
	case "deliveries":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if _, err := s.Store.GetRun(r.Context(), id); err != nil {
			writeError(w, r, "Run not found", err)
			return
		}
		items, err := s.Store.ListDeliveries(r.Context(), id)
		if err != nil {
			writeError(w, r, "List deliveries failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

func (s *Server) runResource(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		run, err := s.Store.GetRun(r.Context(), id)
		if err != nil {
			writeError(w, r, "Run not found", err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	case http.MethodDelete:
		// cancels a running solve; the run keeps its best solution so far
		if _, err := s.Store.GetRun(r.Context(), id); err != nil {
			writeError(w, r, "Run not found", err)
			return
		}
		if !s.cancelRun(id) {
			writeProblem(w, http.StatusConflict, "Run not running", "run "+id+" already finished", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// CheckHandler handles POST /v1/solutions/check: it rebuilds an externally
// produced solution and reports its cost and feasibility.
func (s *Server) CheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.CheckRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	inst, err := BuildInstance(req.Instance)
	if err != nil {
		writeError(w, r, "Invalid instance", err)
		return
	}
	sol, err := cvrp.SolutionFromRoutes(inst.Graph, inst.Capacity, inst.RouteLimit(), req.Routes, req.Cost)
	if err != nil {
		writeError(w, r, "Solution rejected", err)
		return
	}
	out := model.CheckResponse{
		Valid:          sol.Valid(),
		Cost:           sol.Cost(),
		RouteCount:     sol.RouteCount(),
		Demand:         sol.Demand(),
		AvgUtilization: sol.AverageUtilization(),
		GapPercent:     gapPercent(sol.Cost(), req.Instance.OptimalCost),
	}
	for _, rt := range sol.Routes() {
		out.Routes = append(out.Routes, model.RouteOut{
			Vertices:    rt.IDs(),
			Length:      rt.Length(),
			Demand:      rt.Demand(),
			Utilization: rt.CapacityUtilization(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// SolverConfigHandler returns the effective solver defaults.
func (s *Server) SolverConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/solver/config" || r.Method != http.MethodGet {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	def := s.Config.Solver
	lo, hi := def.MaxMin.Bounds(def.Params)
	writeJSON(w, http.StatusOK, map[string]any{
		"algorithms":    opt.Algorithms(),
		"algorithm":     def.Algorithm,
		"seed":          def.Seed,
		"workers":       def.Workers,
		"antsPerVertex": def.AntsPerVertex,
		"maxRunSeconds": def.MaxRunSeconds,
		"params":        def.Params,
		"maxMin":        def.MaxMin,
		"maxMinBounds":  []float64{lo, hi},
	})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// MetricsHandler exposes the service registry.
func MetricsHandler() http.Handler {
	metrics.RegisterDefault()
	return promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
}
