package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"antroute/internal/cvrp"
	"antroute/internal/graph"
	"antroute/internal/opt"
	"antroute/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeError maps domain errors onto problem documents.
func writeError(w http.ResponseWriter, r *http.Request, title string, err error) {
	writeProblem(w, statusFor(err), title, err.Error(), r.URL.Path)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, cvrp.ErrFormatMismatch),
		errors.Is(err, cvrp.ErrUnservableCustomer),
		errors.Is(err, cvrp.ErrNoDepot):
		return http.StatusUnprocessableEntity
	case cvrp.IsIntegrityViolation(err):
		return http.StatusInternalServerError
	case errors.Is(err, cvrp.ErrInvalidInstance),
		errors.Is(err, graph.ErrDuplicateVertex),
		errors.Is(err, graph.ErrDepotDemand),
		errors.Is(err, graph.ErrMultipleDepots),
		errors.Is(err, graph.ErrInvalidVertex),
		errors.Is(err, graph.ErrNonPositiveWeight),
		errors.Is(err, opt.ErrInvalidParams),
		errors.Is(err, opt.ErrUnknownAlgorithm),
		errors.Is(err, store.ErrBadCursor),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
