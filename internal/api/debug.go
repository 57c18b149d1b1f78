package api

import (
	"net/http"
	"time"

	"antroute/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"host":  buildinfo.Host(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":                s.Config.Server.Port,
			"rateRps":             s.Config.Rate.RPS,
			"rateBurst":           s.Config.Rate.Burst,
			"webhookMaxAttempts":  s.Config.Webhooks.MaxAttempts,
			"solverAlgorithm":     s.Config.Solver.Algorithm,
			"solverMaxRunSeconds": s.Config.Solver.MaxRunSeconds,
			"hasDatabaseUrl":      s.Config.Server.DatabaseURL != "",
			"hasRedisUrl":         s.Config.Server.RedisURL != "",
		},
	})
}
