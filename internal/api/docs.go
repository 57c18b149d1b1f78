package api

import (
	"net/http"

	yaml "gopkg.in/yaml.v3"

	"antroute/openapi"
)

// OpenAPIHandler serves the API description as YAML, or as JSON for /openapi.json.
func (s *Server) OpenAPIHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/openapi.json" {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(openapi.Spec)
		return
	}
	var obj map[string]any
	if err := yaml.Unmarshal(openapi.Spec, &obj); err != nil {
		writeProblem(w, http.StatusInternalServerError, "OpenAPI parse failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

// DocsHandler serves a minimal ReDoc page referencing /openapi.yaml
func (s *Server) DocsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(`<!DOCTYPE html><html><head><title>antroute API</title>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1">
<script src="https://cdn.jsdelivr.net/npm/redoc@next/bundles/redoc.standalone.js"></script>
</head><body>
<redoc spec-url="/openapi.yaml"></redoc>
</body></html>`))
}
