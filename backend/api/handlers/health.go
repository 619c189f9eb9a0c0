package handlers

import (
	"net/http"
	"time"

	"github.com/ZhengJun-AI/bili-audio/backend/httpapi"
	"github.com/ZhengJun-AI/bili-audio/backend/router"
)

type healthModule struct {
	deps *router.Dependencies
}

func init() {
	router.Register(func(deps *router.Dependencies) router.Module {
		return &healthModule{deps: deps}
	})
}

func (m *healthModule) Prefix() string {
	return m.deps.Config.APIBase
}

func (m *healthModule) Routes() []router.Route {
	return []router.Route{
		{Method: http.MethodGet, Pattern: "/health", Summary: "Health check", Handler: m.health},
	}
}

// health keeps a flat payload instead of the usual data envelope; the
// frontend probes it before the envelope helpers existed and still
// expects status at the top level.
func (m *healthModule) health(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   m.deps.Config.Version,
	})
}
