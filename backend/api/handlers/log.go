package handlers

import (
	"net/http"
	"strconv"

	"github.com/ZhengJun-AI/bili-audio/backend/httpapi"
	"github.com/ZhengJun-AI/bili-audio/backend/router"
)

type logModule struct {
	deps *router.Dependencies
}

func init() {
	router.Register(func(deps *router.Dependencies) router.Module {
		return &logModule{deps: deps}
	})
}

func (m *logModule) Prefix() string {
	return m.deps.Config.APIBase + "/logs"
}

func (m *logModule) Routes() []router.Route {
	return []router.Route{
		{Method: http.MethodGet, Pattern: "/api-errors", Summary: "List recent upstream API failures", Handler: m.apiErrors},
	}
}

func (m *logModule) apiErrors(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := m.deps.Store.ListAPIErrorLogs(r.Context(), limit, r.URL.Query().Get("endpoint"))
	if err != nil {
		httpapi.Fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpapi.OK(w, items)
}
