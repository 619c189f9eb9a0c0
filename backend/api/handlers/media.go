package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ZhengJun-AI/bili-audio/backend/httpapi"
	"github.com/ZhengJun-AI/bili-audio/backend/router"
	"github.com/ZhengJun-AI/bili-audio/backend/service/bilibili"
)

type mediaModule struct {
	deps *router.Dependencies
}

func init() {
	router.Register(func(deps *router.Dependencies) router.Module {
		return &mediaModule{deps: deps}
	})
}

func (m *mediaModule) Prefix() string {
	return m.deps.Config.APIBase
}

func (m *mediaModule) Routes() []router.Route {
	return []router.Route{
		{Method: http.MethodPost, Pattern: "/resolve", Summary: "Expand a b23.tv short link", Handler: m.resolve},
		{Method: http.MethodPost, Pattern: "/info", Summary: "Fetch media metadata", Handler: m.info},
		{Method: http.MethodPost, Pattern: "/download", Summary: "Resolve a direct audio download URL", Handler: m.download},
	}
}

func (m *mediaModule) resolve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		httpapi.Fail(w, http.StatusBadRequest, "请求体格式错误")
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		httpapi.Fail(w, http.StatusBadRequest, "请输入有效的链接")
		return
	}

	resolved, err := m.deps.Bilibili.ResolveShortLink(r.Context(), body.URL)
	if err != nil {
		failWithError(w, err)
		return
	}
	httpapi.OK(w, map[string]string{"resolvedUrl": resolved})
}

func (m *mediaModule) info(w http.ResponseWriter, r *http.Request) {
	ref, ok := decodeReference(w, r)
	if !ok {
		return
	}
	descriptor, err := m.deps.Bilibili.GetMediaInfo(r.Context(), ref)
	if err != nil {
		failWithError(w, err)
		return
	}
	httpapi.OK(w, descriptor)
}

// download accepts either pre-parsed {type,id} identifiers or a raw
// {url}, in which case the full input pipeline runs server-side.
func (m *mediaModule) download(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		URL  string `json:"url"`
	}
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		httpapi.Fail(w, http.StatusBadRequest, "请求体格式错误")
		return
	}

	var descriptor *bilibili.MediaDescriptor
	var err error
	switch {
	case strings.TrimSpace(body.URL) != "":
		descriptor, err = m.deps.Bilibili.ResolveFromInput(r.Context(), body.URL)
	case strings.TrimSpace(body.ID) != "":
		descriptor, err = m.deps.Bilibili.ResolveDownload(r.Context(), bilibili.MediaReference{
			Kind: bilibili.MediaKind(strings.TrimSpace(body.Type)),
			ID:   strings.TrimSpace(body.ID),
		})
	default:
		httpapi.Fail(w, http.StatusBadRequest, "请输入有效的链接")
		return
	}
	if err != nil {
		failWithError(w, err)
		return
	}
	httpapi.OK(w, descriptor)
}

func decodeReference(w http.ResponseWriter, r *http.Request) (bilibili.MediaReference, bool) {
	var body struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		httpapi.Fail(w, http.StatusBadRequest, "请求体格式错误")
		return bilibili.MediaReference{}, false
	}
	if strings.TrimSpace(body.ID) == "" {
		httpapi.Fail(w, http.StatusBadRequest, "请输入有效的链接")
		return bilibili.MediaReference{}, false
	}
	return bilibili.MediaReference{
		Kind: bilibili.MediaKind(strings.TrimSpace(body.Type)),
		ID:   strings.TrimSpace(body.ID),
	}, true
}

// failWithError maps the service error taxonomy onto HTTP statuses:
// parse failures are the caller's fault, everything else is upstream.
func failWithError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if bilibili.KindOf(err) == bilibili.KindParse {
		status = http.StatusBadRequest
	}
	var apiErr *bilibili.Error
	if errors.As(err, &apiErr) {
		httpapi.Fail(w, status, apiErr.Message)
		return
	}
	httpapi.Fail(w, status, err.Error())
}
