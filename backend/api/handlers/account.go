package handlers

import (
	"net/http"

	"github.com/ZhengJun-AI/bili-audio/backend/httpapi"
	"github.com/ZhengJun-AI/bili-audio/backend/router"
)

type accountModule struct {
	deps *router.Dependencies
}

func init() {
	router.Register(func(deps *router.Dependencies) router.Module {
		return &accountModule{deps: deps}
	})
}

func (m *accountModule) Prefix() string {
	return m.deps.Config.APIBase + "/account"
}

func (m *accountModule) Routes() []router.Route {
	return []router.Route{
		{Method: http.MethodGet, Pattern: "/status", Summary: "Get login status", Handler: m.status},
		{Method: http.MethodPost, Pattern: "/login/qrcode/start", Summary: "Start QR login", Handler: m.loginByQRCode},
		{Method: http.MethodPost, Pattern: "/logout", Summary: "Logout", Handler: m.logout},
		{Method: http.MethodGet, Pattern: "/cookie", Summary: "Get raw cookie", Handler: m.getCookie},
		{Method: http.MethodPost, Pattern: "/cookie", Summary: "Set raw cookie", Handler: m.setCookie},
	}
}

func (m *accountModule) status(w http.ResponseWriter, r *http.Request) {
	result, err := m.deps.Bilibili.GetLoginStatus(r.Context())
	if err != nil {
		httpapi.Fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpapi.OK(w, result)
}

func (m *accountModule) loginByQRCode(w http.ResponseWriter, r *http.Request) {
	status, err := m.deps.Bilibili.RequestQRCodeLogin(r.Context())
	if err != nil {
		httpapi.Fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpapi.OK(w, status)
}

func (m *accountModule) logout(w http.ResponseWriter, r *http.Request) {
	if err := m.deps.Bilibili.Logout(r.Context()); err != nil {
		httpapi.Fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpapi.OK(w, "ok")
}

func (m *accountModule) getCookie(w http.ResponseWriter, r *http.Request) {
	cookie, err := m.deps.Store.GetCookieSetting(r.Context())
	if err != nil {
		httpapi.Fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpapi.OK(w, cookie)
}

func (m *accountModule) setCookie(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.Fail(w, http.StatusBadRequest, "请求体格式错误")
		return
	}
	if err := m.deps.Bilibili.SetCookie(r.Context(), req.Content); err != nil {
		httpapi.Fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpapi.OK(w, "ok")
}
