package bilibili

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/ZhengJun-AI/bili-audio/backend/store"
)

// qrState tracks one in-flight QR login attempt. Polling happens lazily
// from status reads instead of a background goroutine, at most once per
// two seconds.
type qrState struct {
	status      store.QrCodeStatus
	expireAt    time.Time
	lastPollAt  time.Time
	isCompleted bool
}

type userInfo struct {
	IsLogin bool   `json:"isLogin"`
	Mid     int64  `json:"mid"`
	Uname   string `json:"uname"`
}

func (s *APIService) getUserInfo(ctx context.Context) (*userInfo, error) {
	data, _, err := requestJSON[userInfo](s, ctx, s.apiURL(navPath))
	if err != nil {
		return nil, err
	}
	if !data.IsLogin {
		return nil, errors.New("user is not logged in")
	}
	return &data, nil
}

func (s *APIService) GetLoginStatus(ctx context.Context) (store.LoginStatus, error) {
	status := store.LoginStatus{Status: store.AccountStatusNotLogin}
	if s.store == nil {
		status.Message = "未配置存储，登录不可用"
		return status, nil
	}
	cookieSetting, err := s.store.GetCookieSetting(ctx)
	if err != nil {
		return status, err
	}

	if qr := s.getQRCodeStatus(); qr != nil {
		status.Status = store.AccountStatusLogging
		status.QrCodeStatus = qr
	}

	if strings.TrimSpace(cookieSetting.Content) == "" {
		if status.QrCodeStatus == nil {
			status.Message = "未登录"
		}
		return status, nil
	}

	user, err := s.getUserInfo(ctx)
	if err != nil {
		s.logWarn("get user info failed in status: %v", err)
		status.Message = "Cookie 已保存但校验失败: " + err.Error()
		if status.QrCodeStatus != nil {
			status.Status = store.AccountStatusLogging
		}
		return status, nil
	}
	status.Status = store.AccountStatusLogged
	status.Message = "已登录: " + user.Uname
	return status, nil
}

func (s *APIService) RequestQRCodeLogin(ctx context.Context) (*store.QrCodeStatus, error) {
	type qrGenerateData struct {
		URL       string `json:"url"`
		QRCodeKey string `json:"qrcode_key"`
	}
	respData, _, err := requestJSON[qrGenerateData](s, ctx, s.passportURL(qrGeneratePath))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(respData.URL) == "" || strings.TrimSpace(respData.QRCodeKey) == "" {
		return nil, errors.New("invalid qrcode response")
	}

	pngBytes, err := qrcode.Encode(respData.URL, qrcode.Medium, 280)
	if err != nil {
		return nil, err
	}
	qrImage := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)

	now := time.Now()
	state := &qrState{
		status: store.QrCodeStatus{
			QrCode:              qrImage,
			QrCodeKey:           respData.QRCodeKey,
			QrCodeEffectiveTime: 180,
			IsScaned:            false,
			IsLogged:            false,
			Message:             "二维码生成成功，等待扫码",
		},
		expireAt: now.Add(180 * time.Second),
	}
	s.mu.Lock()
	s.qrState = state
	s.mu.Unlock()

	copied := state.status
	return &copied, nil
}

func (s *APIService) getQRCodeStatus() *store.QrCodeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.qrState == nil {
		return nil
	}
	if time.Now().After(s.qrState.expireAt) {
		expired := s.qrState.status
		expired.QrCodeEffectiveTime = 0
		expired.Message = "二维码已失效"
		s.qrState = nil
		return &expired
	}

	if !s.qrState.isCompleted && time.Since(s.qrState.lastPollAt) >= 2*time.Second {
		s.pollQRCodeLocked(context.Background())
	}

	remaining := int(time.Until(s.qrState.expireAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	current := s.qrState.status
	current.QrCodeEffectiveTime = remaining
	return &current
}

func (s *APIService) pollQRCodeLocked(ctx context.Context) {
	if s.qrState == nil {
		return
	}
	s.qrState.lastPollAt = time.Now()

	pollURL := s.passportURL(qrPollPath) + "?qrcode_key=" + url.QueryEscape(s.qrState.status.QrCodeKey) + "&source=main_mini"
	type qrPollData struct {
		Code         int    `json:"code"`
		Message      string `json:"message"`
		RefreshToken string `json:"refresh_token"`
	}
	pollData, cookies, err := requestJSON[qrPollData](s, ctx, pollURL)
	if err != nil {
		s.logWarn("poll qrcode failed: %v", err)
		s.qrState.status.Message = "轮询二维码失败: " + err.Error()
		return
	}

	switch pollData.Code {
	case 0:
		if len(cookies) > 0 {
			merged := mergeCookieWithResponse(s.readCookieString(), cookies)
			_ = s.store.SaveCookie(context.Background(), merged, pollData.RefreshToken)
		} else {
			_ = s.store.SaveRefreshToken(context.Background(), pollData.RefreshToken)
		}
		s.logInfo("qrcode login succeeded")
		s.qrState.status.IsLogged = true
		s.qrState.status.IsScaned = true
		s.qrState.status.Message = "登录成功"
		s.qrState.status.RefreshToken = pollData.RefreshToken
		s.qrState.isCompleted = true
	case 86090:
		s.qrState.status.IsScaned = true
		s.qrState.status.Message = "二维码已扫码，待确认"
	case 86101:
		s.qrState.status.IsScaned = false
		s.qrState.status.Message = "二维码未扫码"
	case 86038:
		s.qrState.status.Message = "二维码已失效"
		s.qrState.expireAt = time.Now()
	default:
		s.qrState.status.Message = fmt.Sprintf("二维码状态异常: code=%d, message=%s", pollData.Code, pollData.Message)
	}
}

func (s *APIService) SetCookie(ctx context.Context, content string) error {
	if s.store == nil {
		return errors.New("store is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.store.SaveCookieContent(ctx, strings.TrimSpace(content))
}

func (s *APIService) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.qrState = nil
	s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.store.SaveCookie(ctx, "", "")
}

func parseCookieString(raw string) map[string]string {
	result := map[string]string{}
	for _, token := range strings.Split(raw, ";") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		eq := strings.Index(token, "=")
		if eq <= 0 {
			continue
		}
		name := strings.TrimSpace(token[:eq])
		value := strings.TrimSpace(token[eq+1:])
		if name == "" {
			continue
		}
		result[name] = value
	}
	return result
}

func mergeCookieWithResponse(existing string, newCookies []*http.Cookie) string {
	cookieMap := parseCookieString(existing)
	for _, cookie := range newCookies {
		if cookie == nil || strings.TrimSpace(cookie.Name) == "" {
			continue
		}
		cookieMap[cookie.Name] = cookie.Value
	}
	keys := make([]string, 0, len(cookieMap))
	for key := range cookieMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+cookieMap[key])
	}
	return strings.Join(parts, "; ")
}
