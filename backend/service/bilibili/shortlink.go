package bilibili

import (
	"context"
	"io"
	"net/http"
	"strings"
)

// ResolveShortLink expands a b23.tv share link into its canonical long
// form. Anything that is not a short link passes through unchanged. No
// automatic retries; retry policy belongs to the caller.
func (s *APIService) ResolveShortLink(ctx context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, ShortLinkHost) {
		return raw, nil
	}
	return s.expandShortLink(ctx, raw)
}

func (s *APIService) expandShortLink(ctx context.Context, shortURL string) (string, error) {
	// First try: redirect-suppressed HEAD, read the Location header.
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, shortURL, nil)
	if err != nil {
		return "", wrapError(KindResolution, "短链接解析失败", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	noRedirect := &http.Client{
		Timeout: s.client.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := noRedirect.Do(req)
	if err == nil {
		location := resp.Header.Get("Location")
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if location != "" {
			return location, nil
		}
	} else {
		s.logWarn("short link HEAD probe failed: %v", err)
	}

	// Some hosts redirect via document content or multiple hops; follow a
	// full GET and use the final resolved address.
	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, shortURL, nil)
	if err != nil {
		return "", wrapError(KindResolution, "短链接解析失败", err)
	}
	getReq.Header.Set("User-Agent", browserUserAgent)

	getResp, err := s.client.Do(getReq)
	if err != nil {
		return "", wrapError(KindResolution, "短链接解析失败", err)
	}
	defer getResp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(getResp.Body, 1<<20))

	if getResp.Request == nil || getResp.Request.URL == nil {
		return "", newError(KindResolution, "短链接解析失败")
	}
	final := getResp.Request.URL.String()
	if final == "" || final == shortURL {
		return "", newError(KindResolution, "短链接解析失败")
	}
	return final, nil
}
