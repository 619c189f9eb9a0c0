package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCookieSettingSeededAndUpdatable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	setting, err := s.GetCookieSetting(ctx)
	if err != nil {
		t.Fatalf("get seeded cookie: %v", err)
	}
	if setting.Content != "" || setting.RefreshToken != "" {
		t.Fatalf("seed row not empty: %+v", setting)
	}

	if err := s.SaveCookie(ctx, "SESSDATA=abc; bili_jct=def", "token-1"); err != nil {
		t.Fatalf("save cookie: %v", err)
	}
	setting, err = s.GetCookieSetting(ctx)
	if err != nil {
		t.Fatalf("get cookie after save: %v", err)
	}
	if setting.Content != "SESSDATA=abc; bili_jct=def" || setting.RefreshToken != "token-1" {
		t.Fatalf("cookie not persisted: %+v", setting)
	}

	if err := s.SaveCookieContent(ctx, "SESSDATA=xyz"); err != nil {
		t.Fatalf("save content: %v", err)
	}
	setting, _ = s.GetCookieSetting(ctx)
	if setting.Content != "SESSDATA=xyz" || setting.RefreshToken != "token-1" {
		t.Fatalf("content update clobbered refresh token: %+v", setting)
	}
}

func TestAPIErrorLogRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, endpoint := range []string{"/x/web-interface/view", "/x/player/playurl", "/x/web-interface/view"} {
		if _, err := s.CreateAPIErrorLog(ctx, APIErrorLog{
			Endpoint:     endpoint,
			Method:       "GET",
			Stage:        "api_code",
			HTTPStatus:   200,
			ErrorMessage: "code=-404",
		}); err != nil {
			t.Fatalf("create log: %v", err)
		}
	}

	all, err := s.ListAPIErrorLogs(ctx, 10, "")
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d logs, want 3", len(all))
	}
	if all[0].ID <= all[1].ID {
		t.Fatal("logs not ordered newest first")
	}

	filtered, err := s.ListAPIErrorLogs(ctx, 10, "playurl")
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Endpoint != "/x/player/playurl" {
		t.Fatalf("filter result wrong: %+v", filtered)
	}
}
