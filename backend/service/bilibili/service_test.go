package bilibili

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ZhengJun-AI/bili-audio/backend/config"
)

func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": message,
		"data":    data,
	})
}

func upstreamService(t *testing.T, mux *http.ServeMux) *APIService {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return testService(config.Config{
		BiliAPIBase:       server.URL,
		BiliPassportBase:  server.URL,
		WbiImgKeyFallback: testImgKey,
		WbiSubKeyFallback: testSubKey,
	})
}

func serveNavKeys(mux *http.ServeMux) {
	mux.HandleFunc(navPath, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, "", map[string]any{
			"isLogin": false,
			"wbi_img": map[string]string{
				"img_url": "https://i0.hdslb.com/bfs/wbi/" + testImgKey + ".png",
				"sub_url": "https://i0.hdslb.com/bfs/wbi/" + testSubKey + ".png",
			},
		})
	})
}

func TestResolveVideoAudioEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	serveNavKeys(mux)
	mux.HandleFunc(viewPath, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("bvid"); got != "BV1xx411c7mD" {
			t.Errorf("view bvid = %q", got)
		}
		writeEnvelope(w, 0, "", map[string]any{
			"title":    "测试视频",
			"pic":      "https://i0.hdslb.com/cover.jpg",
			"duration": 213,
			"owner":    map[string]any{"name": "某UP主"},
			"cid":      987654321,
		})
	})
	mux.HandleFunc(playURLPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("qn") != "80" || q.Get("fnval") != "16" || q.Get("fnver") != "0" || q.Get("fourk") != "1" {
			t.Errorf("unexpected quality profile: %s", r.URL.RawQuery)
		}
		if q.Get("cid") != "987654321" {
			t.Errorf("playurl cid = %q", q.Get("cid"))
		}
		if q.Get("w_rid") == "" || q.Get("wts") == "" {
			t.Error("playurl request is not signed")
		}
		writeEnvelope(w, 0, "", map[string]any{
			"dash": map[string]any{
				"audio": []map[string]any{
					{"id": 30216, "baseUrl": "https://cdn.example/a-64k", "bandwidth": 67890},
					{"id": 30280, "baseUrl": "https://cdn.example/a-320k", "bandwidth": 319000},
					{"id": 30232, "baseUrl": "https://cdn.example/a-128k", "bandwidth": 128000},
				},
			},
		})
	})

	svc := upstreamService(t, mux)
	descriptor, err := svc.ResolveDownload(context.Background(), MediaReference{Kind: KindVideo, ID: "BV1xx411c7mD"})
	if err != nil {
		t.Fatalf("ResolveDownload: %v", err)
	}
	if descriptor.Title != "测试视频" || descriptor.Author != "某UP主" || descriptor.Duration != 213 {
		t.Fatalf("descriptor metadata wrong: %+v", descriptor)
	}
	if descriptor.DownloadURL != "https://cdn.example/a-320k" {
		t.Fatalf("downloadUrl = %q, want the highest-bandwidth stream", descriptor.DownloadURL)
	}
	if descriptor.SourceType != KindVideo || descriptor.SourceID != "BV1xx411c7mD" {
		t.Fatalf("source fields wrong: %+v", descriptor)
	}
}

func TestResolveVideoAudioLegacyAvID(t *testing.T) {
	mux := http.NewServeMux()
	serveNavKeys(mux)
	mux.HandleFunc(viewPath, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("aid"); got != "170001" {
			t.Errorf("view aid = %q, want bare digits", got)
		}
		writeEnvelope(w, 0, "", map[string]any{"title": "老视频", "cid": 1})
	})
	mux.HandleFunc(playURLPath, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, "", map[string]any{
			"durl": []map[string]any{{"url": "https://cdn.example/legacy.flv"}},
		})
	})

	svc := upstreamService(t, mux)
	descriptor, err := svc.ResolveDownload(context.Background(), MediaReference{Kind: KindVideo, ID: "av170001"})
	if err != nil {
		t.Fatalf("ResolveDownload: %v", err)
	}
	if descriptor.DownloadURL != "https://cdn.example/legacy.flv" {
		t.Fatalf("downloadUrl = %q, want progressive fallback", descriptor.DownloadURL)
	}
}

func TestResolveVideoNotFound(t *testing.T) {
	mux := http.NewServeMux()
	serveNavKeys(mux)
	mux.HandleFunc(viewPath, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, -404, "啥都木有", nil)
	})

	svc := upstreamService(t, mux)
	_, err := svc.ResolveDownload(context.Background(), MediaReference{Kind: KindVideo, ID: "BV1notexist"})
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != KindNotFound {
		t.Fatalf("error kind = %v, want KindNotFound", KindOf(err))
	}
	if err.Error() != "啥都木有" {
		t.Fatalf("error message = %q, want upstream message carried through", err.Error())
	}
}

func TestResolveVideoNoStream(t *testing.T) {
	mux := http.NewServeMux()
	serveNavKeys(mux)
	mux.HandleFunc(viewPath, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, "", map[string]any{"title": "残缺视频", "cid": 2})
	})
	mux.HandleFunc(playURLPath, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, "", map[string]any{})
	})

	svc := upstreamService(t, mux)
	_, err := svc.ResolveDownload(context.Background(), MediaReference{Kind: KindVideo, ID: "BV1xx411c7mD"})
	if KindOf(err) != KindNoStream {
		t.Fatalf("error kind = %v, want KindNoStream", KindOf(err))
	}
}

func TestResolveVideoSucceedsWhenNavFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(navPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc(viewPath, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, "", map[string]any{"title": "仍可解析", "cid": 3})
	})
	mux.HandleFunc(playURLPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("w_rid") == "" {
			t.Error("playurl request not signed with fallback keys")
		}
		writeEnvelope(w, 0, "", map[string]any{
			"dash": map[string]any{
				"audio": []map[string]any{{"baseUrl": "https://cdn.example/audio", "bandwidth": 1}},
			},
		})
	})

	svc := upstreamService(t, mux)
	descriptor, err := svc.ResolveDownload(context.Background(), MediaReference{Kind: KindVideo, ID: "BV1xx411c7mD"})
	if err != nil {
		t.Fatalf("ResolveDownload with broken nav: %v", err)
	}
	if descriptor.DownloadURL != "https://cdn.example/audio" {
		t.Fatalf("downloadUrl = %q", descriptor.DownloadURL)
	}
}

func TestResolveAudioDownload(t *testing.T) {
	mux := http.NewServeMux()
	serveNavKeys(mux)
	mux.HandleFunc(audioInfoPath, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("song_id"); got != "123456" {
			t.Errorf("song_id = %q, want prefix stripped", got)
		}
		writeEnvelope(w, 0, "", map[string]any{
			"title":    "测试歌曲",
			"cover":    "https://i0.hdslb.com/song.jpg",
			"duration": 245,
			"author":   "歌手",
		})
	})
	mux.HandleFunc(audioURLPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("songid") != "123456" || q.Get("quality") != "2" || q.Get("privilege") != "2" || q.Get("mid") != "0" {
			t.Errorf("unexpected audio url query: %s", r.URL.RawQuery)
		}
		if q.Get("w_rid") == "" {
			t.Error("audio url request is not signed")
		}
		writeEnvelope(w, 0, "", map[string]any{
			"cdns": []string{"https://cdn.example/song-main", "https://cdn.example/song-mirror"},
		})
	})

	svc := upstreamService(t, mux)
	descriptor, err := svc.ResolveDownload(context.Background(), MediaReference{Kind: KindAudio, ID: "au123456"})
	if err != nil {
		t.Fatalf("ResolveDownload: %v", err)
	}
	if descriptor.Title != "测试歌曲" || descriptor.Author != "歌手" {
		t.Fatalf("descriptor metadata wrong: %+v", descriptor)
	}
	if descriptor.DownloadURL != "https://cdn.example/song-main" {
		t.Fatalf("downloadUrl = %q, want first CDN mirror", descriptor.DownloadURL)
	}
}

func TestResolveAudioNoCdns(t *testing.T) {
	mux := http.NewServeMux()
	serveNavKeys(mux)
	mux.HandleFunc(audioInfoPath, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, "", map[string]any{"title": "无源歌曲"})
	})
	mux.HandleFunc(audioURLPath, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, "", map[string]any{"cdns": []string{}})
	})

	svc := upstreamService(t, mux)
	_, err := svc.ResolveDownload(context.Background(), MediaReference{Kind: KindAudio, ID: "au123456"})
	if KindOf(err) != KindNoStream {
		t.Fatalf("error kind = %v, want KindNoStream", KindOf(err))
	}
}

func TestGetMediaInfoOmitsDownloadURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(viewPath, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, "", map[string]any{
			"title":    "仅元数据",
			"pic":      "https://i0.hdslb.com/cover.jpg",
			"duration": 99,
			"owner":    map[string]any{"name": "UP"},
			"cid":      7,
		})
	})

	svc := upstreamService(t, mux)
	descriptor, err := svc.GetMediaInfo(context.Background(), MediaReference{Kind: KindVideo, ID: "BV1xx411c7mD"})
	if err != nil {
		t.Fatalf("GetMediaInfo: %v", err)
	}
	if descriptor.DownloadURL != "" {
		t.Fatalf("info lookup produced a downloadUrl: %q", descriptor.DownloadURL)
	}
	if descriptor.Title != "仅元数据" {
		t.Fatalf("title = %q", descriptor.Title)
	}
}

func TestResolveFromInputUnparsable(t *testing.T) {
	svc := testService(config.Config{})
	_, err := svc.ResolveFromInput(context.Background(), "not a bilibili link at all")
	if KindOf(err) != KindParse {
		t.Fatalf("error kind = %v, want KindParse", KindOf(err))
	}
}

func TestRequestJSONTransportError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(viewPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	svc := upstreamService(t, mux)
	_, err := svc.GetMediaInfo(context.Background(), MediaReference{Kind: KindVideo, ID: "BV1xx411c7mD"})
	if KindOf(err) != KindTransport {
		t.Fatalf("error kind = %v, want KindTransport", KindOf(err))
	}
}
