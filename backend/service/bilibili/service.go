package bilibili

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/ZhengJun-AI/bili-audio/backend/config"
	"github.com/ZhengJun-AI/bili-audio/backend/store"
)

const (
	viewPath      = "/x/web-interface/view"
	playURLPath   = "/x/player/playurl"
	navPath       = "/x/web-interface/nav"
	audioInfoPath = "/audio/music-service-c/songs/playing"
	audioURLPath  = "/audio/music-service-c/url"

	qrGeneratePath = "/x/passport-login/web/qrcode/generate"
	qrPollPath     = "/x/passport-login/web/qrcode/poll"

	// The upstream API rejects requests without a browser UA and referer.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/109.0.0.0 Safari/537.36"
	refererURL       = "https://www.bilibili.com/"
)

type Service interface {
	ResolveShortLink(ctx context.Context, raw string) (string, error)
	GetMediaInfo(ctx context.Context, ref MediaReference) (*MediaDescriptor, error)
	ResolveDownload(ctx context.Context, ref MediaReference) (*MediaDescriptor, error)
	ResolveFromInput(ctx context.Context, text string) (*MediaDescriptor, error)
	GetLoginStatus(ctx context.Context) (store.LoginStatus, error)
	RequestQRCodeLogin(ctx context.Context) (*store.QrCodeStatus, error)
	SetCookie(ctx context.Context, content string) error
	Logout(ctx context.Context) error
}

// APIService talks to the Bilibili web API. It is stateless between
// resolutions: every call fetches fresh WBI keys and nothing is shared
// across concurrent requests except the HTTP client and the store.
type APIService struct {
	store  *store.Store
	cfg    config.Config
	client *http.Client
	signer *Signer

	mu      sync.Mutex
	qrState *qrState
}

func New(storeDB *store.Store, cfg config.Config) *APIService {
	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIService{
		store:  storeDB,
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		signer: NewSigner(KeyPair{ImgKey: cfg.WbiImgKeyFallback, SubKey: cfg.WbiSubKeyFallback}),
	}
}

func (s *APIService) logInfo(format string, args ...any) {
	log.Printf("[bilibili] "+format, args...)
}

func (s *APIService) logWarn(format string, args ...any) {
	log.Printf("[bilibili][warn] "+format, args...)
}

func (s *APIService) logError(format string, args ...any) {
	log.Printf("[bilibili][error] "+format, args...)
}

func (s *APIService) apiURL(path string) string {
	return s.cfg.BiliAPIBase + path
}

func (s *APIService) passportURL(path string) string {
	return s.cfg.BiliPassportBase + path
}

// ResolveFromInput runs the full pipeline on raw user text: parse, expand
// a short link when one is present, re-parse, then resolve the download.
func (s *APIService) ResolveFromInput(ctx context.Context, text string) (*MediaDescriptor, error) {
	ref, ok := Parse(text)
	if !ok {
		return nil, newError(KindParse, "无法解析URL，请检查链接格式")
	}
	if strings.Contains(ref.ID, ShortLinkHost) {
		expanded, err := s.ResolveShortLink(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		resolved, ok := Parse(expanded)
		if !ok || strings.Contains(resolved.ID, ShortLinkHost) {
			return nil, newError(KindParse, "无法解析URL，请检查链接格式")
		}
		ref = resolved
	}
	return s.ResolveDownload(ctx, ref)
}

// GetMediaInfo fetches basic metadata only, without committing to a
// stream lookup.
func (s *APIService) GetMediaInfo(ctx context.Context, ref MediaReference) (*MediaDescriptor, error) {
	switch ref.Kind {
	case KindVideo:
		view, err := s.getVideoView(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return &MediaDescriptor{
			Title:      view.Title,
			Cover:      view.Pic,
			Duration:   view.Duration,
			Author:     view.Owner.Name,
			SourceType: KindVideo,
			SourceID:   ref.ID,
		}, nil
	case KindAudio:
		song, err := s.getAudioSong(ctx, strings.TrimPrefix(ref.ID, "au"))
		if err != nil {
			return nil, err
		}
		return &MediaDescriptor{
			Title:      song.Title,
			Cover:      song.Cover,
			Duration:   song.Duration,
			Author:     song.Author,
			SourceType: KindAudio,
			SourceID:   ref.ID,
		}, nil
	default:
		return nil, newError(KindParse, "不支持的媒体类型")
	}
}

// ResolveDownload produces the full descriptor including the signed CDN
// download address.
func (s *APIService) ResolveDownload(ctx context.Context, ref MediaReference) (*MediaDescriptor, error) {
	switch ref.Kind {
	case KindVideo:
		return s.resolveVideoAudio(ctx, ref.ID)
	case KindAudio:
		return s.resolveAudioDownload(ctx, ref.ID)
	default:
		return nil, newError(KindParse, "不支持的媒体类型")
	}
}

type videoView struct {
	Title    string `json:"title"`
	Pic      string `json:"pic"`
	Duration int    `json:"duration"`
	Owner    struct {
		Name string `json:"name"`
	} `json:"owner"`
	Cid int64 `json:"cid"`
}

// videoQueryParam maps a canonical video ID to the view/playurl query
// parameter it belongs in: BV strings go to bvid, legacy av numbers to aid.
func videoQueryParam(id string) (string, string) {
	if strings.HasPrefix(id, "av") {
		return "aid", strings.TrimPrefix(id, "av")
	}
	return "bvid", id
}

func (s *APIService) getVideoView(ctx context.Context, id string) (*videoView, error) {
	key, value := videoQueryParam(id)
	view, _, err := requestJSON[videoView](s, ctx, s.apiURL(viewPath)+"?"+key+"="+url.QueryEscape(value))
	if err != nil {
		return nil, asNotFound(err)
	}
	return &view, nil
}

func (s *APIService) resolveVideoAudio(ctx context.Context, id string) (*MediaDescriptor, error) {
	view, err := s.getVideoView(ctx, id)
	if err != nil {
		return nil, err
	}

	key, value := videoQueryParam(id)
	params := map[string]string{
		key:     value,
		"cid":   strconv.FormatInt(view.Cid, 10),
		"qn":    "80",
		"fnval": "16",
		"fnver": "0",
		"fourk": "1",
	}
	keys := s.fetchWbiKeys(ctx)
	playTarget := s.apiURL(playURLPath) + "?" + s.signer.SignedQuery(params, keys)
	info, _, err := requestJSON[playInfo](s, ctx, playTarget)
	if err != nil {
		return nil, err
	}

	downloadURL, err := normalizeStreams(info).pickAudioURL()
	if err != nil {
		return nil, err
	}
	return &MediaDescriptor{
		Title:       view.Title,
		Cover:       view.Pic,
		Duration:    view.Duration,
		Author:      view.Owner.Name,
		DownloadURL: downloadURL,
		SourceType:  KindVideo,
		SourceID:    id,
	}, nil
}

type audioSong struct {
	Title    string `json:"title"`
	Cover    string `json:"cover"`
	Duration int    `json:"duration"`
	Author   string `json:"author"`
}

func (s *APIService) getAudioSong(ctx context.Context, songID string) (*audioSong, error) {
	song, _, err := requestJSON[audioSong](s, ctx, s.apiURL(audioInfoPath)+"?song_id="+url.QueryEscape(songID))
	if err != nil {
		return nil, asNotFound(err)
	}
	return &song, nil
}

func (s *APIService) resolveAudioDownload(ctx context.Context, id string) (*MediaDescriptor, error) {
	songID := strings.TrimPrefix(id, "au")
	song, err := s.getAudioSong(ctx, songID)
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"songid":    songID,
		"quality":   "2",
		"privilege": "2",
		"mid":       "0",
	}
	keys := s.fetchWbiKeys(ctx)
	type audioPlay struct {
		Cdns []string `json:"cdns"`
	}
	play, _, err := requestJSON[audioPlay](s, ctx, s.apiURL(audioURLPath)+"?"+s.signer.SignedQuery(params, keys))
	if err != nil {
		return nil, err
	}
	if len(play.Cdns) == 0 || play.Cdns[0] == "" {
		return nil, newError(KindNoStream, "未找到可用的音频下载链接")
	}
	return &MediaDescriptor{
		Title:       song.Title,
		Cover:       song.Cover,
		Duration:    song.Duration,
		Author:      song.Author,
		DownloadURL: play.Cdns[0],
		SourceType:  KindAudio,
		SourceID:    id,
	}, nil
}

// asNotFound downgrades an upstream application rejection on a metadata
// lookup to a not-found failure, keeping the upstream message.
func asNotFound(err error) error {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind == KindRemoteAPI {
		return &Error{Kind: KindNotFound, Message: apiErr.Message, Code: apiErr.Code, Err: apiErr}
	}
	return err
}

type navData struct {
	WbiImg struct {
		ImgURL string `json:"img_url"`
		SubURL string `json:"sub_url"`
	} `json:"wbi_img"`
}

// fetchWbiKeys retrieves the rotating signing keys, degrading to the
// configured fallback pair on any failure. Availability beats
// correctness here: the fallback keys are long-lived and usually valid.
func (s *APIService) fetchWbiKeys(ctx context.Context) KeyPair {
	data, _, err := requestJSON[navData](s, ctx, s.apiURL(navPath))
	if err != nil {
		s.logWarn("fetch wbi keys failed, using fallback pair: %v", err)
		return s.signer.Fallback()
	}
	imgKey := keyFromWbiURL(data.WbiImg.ImgURL)
	subKey := keyFromWbiURL(data.WbiImg.SubURL)
	if imgKey == "" || subKey == "" {
		s.logWarn("nav payload carried empty wbi keys, using fallback pair")
		return s.signer.Fallback()
	}
	return KeyPair{ImgKey: imgKey, SubKey: subKey}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) errorMessage() string {
	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = strings.TrimSpace(e.Msg)
	}
	if message == "" {
		message = "上游接口返回未知错误"
	}
	return message
}

type apiErrorReport struct {
	Endpoint     string
	Stage        string
	HTTPStatus   int
	ResponseBody string
	Detail       string
}

func (s *APIService) recordAPIError(report apiErrorReport) {
	s.logError("api call failed url=%s stage=%s status=%d err=%s",
		report.Endpoint, report.Stage, report.HTTPStatus, report.Detail)
	if s.store == nil {
		return
	}
	endpoint := report.Endpoint
	query := ""
	if idx := strings.Index(endpoint, "?"); idx >= 0 {
		query = endpoint[idx+1:]
		endpoint = endpoint[:idx]
	}
	if _, err := s.store.CreateAPIErrorLog(context.Background(), store.APIErrorLog{
		Endpoint:     endpoint,
		Method:       http.MethodGet,
		Stage:        report.Stage,
		HTTPStatus:   report.HTTPStatus,
		RequestQuery: query,
		ResponseBody: report.ResponseBody,
		ErrorMessage: report.Detail,
	}); err != nil {
		s.logError("record api_error_logs failed: %v", err)
	}
}

// requestJSON issues a single GET against the upstream API and decodes the
// code/message/data envelope. There is no retry here: failures surface
// immediately and retry policy stays with the caller.
func requestJSON[T any](s *APIService, ctx context.Context, targetURL string) (T, []*http.Cookie, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return zero, nil, wrapError(KindTransport, "构造请求失败", err)
	}
	s.setOutboundHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		s.recordAPIError(apiErrorReport{Endpoint: targetURL, Stage: "network", Detail: err.Error()})
		return zero, nil, wrapError(KindTransport, "网络请求失败", err)
	}
	defer resp.Body.Close()

	body, err := readDecodedBody(resp)
	if err != nil {
		s.recordAPIError(apiErrorReport{Endpoint: targetURL, Stage: "read_response", HTTPStatus: resp.StatusCode, Detail: err.Error()})
		return zero, nil, wrapError(KindTransport, "读取响应失败", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.recordAPIError(apiErrorReport{
			Endpoint:     targetURL,
			Stage:        "http_status",
			HTTPStatus:   resp.StatusCode,
			ResponseBody: string(body),
			Detail:       fmt.Sprintf("http status %d", resp.StatusCode),
		})
		return zero, nil, errorf(KindTransport, "HTTP %d", resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		s.recordAPIError(apiErrorReport{
			Endpoint:     targetURL,
			Stage:        "decode_response",
			HTTPStatus:   resp.StatusCode,
			ResponseBody: string(body),
			Detail:       err.Error(),
		})
		return zero, nil, wrapError(KindRemoteAPI, "上游响应格式异常", err)
	}
	if env.Code != 0 {
		message := env.errorMessage()
		s.recordAPIError(apiErrorReport{
			Endpoint:     targetURL,
			Stage:        "api_code",
			HTTPStatus:   resp.StatusCode,
			ResponseBody: string(body),
			Detail:       fmt.Sprintf("code=%d message=%s", env.Code, message),
		})
		return zero, resp.Cookies(), &Error{Kind: KindRemoteAPI, Message: message, Code: env.Code}
	}

	payload := strings.TrimSpace(string(env.Data))
	if payload == "" || payload == "null" {
		return zero, resp.Cookies(), nil
	}
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		s.recordAPIError(apiErrorReport{
			Endpoint:     targetURL,
			Stage:        "decode_data",
			HTTPStatus:   resp.StatusCode,
			ResponseBody: string(body),
			Detail:       err.Error(),
		})
		return zero, resp.Cookies(), wrapError(KindRemoteAPI, "上游响应格式异常", err)
	}
	return out, resp.Cookies(), nil
}

func (s *APIService) setOutboundHeaders(req *http.Request) {
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Referer", refererURL)
	if cookie := s.readCookieString(); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
}

// readDecodedBody unwraps the content-coding we advertised. Setting
// Accept-Encoding by hand disables the transport's automatic gzip
// handling, so all three codings are decoded here.
func readDecodedBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		reader = gz
	case "deflate":
		reader = flate.NewReader(resp.Body)
	}
	return io.ReadAll(io.LimitReader(reader, 8<<20))
}

func (s *APIService) readCookieString() string {
	if s.store == nil {
		return ""
	}
	setting, err := s.store.GetCookieSetting(context.Background())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(setting.Content)
}
