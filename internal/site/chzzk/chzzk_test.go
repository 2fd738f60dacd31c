package chzzk

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"stream-factory/internal/iface"
	"stream-factory/pkg/config"
	"stream-factory/pkg/fetcher"
)

func newTestAPI(baseURL string) *API {
	api := NewAPI(&config.AppConfig{})
	api.BaseURL = baseURL
	return api
}

// liveDetailBody 构造 live-detail 响应，media 以 JSON 字符串形式内嵌
func liveDetailBody(status, mediaPath string) string {
	playback := fmt.Sprintf(`{\"media\":[{\"mediaId\":\"LLHLS\",\"protocol\":\"LLHLS\",\"path\":\"%s\"},{\"mediaId\":\"HLS\",\"protocol\":\"HLS\",\"path\":\"%s\"}]}`, mediaPath, mediaPath)
	return fmt.Sprintf(`{
		"code": 200,
		"content": {
			"status": "%s",
			"liveId": 12345,
			"liveTitle": "오늘도 방송",
			"liveCategory": "Games",
			"adult": false,
			"channel": {"channelName": "tester", "channelImageUrl": "https://img.example/x.png"},
			"livePlaybackJson": "%s"
		}
	}`, status, playback)
}

func TestGetLiveDetailOpen(t *testing.T) {
	fetcher.Init(&config.AppConfig{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/service/v2/channels/abc/live-detail" {
			t.Errorf("意外的请求路径: %s", r.URL.Path)
		}
		fmt.Fprint(w, liveDetailBody("OPEN", "https://media.example/master.m3u8"))
	}))
	defer server.Close()

	detail, err := getOpenLiveDetail(newTestAPI(server.URL), "abc")
	if err != nil {
		t.Fatalf("getOpenLiveDetail: %v", err)
	}
	if detail.Title != "오늘도 방송" || detail.Channel != "tester" || detail.Category != "Games" {
		t.Errorf("元数据解析错误: %+v", detail)
	}
	if detail.LiveID != 12345 {
		t.Errorf("liveId = %d", detail.LiveID)
	}
	desc := selectHLSMedia(detail.Media)
	if desc == nil {
		t.Fatal("未找到 HLS 播放源")
	}
	if desc.MediaID != "HLS" || desc.Protocol != "HLS" || desc.Path != "https://media.example/master.m3u8" {
		t.Errorf("media 选择错误: %+v", desc)
	}
}

func TestGetLiveDetailErrorEnvelope(t *testing.T) {
	fetcher.Init(&config.AppConfig{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code": 4004, "message": "CHANNEL_NOT_FOUND"}`)
	}))
	defer server.Close()

	_, err := getOpenLiveDetail(newTestAPI(server.URL), "missing")
	if err == nil {
		t.Fatal("期望返回错误")
	}
	var streamErr *iface.StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("期望 StreamError, 实际 %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "CHANNEL_NOT_FOUND") {
		t.Errorf("错误信息未携带接口 message: %v", err)
	}
}

func TestGetLiveDetailOffline(t *testing.T) {
	fetcher.Init(&config.AppConfig{})
	cases := map[string]string{
		"内容为空":      `{"code": 200, "content": null}`,
		"状态为 CLOSE": liveDetailBody("CLOSE", "https://media.example/master.m3u8"),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}))
			defer server.Close()

			_, err := getOpenLiveDetail(newTestAPI(server.URL), "abc")
			if !errors.Is(err, iface.ErrStreamOffline) {
				t.Errorf("期望 ErrStreamOffline, 实际: %v", err)
			}
		})
	}
}

// ---------------------------------------------------------------------------------------------------------------------

func TestParseExpire(t *testing.T) {
	expire, ok := parseExpire("https://cdn.example/hls/tokenA/index.m3u8?exp=1767225600&other=1")
	if !ok {
		t.Fatal("应当解析出 exp")
	}
	if expire.Unix() != 1767225600 {
		t.Errorf("expire = %d", expire.Unix())
	}

	if _, ok := parseExpire("https://cdn.example/hls/tokenA/index.m3u8"); ok {
		t.Error("无 exp 参数时不应解析成功")
	}
	if _, ok := parseExpire(""); ok {
		t.Error("空串不应解析成功")
	}
}

func TestExtractToken(t *testing.T) {
	token := extractToken("https://cdn.example/hls/abcdef123/index.m3u8?exp=100")
	if token != "abcdef123" {
		t.Errorf("token = %q", token)
	}
	if extractToken("") != "" {
		t.Error("空串应返回空 token")
	}
}

func TestHLSStreamTrack(t *testing.T) {
	stream := NewHLSStream(nil, "abc")

	first := stream.Track("https://cdn.example/hls/token-one/index.m3u8?exp=100")
	if !strings.Contains(first, "token-one") {
		t.Fatalf("首次地址未携带 token: %s", first)
	}

	// 新地址换了域名和 exp，但只有 token 片段被替换进旧地址
	second := stream.Track("https://other.example/hls/token-two/index.m3u8?exp=200")
	want := "https://cdn.example/hls/token-two/index.m3u8?exp=100"
	if second != want {
		t.Errorf("Track = %s, want %s", second, want)
	}
}

func TestHLSStreamTrackTokenInHost(t *testing.T) {
	stream := NewHLSStream(nil, "abc")
	stream.Track("https://token-one.cdn.example/hls/token-one/index.m3u8?exp=100")

	// token 子串同时出现在主机名里，只有路径里的 token 段被替换
	got := stream.Track("https://token-one.cdn.example/hls/token-two/index.m3u8?exp=200")
	want := "https://token-one.cdn.example/hls/token-two/index.m3u8?exp=100"
	if got != want {
		t.Errorf("Track = %s, want %s", got, want)
	}
}

// ---------------------------------------------------------------------------------------------------------------------

// liveServer 同时扮演 API 和媒体服务器，token 可热切换
type liveServer struct {
	mu    sync.Mutex
	token string
	exp   int64

	server *httptest.Server
	// live-detail 请求计数
	detailCalls int
}

func newLiveServer(token string, exp int64) *liveServer {
	ls := &liveServer{token: token, exp: exp}
	mux := http.NewServeMux()
	mux.HandleFunc("/service/", func(w http.ResponseWriter, r *http.Request) {
		ls.mu.Lock()
		ls.detailCalls++
		ls.mu.Unlock()
		fmt.Fprint(w, liveDetailBody("OPEN", ls.server.URL+"/media/master.m3u8"))
	})
	mux.HandleFunc("/media/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		ls.mu.Lock()
		uri := fmt.Sprintf("%s/hls/%s/index.m3u8?exp=%d", ls.server.URL, ls.token, ls.exp)
		ls.mu.Unlock()
		fmt.Fprintf(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080\n%s\n", uri)
	})
	ls.server = httptest.NewServer(mux)
	return ls
}

func (ls *liveServer) setToken(token string, exp int64) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.token = token
	ls.exp = exp
}

func (ls *liveServer) close() { ls.server.Close() }

func (ls *liveServer) detailCount() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.detailCalls
}

func TestHLSStreamRefreshReplacesTokenOnly(t *testing.T) {
	fetcher.Init(&config.AppConfig{})
	farExp := time.Now().Add(24 * time.Hour).Unix()
	ls := newLiveServer("token-one", farExp)
	defer ls.close()

	stream := NewHLSStream(newTestAPI(ls.server.URL), "abc")
	if err := stream.Refresh(t.Context()); err != nil {
		t.Fatalf("首次刷新失败: %v", err)
	}
	first, err := stream.URL(t.Context())
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if !strings.Contains(first, "token-one") {
		t.Fatalf("首次地址未携带 token: %s", first)
	}

	ls.setToken("token-two", farExp)
	if err := stream.Refresh(t.Context()); err != nil {
		t.Fatalf("二次刷新失败: %v", err)
	}
	second, err := stream.URL(t.Context())
	if err != nil {
		t.Fatalf("URL: %v", err)
	}

	// 只有 token 子串发生替换，其余部分逐字符一致
	want := strings.Replace(first, "token-one", "token-two", 1)
	if second != want {
		t.Errorf("替换结果不符:\n first = %s\nsecond = %s\n  want = %s", first, second, want)
	}
}

func TestHLSStreamURLProactiveRefresh(t *testing.T) {
	fetcher.Init(&config.AppConfig{})

	t.Run("临近过期触发刷新", func(t *testing.T) {
		// 过期时间在 3 小时窗口内
		ls := newLiveServer("tok", time.Now().Add(time.Hour).Unix())
		defer ls.close()

		stream := NewHLSStream(newTestAPI(ls.server.URL), "abc")
		if _, err := stream.URL(t.Context()); err != nil {
			t.Fatalf("URL: %v", err)
		}
		before := ls.detailCount()
		if _, err := stream.URL(t.Context()); err != nil {
			t.Fatalf("URL: %v", err)
		}
		if ls.detailCount() <= before {
			t.Error("临近过期时应再次刷新")
		}
	})

	t.Run("未临近过期不刷新", func(t *testing.T) {
		ls := newLiveServer("tok", time.Now().Add(24*time.Hour).Unix())
		defer ls.close()

		stream := NewHLSStream(newTestAPI(ls.server.URL), "abc")
		if _, err := stream.URL(t.Context()); err != nil {
			t.Fatalf("URL: %v", err)
		}
		before := ls.detailCount()
		if _, err := stream.URL(t.Context()); err != nil {
			t.Fatalf("URL: %v", err)
		}
		if ls.detailCount() != before {
			t.Errorf("未临近过期不应刷新, 请求次数 %d -> %d", before, ls.detailCount())
		}
	})
}

func TestHLSStreamConcurrentRefresh(t *testing.T) {
	fetcher.Init(&config.AppConfig{})
	farExp := time.Now().Add(24 * time.Hour).Unix()
	ls := newLiveServer("tok-0", farExp)
	defer ls.close()

	stream := NewHLSStream(newTestAPI(ls.server.URL), "abc")
	if err := stream.Refresh(t.Context()); err != nil {
		t.Fatalf("首次刷新失败: %v", err)
	}

	valid := map[string]bool{"tok-0": true}
	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		token := fmt.Sprintf("tok-%d", i)
		valid[token] = true
		ls.setToken(token, farExp)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := stream.Refresh(t.Context()); err != nil {
				t.Errorf("并发刷新失败: %v", err)
			}
		}()
	}
	wg.Wait()

	final, err := stream.URL(t.Context())
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	// 最终地址必须是某次完整刷新的结果，不能出现撕裂拼接
	token := extractToken(final)
	if !valid[token] {
		t.Errorf("最终 token %q 不在任何一次刷新结果中", token)
	}
	if !strings.Contains(final, fmt.Sprintf("exp=%d", farExp)) {
		t.Errorf("最终地址 exp 参数丢失: %s", final)
	}
}

// ---------------------------------------------------------------------------------------------------------------------

func TestResolveVideo(t *testing.T) {
	fetcher.Init(&config.AppConfig{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/service/v2/videos/v777" {
			t.Errorf("意外的请求路径: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{
			"code": 200,
			"content": {
				"inKey": "key-xyz",
				"videoNo": 777,
				"videoId": "VID777",
				"videoTitle": "어제 방송 다시보기",
				"videoCategory": "Games",
				"adult": false,
				"channel": {"channelName": "tester"}
			}
		}`)
	}))
	defer server.Close()

	s := NewStreamer("abc", &config.AppConfig{})
	s.api.BaseURL = server.URL
	playbackURL, video, err := s.ResolveVideo("v777")
	if err != nil {
		t.Fatalf("ResolveVideo: %v", err)
	}
	if video.VideoID != "VID777" || video.VideoNo != 777 || video.Channel != "tester" {
		t.Errorf("点播元数据解析错误: %+v", video)
	}
	want := "https://apis.naver.com/neonplayer/vodplay/v2/playback/VID777?key=key-xyz"
	if playbackURL != want {
		t.Errorf("playbackURL = %s, want %s", playbackURL, want)
	}
}

func TestResolveVideoMissingInKey(t *testing.T) {
	fetcher.Init(&config.AppConfig{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"code": 200,
			"content": {
				"inKey": null,
				"videoNo": 1,
				"videoId": "VID1",
				"videoTitle": "다시보기",
				"videoCategory": "Games",
				"adult": false,
				"channel": {"channelName": "tester"}
			}
		}`)
	}))
	defer server.Close()

	s := NewStreamer("abc", &config.AppConfig{})
	s.api.BaseURL = server.URL
	// 非成人视频缺 inKey 也不能拼出播放地址
	if _, _, err := s.ResolveVideo("v1"); !errors.Is(err, iface.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestResolveClipAdultWithoutKey(t *testing.T) {
	fetcher.Init(&config.AppConfig{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"code": 200,
			"content": {
				"contentId": "clip-1",
				"contentTitle": "하이라이트",
				"adult": true,
				"ownerChannel": {"channelName": "tester"}
			}
		}`)
	}))
	defer server.Close()

	s := NewStreamer("abc", &config.AppConfig{})
	s.api.BaseURL = server.URL
	if _, _, err := s.ResolveClip("clip-1"); !errors.Is(err, iface.ErrAdultOnly) {
		t.Errorf("err = %v, want ErrAdultOnly", err)
	}
}

// ---------------------------------------------------------------------------------------------------------------------

func TestCheckAndGetChannelID(t *testing.T) {
	id := "75cbf189b3bb8f9f687d2aca0d0a382b"
	cases := []struct {
		input string
		want  string
		ok    bool
	}{
		{id, id, true},
		{"https://chzzk.naver.com/live/" + id, id, true},
		{"chzzk.naver.com/live/" + id + "?from=home", id, true},
		{"", "", false},
		{"not-a-channel", "", false},
		{"https://chzzk.naver.com/live/short", "", false},
	}
	for _, c := range cases {
		got, err := CheckAndGetChannelID(c.input)
		if c.ok && (err != nil || got != c.want) {
			t.Errorf("CheckAndGetChannelID(%q) = %q, %v", c.input, got, err)
		}
		if !c.ok && err == nil {
			t.Errorf("CheckAndGetChannelID(%q) 应返回错误", c.input)
		}
	}
}
