package afreeca

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stream-factory/internal/iface"
	"stream-factory/pkg/config"
	"stream-factory/pkg/fetcher"
)

const livePageHTML = `<html><head><script>
window.nBroadNo = 281301563;
window.szBjNick = "테스터";
window.szBroadTitle = "오늘의 방송";
</script></head><body>
<ul class="detail_view">
	<span>2026-08-31 21:30:00</span>
</ul>
</body></html>`

func TestParseChannelPage(t *testing.T) {
	info, err := ParseChannelPage([]byte(livePageHTML))
	if err != nil {
		t.Fatalf("ParseChannelPage: %v", err)
	}
	if info.BNo != "281301563" {
		t.Errorf("BNo = %q", info.BNo)
	}
	if info.Nick != "테스터" || info.Title != "오늘의 방송" {
		t.Errorf("元数据解析错误: %+v", info)
	}
	// 开播时间按首尔时区 (+0900) 解析
	want := time.Date(2026, 8, 31, 21, 30, 0, 0, time.FixedZone("", 9*3600))
	if !info.StartTime.Equal(want) {
		t.Errorf("StartTime = %v, want %v", info.StartTime, want)
	}
}

func TestParseChannelPageOffline(t *testing.T) {
	// 未开播的频道页没有 nBroadNo
	_, err := ParseChannelPage([]byte(`<html><body>offline</body></html>`))
	if !errors.Is(err, iface.ErrStreamOffline) {
		t.Errorf("期望 ErrStreamOffline, 实际: %v", err)
	}
}

func TestParseChannelPageMissingStartTime(t *testing.T) {
	html := `<script>
window.nBroadNo = 1;
window.szBjNick = "bj";
window.szBroadTitle = "t";
</script>`
	info, err := ParseChannelPage([]byte(html))
	if err != nil {
		t.Fatalf("开播时间缺失不应报错: %v", err)
	}
	if !info.StartTime.IsZero() {
		t.Errorf("StartTime 应为零值: %v", info.StartTime)
	}
}

// ---------------------------------------------------------------------------------------------------------------------

func TestChannelSchemaResultForms(t *testing.T) {
	fetcher.Init(&config.AppConfig{})
	// RESULT 字符串和数字两种形态都要能解析
	for _, body := range []string{
		`{"CHANNEL": {"RESULT": "1", "BNO": "42", "RMD": "https://rmd.example"}}`,
		`{"CHANNEL": {"RESULT": 1, "BNO": "42", "RMD": "https://rmd.example"}}`,
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		}))
		api := NewAPI("bj")
		api.ChannelAPIURL = server.URL
		channel, err := api.GetChannelInfo("42", "bj")
		server.Close()
		if err != nil {
			t.Fatalf("GetChannelInfo(%s): %v", body, err)
		}
		if channel.Result != ResultOK || channel.BNo != "42" || channel.RMD != "https://rmd.example" {
			t.Errorf("解析结果错误: %+v", channel)
		}
	}
}

// testBackend 同时扮演频道接口和 RMD 服务器
func testBackend(t *testing.T, channelInfoBody string, aidResult int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/afreeca/player_live_api.php", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("解析表单失败: %v", err)
		}
		switch r.PostForm.Get("type") {
		case "live":
			fmt.Fprintf(w, channelInfoBody, server.URL)
		case "aid":
			quality := r.PostForm.Get("quality")
			fmt.Fprintf(w, `{"CHANNEL": {"RESULT": %d, "AID": "aid-%s"}}`, aidResult, quality)
		default:
			t.Errorf("意外的 type: %s", r.PostForm.Get("type"))
		}
	})
	mux.HandleFunc("/broad_stream_assign.html", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("broad_key")
		fmt.Fprintf(w, `{"view_url": "https://cdn.example/%s/auth_playlist.m3u8", "stream_status": "OK"}`, key)
	})
	server = httptest.NewServer(mux)
	return server
}

const channelOKBody = `{"CHANNEL": {
	"RESULT": 1,
	"BPWD": "N",
	"BNO": "281301563",
	"RMD": "%s",
	"BJNICK": "테스터",
	"TITLE": "오늘의 방송",
	"VIEWPRESET": [
		{"label": "自动", "name": "auto"},
		{"label": "1080p", "name": "original"},
		{"label": "720p", "name": "hd"}
	]
}}`

func newTestStreamer(server *httptest.Server) *Streamer {
	s := NewStreamer("bj", &config.AppConfig{})
	s.api.ChannelAPIURL = server.URL + "/afreeca/player_live_api.php"
	s.api.LoginURL = server.URL + "/app/LoginAction.php"
	s.api.PlayBaseURL = server.URL
	return s
}

func TestFetchStreamInfo(t *testing.T) {
	fetcher.Init(&config.AppConfig{})
	server := testBackend(t, channelOKBody, ResultOK)
	defer server.Close()

	s := newTestStreamer(server)
	info, err := s.FetchStreamInfo()
	if err != nil {
		t.Fatalf("FetchStreamInfo: %v", err)
	}
	if info.Title != "오늘의 방송" || info.Author != "테스터" {
		t.Errorf("元数据错误: %+v", info)
	}
	// auto 档被跳过，两个实档各有地址
	if len(info.StreamUrls) != 2 {
		t.Fatalf("StreamUrls = %v", info.StreamUrls)
	}
	want := "https://cdn.example/281301563-common-original-hls/auth_playlist.m3u8"
	if info.StreamUrls["1080p"] != want {
		t.Errorf("1080p 地址错误: %s", info.StreamUrls["1080p"])
	}
	if _, ok := info.StreamUrls["自动"]; ok {
		t.Error("auto 档不应出现在结果中")
	}
	if aid := info.Params.Get("aid"); aid == "" {
		t.Error("Params 缺少 aid 凭证")
	}
	if s.BNo != "281301563" {
		t.Errorf("BNo = %q", s.BNo)
	}
}

func TestFetchStreamInfoLoginRequired(t *testing.T) {
	fetcher.Init(&config.AppConfig{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"CHANNEL": {"RESULT": -6}}`)
	}))
	defer server.Close()

	s := newTestStreamer(server)
	s.api.ChannelAPIURL = server.URL
	_, err := s.FetchStreamInfo()
	if !errors.Is(err, iface.ErrLoginRequired) {
		t.Errorf("期望 ErrLoginRequired, 实际: %v", err)
	}
}

func TestFetchStreamInfoPasswordProtected(t *testing.T) {
	fetcher.Init(&config.AppConfig{})
	// 设有观看密码时 AID 签发全部失败
	body := `{"CHANNEL": {
		"RESULT": 1,
		"BPWD": "Y",
		"BNO": "100",
		"RMD": "%s",
		"VIEWPRESET": [{"label": "1080p", "name": "original"}]
	}}`
	server := testBackend(t, body, -1)
	defer server.Close()

	s := newTestStreamer(server)
	_, err := s.FetchStreamInfo()
	if !errors.Is(err, iface.ErrPasswordProtected) {
		t.Errorf("期望 ErrPasswordProtected, 实际: %v", err)
	}
}

func TestFetchStreamInfoOffline(t *testing.T) {
	fetcher.Init(&config.AppConfig{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"CHANNEL": {"RESULT": 0}}`)
	}))
	defer server.Close()

	s := newTestStreamer(server)
	s.api.ChannelAPIURL = server.URL
	_, err := s.FetchStreamInfo()
	if !errors.Is(err, iface.ErrStreamOffline) {
		t.Errorf("期望 ErrStreamOffline, 实际: %v", err)
	}
}

func TestLogin(t *testing.T) {
	fetcher.Init(&config.AppConfig{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("szWork") != "login" || r.PostForm.Get("szType") != "json" {
			t.Errorf("表单字段错误: %v", r.PostForm)
		}
		if r.PostForm.Get("szPassword") == "right" {
			fmt.Fprint(w, `{"RESULT": 1}`)
			return
		}
		fmt.Fprint(w, `{"RESULT": 0}`)
	}))
	defer server.Close()

	api := NewAPI("bj")
	api.LoginURL = server.URL
	if err := api.Login("user", "right"); err != nil {
		t.Errorf("登录应成功: %v", err)
	}
	if err := api.Login("user", "wrong"); !errors.Is(err, iface.ErrAuthRejected) {
		t.Errorf("期望 ErrAuthRejected, 实际: %v", err)
	}
}

// ---------------------------------------------------------------------------------------------------------------------

func TestPreloadingFilter(t *testing.T) {
	if !PreloadingFilter("https://cdn.example/preloading_seg_1.ts") {
		t.Error("preloading 分片应被过滤")
	}
	if PreloadingFilter("https://cdn.example/seg_1.ts") {
		t.Error("普通分片不应被过滤")
	}
}

func TestCheckAndGetUsername(t *testing.T) {
	cases := []struct {
		input string
		want  string
		ok    bool
	}{
		{"somebj", "somebj", true},
		{"https://play.afreecatv.com/somebj", "somebj", true},
		{"play.afreecatv.com/somebj/281301563", "somebj", true},
		{"", "", false},
		{"not a username", "", false},
	}
	for _, c := range cases {
		got, err := CheckAndGetUsername(c.input)
		if c.ok && (err != nil || got != c.want) {
			t.Errorf("CheckAndGetUsername(%q) = %q, %v", c.input, got, err)
		}
		if !c.ok && err == nil {
			t.Errorf("CheckAndGetUsername(%q) 应返回错误", c.input)
		}
	}
}
