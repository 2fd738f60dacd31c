package afreeca

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"stream-factory/internal/iface"
	"stream-factory/pkg/fetcher"
	"stream-factory/pkg/schema"
)

const (
	defaultChannelAPIURL = "https://live.afreecatv.com/afreeca/player_live_api.php"
	defaultLoginURL      = "https://login.afreecatv.com/app/LoginAction.php"
	defaultPlayBaseURL   = "https://play.afreecatv.com"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36"
)

// API afreeca 开放接口客户端，登录态靠全局 CookieJar 维持
type API struct {
	Header http.Header
	// 以下地址测试时指向 httptest 服务
	ChannelAPIURL string
	LoginURL      string
	PlayBaseURL   string
}

func NewAPI(username string) *API {
	header := make(http.Header)
	header.Set("User-Agent", userAgent)
	header.Set("Referer", fmt.Sprintf("%s/%s", defaultPlayBaseURL, username))
	header.Set("Origin", defaultPlayBaseURL)
	return &API{
		Header:        header,
		ChannelAPIURL: defaultChannelAPIURL,
		LoginURL:      defaultLoginURL,
		PlayBaseURL:   defaultPlayBaseURL,
	}
}

// channelForm player_live_api.php 的公共表单字段
func channelForm(bno, username string) url.Values {
	return url.Values{
		"bid":         {username},
		"bno":         {bno},
		"from_api":    {"0"},
		"mode":        {"landing"},
		"player_type": {"html5"},
		"pwd":         {""},
		"stream_type": {"common"},
		"type":        {"live"},
	}
}

func (a *API) postChannel(form url.Values) (*Channel, error) {
	response, err := fetcher.PostForm(a.ChannelAPIURL, form, a.Header)
	if err != nil {
		return nil, fmt.Errorf("执行请求失败: %v", err)
	}
	body, err := fetcher.ReadBody(response)
	if err != nil {
		return nil, err
	}
	validated, err := schema.Decode(body, channelNode)
	if err != nil {
		log.Warn().Err(err).Str("url", a.ChannelAPIURL).Msg("CHANNEL 响应未通过模式校验")
		return nil, err
	}
	return ChannelFromMap(validated)
}

// GetChannelInfo 查询频道信息（开播状态、标题、清晰度档位）
func (a *API) GetChannelInfo(bno, username string) (*Channel, error) {
	return a.postChannel(channelForm(bno, username))
}

// GetHLSKey 获取指定清晰度的播放凭证 AID
func (a *API) GetHLSKey(bno, username, quality, streamPassword string) (*Channel, error) {
	form := channelForm(bno, username)
	form.Set("pwd", streamPassword)
	form.Set("quality", quality)
	form.Set("type", "aid")
	return a.postChannel(form)
}

// GetStreamAssign 向 RMD 服务器要某档清晰度的播放地址
func (a *API) GetStreamAssign(rmd, bno, quality string) (*StreamAssign, error) {
	params := url.Values{
		"return_type": {"gs_cdn_pc_web"},
		"broad_key":   {fmt.Sprintf("%s-common-%s-hls", bno, quality)},
	}
	body, err := fetcher.FetchBody(rmd+"/broad_stream_assign.html", params, a.Header)
	if err != nil {
		return nil, err
	}
	validated, err := schema.Decode(body, streamAssignNode)
	if err != nil {
		return nil, err
	}
	m, ok := validated.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: stream assign 响应不是对象", schema.ErrMismatch)
	}
	return &StreamAssign{
		ViewURL:      asString(m["view_url"]),
		StreamStatus: asString(m["stream_status"]),
	}, nil
}

// Login 账号密码登录，成功后的会话 cookie 进入全局 CookieJar
func (a *API) Login(username, password string) error {
	form := url.Values{
		"szWork":        {"login"},
		"szType":        {"json"},
		"szUid":         {username},
		"szPassword":    {password},
		"isSaveId":      {"true"},
		"isSavePw":      {"false"},
		"isSaveJoin":    {"false"},
		"isLoginRetain": {"Y"},
	}
	response, err := fetcher.PostForm(a.LoginURL, form, a.Header)
	if err != nil {
		return fmt.Errorf("执行请求失败: %v", err)
	}
	body, err := fetcher.ReadBody(response)
	if err != nil {
		return err
	}
	result, err := schema.Decode(body, loginNode)
	if err != nil {
		return err
	}
	if asInt(result) != ResultOK {
		log.Error().Int("result", asInt(result)).Msg("afreeca 登录失败")
		return iface.ErrAuthRejected
	}
	log.Info().Str("username", username).Msg("afreeca 登录成功")
	return nil
}

// FetchChannelPage 拉取频道页 HTML，用于解析开播信息
func (a *API) FetchChannelPage(username string) ([]byte, error) {
	return fetcher.FetchBody(fmt.Sprintf("%s/%s", a.PlayBaseURL, username), nil, a.Header)
}
