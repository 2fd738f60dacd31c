package afreeca

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"stream-factory/internal/common/consts"
	"stream-factory/internal/iface"
	"stream-factory/pkg/config"
	"stream-factory/pkg/fetcher"
)

type Streamer struct {
	Username   string // 主播账号，即频道标识
	BNo        string // 当前场次编号，开播后才有
	Platform   string
	ChannelURL string
	LiveStatus int
	Header     http.Header
	StreamInfo *iface.StreamInfo
	StartTime  time.Time

	api *API

	loginUsername  string
	loginPassword  string
	streamPassword string
	authed         bool
}

func NewStreamer(username string, cfg *config.AppConfig) *Streamer {
	api := NewAPI(username)
	s := &Streamer{
		Username:   username,
		Platform:   consts.PlatformAfreeca,
		ChannelURL: fmt.Sprintf("%s/%s", api.PlayBaseURL, username),
		Header:     api.Header,
		StreamInfo: &iface.StreamInfo{
			StreamUrls: map[string]string{},
			Params:     url.Values{},
		},
		api: api,
	}
	if cfg != nil {
		s.loginUsername = cfg.Afreeca.Username
		s.loginPassword = cfg.Afreeca.Password
		s.streamPassword = cfg.Afreeca.StreamPassword
	}
	return s
}

func (s *Streamer) OnConfigUpdate(key string, value string) {
	log.Info().Msgf("[afreeca] 配置更新: %s", key)
	switch key {
	case "afreeca.username":
		s.loginUsername = value
		s.authed = false
	case "afreeca.password":
		s.loginPassword = value
		s.authed = false
	case "afreeca.stream_password":
		s.streamPassword = value
	}
}

// PurgeCredentials 清空登录会话，下次请求重新认证
func (s *Streamer) PurgeCredentials() {
	fetcher.ResetCookies()
	s.authed = false
	log.Info().Msg("afreeca 登录凭证已清除")
}

// ---------------------------------------------------------------------------------------------------------------------

func (s *Streamer) InitChannel() error {
	if err := s.ensureLogin(); err != nil {
		return err
	}
	info, err := s.fetchPageInfo()
	if err != nil {
		return err
	}
	s.BNo = info.BNo
	s.StartTime = info.StartTime
	s.LiveStatus = consts.LiveStatusLive
	s.StreamInfo.Title = info.Title
	s.StreamInfo.Author = info.Nick
	return nil
}

func (s *Streamer) GetId() (string, error) {
	if s.Username == "" {
		return "", iface.NewStreamError("主播账号为空")
	}
	return s.Username, nil
}

func (s *Streamer) IsLive() (bool, error) {
	info, err := s.fetchPageInfo()
	if err != nil {
		if err == iface.ErrStreamOffline {
			s.LiveStatus = consts.LiveStatusOffline
			return false, nil
		}
		return false, err
	}
	s.BNo = info.BNo
	s.LiveStatus = consts.LiveStatusLive
	return true, nil
}

// FetchStreamInfo 查询频道信息并逐档位取回播放地址
func (s *Streamer) FetchStreamInfo() (*iface.StreamInfo, error) {
	if err := s.ensureLogin(); err != nil {
		return nil, err
	}

	channel, err := s.api.GetChannelInfo(s.BNo, s.Username)
	if err != nil {
		return nil, err
	}
	switch {
	case channel.Result == ResultLoginRequired:
		return nil, iface.ErrLoginRequired
	case channel.Result != ResultOK:
		return nil, iface.ErrStreamOffline
	case channel.BNo == "" || channel.RMD == "":
		return nil, iface.ErrStreamOffline
	}

	s.BNo = channel.BNo
	s.LiveStatus = consts.LiveStatusLive
	s.StreamInfo.Title = channel.Title
	s.StreamInfo.Author = channel.BJNick

	urls := make(map[string]string)
	for _, preset := range channel.ViewPresets {
		// auto 档是服务端自适应占位，取不到固定地址
		if preset.Name == "auto" {
			continue
		}
		viewURL, aid, err := s.resolveQuality(channel, preset.Name)
		if err != nil {
			log.Debug().Err(err).Str("quality", preset.Name).Msg("清晰度档位不可用，跳过")
			continue
		}
		urls[preset.Label] = viewURL
		// 各档位共用同一 AID 签发逻辑，最近一次成功的凭证即可用于分片请求
		s.StreamInfo.Params.Set("aid", aid)
	}

	if len(urls) == 0 {
		if channel.BPWD == "Y" {
			return nil, iface.ErrPasswordProtected
		}
		return nil, iface.NewStreamError("未取到任何清晰度的播放地址")
	}
	s.StreamInfo.StreamUrls = urls
	return s.StreamInfo, nil
}

// resolveQuality 两步取流：先拿 AID 凭证，再向 RMD 要播放地址
func (s *Streamer) resolveQuality(channel *Channel, quality string) (string, string, error) {
	keyChannel, err := s.api.GetHLSKey(s.BNo, s.Username, quality, s.streamPassword)
	if err != nil {
		return "", "", err
	}
	if keyChannel.Result != ResultOK {
		return "", "", iface.NewStreamError("AID 签发失败: RESULT=%d", keyChannel.Result)
	}
	assign, err := s.api.GetStreamAssign(channel.RMD, s.BNo, quality)
	if err != nil {
		return "", "", err
	}
	if assign.ViewURL == "" {
		return "", "", iface.NewStreamError("RMD 未返回播放地址: status=%s", assign.StreamStatus)
	}
	return assign.ViewURL, keyChannel.AID, nil
}

func (s *Streamer) GetInfo() iface.Info {
	return iface.Info{
		Header:     s.Header,
		ChannelID:  s.Username,
		Platform:   s.Platform,
		ChannelURL: s.ChannelURL,
		LiveStatus: s.LiveStatus,
		StreamInfo: s.StreamInfo,
	}
}

func (s *Streamer) GetStreamInfo() iface.StreamInfo {
	return *s.StreamInfo
}

func (s *Streamer) GetHeaders() http.Header {
	return s.Header
}

// GetOpenTime 返回开播时间的 Unix 秒，解析失败时为 0
func (s *Streamer) GetOpenTime() int64 {
	if s.StartTime.IsZero() {
		return 0
	}
	return s.StartTime.Unix()
}

// ParseExpiration afreeca 的播放地址不带过期时间戳，凭证失效靠 403 被动发现
func (s *Streamer) ParseExpiration(streamUrl string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

// ---------------------------------------------------------------------------------------------------------------------

func (s *Streamer) ensureLogin() error {
	if s.authed || s.loginUsername == "" || s.loginPassword == "" {
		return nil
	}
	if err := s.api.Login(s.loginUsername, s.loginPassword); err != nil {
		return err
	}
	s.authed = true
	return nil
}

func (s *Streamer) fetchPageInfo() (*PageInfo, error) {
	html, err := s.api.FetchChannelPage(s.Username)
	if err != nil {
		return nil, err
	}
	return ParseChannelPage(html)
}

// ---------------------------------------------------------------------------------------------------------------------

// PreloadingFilter 过滤 afreeca 在清单里混入的预加载占位分片
func PreloadingFilter(segmentURI string) bool {
	return strings.Contains(segmentURI, "preloading")
}

// CheckAndGetUsername 解析入参，支持频道页 URL 和裸账号
func CheckAndGetUsername(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("入参为空")
	}

	rePlay := regexp.MustCompile(`(?:https?://)?play\.afreecatv\.com/(\w+)`)
	if matches := rePlay.FindStringSubmatch(s); len(matches) >= 2 {
		return matches[1], nil
	}

	if ok, _ := regexp.MatchString(`^\w+$`, s); ok {
		return s, nil
	}

	log.Error().Msgf("格式有误，获取主播账号失败: %s", s)
	return "", fmt.Errorf("格式有误，获取主播账号失败: %s", s)
}
