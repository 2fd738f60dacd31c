package chzzk

import (
	"bytes"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/grafov/m3u8"
	"github.com/rs/zerolog/log"

	"stream-factory/internal/common/consts"
	"stream-factory/internal/iface"
	"stream-factory/pkg/config"
	"stream-factory/pkg/fetcher"
	"stream-factory/pkg/schema"
)

type Streamer struct {
	ChannelID  string
	Platform   string // 平台
	ChannelURL string // 频道页 URL
	LiveStatus int    // 频道状态 0:未开播 1:直播中
	Header     http.Header
	StreamInfo *iface.StreamInfo

	api    *API
	hls    *HLSStream
	detail *LiveDetail
}

func NewStreamer(channelID string, cfg *config.AppConfig) *Streamer {
	api := NewAPI(cfg)
	return &Streamer{
		ChannelID:  channelID,
		Platform:   consts.PlatformChzzk,
		ChannelURL: fmt.Sprintf("https://chzzk.naver.com/live/%s", channelID),
		Header:     api.Header,
		StreamInfo: &iface.StreamInfo{
			StreamUrls: map[string]string{},
		},
		api: api,
		hls: NewHLSStream(api, channelID),
	}
}

func (s *Streamer) OnConfigUpdate(key string, value string) {
	log.Info().Msgf("[chzzk] 配置更新: %s", key)
	if key == "chzzk.cookie" {
		s.Header.Set("Cookie", value)
	}
}

// ---------------------------------------------------------------------------------------------------------------------

func (s *Streamer) InitChannel() error {
	detail, err := s.getLiveDetail()
	if err != nil {
		return err
	}
	s.detail = detail
	s.StreamInfo.Title = detail.Title
	s.StreamInfo.Author = detail.Channel
	s.StreamInfo.Category = detail.Category
	s.StreamInfo.Adult = detail.Adult
	if detail.Adult {
		// 成人频道在未登录时拿不到 media，提前给出明确错误
		if len(detail.Media) == 0 {
			return iface.ErrAdultOnly
		}
	}
	return nil
}

func (s *Streamer) GetId() (string, error) {
	if s.ChannelID == "" {
		return "", iface.NewStreamError("频道 ID 为空")
	}
	return s.ChannelID, nil
}

func (s *Streamer) IsLive() (bool, error) {
	detail, err := s.getLiveDetail()
	if err != nil {
		if err == iface.ErrStreamOffline {
			s.LiveStatus = consts.LiveStatusOffline
			return false, nil
		}
		return false, err
	}
	s.detail = detail
	s.LiveStatus = consts.LiveStatusLive
	return true, nil
}

// FetchStreamInfo 拉取最新直播详情并解析出各清晰度的播放地址
func (s *Streamer) FetchStreamInfo() (*iface.StreamInfo, error) {
	detail, err := s.getLiveDetail()
	if err != nil {
		return nil, err
	}
	s.detail = detail
	s.StreamInfo.Title = detail.Title
	s.StreamInfo.Author = detail.Channel
	s.StreamInfo.Category = detail.Category
	s.StreamInfo.Adult = detail.Adult

	desc := selectHLSMedia(detail.Media)
	if desc == nil {
		return nil, iface.NewStreamError("频道 %s 未提供 HLS 播放源", s.ChannelID)
	}

	urls, preferred, err := s.parseVariants(desc.Path)
	if err != nil {
		return nil, err
	}
	// 首选清晰度的地址交给 HLSStream 维护，换新时只替换 token 片段
	if u, ok := urls[preferred]; ok {
		urls[preferred] = s.hls.Track(u)
	}
	s.StreamInfo.StreamUrls = urls
	return s.StreamInfo, nil
}

// parseVariants 解析 master 清单，清晰度标签取分辨率高度，首个变体作为首选
func (s *Streamer) parseVariants(masterURL string) (map[string]string, string, error) {
	body, err := fetcher.FetchBody(masterURL, nil, s.Header)
	if err != nil {
		return nil, "", err
	}
	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), true)
	if err != nil {
		return nil, "", fmt.Errorf("解析 m3u8 失败: %w", err)
	}

	urls := make(map[string]string)
	if listType != m3u8.MASTER {
		urls["default"] = masterURL
		return urls, "default", nil
	}
	master := playlist.(*m3u8.MasterPlaylist)
	preferred := ""
	for i, variant := range master.Variants {
		if variant == nil {
			continue
		}
		label := variantLabel(variant, i)
		urls[label] = resolveReference(masterURL, variant.URI)
		if preferred == "" {
			preferred = label
		}
	}
	if len(urls) == 0 {
		return nil, "", iface.NewStreamError("master 清单中没有可用变体")
	}
	return urls, preferred, nil
}

func variantLabel(variant *m3u8.Variant, index int) string {
	if variant.Resolution != "" {
		// RESOLUTION=1920x1080 -> 1080p
		if idx := strings.Index(variant.Resolution, "x"); idx >= 0 {
			return variant.Resolution[idx+1:] + "p"
		}
		return variant.Resolution
	}
	if variant.Name != "" {
		return variant.Name
	}
	return fmt.Sprintf("线路%d", index+1)
}

func (s *Streamer) GetInfo() iface.Info {
	return iface.Info{
		Header:     s.Header,
		ChannelID:  s.ChannelID,
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

// ParseExpiration 从播放地址中解析 exp 时间戳；地址不带 exp 时视为不过期
func (s *Streamer) ParseExpiration(streamUrl string) (time.Time, bool, error) {
	expire, ok := parseExpire(streamUrl)
	if !ok {
		return time.Time{}, false, nil
	}
	return expire, true, nil
}

// ---------------------------------------------------------------------------------------------------------------------

func (s *Streamer) getLiveDetail() (*LiveDetail, error) {
	return getOpenLiveDetail(s.api, s.ChannelID)
}

// getOpenLiveDetail 查询直播详情，只接受开播中的频道
func getOpenLiveDetail(a *API, channelID string) (*LiveDetail, error) {
	outcome, err := a.GetLiveDetail(channelID)
	if err != nil {
		return nil, err
	}
	switch outcome.Kind {
	case schema.KindError:
		return nil, iface.NewStreamError("chzzk 接口返回错误: %s", outcome.Message)
	case schema.KindEmpty:
		return nil, iface.ErrStreamOffline
	}
	detail, err := LiveDetailFromFields(outcome.Fields)
	if err != nil {
		return nil, err
	}
	if detail.Status != StatusOpen {
		return nil, iface.ErrStreamOffline
	}
	return detail, nil
}

// ResolveVideo 查询点播视频，返回 DASH 播放清单地址
func (s *Streamer) ResolveVideo(videoID string) (string, *Video, error) {
	outcome, err := s.api.GetVideos(videoID)
	if err != nil {
		return "", nil, err
	}
	switch outcome.Kind {
	case schema.KindError:
		return "", nil, iface.NewStreamError("chzzk 接口返回错误: %s", outcome.Message)
	case schema.KindEmpty:
		return "", nil, iface.ErrUnavailable
	}
	video, err := VideoFromFields(outcome.Fields)
	if err != nil {
		return "", nil, err
	}
	// 缺少 inKey 或 videoId 一律不可播放，成人内容单独提示
	if video.InKey == "" || video.VideoID == "" {
		if video.Adult {
			return "", nil, iface.ErrAdultOnly
		}
		return "", nil, iface.ErrUnavailable
	}
	return VodPlaybackURL(video.VideoID, video.InKey), video, nil
}

// ResolveClip 查询剪辑，返回 DASH 播放清单地址
func (s *Streamer) ResolveClip(clipID string) (string, *Clip, error) {
	outcome, err := s.api.GetClips(clipID)
	if err != nil {
		return "", nil, err
	}
	switch outcome.Kind {
	case schema.KindError:
		return "", nil, iface.NewStreamError("chzzk 接口返回错误: %s", outcome.Message)
	case schema.KindEmpty:
		return "", nil, iface.ErrUnavailable
	}
	clip, err := ClipFromFields(outcome.Fields)
	if err != nil {
		return "", nil, err
	}
	if clip.InKey == "" || clip.VideoID == "" {
		if clip.Adult {
			return "", nil, iface.ErrAdultOnly
		}
		return "", nil, iface.ErrUnavailable
	}
	return VodPlaybackURL(clip.VideoID, clip.InKey), clip, nil
}

// ---------------------------------------------------------------------------------------------------------------------

// CheckAndGetChannelID 解析入参，支持频道页 URL 和裸频道 ID
func CheckAndGetChannelID(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("入参为空")
	}

	// 频道页链接
	reLive := regexp.MustCompile(`(?:https?://)?chzzk\.naver\.com/live/([0-9a-f]{32})`)
	if matches := reLive.FindStringSubmatch(s); len(matches) >= 2 {
		return matches[1], nil
	}

	// 裸频道 ID，32 位十六进制
	if ok, _ := regexp.MatchString(`^[0-9a-f]{32}$`, s); ok {
		return s, nil
	}

	log.Error().Msgf("格式有误，获取频道 ID 失败: %s", s)
	return "", fmt.Errorf("格式有误，获取频道 ID 失败: %s", s)
}
