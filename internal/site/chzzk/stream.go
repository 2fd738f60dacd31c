package chzzk

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grafov/m3u8"
	"github.com/rs/zerolog/log"

	"stream-factory/internal/iface"
	"stream-factory/pkg/fetcher"
)

// 地址中的 exp 参数是 Unix 秒级时间戳，到期前 3 小时主动换新
const refreshBefore = 3 * time.Hour

var expireRegex = regexp.MustCompile(`exp=(\d+)`)

// HLSStream 持有当前频道的 HLS 播放地址，token 过期前自动换新。
// 换新只替换地址中的 token 片段，其余部分原样保留。
type HLSStream struct {
	api       *API
	channelID string

	mu         sync.Mutex
	currentURL string
}

func NewHLSStream(api *API, channelID string) *HLSStream {
	return &HLSStream{api: api, channelID: channelID}
}

// URL 返回当前可用的播放地址，必要时先同步刷新
func (s *HLSStream) URL(ctx context.Context) (string, error) {
	s.mu.Lock()
	current := s.currentURL
	expire, ok := parseExpire(current)
	s.mu.Unlock()

	if current != "" && (!ok || time.Until(expire) > refreshBefore) {
		return current, nil
	}
	if err := s.Refresh(ctx); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentURL, nil
}

// Expire 返回当前地址的过期时间
func (s *HLSStream) Expire() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return parseExpire(s.currentURL)
}

// Refresh 重新查询直播详情并取回新 token 的播放地址。
// 网络请求在锁外执行，只在写回结果时短暂持锁。
func (s *HLSStream) Refresh(ctx context.Context) error {
	detail, err := s.fetchLiveDetail()
	if err != nil {
		return err
	}
	desc := selectHLSMedia(detail.Media)
	if desc == nil {
		return iface.NewStreamError("频道 %s 未提供 HLS 播放源", s.channelID)
	}

	freshURL, err := s.resolveMediaURL(ctx, desc.Path)
	if err != nil {
		return err
	}

	current := s.Track(freshURL)
	if expire, ok := parseExpire(current); ok {
		log.Debug().Str("channelId", s.channelID).Time("expire", expire).Msg("chzzk 播放地址已换新")
	}
	return nil
}

// Track 写入新取到的播放地址并返回对外使用的地址。
// 已有地址且两边都能取出 token 时只替换 token 片段，其余部分原样保留。
func (s *HLSStream) Track(freshURL string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prevToken := extractToken(s.currentURL)
	newToken := extractToken(freshURL)
	if prevToken != "" && newToken != "" && s.currentURL != "" {
		s.currentURL = replaceToken(s.currentURL, newToken)
	} else {
		s.currentURL = freshURL
	}
	return s.currentURL
}

// replaceToken 按位置替换倒数第二段路径，token 子串碰巧出现在主机名等
// 其他位置时不受影响
func replaceToken(rawURL, newToken string) string {
	path, query := rawURL, ""
	if idx := strings.Index(rawURL, "?"); idx >= 0 {
		path, query = rawURL[:idx], rawURL[idx:]
	}
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return rawURL
	}
	parts[len(parts)-2] = newToken
	return strings.Join(parts, "/") + query
}

func (s *HLSStream) fetchLiveDetail() (*LiveDetail, error) {
	detail, err := getOpenLiveDetail(s.api, s.channelID)
	if err != nil {
		return nil, err
	}
	if len(detail.Media) == 0 {
		return nil, iface.ErrStreamOffline
	}
	return detail, nil
}

// resolveMediaURL 拉取 master 清单，取首个变体的播放地址
func (s *HLSStream) resolveMediaURL(ctx context.Context, mediaURL string) (string, error) {
	body, err := fetcher.FetchBody(mediaURL, nil, s.api.Header)
	if err != nil {
		return "", err
	}
	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), true)
	if err != nil {
		return "", fmt.Errorf("解析 m3u8 失败: %w", err)
	}
	if listType != m3u8.MASTER {
		// media 清单本身就是播放地址
		return mediaURL, nil
	}
	master := playlist.(*m3u8.MasterPlaylist)
	if len(master.Variants) == 0 || master.Variants[0] == nil {
		return "", iface.NewStreamError("master 清单中没有可用变体")
	}
	return resolveReference(mediaURL, master.Variants[0].URI), nil
}

func selectHLSMedia(media []MediaDescriptor) *MediaDescriptor {
	for i := range media {
		if media[i].Protocol == mediaHLS && media[i].MediaID == mediaHLS {
			return &media[i]
		}
	}
	return nil
}

// extractToken 取路径倒数第二段作为 token
func extractToken(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	path := rawURL
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

func parseExpire(rawURL string) (time.Time, bool) {
	match := expireRegex.FindStringSubmatch(rawURL)
	if match == nil {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}

// resolveReference 以 base 为基准解析 ref，清单里常给相对地址
func resolveReference(base, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		return base[:idx+1] + ref
	}
	return ref
}
