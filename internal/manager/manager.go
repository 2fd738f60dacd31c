package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/grafov/m3u8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"stream-factory/internal/common/consts"
	"stream-factory/internal/domain/model"
	"stream-factory/internal/iface"
	"stream-factory/internal/recorder"
	"stream-factory/internal/site/afreeca"
	"stream-factory/internal/site/chzzk"
	"stream-factory/pkg/config"
	"stream-factory/pkg/fetcher"
)

const (
	MaxAttemptTimes       = 10
	RetryWaitDuration     = 2 * time.Second
	refreshSafetyInterval = 1 * time.Minute
	// 不带过期时间的流（afreeca）按固定周期复查开播状态
	noExpiryRecheckInterval = 30 * time.Minute
)

type Manager struct {
	Config   *config.AppConfig
	Streamer iface.Streamer `json:"-"`
	Channel  *model.Channel

	Id               int64
	Platform         string
	CurrentURL       string
	ProxyURL         string
	StreamURLMap     map[string]string
	ActualExpireTime time.Time // 零值表示流地址不携带过期信息
	SafetyExpireTime time.Time
	LastRefreshTime  time.Time
	SegmentFilter    iface.SegmentFilter `json:"-"`

	cancel    context.CancelFunc // 用于触发停止信号
	refreshCh chan struct{}      // 通知 AutoRefresh 循环立即执行一次刷新（首次启动或外部命令）
	ctx       context.Context    // manager 的生命周期
	onStop    func(int64)        // 停止回调

	Recorder     *recorder.Recorder // 持有录制器实例
	RecordStatus int                // 是否开启录制（来自 Channel 配置）
	recordCancel context.CancelFunc // 用于单独停止录制任务

	mu sync.RWMutex
}

func NewManager(channel *model.Channel, cfg *config.AppConfig, onStop func(int64)) (*Manager, error) {
	if channel == nil {
		return nil, errors.New("channel is nil")
	}
	var s iface.Streamer
	var filter iface.SegmentFilter
	switch channel.Platform {
	case consts.PlatformChzzk:
		s = chzzk.NewStreamer(channel.ChannelID, cfg)
	case consts.PlatformAfreeca:
		s = afreeca.NewStreamer(channel.ChannelID, cfg)
		filter = afreeca.PreloadingFilter
	default:
		return nil, errors.New("invalid platform")
	}

	// 类型断言，尝试将 s 转为 ConfigSubscriber
	if subscriber, ok := s.(iface.ConfigSubscriber); ok {
		log.Info().Msgf("注册 streamer 为 config 订阅者")
		cfg.AddSubscriber(subscriber)
	}

	m := &Manager{
		Config:        cfg,
		Streamer:      s,
		Channel:       channel,
		Id:            channel.ID,
		Platform:      channel.Platform,
		ProxyURL:      channel.ProxyURL,
		SegmentFilter: filter,
		RecordStatus:  channel.RecordStatus,
		onStop:        onStop,
	}

	log.Info().Object("manager", m).Msg("[Manager] Init Manager")
	return m, nil
}

// StartAutoRefresh 启动一个 Goroutine，根据过期时间自动刷新 Manager 状态
func (m *Manager) StartAutoRefresh(parentCtx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 确保只启动一次
	if m.cancel != nil {
		log.Warn().Int64("id", m.Id).Msg("[Manager] 自动刷新服务已在运行。")
		return
	}

	childCtx, cancel := context.WithCancel(parentCtx)
	m.cancel = cancel
	m.refreshCh = make(chan struct{}, 1) // 有缓冲，防止发送阻塞
	m.ctx = childCtx

	log.Info().Int64("id", m.Id).Msg("[Manager AutoRefresh] 启动自动刷新服务")

	go m.autoRefreshLoop()
}

// StopAutoRefresh 发送停止信号给自动刷新 Goroutine
func (m *Manager) StopAutoRefresh() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// TriggerRefresh 发送信号给循环，使其立即执行一次刷新
func (m *Manager) TriggerRefresh() {
	if m.ctx == nil {
		log.Warn().Int64("id", m.Id).Msg("[Manager] 自动刷新服务未启动，忽略刷新请求")
		return
	}
	select {
	case m.refreshCh <- struct{}{}:
		log.Info().Int64("id", m.Id).Msg("[Manager] 手动触发即时刷新信号。")
	case <-m.ctx.Done():
		log.Warn().Msg("[Manager] Manager 已停止，忽略刷新请求")
	default:
		// 通道已满，循环正在忙或等待，忽略本次触发
		log.Debug().Int64("id", m.Id).Msg("[Manager] 即时刷新信号发送失败，循环正忙。")
	}
}

// autoRefreshLoop 是 AutoRefresh 的核心循环
func (m *Manager) autoRefreshLoop() {
	defer func() {
		close(m.refreshCh)
		// 循环退出时（下播或异常），触发回调通知 Pool 移除自己
		if m.onStop != nil {
			log.Info().Int64("id", m.Id).Msg("[Manager] Manager 停止，触发 onStop 回调")
			m.onStop(m.Id)
		}
		// 停止录制
		if m.recordCancel != nil {
			m.recordCancel()
			m.Recorder = nil
		}
	}()

	// 立即触发一次初始刷新，确保启动时就有有效的URL
	m.TriggerRefresh()

	for {
		m.mu.RLock()
		waitTime := m.nextWaitLocked()
		isFirstRun := m.LastRefreshTime.IsZero()
		m.mu.RUnlock()

		if waitTime < 0 {
			if isFirstRun {
				waitTime = 5 * time.Second
				log.Info().Msg("[Manager AutoRefresh] 首次启动，准备立即刷新")
			} else {
				// 已过期或安全提前量过长，等一个短的重试时间
				waitTime = 3 * time.Second
				log.Warn().Int64("id", m.Id).Msgf("[Manager AutoRefresh] 链接已过期或即将过期，等待 %s 后重试。", waitTime)
			}
		}

		timer := time.NewTimer(waitTime)

		select {
		case <-m.ctx.Done():
			timer.Stop()
			log.Info().Int64("id", m.Id).Msg("[Manager AutoRefresh] 自动刷新服务已优雅停止。")
			return

		case <-m.refreshCh:
			timer.Stop()
			log.Info().Int64("id", m.Id).Msg("[Manager AutoRefresh] 收到即时刷新信号，立即刷新。")

		case <-timer.C:
			log.Info().Int64("id", m.Id).Msg("[Manager AutoRefresh] 刷新间隔到期，开始刷新。")
		}

		// --- 核心刷新执行 ---
		err := m.CommonRefresh(nil, MaxAttemptTimes)

		// 检测是否下播
		if errors.Is(err, iface.ErrStreamOffline) {
			log.Info().Int64("id", m.Id).Msg("[Manager AutoRefresh] 检测到直播结束，自动停止 Manager")
			return
		}

		if err != nil {
			log.Err(err).Int64("id", m.Id).Msg("[Manager AutoRefresh] 自动刷新失败，将在下一轮循环中重试。")
		}
	}
}

// nextWaitLocked 计算下一次刷新前的等待时间，调用前必须持有读锁
// 带 exp 的流：过期时间 - 当前时间 - 安全提前量；不带 exp 的流走固定复查周期
func (m *Manager) nextWaitLocked() time.Duration {
	if m.ActualExpireTime.IsZero() {
		if m.LastRefreshTime.IsZero() {
			return -1
		}
		return time.Until(m.LastRefreshTime.Add(noExpiryRecheckInterval))
	}
	return time.Until(m.SafetyExpireTime) - refreshSafetyInterval
}

// CommonRefresh 通用 Refresh 函数，负责控制流、重试和状态更新
// clampAttempts 0 或负数走默认次数，避免落到 retry.Attempts(0) 的无限重试
func clampAttempts(attempts int) int {
	if attempts <= 0 || attempts > MaxAttemptTimes {
		return MaxAttemptTimes
	}
	return attempts
}

func (m *Manager) CommonRefresh(tempCtx context.Context, attempts int) error {
	log.Info().Msg("[Manager CommonRefresh] 正在刷新直播流 token...")

	currentCtx := m.ctx
	if tempCtx != nil {
		currentCtx = tempCtx
	}

	attempts = clampAttempts(attempts)

	var newStreamUrl string
	var newExpireTime time.Time

	r := retry.New(
		retry.Attempts(uint(attempts)),
		retry.Delay(RetryWaitDuration),
		retry.OnRetry(
			func(n uint, err error) {
				log.Err(err).Msgf("[Manager CommonRefresh] 第%d次重试 start", n+1)
			},
		),
		retry.RetryIf(func(err error) bool {
			// 下播、需要登录、密码保护这类状态重试也无济于事
			if errors.Is(err, iface.ErrStreamOffline) ||
				errors.Is(err, iface.ErrLoginRequired) ||
				errors.Is(err, iface.ErrPasswordProtected) ||
				errors.Is(err, iface.ErrAdultOnly) {
				return false
			}
			return true
		}),
		retry.Context(currentCtx),
	)
	err := r.Do(func() error {
		// --- 1. 拉取最新流信息（通过策略接口） ---
		streamInfo, fetchErr := m.Streamer.FetchStreamInfo()
		if fetchErr != nil {
			log.Err(fetchErr).Msg("[Manager CommonRefresh] 刷新直播流信息失败:")
			return fetchErr
		}

		// --- 2. 从各清晰度中挑一条可用的流 ---
		for _, streamUrl := range streamInfo.StreamUrls {
			expireTime, hasExpire, parseErr := m.Streamer.ParseExpiration(streamUrl)
			if parseErr != nil {
				log.Err(parseErr).Msg("[Manager CommonRefresh] 解析 expireTime 失败")
				continue
			}
			newStreamUrl = streamUrl
			if hasExpire {
				newExpireTime = expireTime
			} else {
				newExpireTime = time.Time{}
			}
			return nil
		}
		return errors.New("[Manager CommonRefresh] 没有可用的流地址")
	})

	// 检查是否所有重试都失败
	if newStreamUrl == "" || err != nil {
		log.Err(err).Msg("[Manager CommonRefresh] 所有重试均失败，上次错误")
		return err
	}

	// --- 3. 通用状态更新和加锁 ---
	m.mu.Lock()
	m.CurrentURL = newStreamUrl
	m.StreamURLMap = m.Streamer.GetStreamInfo().StreamUrls
	m.ActualExpireTime = newExpireTime
	if newExpireTime.IsZero() {
		m.SafetyExpireTime = time.Time{}
	} else {
		m.SafetyExpireTime = newExpireTime.Add(-1 * time.Minute)
	}
	m.LastRefreshTime = time.Now()
	recordStatus := m.RecordStatus
	m.mu.Unlock()

	log.Info().Msg("[Manager CommonRefresh] 更新成功")
	log.Info().Object("manager", m).Msg("[Manager CommonRefresh] Manager")

	// URL 变了，或者录制没启动，就去处理一下
	if recordStatus == 1 {
		// 异步启动，不要阻塞刷新主流程
		go m.updateRecorder()
	}

	return nil
}

// GetCurrentURL 返回当前流地址的快照
func (m *Manager) GetCurrentURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CurrentURL
}

func (m *Manager) GetId() int64 {
	return m.Id
}

func (m *Manager) GetProxyURL() string {
	return m.ProxyURL
}

func (m *Manager) GetLastRefreshTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRefreshTime
}

// GetExpireTime 返回当前流地址的过期时间，零值表示流不携带过期信息
func (m *Manager) GetExpireTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ActualExpireTime
}

func (m *Manager) SetRecordStatus(status int) {
	m.mu.Lock()
	m.RecordStatus = status
	m.mu.Unlock()
}

// ResolveTargetURL 根据请求的文件名（相对路径），计算出上游直播流的完整 URL
func (m *Manager) ResolveTargetURL(filename string) (string, error) {
	currentHls := m.GetCurrentURL()
	if currentHls == "" {
		return "", fmt.Errorf("current stream url is empty")
	}

	parsedHlsUrl, err := url.Parse(currentHls)
	if err != nil {
		return "", fmt.Errorf("parse current hls url failed: %w", err)
	}

	// 分片 URI 可能自带查询参数，判断后缀前先剥掉
	name := filename
	if i := strings.Index(name, "?"); i != -1 {
		name = name[:i]
	}

	// 请求 m3u8 时直接返回当前流地址
	if filename == "" || strings.HasSuffix(name, ".m3u8") {
		return currentHls, nil
	}

	// 分片 (ts/m4s) 需要拼接相对路径
	if strings.HasSuffix(name, ".ts") || strings.HasSuffix(name, ".m4s") {
		baseUrl := *parsedHlsUrl

		// HLS 协议中，分片的相对路径是相对于 m3u8 文件所在的目录
		lastSlash := strings.LastIndex(baseUrl.Path, "/")
		if lastSlash != -1 {
			baseUrl.Path = baseUrl.Path[:lastSlash+1]
		}

		relativeURL, err := url.Parse(strings.TrimPrefix(filename, "/"))
		if err != nil {
			return "", fmt.Errorf("parse relative filename failed: %w", err)
		}

		targetURL := baseUrl.ResolveReference(relativeURL)

		// 关键：保留原始 m3u8 的 Query 参数 (Token/签名)
		// 直播流的鉴权 Token 跟在 m3u8 后面，分片下载也需要带上
		// 分片自带查询参数时优先用分片自己的
		if relativeURL.RawQuery == "" {
			targetURL.RawQuery = parsedHlsUrl.RawQuery
		}

		// afreeca 的 aid 凭证要附加到每个分片请求上
		if params := m.Streamer.GetStreamInfo().Params; len(params) > 0 {
			query := targetURL.Query()
			for key, values := range params {
				for _, value := range values {
					query.Set(key, value)
				}
			}
			targetURL.RawQuery = query.Encode()
		}

		return targetURL.String(), nil
	}

	return "", fmt.Errorf("unsupported file type: %s", filename)
}

// FetchPlaylist 拉取当前媒体清单并应用分片过滤，实现 iface.PlaylistFetcher
func (m *Manager) FetchPlaylist(ctx context.Context) ([]byte, error) {
	currentHls := m.GetCurrentURL()
	if currentHls == "" {
		return nil, fmt.Errorf("current stream url is empty")
	}

	response, err := m.Fetch(ctx, currentHls, nil)
	if err != nil {
		return nil, err
	}
	body, err := fetcher.ReadBody(response)
	if err != nil {
		return nil, err
	}
	if m.SegmentFilter == nil {
		return body, nil
	}
	return FilterPlaylist(body, m.SegmentFilter)
}

// FilterPlaylist 从媒体清单中剔除被过滤的分片（如 afreeca 的 preloading 占位分片）
// master 清单原样返回
func FilterPlaylist(raw []byte, filter iface.SegmentFilter) ([]byte, error) {
	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(raw), true)
	if err != nil {
		return nil, fmt.Errorf("解析 m3u8 失败: %w", err)
	}
	if listType != m3u8.MEDIA {
		return raw, nil
	}
	media := playlist.(*m3u8.MediaPlaylist)

	// NewMediaPlaylist 要求 capacity >= winsize，解码器默认 winsize 为 8，
	// 短清单（直播刚开播时常见）需要收窄窗口
	filtered, err := m3u8.NewMediaPlaylist(min(media.WinSize(), media.Count()), media.Count())
	if err != nil {
		return nil, fmt.Errorf("构造媒体清单失败: %w", err)
	}
	filtered.TargetDuration = media.TargetDuration
	filtered.SeqNo = media.SeqNo
	filtered.MediaType = media.MediaType
	for _, segment := range media.Segments {
		if segment == nil {
			continue
		}
		if filter(segment.URI) {
			continue
		}
		if err := filtered.AppendSegment(segment); err != nil {
			return nil, fmt.Errorf("重建媒体清单失败: %w", err)
		}
	}
	if media.Closed {
		filtered.Close()
	}
	return filtered.Encode().Bytes(), nil
}

// MarshalZerologObject 实现 zerolog.LogObjectMarshaler 接口
// 调用 log.Object("manager", m) 时，哪些字段会被打印
func (m *Manager) MarshalZerologObject(e *zerolog.Event) {
	// 只记录关键的业务字段，跳过锁、Context、通道等无关字段
	e.Int64("id", m.Id).
		Str("platform", m.Platform).
		Str("current_url", m.CurrentURL).
		Str("proxy_url", m.ProxyURL).
		Time("actual_expire_time", m.ActualExpireTime).
		Time("safety_expire_time", m.SafetyExpireTime).
		Time("last_refresh_time", m.LastRefreshTime).
		Int("record_status", m.RecordStatus)
}

// ---------------------------------------------------------------------------------------------------------------------

// Fetch 封装了带有自动刷新 (Refresh) 功能的 HTTP 请求
// 它会自动从 Streamer 获取 Headers，并处理 4xx 触发的 Token 刷新
func (m *Manager) Fetch(ctx context.Context, urlStr string, params url.Values) (*http.Response, error) {
	// 定义执行器：真正发起请求的函数
	executor := func(method, baseURL string, p url.Values) (*http.Response, error) {
		// 从 Streamer 获取特定平台的 Headers
		headers := m.Streamer.GetHeaders()
		return fetcher.Fetch(method, baseURL, p, headers)
	}

	// 刷新成功后重试要打到新地址上，所以传取值函数而不是固定 URL
	target := func() string {
		if strings.HasSuffix(urlStr, ".m3u8") {
			if current := m.GetCurrentURL(); current != "" {
				return current
			}
		}
		return urlStr
	}

	return fetcher.FetchWithRefresh(ctx, m, executor, http.MethodGet, target, params)
}

// Refresh 实现 fetcher.Refresher 接口，用于 FetchWithRefresh 调用
func (m *Manager) Refresh(ctx context.Context, attempts int) error {
	return m.CommonRefresh(ctx, attempts)
}
