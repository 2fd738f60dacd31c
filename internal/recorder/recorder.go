package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/grafov/m3u8"
	"github.com/rs/zerolog/log"

	"stream-factory/internal/domain/model"
	"stream-factory/internal/iface"
	"stream-factory/pkg/config"
	"stream-factory/pkg/fetcher"
)

// StreamSource 为录制循环提供播放列表和分片下载能力
// 由 Manager 实现：拿到的始终是刷新后的最新地址，403 会自动触发 token 刷新
type StreamSource interface {
	iface.PlaylistFetcher
	ResolveTargetURL(filename string) (string, error)
	Fetch(ctx context.Context, urlStr string, params url.Values) (*http.Response, error)
}

type Recorder struct {
	Config *config.AppConfig
	source StreamSource

	nextSeq uint64 // 下一个期望下载的序列号
	seqInit bool

	LastActivityUnix int64 // 最后一次成功写入数据的时间

	File      *os.File
	Username  string
	StreamAt  int64
	Sequence  int
	ChannelID string
	Duration  float64
	Filesize  int
	Ext       string

	running atomic.Bool
	mu      sync.RWMutex
}

func NewRecorder(cfg *config.AppConfig, source StreamSource, channel *model.Channel, openTime int64) (*Recorder, error) {
	if source == nil {
		return nil, fmt.Errorf("stream source is nil")
	}
	if openTime <= 0 {
		openTime = time.Now().Unix()
	}

	return &Recorder{
		Config:    cfg,
		source:    source,
		Username:  channel.AnchorName,
		ChannelID: channel.ChannelID,
		StreamAt:  openTime,
		Ext:       "ts",
	}, nil
}

const (
	stallTimeout       = 1 * time.Minute // 超时阈值
	defaultInterval    = 2 * time.Second // 拿不到 TargetDuration 时的兜底轮询间隔
	maxConsecutiveFail = 3
)

// Start 开始录制循环，阻塞直到 context 取消或发生致命错误
func (r *Recorder) Start(ctx context.Context) error {
	if err := r.NextFile(); err != nil {
		return fmt.Errorf("next file: %w", err)
	}
	r.running.Store(true)
	atomic.StoreInt64(&r.LastActivityUnix, time.Now().Unix())

	// Ensure file is cleaned up when this function exits in any case
	defer func() {
		r.running.Store(false)
		if err := r.Cleanup(); err != nil {
			log.Err(err).Msgf("cleanup on record stream exit")
		}
	}()
	log.Info().Str("filename", r.File.Name()).Msg("[Recorder] 开始录制")

	ticker := time.NewTicker(defaultInterval)
	defer ticker.Stop()

	retryCnt := 0
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("file", r.File.Name()).Msg("[Recorder] 录制任务收到停止信号")
			return nil
		case <-ticker.C:
			// 看门狗机制
			last := atomic.LoadInt64(&r.LastActivityUnix)
			if time.Now().Unix()-last > int64(stallTimeout.Seconds()) {
				log.Error().
					Str("filename", r.File.Name()).
					Time("last_active", time.Unix(last, 0)).
					Msg("[Recorder] 检测到直播流长时间未更新(僵尸流)，自动终止录制任务")
				return fmt.Errorf("stream stalled for %v", stallTimeout)
			}

			// 执行单次处理
			playlist, err := r.processSegments(ctx)

			// 动态调整下一次请求的时间
			interval := defaultInterval
			if err == nil && playlist != nil {
				retryCnt = 0
				// 官方建议：请求间隔 = TargetDuration
				if playlist.TargetDuration > 0 {
					interval = time.Duration(playlist.TargetDuration * float64(time.Second))
				}
				if playlist.Closed {
					log.Info().Str("file", r.File.Name()).Msg("[Recorder] 播放列表已结束，录制完成")
					return nil
				}
			} else {
				// 如果出错，稍微退避一下，避免死循环刷屏
				log.Err(err).
					Str("name", r.Username).
					Msgf("[Recorder] 获取流信息失败，重试中")
				retryCnt++
				if retryCnt > maxConsecutiveFail {
					return err
				}
				interval = 1 * time.Second
			}

			// 重置定时器
			ticker.Reset(interval)
		}
	}
}

// processSegments 拉取一次播放列表并下载其中未处理过的分片
func (r *Recorder) processSegments(ctx context.Context) (*m3u8.MediaPlaylist, error) {
	raw, err := r.source.FetchPlaylist(ctx)
	if err != nil {
		return nil, err
	}
	p, listType, err := m3u8.DecodeFrom(bytes.NewReader(raw), true)
	if err != nil {
		return nil, fmt.Errorf("failed to decode m3u8 playlist: %w", err)
	}
	if listType != m3u8.MEDIA {
		return nil, fmt.Errorf("expected media playlist, got master")
	}
	mediaPlaylist := p.(*m3u8.MediaPlaylist)

	// 首次启动从窗口起点追起
	if !r.seqInit {
		r.nextSeq = mediaPlaylist.SeqNo
		r.seqInit = true
	}

	for _, segment := range mediaPlaylist.Segments {
		if segment == nil {
			continue
		}

		// 核心逻辑：只下载比当前序列号大的
		if segment.SeqId < r.nextSeq {
			continue
		}

		data, err := retry.NewWithData[[]byte](
			retry.Attempts(3),
			retry.Delay(100*time.Millisecond),
			retry.OnRetry(
				func(n uint, err error) {
					log.Err(err).Msgf("[Recorder segment] 第%d次重试 start", n+1)
				},
			),
			retry.RetryIf(func(err error) bool {
				// 下播了就别白费力气
				return !errors.Is(err, iface.ErrStreamOffline)
			}),
			retry.Context(ctx),
		).Do(func() ([]byte, error) {
			return r.downloadSegment(ctx, segment.URI)
		})
		if err != nil {
			return nil, err
		}

		// 写入文件
		n, err := r.File.Write(data)
		if err != nil {
			return nil, fmt.Errorf("write file: %w", err)
		}

		r.mu.Lock()
		r.Filesize += n
		r.Duration += segment.Duration
		r.mu.Unlock()

		if n > 0 {
			// 喂狗，更新活跃时间
			atomic.StoreInt64(&r.LastActivityUnix, time.Now().Unix())
		}

		// 更新序列号
		r.nextSeq = segment.SeqId + 1

		if r.ShouldSwitchFile() {
			if err := r.NextFile(); err != nil {
				return nil, fmt.Errorf("next file: %w", err)
			}
			log.Info().Msgf("max filesize or duration exceeded, new file created: %s", r.File.Name())
			return mediaPlaylist, nil
		}
	}

	return mediaPlaylist, nil
}

// downloadSegment 把相对分片路径解析成上游完整地址后下载
// 走 source.Fetch，凭证过期导致的 403 由其内部刷新后自动重试
func (r *Recorder) downloadSegment(ctx context.Context, segmentURI string) ([]byte, error) {
	target, err := r.source.ResolveTargetURL(segmentURI)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("resolve segment url: %w", err))
	}
	response, err := r.source.Fetch(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	return fetcher.ReadBody(response)
}

// Stats 返回当前文件的写入统计
func (r *Recorder) Stats() (filesize int, duration float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Filesize, r.Duration
}

func (r *Recorder) IsRunning() bool {
	return r.running.Load()
}
