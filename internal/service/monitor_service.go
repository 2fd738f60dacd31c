package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"stream-factory/internal/domain/vo"
	"stream-factory/internal/manager"
	"stream-factory/pkg/config"
	"stream-factory/pkg/pool"
	"stream-factory/pkg/util"
)

type MonitorService struct {
	pool           *pool.ManagerPool
	config         *config.AppConfig
	channelService *ChannelService
}

func NewMonitorService(pool *pool.ManagerPool, cfg *config.AppConfig, channelService *ChannelService) *MonitorService {
	return &MonitorService{
		pool:           pool,
		config:         cfg,
		channelService: channelService,
	}
}

// StartManager 为频道新建 Manager 并启动自动刷新
func (m *MonitorService) StartManager(channelId int64) error {
	if _, exist := m.pool.Get(channelId); exist {
		return errors.New("已处于运行中状态")
	}

	channel, err := m.channelService.GetChannel(channelId)
	if err != nil {
		return err
	}
	if channel == nil {
		return errors.New("频道不存在，请先添加频道")
	}
	if channel.Status == 0 {
		return errors.New("频道未启用，请先启用频道")
	}

	// Manager 停止时（下播等）自动从 pool 中摘除
	mgr, err := manager.NewManager(channel, m.config, m.pool.Remove)
	if err != nil {
		return err
	}

	mgr.StartAutoRefresh(context.Background())

	m.pool.Add(channelId, mgr)
	log.Info().Int64("channelId", channelId).Msg("Manager 新建成功并加入 pool")

	// 启动时顺带重新解析一次频道元数据，不阻塞启动流程
	go m.channelService.RefreshChannelInfo(channel)
	return nil
}

// StopManager 停止频道的 Manager，onStop 回调负责从 pool 摘除
func (m *MonitorService) StopManager(channelId int64) error {
	mgr, exist := m.pool.Get(channelId)
	if !exist {
		return errors.New("未处于运行中状态")
	}
	mgr.StopAutoRefresh()
	return nil
}

// ListManagers 返回运行中 Manager 的状态快照
func (m *MonitorService) ListManagers() ([]vo.ManagerVO, error) {
	snapshot := m.pool.Snapshot()

	respList := make([]vo.ManagerVO, 0, len(snapshot))
	for id, mgr := range snapshot {
		channel, err := m.channelService.GetChannel(id)
		if err != nil || channel == nil {
			log.Warn().Int64("id", id).Msg("[Monitor] pool 中的 manager 查不到对应频道")
			continue
		}

		item := vo.ManagerVO{
			ChannelDBID: id,
			ChannelID:   channel.ChannelID,
			Platform:    channel.Platform,
			Name:        channel.Name,
			AnchorName:  channel.AnchorName,
			LiveStatus:  mgr.Streamer.GetInfo().LiveStatus,
			URL:         channel.URL,
			ProxyURL:    channel.ProxyURL,
			CurrentURL:  mgr.GetCurrentURL(),
		}

		if t := mgr.GetLastRefreshTime(); !t.IsZero() {
			item.LastRefresh = &t
		}
		if t := mgr.GetExpireTime(); !t.IsZero() {
			item.ExpireTime = &t
		}

		if rec := mgr.Recorder; rec != nil && rec.IsRunning() {
			filesize, duration := rec.Stats()
			item.RecordStatus = 1
			if rec.File != nil {
				item.RecordFile = rec.File.Name()
			}
			item.RecordSize = filesize
			item.RecordSizeStr = util.FormatFilesize(filesize)
			item.RecordDuration = duration
			item.RecordDurationStr = util.FormatDuration(duration)
		}

		respList = append(respList, item)
	}
	return respList, nil
}
