package manager

import (
	"context"

	"github.com/rs/zerolog/log"

	"stream-factory/internal/recorder"
)

// openTimeProvider 平台能提供开播时间时用于给录制文件命名
type openTimeProvider interface {
	GetOpenTime() int64
}

func (m *Manager) StartRecorder() {
	log.Info().Int64("id", m.Id).Str("url", m.GetCurrentURL()).Msg("[Recorder Manager] 启动新录制任务")

	var openTime int64
	if provider, ok := m.Streamer.(openTimeProvider); ok {
		openTime = provider.GetOpenTime()
	}

	// 录制器通过 Manager 拉取播放列表和分片，token 刷新对它透明
	rec, err := recorder.NewRecorder(m.Config, m, m.Channel, openTime)
	if err != nil {
		log.Err(err).Int64("id", m.Id).Str("anchor", m.Channel.AnchorName).Msg("[Recorder Manager] 初始化录制器失败")
		return
	}
	m.mu.Lock()
	recordCtx, cancel := context.WithCancel(m.ctx)
	m.recordCancel = cancel
	m.Recorder = rec

	go func() {
		if err := rec.Start(recordCtx); err != nil {
			log.Err(err).Int64("id", m.Id).Str("anchor", m.Channel.AnchorName).
				Msg("[Recorder Manager] 录制任务异常退出")
			// 录制频繁失败大概率是地址失效，让 Manager 重新刷新 URL
			log.Warn().Int64("id", m.Id).Str("anchor", m.Channel.AnchorName).
				Msg("[Recorder Manager] 录制任务异常，触发刷新")
			m.TriggerRefresh()
		}
	}()
	m.mu.Unlock()
}

func (m *Manager) updateRecorder() {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Recorder 正在运行就不用管：它每次都从 Manager 取最新地址
	if m.Recorder != nil && m.Recorder.IsRunning() {
		log.Info().Int64("id", m.Id).Str("anchor", m.Channel.AnchorName).
			Msg("[Recorder Manager] 录制任务运行中，无需更新")
		return
	}

	// 清理旧引用
	if m.Recorder != nil {
		log.Warn().Int64("id", m.Id).Str("anchor", m.Channel.AnchorName).
			Msg("[Recorder Manager] 发现已停止的录制器实例，准备重启")
		m.Recorder = nil
		m.recordCancel = nil
	}

	// 启动新的 recorder
	go m.StartRecorder()
}

func (m *Manager) StopRecorder() {
	m.mu.Lock()
	if m.recordCancel != nil {
		log.Info().Int64("id", m.Id).Str("anchor", m.Channel.AnchorName).Msg("[Recorder Manager] 停止录制任务")
		m.recordCancel() // 这会触发 Recorder.Start 中的 ctx.Done()
		m.recordCancel = nil
		m.Recorder = nil
	}
	m.mu.Unlock()
}
