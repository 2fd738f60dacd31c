package service

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"stream-factory/internal/common/consts"
	"stream-factory/internal/domain/model"
	"stream-factory/internal/domain/vo"
	"stream-factory/internal/repository"
	"stream-factory/internal/site/afreeca"
	"stream-factory/internal/site/chzzk"
	"stream-factory/pkg/config"
	"stream-factory/pkg/pool"
	"stream-factory/pkg/util"
)

type ChannelService struct {
	pool        *pool.ManagerPool
	config      *config.AppConfig
	channelRepo *repository.ChannelRepository
}

func NewChannelService(pool *pool.ManagerPool, cfg *config.AppConfig, channelRepo *repository.ChannelRepository) *ChannelService {
	return &ChannelService{
		pool:        pool,
		config:      cfg,
		channelRepo: channelRepo,
	}
}

// AddChannel 登记一个新频道，入参可以是频道页地址，也可以是裸的频道标识
func (s *ChannelService) AddChannel(channelInput string, platform string, record bool) error {
	if channelInput == "" {
		return errors.New("地址参数为空")
	}

	var channelAddVO *vo.ChannelAddVO
	switch platform {
	case consts.PlatformChzzk:
		channelID, err := chzzk.CheckAndGetChannelID(channelInput)
		if err != nil {
			return err
		}
		if err := s.checkChannelNotExist(channelID); err != nil {
			return err
		}
		if channelAddVO, err = chzzk.GetChannelAddInfo(channelID, s.config); err != nil {
			return err
		}
	case consts.PlatformAfreeca:
		username, err := afreeca.CheckAndGetUsername(channelInput)
		if err != nil {
			return err
		}
		if err := s.checkChannelNotExist(username); err != nil {
			return err
		}
		if channelAddVO, err = afreeca.GetChannelAddInfo(username, s.config); err != nil {
			return err
		}
	default:
		return errors.New("平台参数有误")
	}

	if channelAddVO == nil {
		return errors.New("未获取到频道信息")
	}

	recordStatus := 0
	if record {
		recordStatus = 1
	}

	channel := &model.Channel{
		Platform:     platform,
		ChannelID:    channelAddVO.ChannelID,
		Name:         channelAddVO.Name,
		URL:          channelAddVO.URL,
		ProxyURL:     fmt.Sprintf("http://localhost:%d/api/v1/%s/proxy/%s/index.m3u8", s.config.Port, platform, channelAddVO.ChannelID),
		AnchorName:   channelAddVO.AnchorName,
		Status:       0,
		RecordStatus: recordStatus,
	}

	return s.channelRepo.AddChannel(channel)
}

func (s *ChannelService) checkChannelNotExist(channelID string) error {
	channel, err := s.channelRepo.GetChannelByChannelId(channelID)
	if err != nil {
		return err
	}
	if channel != nil {
		return errors.New("频道已存在")
	}
	return nil
}

// ListChannels 返回全部频道，并发探测各频道的实时开播状态
func (s *ChannelService) ListChannels() ([]vo.ChannelVO, error) {
	channels, err := s.channelRepo.ListChannels()
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	var statusMutex sync.Mutex
	statusMap := make(map[int64]int, len(channels))

	for i := range channels {
		channel := &channels[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, statusErr := s.GetChannelLiveStatus(channel)
			if statusErr != nil {
				log.Warn().Msgf("警告: 获取频道[%d]直播状态失败: %v", channel.ID, statusErr)
				status = consts.LiveStatusOffline
			}
			statusMutex.Lock()
			statusMap[channel.ID] = status
			statusMutex.Unlock()
		}()
	}
	wg.Wait()

	respList := make([]vo.ChannelVO, len(channels))
	for i, channel := range channels {
		liveStatus := statusMap[channel.ID]

		// 在 pool 里说明 manager 正在运行
		lastRefreshTime := util.MillisToTime(channel.UpdateTime)
		if m, ok := s.pool.Get(channel.ID); ok {
			lastRefreshTime = m.GetLastRefreshTime()
		}

		respList[i] = vo.ChannelVO{
			ID:              strconv.FormatInt(channel.ID, 10),
			Platform:        channel.Platform,
			ChannelID:       channel.ChannelID,
			Name:            channel.Name,
			URL:             channel.URL,
			ProxyURL:        channel.ProxyURL,
			AnchorName:      channel.AnchorName,
			LiveStatus:      liveStatus,
			Status:          channel.Status,
			LastRefreshTime: lastRefreshTime,
			CreateTime:      util.MillisToTime(channel.CreateTime),
			UpdateTime:      util.MillisToTime(channel.UpdateTime),
		}
	}
	return respList, nil
}

func (s *ChannelService) RemoveChannel(id int64) error {
	// 先停掉正在运行的 manager
	if m, ok := s.pool.Get(id); ok {
		m.StopAutoRefresh()
	}
	return s.channelRepo.RemoveChannel(id)
}

func (s *ChannelService) GetChannel(id int64) (*model.Channel, error) {
	if id == 0 {
		return nil, errors.New("id 为空")
	}
	return s.channelRepo.GetChannelById(id)
}

func (s *ChannelService) GetChannelByChannelId(channelID string) (*model.Channel, error) {
	if channelID == "" {
		return nil, errors.New("channelID 为空")
	}
	return s.channelRepo.GetChannelByChannelId(channelID)
}

// RefreshChannelInfo 重新解析频道元数据并写回库里，零值字段不覆盖已有值
func (s *ChannelService) RefreshChannelInfo(channel *model.Channel) {
	if channel == nil {
		return
	}
	var channelAddVO *vo.ChannelAddVO
	var err error
	switch channel.Platform {
	case consts.PlatformChzzk:
		channelAddVO, err = chzzk.GetChannelAddInfo(channel.ChannelID, s.config)
	case consts.PlatformAfreeca:
		channelAddVO, err = afreeca.GetChannelAddInfo(channel.ChannelID, s.config)
	default:
		return
	}
	if err != nil || channelAddVO == nil {
		log.Warn().Msgf("刷新频道[%d]元数据失败: %v", channel.ID, err)
		return
	}

	update := &model.Channel{
		ID:         channel.ID,
		Name:       channelAddVO.Name,
		AnchorName: channelAddVO.AnchorName,
	}
	if err := s.channelRepo.UpdateChannelExceptNil(update); err != nil {
		log.Warn().Msgf("写回频道[%d]元数据失败: %v", channel.ID, err)
	}
}

func (s *ChannelService) GetChannelLiveStatus(channel *model.Channel) (int, error) {
	if channel == nil {
		return consts.LiveStatusOffline, nil
	}
	switch channel.Platform {
	case consts.PlatformChzzk:
		return chzzk.GetChannelLiveStatus(channel.ChannelID, s.config)
	case consts.PlatformAfreeca:
		return afreeca.GetChannelLiveStatus(channel.ChannelID, s.config)
	default:
		return consts.LiveStatusOffline, nil
	}
}

// ChangeChannelStatus 启用或禁用频道
func (s *ChannelService) ChangeChannelStatus(idStr string, targetStatus int) error {
	if idStr == "" {
		return errors.New("入参为空")
	}
	if targetStatus != 0 && targetStatus != 1 {
		return errors.New("目标状态有误")
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		log.Err(err).Msgf("入参转换类型失败: %s", idStr)
		return errors.New("入参格式有误")
	}
	channel, err := s.channelRepo.GetChannelById(id)
	if err != nil || channel == nil {
		return errors.New("未查询到频道信息")
	}

	if channel.Status == targetStatus {
		return errors.New("频道状态与目标状态一致")
	}

	if targetStatus == 0 {
		// 禁用同时停掉 manager
		if m, ok := s.pool.Get(id); ok {
			m.StopAutoRefresh()
		}
	}

	return s.channelRepo.UpdateChannelById(id, map[string]any{"status": targetStatus})
}

// ChangeRecordStatus 开启或关闭频道录制
func (s *ChannelService) ChangeRecordStatus(id int64, targetStatus int) error {
	if targetStatus != 0 && targetStatus != 1 {
		return errors.New("目标状态有误")
	}
	channel, err := s.channelRepo.GetChannelById(id)
	if err != nil || channel == nil {
		return errors.New("未查询到频道信息")
	}

	if err := s.channelRepo.UpdateChannelById(id, map[string]any{"record_status": targetStatus}); err != nil {
		return err
	}

	// 正在运行的 manager 同步生效
	if m, ok := s.pool.Get(id); ok {
		if targetStatus == 1 {
			m.SetRecordStatus(1)
			m.TriggerRefresh()
		} else {
			m.SetRecordStatus(0)
			m.StopRecorder()
		}
	}
	return nil
}
