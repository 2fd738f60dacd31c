package chzzk

import (
	"fmt"

	"stream-factory/internal/common/consts"
	"stream-factory/internal/domain/vo"
	"stream-factory/internal/iface"
	"stream-factory/pkg/config"
	"stream-factory/pkg/schema"
)

// GetChannelAddInfo 查询频道元数据用于登记
// 频道未开播时 live-detail 没有内容，用频道 ID 占位，不算失败
func GetChannelAddInfo(channelID string, cfg *config.AppConfig) (*vo.ChannelAddVO, error) {
	api := NewAPI(cfg)
	outcome, err := api.GetLiveDetail(channelID)
	if err != nil {
		return nil, err
	}

	add := &vo.ChannelAddVO{
		Platform:  consts.PlatformChzzk,
		ChannelID: channelID,
		Name:      channelID,
		URL:       fmt.Sprintf("https://chzzk.naver.com/live/%s", channelID),
	}

	switch outcome.Kind {
	case schema.KindError:
		return nil, iface.NewStreamError("chzzk 接口错误: %s", outcome.Message)
	case schema.KindEmpty:
		return add, nil
	}

	detail, err := LiveDetailFromFields(outcome.Fields)
	if err != nil {
		return nil, err
	}
	add.Name = detail.Channel
	add.AnchorName = detail.Channel
	return add, nil
}

// GetChannelLiveStatus 探测频道当前是否开播
func GetChannelLiveStatus(channelID string, cfg *config.AppConfig) (int, error) {
	s := NewStreamer(channelID, cfg)
	live, err := s.IsLive()
	if err != nil {
		return consts.LiveStatusOffline, err
	}
	if live {
		return consts.LiveStatusLive, nil
	}
	return consts.LiveStatusOffline, nil
}
