package afreeca

import (
	"errors"
	"fmt"

	"stream-factory/internal/common/consts"
	"stream-factory/internal/domain/vo"
	"stream-factory/internal/iface"
	"stream-factory/pkg/config"
)

// GetChannelAddInfo 查询频道元数据用于登记
// 主播未开播时频道页解析不到场次信息，用账号占位，不算失败
func GetChannelAddInfo(username string, cfg *config.AppConfig) (*vo.ChannelAddVO, error) {
	api := NewAPI(username)

	add := &vo.ChannelAddVO{
		Platform:  consts.PlatformAfreeca,
		ChannelID: username,
		Name:      username,
		URL:       fmt.Sprintf("%s/%s", api.PlayBaseURL, username),
	}

	html, err := api.FetchChannelPage(username)
	if err != nil {
		return nil, err
	}
	info, err := ParseChannelPage(html)
	if err != nil {
		if errors.Is(err, iface.ErrStreamOffline) {
			return add, nil
		}
		return nil, err
	}
	add.Name = info.Title
	add.AnchorName = info.Nick
	return add, nil
}

// GetChannelLiveStatus 探测频道当前是否开播
func GetChannelLiveStatus(username string, cfg *config.AppConfig) (int, error) {
	s := NewStreamer(username, cfg)
	live, err := s.IsLive()
	if err != nil {
		return consts.LiveStatusOffline, err
	}
	if live {
		return consts.LiveStatusLive, nil
	}
	return consts.LiveStatusOffline, nil
}
