package vo

import "time"

type ChannelAddVO struct {
	Platform   string    `json:"platform"`
	ChannelID  string    `json:"channelId"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	ProxyURL   string    `json:"proxyUrl"`
	AnchorName string    `json:"anchorName"`
	CreateTime time.Time `json:"createTime"`
	UpdateTime time.Time `json:"updateTime"`
}
