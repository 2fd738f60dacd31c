package vo

import "time"

// ManagerVO 运行时的状态快照
type ManagerVO struct {
	ChannelDBID int64      `json:"channelDbId"`
	ChannelID   string     `json:"channelId"`
	Platform    string     `json:"platform"`
	Name        string     `json:"name"`
	AnchorName  string     `json:"anchorName"`
	LiveStatus  int        `json:"liveStatus"`  // 0：未开播 1：直播中
	URL         string     `json:"url"`         // 频道页地址
	ProxyURL    string     `json:"proxyUrl"`    // 代理地址
	CurrentURL  string     `json:"currentUrl"`  // 当前解析到的流地址
	LastRefresh *time.Time `json:"lastRefresh"` // 最后刷新时间
	ExpireTime  *time.Time `json:"expireTime"`  // URL 过期时间，不带 exp 的流为空

	RecordStatus      int     `json:"recordStatus"`      // 0：未录制 1：录制中
	RecordFile        string  `json:"recordFile"`        // 当前录制文件名
	RecordSize        int     `json:"recordSize"`        // 当前文件大小 (Byte)
	RecordSizeStr     string  `json:"recordSizeStr"`     // 当前文件大小字符串
	RecordDuration    float64 `json:"recordDuration"`    // 当前分片时长
	RecordDurationStr string  `json:"recordDurationStr"` // 当前分片时长字符串
}
