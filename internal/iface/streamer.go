package iface

import (
	"net/http"
	"net/url"
	"time"
)

type Info struct {
	Header     http.Header
	ChannelID  string
	Platform   string // 平台
	ChannelURL string // 频道页 URL
	LiveStatus int    // 频道状态 0:未开播 1:直播中
	StreamInfo *StreamInfo
}

// StreamInfo 包含通用的流媒体信息
type StreamInfo struct {
	Title    string
	Author   string
	Category string
	Adult    bool
	// StreamUrls 清晰度标签 -> 完整的 HLS URL
	StreamUrls map[string]string
	// Params 播放时需要附加到每个分片请求上的静态参数（如 afreeca 的 aid）
	Params url.Values
}

// Streamer 定义了所有直播平台需要实现的方法
type Streamer interface {

	// InitChannel 初始化频道（解析入参、确认开播状态、拉取元数据）
	InitChannel() error

	// GetId 返回直播源的唯一标识符
	GetId() (string, error)

	// IsLive 检查频道是否在直播中
	IsLive() (bool, error)

	// FetchStreamInfo 获取频道的最新状态和流媒体 URL
	FetchStreamInfo() (*StreamInfo, error)

	// GetInfo 获取成员变量副本
	GetInfo() Info

	// GetStreamInfo 获取内部成员变量副本
	GetStreamInfo() StreamInfo

	// GetHeaders 发往源站的请求头（可能在刷新过程中被更新）
	GetHeaders() http.Header

	// ParseExpiration 从流 URL 中解析出 token 过期时间
	// ok=false 表示 URL 不携带过期信息（视为永不过期）
	ParseExpiration(streamUrl string) (expire time.Time, ok bool, err error)
}
