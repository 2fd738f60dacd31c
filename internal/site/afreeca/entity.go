package afreeca

import (
	"fmt"
	"strconv"

	"stream-factory/pkg/schema"
)

const (
	// ResultOK 接口调用成功
	ResultOK = 1
	// ResultLoginRequired 频道要求登录后观看
	ResultLoginRequired = -6
)

// ViewPreset 平台预设的清晰度档位
type ViewPreset struct {
	Label string // 展示名，如 "1080p"
	Name  string // 请求 key 用的内部名，如 "original"
}

// Channel player_live_api.php 返回的 CHANNEL 块
// 同一接口既返回频道信息（type=live）也返回播放凭证（type=aid）
type Channel struct {
	Result      int
	BPWD        string // "Y" 表示设置了观看密码
	BNo         string
	RMD         string // 流分配服务器地址
	AID         string // 播放凭证，分片请求需要附带
	CDN         string
	BJNick      string
	Title       string
	ViewPresets []ViewPreset
}

// StreamAssign broad_stream_assign.html 的响应
type StreamAssign struct {
	ViewURL      string
	StreamStatus string
}

// resultNode RESULT 字段数字和字符串两种形态都出现过，统一转 int
type resultNode struct{}

func (resultNode) Validate(v any) (any, error) {
	switch value := v.(type) {
	case float64:
		return int(value), nil
	case string:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%w: RESULT 不是数字: %q", schema.ErrMismatch, value)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("%w: RESULT 期望数字或字符串，实际 %T", schema.ErrMismatch, v)
	}
}

var channelNode = schema.Get(
	schema.Object(
		schema.Req("CHANNEL", schema.Object(
			schema.Req("RESULT", resultNode{}),
			schema.Opt("BPWD", schema.Nullable(schema.Lit(schema.String))),
			schema.Opt("BNO", schema.Nullable(schema.Lit(schema.String))),
			schema.Opt("RMD", schema.Nullable(schema.Lit(schema.String))),
			schema.Opt("AID", schema.Nullable(schema.Lit(schema.String))),
			schema.Opt("CDN", schema.Nullable(schema.Lit(schema.String))),
			schema.Opt("BJNICK", schema.Nullable(schema.Lit(schema.String))),
			schema.Opt("TITLE", schema.Nullable(schema.Lit(schema.String))),
			schema.Opt("VIEWPRESET", schema.List(schema.Object(
				schema.Req("label", schema.Lit(schema.String)),
				schema.Req("name", schema.Lit(schema.String)),
			))),
		)),
	),
	"CHANNEL",
)

var streamAssignNode = schema.Object(
	schema.Opt("view_url", schema.URL("rtmp", "https", "http")),
	schema.Req("stream_status", schema.Lit(schema.String)),
)

var loginNode = schema.Get(
	schema.Object(schema.Req("RESULT", resultNode{})),
	"RESULT",
)

// ChannelFromMap 把校验过的 CHANNEL 映射还原成结构体
func ChannelFromMap(v any) (*Channel, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: CHANNEL 不是对象", schema.ErrMismatch)
	}
	ch := &Channel{
		Result: asInt(m["RESULT"]),
		BPWD:   asString(m["BPWD"]),
		BNo:    asString(m["BNO"]),
		RMD:    asString(m["RMD"]),
		AID:    asString(m["AID"]),
		CDN:    asString(m["CDN"]),
		BJNick: asString(m["BJNICK"]),
		Title:  asString(m["TITLE"]),
	}
	if presets, ok := m["VIEWPRESET"].([]any); ok {
		for _, p := range presets {
			pm, ok := p.(map[string]any)
			if !ok {
				continue
			}
			ch.ViewPresets = append(ch.ViewPresets, ViewPreset{
				Label: asString(pm["label"]),
				Name:  asString(pm["name"]),
			})
		}
	}
	return ch, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch value := v.(type) {
	case int:
		return value
	case float64:
		return int(value)
	}
	return 0
}
