package afreeca

import (
	"regexp"
	"time"

	"stream-factory/internal/iface"
)

// 频道页内嵌在 window 全局变量里的开播信息
var (
	bnoRegex    = regexp.MustCompile(`window\.nBroadNo\s*=\s*(\d+);`)
	nickRegex   = regexp.MustCompile(`window\.szBjNick\s*=\s*['"](.+)['"];`)
	titleRegex  = regexp.MustCompile(`window\.szBroadTitle\s*=\s*['"](.+)['"];`)
	bstartRegex = regexp.MustCompile(`<ul class="detail_view".*\n.*<span>(\d+-\d+-\d+ \d+:\d+:\d+)</span>`)
)

// PageInfo 从频道页 HTML 解析出的开播信息
type PageInfo struct {
	BNo       string
	Nick      string
	Title     string
	StartTime time.Time // 可能为零值，页面结构变动时缺失不视为错误
}

// ParseChannelPage 解析频道页，未开播时页面不含 nBroadNo
func ParseChannelPage(html []byte) (*PageInfo, error) {
	m := bnoRegex.FindSubmatch(html)
	if m == nil {
		return nil, iface.ErrStreamOffline
	}
	info := &PageInfo{BNo: string(m[1])}

	if m = nickRegex.FindSubmatch(html); m == nil {
		return nil, iface.NewStreamError("频道页缺少主播昵称")
	}
	info.Nick = string(m[1])

	if m = titleRegex.FindSubmatch(html); m == nil {
		return nil, iface.NewStreamError("频道页缺少直播标题")
	}
	info.Title = string(m[1])

	// 开播时间按首尔时区解析，拿不到时留零值继续
	if m = bstartRegex.FindSubmatch(html); m != nil {
		if start, err := time.Parse("2006-01-02 15:04:05 -0700", string(m[1])+" +0900"); err == nil {
			info.StartTime = start
		}
	}
	return info, nil
}
