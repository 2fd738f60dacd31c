package iface

import (
	"context"
)

// SegmentFilter 判断一个分片是否应当被丢弃（如 afreeca 的 preloading 占位分片）
// 在构造时注入，替代通过继承替换 writer 的做法
type SegmentFilter func(segmentURI string) bool

// PlaylistFetcher 拉取当前媒体播放列表的能力，由持有流句柄的一方提供
type PlaylistFetcher interface {
	FetchPlaylist(ctx context.Context) ([]byte, error)
}
