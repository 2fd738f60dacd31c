package iface

import (
	"errors"
	"fmt"
)

// 解析/刷新路径上会出现的几类终态错误
// 调用方用 errors.Is / errors.As 区分，不要比较错误字符串
var (
	// ErrStreamOffline 频道未开播，自动刷新循环收到后直接退出，不重试
	ErrStreamOffline = errors.New("频道未开播")

	// ErrLoginRequired 平台要求登录（afreeca RESULT == -6）
	ErrLoginRequired = errors.New("需要登录后才能观看")

	// ErrAuthRejected 登录凭据被拒绝
	ErrAuthRejected = errors.New("登录失败，账号或密码错误")

	// ErrAdultOnly 年龄限制内容，与普通不可用区分开，便于给用户准确提示
	ErrAdultOnly = errors.New("年龄限制内容，无法观看")

	// ErrUnavailable 流不可用（非年龄限制原因）
	ErrUnavailable = errors.New("直播流不可用")

	// ErrPasswordProtected 房间设置了观看密码
	ErrPasswordProtected = errors.New("直播间需要密码")
)

// TransportError HTTP 传输层错误
// 播放列表拉取返回 >= 400 时，worker 会先触发一次 Refresh 再向上抛出原错误
type TransportError struct {
	StatusCode int
	URL        string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("http status code: %d, url: %s", e.StatusCode, e.URL)
}

// StreamError 平台在响应体里明确返回的业务错误（如 CHANNEL_NOT_FOUND）
// 刷新过程中出现即视为会话结束，向上传播，不做无限重试
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return e.Message
}

func NewStreamError(format string, args ...any) *StreamError {
	return &StreamError{Message: fmt.Sprintf(format, args...)}
}
