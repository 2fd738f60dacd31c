package fetcher

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"stream-factory/internal/iface"

	"github.com/avast/retry-go/v5"
	"github.com/rs/zerolog/log"
)

const (
	fetchAttempts     = 6
	fetchRetryDelay   = 200 * time.Millisecond
	refreshSubRetries = 5
)

// FetchWithRefresh 带"失败即刷新"恢复的播放列表拉取
//
// 状态码 >= 400 时：先同步调用 refresher.Refresh 换取新 token，再把原始的
// TransportError 抛回重试循环，下一次尝试自然打到刷新后的 URL 上。
// Refresh 本身失败（直播结束、平台报错）是会话级致命错误，立即终止循环并向上传播。
// 其他失败类别（网络超时等）不触发刷新，交给通用重试策略处理。
//
// 注意 header 可能在刷新时发生变化，所以传入的 executor 闭包中应保持 header 更新
func FetchWithRefresh(ctx context.Context, refresher Refresher, executor RequestExecutor, method string,
	baseURL func() string, params url.Values) (*http.Response, error) {

	childCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 记录真实根因，避免重试耗尽后只拿到聚合错误
	var lastErr error

	doRequest := func() (*http.Response, error) {
		response, err := executor(method, baseURL(), params)
		// 1. 检查网络错误：不触发刷新，按通用策略重试
		if err != nil {
			log.Err(err).Msg("[FetchWithRefresh] HTTP请求失败")
			lastErr = err
			return nil, err
		}

		// 2. 检查状态码
		if response.StatusCode == http.StatusOK || response.StatusCode == http.StatusNotModified {
			return response, nil
		}
		_ = response.Body.Close()

		transportErr := &iface.TransportError{StatusCode: response.StatusCode, URL: baseURL()}

		// 3. >= 400 说明 token 大概率过期：刷新一次后把原错误抛回重试循环
		if response.StatusCode >= http.StatusBadRequest {
			log.Warn().Msgf("[FetchWithRefresh] 播放列表拉取失败(%d)，强制刷新后重试", response.StatusCode)
			if refreshErr := refresher.Refresh(childCtx, refreshSubRetries); refreshErr != nil {
				log.Err(refreshErr).Msg("[FetchWithRefresh] 刷新失败，终止拉取循环")
				// 刷新失败对会话是致命的：以刷新错误（而非原始状态码错误）终止
				lastErr = refreshErr
				return nil, retry.Unrecoverable(refreshErr)
			}
		}
		lastErr = transportErr
		return nil, transportErr
	}

	response, err := retry.NewWithData[*http.Response](
		retry.Attempts(fetchAttempts),
		retry.Delay(fetchRetryDelay),
		retry.OnRetry(
			func(n uint, err error) {
				if n > 0 {
					log.Err(err).Msgf("[FetchWithRefresh] 第%d次重试 start", n)
				}
			},
		),
		retry.Context(childCtx),
	).Do(doRequest)

	if err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}

	return response, nil
}
