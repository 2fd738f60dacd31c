package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"stream-factory/internal/iface"
	"stream-factory/pkg/config"

	"github.com/avast/retry-go/v5"
	"github.com/rs/zerolog/log"
)

type Refresher interface {
	// Refresh 方法负责执行业务逻辑上的刷新操作（如获取新的鉴权URL）。
	Refresh(ctx context.Context, attempts int) error
}

// RequestExecutor 是一个委托函数，用于执行实际的 HTTP 请求
type RequestExecutor func(method, baseURL string, params url.Values) (*http.Response, error)

// GlobalClient 是一个通用的 HTTP 客户端实例
// 带 CookieJar：afreeca 登录成功后的会话 cookie 靠它在后续请求间复用
var GlobalClient *http.Client

func Init(cfg *config.AppConfig) {
	transport := &http.Transport{}

	if cfg.Proxy.Protocol == "" {
		cfg.Proxy.Protocol = "http"
	}

	switch {
	case cfg.Proxy.Enabled && cfg.Proxy.SystemProxy:
		// 使用系统代理
		transport.Proxy = http.ProxyFromEnvironment
		log.Info().Msg("使用系统代理")
	case cfg.Proxy.Enabled && cfg.Proxy.Host != "" && cfg.Proxy.Port >= 1024 && cfg.Proxy.Port <= 65535:
		// 使用 host + port
		proxyAddr := fmt.Sprintf("%s://%s:%d", cfg.Proxy.Protocol, cfg.Proxy.Host, cfg.Proxy.Port)
		user := url.QueryEscape(cfg.Proxy.Username)
		pass := url.QueryEscape(cfg.Proxy.Password)
		if user != "" && pass != "" {
			proxyAddr = fmt.Sprintf("%s://%s:%s@%s:%d", cfg.Proxy.Protocol, user, pass, cfg.Proxy.Host, cfg.Proxy.Port)
		}
		proxyURL, err := url.Parse(proxyAddr)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
			log.Info().Msgf("使用代理: %s", proxyAddr)
		}
	default:
		log.Info().Msg("未启用代理")
	}

	jar, _ := cookiejar.New(nil)
	GlobalClient = &http.Client{
		Timeout:   15 * time.Second,
		Transport: transport,
		Jar:       jar,
	}
}

// Fetch 通用请求方法，适用于所有平台的 API 调用
func Fetch(method string, baseURL string, params url.Values, header http.Header) (*http.Response, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("解析 baseURL 失败: %v", err))
	}

	// 将新参数合并到现有查询参数中
	query := parsedURL.Query()
	if len(params) > 0 {
		for key, values := range params {
			// 使用 Add 而非 Set，确保参数不会覆盖已有的同名参数
			for _, value := range values {
				query.Add(key, value)
			}
		}
	}
	parsedURL.RawQuery = query.Encode()

	request, err := http.NewRequest(method, parsedURL.String(), nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("创建请求失败: %v", err))
	}

	// 设置 Header
	if header != nil {
		request.Header = header.Clone()
	}
	// 特殊处理 host
	if host := request.Header.Get("Host"); host != "" {
		request.Host = host
		request.Header.Del("Host")
	}

	return GlobalClient.Do(request)
}

// ResetCookies 清空会话 cookie，之后的请求视同未登录
func ResetCookies() {
	if GlobalClient == nil {
		return
	}
	jar, _ := cookiejar.New(nil)
	GlobalClient.Jar = jar
}

// PostForm 发送 application/x-www-form-urlencoded 请求（afreeca 的频道/登录接口）
func PostForm(baseURL string, data url.Values, header http.Header) (*http.Response, error) {
	request, err := http.NewRequest(http.MethodPost, baseURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %v", err)
	}
	if header != nil {
		request.Header = header.Clone()
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return GlobalClient.Do(request)
}

// ReadBody 读取并关闭响应体，状态码不在 acceptable 集合内时返回 TransportError
// acceptable 为空时默认只接受 200/304
// 4xx 出现在 acceptable 中通常意味着调用方要把响应体交给 schema.Classify 做分类
func ReadBody(response *http.Response, acceptable ...int) ([]byte, error) {
	defer response.Body.Close()

	if len(acceptable) == 0 {
		acceptable = []int{http.StatusOK, http.StatusNotModified}
	}
	allowed := false
	for _, code := range acceptable {
		if response.StatusCode == code {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, &iface.TransportError{StatusCode: response.StatusCode, URL: response.Request.URL.String()}
	}

	bodyBytes, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return nil, fmt.Errorf("读取响应体失败: %v", readErr)
	}
	return bodyBytes, nil
}

// FetchBody 用于获取并读取 responseBody
func FetchBody(baseURL string, params url.Values, header http.Header, acceptable ...int) ([]byte, error) {
	response, err := Fetch(http.MethodGet, baseURL, params, header)
	if err != nil {
		return nil, fmt.Errorf("执行请求失败: %v", err)
	}
	return ReadBody(response, acceptable...)
}
