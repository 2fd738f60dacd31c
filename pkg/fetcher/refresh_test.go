package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"stream-factory/internal/iface"
	"stream-factory/pkg/config"
)

type fakeRefresher struct {
	calls   atomic.Int32
	err     error
	onFresh func()
}

func (f *fakeRefresher) Refresh(ctx context.Context, attempts int) error {
	f.calls.Add(1)
	if f.err != nil {
		return f.err
	}
	if f.onFresh != nil {
		f.onFresh()
	}
	return nil
}

func executor(method, baseURL string, params url.Values) (*http.Response, error) {
	return Fetch(method, baseURL, params, nil)
}

func TestFetchWithRefreshSuccessNoRefresh(t *testing.T) {
	Init(&config.AppConfig{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := &fakeRefresher{}
	resp, err := FetchWithRefresh(context.Background(), r, executor, http.MethodGet,
		func() string { return server.URL }, nil)
	if err != nil {
		t.Fatalf("期望成功: %v", err)
	}
	resp.Body.Close()
	if r.calls.Load() != 0 {
		t.Fatalf("成功路径不应触发刷新, 实际 %d 次", r.calls.Load())
	}
}

func TestFetchWithRefreshOn403(t *testing.T) {
	Init(&config.AppConfig{})

	// token 未刷新前一直 403，刷新后放行
	var refreshed atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !refreshed.Load() {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := &fakeRefresher{onFresh: func() { refreshed.Store(true) }}
	resp, err := FetchWithRefresh(context.Background(), r, executor, http.MethodGet,
		func() string { return server.URL }, nil)
	if err != nil {
		t.Fatalf("刷新后重试应成功: %v", err)
	}
	resp.Body.Close()
	// 第一次 403 触发刷新，第二次请求成功，刷新只应发生一次
	if r.calls.Load() != 1 {
		t.Fatalf("期望刷新 1 次, 实际 %d 次", r.calls.Load())
	}
}

func TestFetchWithRefreshFatalRefreshError(t *testing.T) {
	Init(&config.AppConfig{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	// 刷新失败（直播已结束）：应传播刷新错误而不是原始 403
	sessionErr := iface.NewStreamError("刷新直播流地址时发生错误")
	r := &fakeRefresher{err: sessionErr}
	_, err := FetchWithRefresh(context.Background(), r, executor, http.MethodGet,
		func() string { return server.URL }, nil)
	if err == nil {
		t.Fatal("期望错误")
	}
	var streamErr *iface.StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("期望 StreamError 传播, 实际 %v", err)
	}
	var transportErr *iface.TransportError
	if errors.As(err, &transportErr) {
		t.Fatalf("不应返回原始传输错误: %v", err)
	}
	if r.calls.Load() != 1 {
		t.Fatalf("致命刷新错误后不应再次刷新, 实际 %d 次", r.calls.Load())
	}
}

func TestFetchWithRefreshTransportExhaustion(t *testing.T) {
	Init(&config.AppConfig{})
	// 404 同样 >= 400，会触发刷新；重试耗尽后返回的错误应保留状态码
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	r := &fakeRefresher{}
	_, err := FetchWithRefresh(context.Background(), r, executor, http.MethodGet,
		func() string { return server.URL }, nil)
	if err == nil {
		t.Fatal("期望错误")
	}
	var transportErr *iface.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("期望 TransportError, 实际 %v", err)
	}
	if transportErr.StatusCode != http.StatusNotFound {
		t.Fatalf("状态码应保留: %d", transportErr.StatusCode)
	}
	if r.calls.Load() == 0 {
		t.Fatal(">=400 应触发刷新")
	}
}
