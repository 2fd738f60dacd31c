package recorder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stream-factory/internal/domain/model"
	"stream-factory/pkg/config"
)

// fakeSource 用固定的播放列表和分片内容模拟 Manager
type fakeSource struct {
	playlists []string // 每次 FetchPlaylist 依次返回
	calls     int
	segments  map[string][]byte
}

func (f *fakeSource) FetchPlaylist(ctx context.Context) ([]byte, error) {
	if f.calls >= len(f.playlists) {
		return []byte(f.playlists[len(f.playlists)-1]), nil
	}
	p := f.playlists[f.calls]
	f.calls++
	return []byte(p), nil
}

func (f *fakeSource) ResolveTargetURL(filename string) (string, error) {
	return "https://cdn.example/live/" + filename, nil
}

func (f *fakeSource) Fetch(ctx context.Context, urlStr string, params url.Values) (*http.Response, error) {
	name := urlStr[strings.LastIndex(urlStr, "/")+1:]
	data, ok := f.segments[name]
	if !ok {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(bytes.NewReader(nil)),
		}, nil
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(data)),
	}, nil
}

func mediaPlaylist(seqNo int, segments ...string) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:2\n")
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", seqNo)
	for _, s := range segments {
		b.WriteString("#EXTINF:2.000,\n")
		b.WriteString(s + "\n")
	}
	return b.String()
}

func newTestRecorder(t *testing.T, source StreamSource) *Recorder {
	t.Helper()
	cfg := &config.AppConfig{}
	cfg.Recorder.FilenamePattern = filepath.Join(t.TempDir(), "{{.Username}}_{{.Sequence}}")

	r, err := NewRecorder(cfg, source, &model.Channel{
		ChannelID:  "abc123",
		AnchorName: "tester",
	}, time.Now().Unix())
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	return r
}

func TestProcessSegments(t *testing.T) {
	source := &fakeSource{
		playlists: []string{
			mediaPlaylist(0, "seg0.ts", "seg1.ts"),
			// 滑动窗口前进一格，seg1 已下载过不应重复写入
			mediaPlaylist(1, "seg1.ts", "seg2.ts"),
		},
		segments: map[string][]byte{
			"seg0.ts": []byte("AAAA"),
			"seg1.ts": []byte("BBBB"),
			"seg2.ts": []byte("CCCC"),
		},
	}
	r := newTestRecorder(t, source)
	if err := r.NextFile(); err != nil {
		t.Fatalf("next file: %v", err)
	}
	defer r.Cleanup()

	for i := 0; i < 2; i++ {
		if _, err := r.processSegments(t.Context()); err != nil {
			t.Fatalf("process segments #%d: %v", i+1, err)
		}
	}

	if r.nextSeq != 3 {
		t.Fatalf("nextSeq = %d, want 3", r.nextSeq)
	}
	content, err := os.ReadFile(r.File.Name())
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(content) != "AAAABBBBCCCC" {
		t.Fatalf("output = %q, want %q", content, "AAAABBBBCCCC")
	}
	filesize, duration := r.Stats()
	if filesize != 12 {
		t.Fatalf("filesize = %d, want 12", filesize)
	}
	if duration != 6 {
		t.Fatalf("duration = %v, want 6", duration)
	}
}

func TestStartStopsOnEndedPlaylist(t *testing.T) {
	source := &fakeSource{
		playlists: []string{
			mediaPlaylist(0, "seg0.ts") + "#EXT-X-ENDLIST\n",
		},
		segments: map[string][]byte{
			"seg0.ts": []byte("AAAA"),
		},
	}
	r := newTestRecorder(t, source)

	done := make(chan error, 1)
	go func() {
		done <- r.Start(t.Context())
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("recorder did not stop on ended playlist")
	}
	if r.IsRunning() {
		t.Fatal("recorder still marked running after exit")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	source := &fakeSource{
		playlists: []string{mediaPlaylist(0, "seg0.ts")},
		segments:  map[string][]byte{"seg0.ts": []byte("AAAA")},
	}
	r := newTestRecorder(t, source)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- r.Start(ctx)
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start returned error on cancel: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("recorder did not stop on cancel")
	}
}
