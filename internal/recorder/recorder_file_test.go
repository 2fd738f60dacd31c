package recorder

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"stream-factory/pkg/config"
)

func TestGenerateFileName(t *testing.T) {
	streamAt := time.Date(2026, 8, 31, 21, 30, 5, 0, time.Local)
	r := &Recorder{
		Username:  "tester",
		ChannelID: "abc123",
		StreamAt:  streamAt.Unix(),
		Sequence:  1,
		Ext:       "ts",
		Config:    &config.AppConfig{},
	}
	r.Config.Recorder.FilenamePattern = "{{.Username}}_{{.ChannelId}}_{{.Year}}-{{.Month}}-{{.Day}}_{{.Hour}}-{{.Minute}}-{{.Second}}_{{.Sequence}}"

	name, err := r.GenerateFileName()
	if err != nil {
		t.Fatalf("generate filename: %v", err)
	}
	want := "tester_abc123_2026-08-31_21-30-05_1.ts"
	if name != want {
		t.Fatalf("filename = %q, want %q", name, want)
	}
}

func TestGenerateFileNameAppendsSequenceAndExt(t *testing.T) {
	r := &Recorder{
		Username: "tester",
		StreamAt: time.Now().Unix(),
		Sequence: 3,
		Ext:      "ts",
		Config:   &config.AppConfig{},
	}
	// 模板缺 Sequence 和 Ext 时自动补齐，否则文件会互相覆盖
	r.Config.Recorder.FilenamePattern = "{{.Username}}"

	name, err := r.GenerateFileName()
	if err != nil {
		t.Fatalf("generate filename: %v", err)
	}
	if name != "tester_3.ts" {
		t.Fatalf("filename = %q, want %q", name, "tester_3.ts")
	}
}

func TestFileRotation(t *testing.T) {
	dir := t.TempDir()
	r := &Recorder{
		Username:  "tester",
		ChannelID: "abc123",
		StreamAt:  time.Now().Unix(),
		Ext:       "ts",
		Config:    &config.AppConfig{},
	}
	r.Config.Recorder.FilenamePattern = filepath.Join(dir, "{{.Username}}_{{.Sequence}}")
	r.Config.Recorder.MaxFilesize = 1 // 1MB

	if err := r.NextFile(); err != nil {
		t.Fatalf("next file: %v", err)
	}
	first := r.File.Name()

	payload := make([]byte, 2*1024*1024)
	n, err := r.File.Write(payload)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	r.Filesize += n

	if !r.ShouldSwitchFile() {
		t.Fatal("expected file switch after exceeding max filesize")
	}
	if err := r.NextFile(); err != nil {
		t.Fatalf("next file after rotation: %v", err)
	}
	second := r.File.Name()

	if first == second {
		t.Fatalf("rotation produced the same filename: %s", first)
	}
	if r.Filesize != 0 {
		t.Fatalf("filesize not reset after rotation: %d", r.Filesize)
	}
	info, err := os.Stat(first)
	if err != nil {
		t.Fatalf("stat first file: %v", err)
	}
	if info.Size() != int64(len(payload)) {
		t.Fatalf("first file size = %d, want %d", info.Size(), len(payload))
	}

	// 第二个文件还是空的，Cleanup 应当把它删掉
	if err := r.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(second); !os.IsNotExist(err) {
		t.Fatalf("empty file should be removed, stat err = %v", err)
	}
}
