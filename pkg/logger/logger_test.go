package logger

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestLoggerLevels(t *testing.T) {
	InitLogger("debug")

	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("期望 debug 级别，实际 %v", zerolog.GlobalLevel())
	}

	testError := errors.New("这是一个测试错误，用于模拟失败情况")
	log.Debug().Msg("拉取频道播放列表")
	log.Info().Msg("代理服务启动: http://localhost:8090")
	log.Err(testError).Msg("操作失败")
}

func TestLoggerInvalidLevelFallsBackToInfo(t *testing.T) {
	InitLogger("not-a-level")

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("非法级别应回落到 info，实际 %v", zerolog.GlobalLevel())
	}
}
