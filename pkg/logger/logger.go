package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger 初始化 zerolog 的控制台输出格式
// level 为空时默认 info
func InitLogger(level string) {
	logLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || logLevel == zerolog.NoLevel {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	zerolog.TimestampFieldName = "timestamp"
	zerolog.TimeFieldFormat = time.RFC3339Nano

	// ConsoleWriter 输出人类可读的格式
	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		NoColor:    false,
		TimeFormat: "2006-01-02 15:04:05.000",
		// 固定长度的日志级别
		FormatLevel: func(i interface{}) string {
			levelStr := strings.ToUpper(i.(string))
			return fmt.Sprintf(" %5s ", levelStr)
		},
		// 固定长度的调用方信息 (文件名:行号)
		FormatCaller: func(i interface{}) string {
			callerStr := i.(string)
			if lastSlash := strings.LastIndexByte(callerStr, '/'); lastSlash != -1 {
				callerStr = callerStr[lastSlash+1:]
			}
			return fmt.Sprintf("%-25s", callerStr)
		},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf(" : %s", i.(string))
		},
	}

	log.Logger = zerolog.New(consoleWriter).
		Level(logLevel).
		With().
		Timestamp().
		CallerWithSkipFrameCount(2). // 跳过封装层，显示真实调用处
		Logger()
}
