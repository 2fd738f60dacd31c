package main

import (
	"github.com/rs/zerolog/log"

	"stream-factory/cmd/cli"
	"stream-factory/pkg/logger"
)

func main() {
	// 打包命令 go build -ldflags="-s -w" -o "stream-factory" ./cmd/app

	// 1. 设置日志格式/系统，配置加载完成后会按 log_level 重设
	logger.InitLogger("")

	// 2. 启动 CLI 应用和配置加载 (核心逻辑)
	if err := cli.Execute(); err != nil {
		// 所有的配置加载、CLI 解析错误都在这里捕获
		log.Fatal().Err(err).Msg("应用启动失败")
	}
}
