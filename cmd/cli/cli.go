package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"stream-factory/internal/api"
	"stream-factory/internal/api/handler"
	"stream-factory/internal/db"
	"stream-factory/internal/repository"
	"stream-factory/internal/service"
	"stream-factory/pkg/config"
	"stream-factory/pkg/fetcher"
	"stream-factory/pkg/logger"
	"stream-factory/pkg/pool"
)

// CliFlags 用于在 CLI 解析后临时存储 Flag 值
type CliFlags struct {
	ConfigFile            string
	Port                  int
	LogLevel              string
	ChzzkCookie           string
	AfreecaUsername       string
	AfreecaPassword       string
	AfreecaStreamPassword string
	PurgeCredentials      bool
}

func Execute() error {
	// 存储 CLI 解析后的值
	cliValues := CliFlags{}

	app := &cli.App{
		Name:  "Stream Factory",
		Usage: "管理多平台直播流",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config-file",
				Aliases:     []string{"c"},
				Usage:       "配置文件 (JSON) 路径",
				Destination: &cliValues.ConfigFile,
				Value:       "./conf/config.json",
			},
			&cli.IntFlag{
				Name:        "port",
				Aliases:     []string{"p"},
				Usage:       "服务监听端口",
				Destination: &cliValues.Port,
				Value:       0, // 使用 0 表示未设置，让 Viper 默认值生效
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "日志级别 (debug/info/warn/error)",
				Destination: &cliValues.LogLevel,
				Value:       "",
			},
			&cli.StringFlag{
				Name:        "chzzk-cookie",
				Usage:       "Chzzk Cookie (NID_AUT/NID_SES，用于成人频道)",
				Destination: &cliValues.ChzzkCookie,
				Value:       "",
			},
			&cli.StringFlag{
				Name:        "afreeca-username",
				Usage:       "SOOP (AfreecaTV) 登录账号",
				Destination: &cliValues.AfreecaUsername,
				Value:       "",
			},
			&cli.StringFlag{
				Name:        "afreeca-password",
				Usage:       "SOOP (AfreecaTV) 登录密码",
				Destination: &cliValues.AfreecaPassword,
				Value:       "",
			},
			&cli.StringFlag{
				Name:        "afreeca-stream-password",
				Usage:       "SOOP (AfreecaTV) 房间观看密码",
				Destination: &cliValues.AfreecaStreamPassword,
				Value:       "",
			},
			&cli.BoolFlag{
				Name:        "purge-credentials",
				Usage:       "启动时清空已保存的登录会话",
				Destination: &cliValues.PurgeCredentials,
			},
		},
		Action: start(&cliValues),
	}

	return app.Run(os.Args)
}

func start(cliValues *CliFlags) cli.ActionFunc {
	return func(c *cli.Context) error {
		// 将解析后的命令行值转换为 Viper 键值对，仅设置非空值
		flagMap := make(map[string]interface{})
		if cliValues.Port != 0 {
			flagMap["port"] = cliValues.Port
		}
		if cliValues.LogLevel != "" {
			flagMap["log_level"] = cliValues.LogLevel
		}
		if cliValues.ChzzkCookie != "" {
			flagMap["chzzk.cookie"] = cliValues.ChzzkCookie
		}
		if cliValues.AfreecaUsername != "" {
			flagMap["afreeca.username"] = cliValues.AfreecaUsername
		}
		if cliValues.AfreecaPassword != "" {
			flagMap["afreeca.password"] = cliValues.AfreecaPassword
		}
		if cliValues.AfreecaStreamPassword != "" {
			flagMap["afreeca.stream_password"] = cliValues.AfreecaStreamPassword
		}

		// 初始化数据库
		db.InitDB()
		repo := repository.NewRepository(db.DB)

		// 数据库里的配置项优先级低于命令行
		configMap, err := repo.Config.ListConfigsMap()
		if err != nil {
			return err
		}
		if err := config.InitViper(cliValues.ConfigFile, flagMap, configMap); err != nil {
			return err
		}
		logger.InitLogger(config.GlobalConfig.LogLevel)

		log.Info().Msgf("服务将监听端口: %d", config.GlobalConfig.Port)
		log.Info().Msgf("Chzzk Cookie 已加载 (长度: %d)", len(config.GlobalConfig.Chzzk.Cookie))
		log.Info().Msgf("SOOP 账号: %s", config.GlobalConfig.Afreeca.Username)

		// ------ 启动应用程序核心逻辑 ------

		// 初始化http客户端
		fetcher.Init(&config.GlobalConfig)
		if cliValues.PurgeCredentials {
			fetcher.ResetCookies()
			log.Info().Msg("已清空保存的登录会话")
		}

		// 初始化 ManagerPool 和各层服务
		p := pool.NewManagerPool(&config.GlobalConfig)
		svc := service.NewService(p, &config.GlobalConfig, repo)
		h := handler.NewHandler(p, &config.GlobalConfig, svc)

		routerEngine := api.NewEngine(h)
		return routerEngine.Run(fmt.Sprintf(":%d", config.GlobalConfig.Port))
	}
}
