package api

import (
	"regexp"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"stream-factory/internal/api/handler"
)

// LoggerSkipPaths 是一个自定义中间件，用于跳过特定路径的日志
func LoggerSkipPaths(skipPatterns []string) gin.HandlerFunc {
	// 预编译所有正则表达式，避免每次请求都重新编译
	var regexList []*regexp.Regexp
	for _, pattern := range skipPatterns {
		regexList = append(regexList, regexp.MustCompile(pattern))
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path

		// 检查路径是否匹配任何一个正则
		for _, re := range regexList {
			if re.MatchString(path) {
				// 匹配成功则跳过日志打印
				c.Next()
				return
			}
		}

		// 未匹配则使用默认的 Gin Logger
		gin.Logger()(c)
	}
}

func NewEngine(h *handler.Handler) *gin.Engine {
	// 详细日志 gin.DebugMode，生产环境 gin.ReleaseMode
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	// 代理请求每秒都在打，跳过这部分访问日志
	r.Use(LoggerSkipPaths([]string{
		`^/api/v1/[^/]+/proxy/.*`,
	}))
	// 跨域
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
		AllowWebSockets:  true,
	}))

	setupRoutes(r, h)
	return r
}

func setupRoutes(r *gin.Engine, h *handler.Handler) {
	api := r.Group("/api/v1")

	// 频道管理
	channelGroup := api.Group("/channel")
	{
		channelGroup.POST("", h.ChannelHandler.Add)
		channelGroup.DELETE("/:id", h.ChannelHandler.Remove)
		channelGroup.GET("/list", h.ChannelHandler.List)
		channelGroup.POST("/status", h.ChannelHandler.ChangeStatus)
		channelGroup.POST("/record", h.ChannelHandler.ChangeRecord)
	}

	// 流管控
	streamGroup := api.Group("/stream")
	{
		streamGroup.POST("/start", h.StreamHandler.Start)
		streamGroup.POST("/stop/:channelId", h.StreamHandler.Stop)
		streamGroup.POST("/refresh/:channelId", h.StreamHandler.Refresh)
	}

	// 代理流服务
	// *file 是通配符，会匹配后面的所有内容（包含斜杠）
	api.GET("/chzzk/proxy/:channelId/*file", h.StreamHandler.Proxy)
	api.GET("/afreeca/proxy/:channelId/*file", h.StreamHandler.Proxy)

	// 运行监控
	api.GET("/monitor/list", h.MonitorHandler.List)

	configGroup := api.Group("/config")
	{
		configGroup.GET("/list", h.ConfigHandler.List)
		configGroup.POST("/add", h.ConfigHandler.Add)
		configGroup.POST("/update", h.ConfigHandler.Update)
	}
}
