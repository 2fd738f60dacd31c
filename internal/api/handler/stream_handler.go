package handler

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"stream-factory/internal/api/response"
	"stream-factory/internal/manager"
	"stream-factory/internal/service"
	"stream-factory/pkg/config"
	"stream-factory/pkg/pool"
)

type StreamHandler struct {
	pool           *pool.ManagerPool
	config         *config.AppConfig
	channelService *service.ChannelService
	monitorService *service.MonitorService
}

func NewStreamHandler(pool *pool.ManagerPool, config *config.AppConfig,
	channelService *service.ChannelService,
	monitorService *service.MonitorService,
) *StreamHandler {
	return &StreamHandler{
		pool:           pool,
		config:         config,
		channelService: channelService,
		monitorService: monitorService,
	}
}

// Proxy 把客户端的播放列表/分片请求转发到上游直播源
// 路径形如 /api/v1/:platform/proxy/:channelId/*file
func (s *StreamHandler) Proxy(c *gin.Context) {
	channelIdStr := c.Param("channelId")
	if channelIdStr == "" {
		response.Error(c, "缺少频道标识")
		return
	}
	// Gin 的 *file 通配符会包含匹配到的第一个斜杠，例如：/index.m3u8
	filenameWithSlash := c.Param("file")
	filename := strings.TrimPrefix(filenameWithSlash, "/")

	managerObj, ok := s.lookupManager(channelIdStr)
	if !ok {
		response.Error(c, fmt.Sprintf("频道[%s]未启动", channelIdStr))
		return
	}

	targetURL, err := managerObj.ResolveTargetURL(filename)
	if err != nil {
		log.Err(err).Msgf("解析目标地址失败: %s", filename)
		response.Error(c, "Unsupported file type or path")
		return
	}

	// 转发请求，403 会在内部触发 token 刷新后重试
	resp, err := managerObj.Fetch(c.Request.Context(), targetURL, nil)
	if err != nil {
		log.Err(err).Msg("错误: 执行 HTTP 请求失败")
		response.Error(c, "Error fetching stream data")
		return
	}
	defer resp.Body.Close()

	// 转发response给客户端
	// M3U8 文件的 Content-Type 必须正确转发，通常是 application/vnd.apple.mpegurl
	for header, values := range resp.Header {
		for _, value := range values {
			c.Writer.Header().Add(header, value)
		}
	}
	c.Status(resp.StatusCode)

	// 复制响应体 (M3U8 内容或分片数据)
	if _, err = io.Copy(c.Writer, resp.Body); err != nil {
		log.Err(err).Msg("转发响应体失败")
	}
}

// lookupManager 既接受数据库 ID 也接受平台频道标识
func (s *StreamHandler) lookupManager(channelIdStr string) (*manager.Manager, bool) {
	if id, err := strconv.ParseInt(channelIdStr, 10, 64); err == nil {
		if m, ok := s.pool.Get(id); ok {
			return m, true
		}
	}
	channel, err := s.channelService.GetChannelByChannelId(channelIdStr)
	if err != nil || channel == nil {
		return nil, false
	}
	return s.pool.Get(channel.ID)
}

func (s *StreamHandler) Start(c *gin.Context) {
	var req struct {
		ChannelId string `json:"channelId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, "参数有误")
		return
	}
	channelId, err := strconv.ParseInt(req.ChannelId, 10, 64)
	if err != nil {
		response.Error(c, "channelId 格式不正确")
		return
	}

	if err = s.monitorService.StartManager(channelId); err != nil {
		response.Error(c, err.Error())
		return
	}

	response.Ok(c)
}

func (s *StreamHandler) Refresh(c *gin.Context) {
	channelIdStr := c.Param("channelId")
	if channelIdStr == "" {
		response.Error(c, "channelId 不能为空")
		return
	}
	channelId, err := strconv.ParseInt(channelIdStr, 10, 64)
	if err != nil {
		response.Error(c, "channelId 格式不正确")
		return
	}
	managerObj, ok := s.pool.Get(channelId)
	if !ok {
		response.Error(c, "频道不存在或状态有误")
		return
	}
	if err = managerObj.Refresh(c.Request.Context(), 0); err != nil {
		response.Error(c, fmt.Sprintf("刷新频道失败: %v", err))
		return
	}
	response.OkWithMsg(c, fmt.Sprintf("刷新频道[%d]成功", channelId))
}

func (s *StreamHandler) Stop(c *gin.Context) {
	channelIdStr := c.Param("channelId")
	if channelIdStr == "" {
		response.Error(c, "channelId 不能为空")
		return
	}
	channelId, err := strconv.ParseInt(channelIdStr, 10, 64)
	if err != nil {
		response.Error(c, "channelId 格式不正确")
		return
	}
	managerObj, ok := s.pool.Get(channelId)
	if !ok {
		response.Error(c, "频道不存在或状态有误")
		return
	}
	// 停止自动刷新，onStop 回调会把它从 pool 移除
	managerObj.StopAutoRefresh()
	response.OkWithMsg(c, "停止自动刷新成功")
}
