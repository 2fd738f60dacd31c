package handler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"stream-factory/internal/api/response"
	"stream-factory/internal/service"
	"stream-factory/pkg/config"
	"stream-factory/pkg/pool"
)

type ChannelHandler struct {
	pool           *pool.ManagerPool
	config         *config.AppConfig
	channelService *service.ChannelService
}

func NewChannelHandler(pool *pool.ManagerPool, config *config.AppConfig, channelService *service.ChannelService) *ChannelHandler {
	return &ChannelHandler{
		pool:           pool,
		config:         config,
		channelService: channelService,
	}
}

// Add 添加频道
func (h *ChannelHandler) Add(c *gin.Context) {
	var req struct {
		ChannelInput string `json:"channelInput" binding:"required"`
		Platform     string `json:"platform" binding:"oneof=chzzk afreeca"`
		Record       bool   `json:"record"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				switch fe.Field() {
				case "ChannelInput":
					response.Error(c, "频道标识不能为空")
					return
				case "Platform":
					response.Error(c, "平台参数有误")
					return
				}
			}
		}
		response.Error(c, "参数错误")
		return
	}

	if err := h.channelService.AddChannel(req.ChannelInput, req.Platform, req.Record); err != nil {
		response.Error(c, err.Error())
		return
	}

	response.OkWithMsg(c, "添加频道成功")
}

// Remove 删除频道
func (h *ChannelHandler) Remove(c *gin.Context) {
	idStr := c.Param("id")
	if idStr == "" {
		response.Error(c, "id 不能为空")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		response.Error(c, "id 格式不正确")
		return
	}
	if managerObj, ok := h.pool.Get(id); ok {
		// 停止自动刷新
		managerObj.StopAutoRefresh()
		// 从 ManagerPool 移除
		h.pool.Remove(id)
	}
	// 删除数据库
	if err = h.channelService.RemoveChannel(id); err != nil {
		log.Err(err).Msgf("删除频道失败 %d", id)
		response.Error(c, fmt.Sprintf("删除频道失败: %v", err))
		return
	}
	response.OkWithMsg(c, "删除成功")
}

// List 获取频道列表
func (h *ChannelHandler) List(c *gin.Context) {
	channels, err := h.channelService.ListChannels()
	if err != nil {
		log.Err(err).Msg("获取频道列表失败")
		response.Error(c, "获取频道列表失败")
		return
	}

	response.OkWithList(c, channels, int64(len(channels)), 0, 0)
}

// ChangeStatus 启用/禁用频道
func (h *ChannelHandler) ChangeStatus(c *gin.Context) {
	var req struct {
		ChannelId    string `json:"channelId"`
		TargetStatus int    `json:"status"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, "请求参数有误")
		return
	}

	if req.ChannelId == "" {
		response.Error(c, "频道 id 为空")
		return
	}
	if req.TargetStatus != 0 && req.TargetStatus != 1 {
		response.Error(c, "非法目标状态")
		return
	}

	if err := h.channelService.ChangeChannelStatus(req.ChannelId, req.TargetStatus); err != nil {
		log.Err(err).Msg("修改频道状态失败")
		response.Error(c, err.Error())
		return
	}

	response.Ok(c)
}

// ChangeRecord 开启/关闭录制
func (h *ChannelHandler) ChangeRecord(c *gin.Context) {
	var req struct {
		ChannelId    string `json:"channelId" binding:"required"`
		TargetStatus int    `json:"status"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, "请求参数有误")
		return
	}
	id, err := strconv.ParseInt(req.ChannelId, 10, 64)
	if err != nil {
		response.Error(c, "频道 id 格式不正确")
		return
	}

	if err := h.channelService.ChangeRecordStatus(id, req.TargetStatus); err != nil {
		log.Err(err).Msg("修改录制状态失败")
		response.Error(c, err.Error())
		return
	}

	response.Ok(c)
}
