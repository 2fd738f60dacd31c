package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"stream-factory/internal/api/response"
	"stream-factory/internal/domain/model"
	"stream-factory/internal/domain/vo"
	"stream-factory/internal/service"
	"stream-factory/pkg/config"
	"stream-factory/pkg/pool"
)

type ConfigHandler struct {
	pool          *pool.ManagerPool
	config        *config.AppConfig
	configService *service.ConfigService
}

func NewConfigHandler(pool *pool.ManagerPool, config *config.AppConfig, configService *service.ConfigService) *ConfigHandler {
	return &ConfigHandler{
		pool:          pool,
		config:        config,
		configService: configService,
	}
}

func (h *ConfigHandler) Add(c *gin.Context) {
	var req vo.ConfigAddVO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err.Error())
		return
	}
	err := h.configService.AddConfig(&model.Config{
		Key:         req.Key,
		Value:       req.Value,
		Description: req.Description,
	})
	if err != nil {
		log.Err(err).Msg("添加配置失败")
		response.Error(c, fmt.Sprintf("添加配置失败: %v", err))
		return
	}
	response.OkWithMsg(c, "添加配置成功")
}

func (h *ConfigHandler) Update(c *gin.Context) {
	var req vo.ConfigUpdateVO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err.Error())
		return
	}
	if err := h.configService.UpdateConfig(&req); err != nil {
		log.Err(err).Msg("更新配置失败")
		response.Error(c, fmt.Sprintf("更新配置失败: %v", err))
		return
	}
	response.OkWithMsg(c, "更新配置成功")
}

func (h *ConfigHandler) List(c *gin.Context) {
	configs, err := h.configService.ListConfigs()
	if err != nil {
		log.Err(err).Msg("获取配置列表失败")
		response.Error(c, fmt.Sprintf("获取配置列表失败: %v", err))
		return
	}
	response.OkWithList(c, configs, int64(len(configs)), 0, 0)
}
