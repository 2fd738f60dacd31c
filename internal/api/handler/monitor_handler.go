package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"stream-factory/internal/api/response"
	"stream-factory/internal/service"
	"stream-factory/pkg/config"
	"stream-factory/pkg/pool"
)

type MonitorHandler struct {
	pool           *pool.ManagerPool
	config         *config.AppConfig
	monitorService *service.MonitorService
}

func NewMonitorHandler(pool *pool.ManagerPool, config *config.AppConfig, monitorService *service.MonitorService) *MonitorHandler {
	return &MonitorHandler{
		pool:           pool,
		config:         config,
		monitorService: monitorService,
	}
}

// List 运行中 Manager 的状态快照
func (m *MonitorHandler) List(c *gin.Context) {
	managers, err := m.monitorService.ListManagers()
	if err != nil {
		log.Err(err).Msg("获取运行状态失败")
		response.Error(c, "获取运行状态失败")
		return
	}
	response.OkWithList(c, managers, int64(len(managers)), 0, 0)
}
