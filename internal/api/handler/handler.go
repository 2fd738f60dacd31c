package handler

import (
	"stream-factory/internal/service"
	"stream-factory/pkg/config"
	"stream-factory/pkg/pool"
)

type Handler struct {
	ChannelHandler *ChannelHandler
	ConfigHandler  *ConfigHandler
	StreamHandler  *StreamHandler
	MonitorHandler *MonitorHandler
}

func NewHandler(pool *pool.ManagerPool, config *config.AppConfig, service *service.Service) *Handler {
	return &Handler{
		ChannelHandler: NewChannelHandler(pool, config, service.ChannelService),
		ConfigHandler:  NewConfigHandler(pool, config, service.ConfigService),
		StreamHandler:  NewStreamHandler(pool, config, service.ChannelService, service.MonitorService),
		MonitorHandler: NewMonitorHandler(pool, config, service.MonitorService),
	}
}
