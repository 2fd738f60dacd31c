package service

import (
	"stream-factory/internal/repository"
	"stream-factory/pkg/config"
	"stream-factory/pkg/pool"
)

type Service struct {
	ChannelService *ChannelService
	ConfigService  *ConfigService
	MonitorService *MonitorService
}

func NewService(pool *pool.ManagerPool, config *config.AppConfig, repo *repository.Repository) *Service {
	channelService := NewChannelService(pool, config, repo.Channel)
	return &Service{
		ChannelService: channelService,
		ConfigService:  NewConfigService(pool, config, repo.Config),
		MonitorService: NewMonitorService(pool, config, channelService),
	}
}
