package repository

import "gorm.io/gorm"

type Repository struct {
	Channel *ChannelRepository
	Config  *ConfigRepository
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Channel: NewChannelRepository(db),
		Config:  NewConfigRepository(db),
	}
}
