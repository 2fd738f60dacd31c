package repository

import (
	"errors"

	"gorm.io/gorm"

	"stream-factory/internal/domain/model"
)

type ChannelRepository struct {
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) *ChannelRepository {
	return &ChannelRepository{
		db: db,
	}
}

func (r *ChannelRepository) AddChannel(channel *model.Channel) error {
	return r.db.Create(channel).Error
}

func (r *ChannelRepository) RemoveChannel(id int64) error {
	return r.db.Delete(&model.Channel{}, id).Error
}

// UpdateChannelExceptNil 安全更新频道信息，零值字段不覆盖已有值
func (r *ChannelRepository) UpdateChannelExceptNil(channel *model.Channel) error {
	if channel.ID == 0 {
		return errors.New("channel ID 不能为空")
	}

	var existing model.Channel
	if err := r.db.First(&existing, "id = ?", channel.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("channel 不存在")
		}
		return err
	}

	if err := r.db.Model(&existing).Updates(channel).Error; err != nil {
		return err
	}

	return nil
}

func (r *ChannelRepository) UpdateChannelById(id int64, updateMap map[string]any) error {
	if id == 0 {
		return errors.New("channel ID 不能为空")
	}

	var existing model.Channel
	if err := r.db.First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("channel 不存在")
		}
		return err
	}

	if err := r.db.Model(&model.Channel{}).Where("id = ?", id).Updates(updateMap).Error; err != nil {
		return err
	}
	return nil
}

func (r *ChannelRepository) ListChannels() ([]model.Channel, error) {
	var channels []model.Channel
	err := r.db.Find(&channels).Error
	return channels, err
}

func (r *ChannelRepository) GetChannelById(id int64) (*model.Channel, error) {
	var channel model.Channel
	err := r.db.First(&channel, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 没查到
		}
		return nil, err
	}
	return &channel, nil
}

func (r *ChannelRepository) GetChannelByChannelId(channelID string) (*model.Channel, error) {
	var channel model.Channel
	result := r.db.Where("channel_id = ?", channelID).First(&channel)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return &channel, nil
}
