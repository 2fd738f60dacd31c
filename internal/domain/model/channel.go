package model

type Channel struct {
	ID           int64  `gorm:"column:id;primaryKey"`
	Platform     string `gorm:"column:platform"`
	ChannelID    string `gorm:"column:channel_id"` // chzzk 为 32 位频道 ID，afreeca 为主播账号
	Name         string `gorm:"column:name"`
	URL          string `gorm:"column:url"`
	ProxyURL     string `gorm:"column:proxy_url"`
	AnchorName   string `gorm:"column:anchor_name"`
	Status       int    `gorm:"column:status;not null;default:0"`        // 0: 禁用 1: 启用
	RecordStatus int    `gorm:"column:record_status;not null;default:0"` // 录制状态，0：禁用 1：启用
	CreateTime   int64  `gorm:"column:create_time;autoCreateTime:milli;type:integer"`
	UpdateTime   int64  `gorm:"column:update_time;autoUpdateTime:milli;type:integer"`
}

func (Channel) TableName() string {
	return "t_channel"
}
