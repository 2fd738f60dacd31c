package db

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stream-factory/internal/domain/model"
)

var DB *gorm.DB

const defaultDBPath = "./db/stream-factory.db"

func InitDB() {
	InitDBAt(defaultDBPath)
}

func InitDBAt(path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Fatal().Err(err).Msg("创建数据库目录失败")
	}

	var err error
	DB, err = gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("数据库连接失败")
	}

	// 自动迁移表结构
	if err := DB.AutoMigrate(&model.Channel{}, &model.Config{}); err != nil {
		log.Fatal().Err(err).Msg("表迁移失败")
	}

	log.Info().Str("path", path).Msg("数据库连接成功并已迁移")
}
