package config

import (
	"errors"
	"fmt"
	"os"
	"stream-factory/internal/iface"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// AppConfig 包含应用程序的所有配置项
type AppConfig struct {
	Viper       *viper.Viper `json:"-" mapstructure:"-"`
	subscribers []iface.ConfigSubscriber

	Port       int    `json:"port" mapstructure:"port"`                 // 监听端口
	LogLevel   string `json:"log_level" mapstructure:"log_level"`       // 日志级别
	GinLogMode string `json:"gin_log_mode" mapstructure:"gin_log_mode"` // gin 日志模式
	Proxy      struct {
		Enabled     bool   `json:"enabled" mapstructure:"enabled"`           // 是否启用 HTTP 代理
		SystemProxy bool   `json:"system_proxy" mapstructure:"system_proxy"` // 是否使用系统代理
		Protocol    string `json:"protocol" mapstructure:"protocol"`         // 代理协议
		Host        string `json:"host" mapstructure:"host"`                 // 代理主机
		Port        int    `json:"port" mapstructure:"port"`                 // 代理端口
		Username    string `json:"username" mapstructure:"username"`
		Password    string `json:"password" mapstructure:"password"`
	} `json:"proxy" mapstructure:"proxy"`
	Chzzk struct {
		Cookie string `json:"cookie" mapstructure:"cookie"` // chzzk 登录 Cookie (NID_AUT/NID_SES)
	} `json:"chzzk" mapstructure:"chzzk"`
	Afreeca struct {
		Username       string `json:"username" mapstructure:"username"`               // afreeca 账号
		Password       string `json:"password" mapstructure:"password"`               // afreeca 密码
		StreamPassword string `json:"stream_password" mapstructure:"stream_password"` // 房间观看密码
	} `json:"afreeca" mapstructure:"afreeca"`
	Recorder struct {
		FilenamePattern string `json:"filename_pattern" mapstructure:"filename_pattern"` // 录制文件名模板
		MaxFilesize     int    `json:"max_filesize" mapstructure:"max_filesize"`         // 单文件大小上限 (MB)
		MaxDuration     int    `json:"max_duration" mapstructure:"max_duration"`         // 单文件时长上限 (分钟)
	} `json:"recorder" mapstructure:"recorder"`
}

// GlobalConfig 存储加载后的配置实例
var GlobalConfig AppConfig

// MarshalZerologObject 实现 zerolog 接口，用于高效且安全地打印日志
func (config *AppConfig) MarshalZerologObject(e *zerolog.Event) {
	e.Int("port", config.Port).
		Str("log_level", config.LogLevel).
		Str("gin_log_mode", config.GinLogMode)

	e.Dict("proxy", zerolog.Dict().
		Bool("enabled", config.Proxy.Enabled).
		Bool("system_proxy", config.Proxy.SystemProxy).
		Str("protocol", config.Proxy.Protocol).
		Str("host", config.Proxy.Host).
		Int("port", config.Proxy.Port).
		Str("username", config.Proxy.Username).
		Str("password", maskSecret(config.Proxy.Password)))

	e.Dict("chzzk", zerolog.Dict().
		Str("cookie", maskSecret(config.Chzzk.Cookie)))

	e.Dict("afreeca", zerolog.Dict().
		Str("username", config.Afreeca.Username).
		Str("password", maskSecret(config.Afreeca.Password)).
		Str("stream_password", maskSecret(config.Afreeca.StreamPassword)))

	e.Dict("recorder", zerolog.Dict().
		Str("filename_pattern", config.Recorder.FilenamePattern).
		Int("max_filesize", config.Recorder.MaxFilesize).
		Int("max_duration", config.Recorder.MaxDuration))
}

func (config *AppConfig) AddSubscriber(subscriber iface.ConfigSubscriber) {
	config.subscribers = append(config.subscribers, subscriber)
	log.Info().Msgf("[Config] 订阅者注册成功")
}

func (config *AppConfig) OnUpdate(key string, value string) error {
	log.Info().Msgf("[Config] 更新配置, key: %s, value: %s", key, value)
	config.Viper.Set(key, value)
	if err := config.Viper.Unmarshal(&GlobalConfig); err != nil {
		log.Error().Err(err).Msgf("[config] 反序列化更新失败, key: %s", key)
		return fmt.Errorf("反序列化更新失败: %w", err)
	}

	// 通知所有订阅者
	for _, subscriber := range config.subscribers {
		subscriber.OnConfigUpdate(key, value)
	}
	log.Info().Object("config", &GlobalConfig).Msgf("[config] 配置更新成功: %s", key)
	return nil
}

// InitViper 负责 Viper 的初始化、加载和反序列化
// 优先级从低到高：默认值 < 数据库配置 < 配置文件 < 命令行参数
func InitViper(configFilePath string, cmdFlags map[string]interface{}, configMap map[string]string) error {
	v := viper.New()

	// 1. 设置默认值 (最低优先级)
	v.SetDefault("port", 8090)
	v.SetDefault("log_level", "info")
	v.SetDefault("chzzk.cookie", "")
	v.SetDefault("afreeca.username", "")
	v.SetDefault("afreeca.password", "")
	v.SetDefault("afreeca.stream_password", "")
	v.SetDefault("recorder.filename_pattern", "./record/{{.Username}}/{{.Year}}-{{.Month}}-{{.Day}}_{{.Hour}}-{{.Minute}}-{{.Second}}_{{.Sequence}}")
	v.SetDefault("recorder.max_filesize", 0)
	v.SetDefault("recorder.max_duration", 0)

	// 从数据库加载配置
	for key, value := range configMap {
		v.SetDefault(key, value)
	}

	// 2. 配置并读取配置文件 (次低优先级)
	if configFilePath != "" {
		v.SetConfigFile(configFilePath)
	} else {
		v.SetConfigName("config")  // 文件名（无扩展名）
		v.SetConfigType("json")    // 文件类型
		v.AddConfigPath("./conf/") // 搜索目录
		v.AddConfigPath("$HOME/.config/stream-factory/")
	}

	// 3. 尝试读取配置文件。如果文件不存在，不返回错误，使用默认值
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			// 文件存在，但格式错误等其他错误，则返回
			return fmt.Errorf("读取配置文件失败: %w", err)
		}
		log.Info().Msg("未找到配置文件，使用[默认值|数据库配置|命令行参数]")
	} else {
		log.Info().Msgf("成功加载配置文件: %s", v.ConfigFileUsed())
	}

	// 4. 绑定命令行 Flag (最高优先级)
	for key, value := range cmdFlags {
		v.Set(key, value)
	}

	// 5. 将配置反序列化到结构体
	if err := v.Unmarshal(&GlobalConfig); err != nil {
		return fmt.Errorf("反序列化配置失败: %w", err)
	}

	log.Info().Object("config", &GlobalConfig).Msg("[config] 配置加载完成")

	GlobalConfig.Viper = v
	return nil
}

// maskSecret 简单的脱敏辅助函数
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	// 只显示前2位和后2位
	return s[:2] + "******" + s[len(s)-2:]
}
