package iface

// ConfigSubscriber 订阅配置热更新的组件（如需要感知 cookie 变化的 Streamer）
type ConfigSubscriber interface {
	OnConfigUpdate(key string, value string)
}
