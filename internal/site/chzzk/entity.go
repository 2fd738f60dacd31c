package chzzk

// MediaDescriptor 一条可播放的流描述 (id, protocol, path)
// 由 live-detail 的 livePlaybackJson 解出，产生后不再修改
type MediaDescriptor struct {
	MediaID  string
	Protocol string
	Path     string
}

// LiveDetail live-detail 接口数据成功分支的投影结果
type LiveDetail struct {
	Media    []MediaDescriptor // livePlaybackJson 为 null 时为 nil（成人内容未登录等场景）
	Status   string            // "OPEN" 表示直播中
	LiveID   int
	Channel  string // channelName
	Category string
	Title    string
	Adult    bool
}

// Video 点播视频信息
type Video struct {
	Adult    bool
	InKey    string // 为空表示无权限播放（成人限制或不可用）
	VideoID  string
	VideoNo  int
	Channel  string
	Title    string
	Category string
}

// Clip 剪辑信息
type Clip struct {
	Adult     bool
	InKey     string
	VideoID   string
	ContentID string
	Channel   string
	Title     string
}

const (
	// StatusOpen 直播开播状态
	StatusOpen = "OPEN"
	// mediaHLS 选流条件：protocol == "HLS" 且 mediaId == "HLS"
	mediaHLS = "HLS"
)
