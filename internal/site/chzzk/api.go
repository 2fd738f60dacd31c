package chzzk

import (
	"fmt"
	"net/http"
	"strings"

	"stream-factory/pkg/config"
	"stream-factory/pkg/fetcher"
	"stream-factory/pkg/schema"

	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL = "https://api.chzzk.naver.com"

	liveDetailPath = "/service/v2/channels/%s/live-detail"
	videosPath     = "/service/v2/videos/%s"
	clipPath       = "/service/v1/play-info/clip/%s"
	vodPlaybackURL = "https://apis.naver.com/neonplayer/vodplay/v2/playback/%s?key=%s"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36"
	referer   = "https://chzzk.naver.com"
)

// 端点模式是稳定的纯数据，进程内只构造一次，运行期不修改

// mediaNode 单条 media 投影为固定顺序元组 (mediaId, protocol, path)
var mediaNode = schema.Tuple(
	schema.Object(
		schema.Req("mediaId", schema.Lit(schema.String)),
		schema.Req("protocol", schema.Lit(schema.String)),
		schema.Req("path", schema.URL()),
	),
	"mediaId", "protocol", "path",
)

// liveDetailNode live-detail 的 content 模式
// 元组顺序: livePlaybackJson(media), status, liveId, channel, liveCategory, liveTitle, adult
var liveDetailNode = schema.Tuple(
	schema.Object(
		schema.Req("status", schema.Lit(schema.String)),
		schema.Req("liveId", schema.Lit(schema.Int)),
		schema.Req("liveTitle", schema.Nullable(schema.Lit(schema.String))),
		schema.Req("liveCategory", schema.Nullable(schema.Lit(schema.String))),
		schema.Req("adult", schema.Lit(schema.Bool)),
		schema.Req("channel", schema.Get(
			schema.Object(schema.Req("channelName", schema.Lit(schema.String))),
			"channelName",
		)),
		// livePlaybackJson 是 JSON 字符串，成人内容未登录时为 null
		schema.Req("livePlaybackJson", schema.Nullable(schema.NestedJSON(schema.Get(
			schema.Object(schema.Req("media", schema.List(mediaNode))),
			"media",
		)))),
	),
	"livePlaybackJson", "status", "liveId", "channel", "liveCategory", "liveTitle", "adult",
)

// videosNode 元组顺序: adult, inKey, videoId, videoNo, channel, videoTitle, videoCategory
var videosNode = schema.Tuple(
	schema.Object(
		schema.Req("inKey", schema.Nullable(schema.Lit(schema.String))),
		schema.Req("videoNo", schema.Nullable(schema.Lit(schema.Int))),
		schema.Req("videoId", schema.Nullable(schema.Lit(schema.String))),
		schema.Req("videoTitle", schema.Nullable(schema.Lit(schema.String))),
		schema.Req("videoCategory", schema.Nullable(schema.Lit(schema.String))),
		schema.Req("adult", schema.Lit(schema.Bool)),
		schema.Req("channel", schema.Get(
			schema.Object(schema.Req("channelName", schema.Lit(schema.String))),
			"channelName",
		)),
	),
	"adult", "inKey", "videoId", "videoNo", "channel", "videoTitle", "videoCategory",
)

// clipNode 元组顺序: adult, inKey, videoId, contentId, ownerChannel, contentTitle, nil占位
var clipNode = schema.Tuple(
	schema.Object(
		schema.Opt("inKey", schema.Nullable(schema.Lit(schema.String))),
		schema.Opt("videoId", schema.Nullable(schema.Lit(schema.String))),
		schema.Req("contentId", schema.Lit(schema.String)),
		schema.Req("contentTitle", schema.Lit(schema.String)),
		schema.Req("adult", schema.Lit(schema.Bool)),
		schema.Req("ownerChannel", schema.Get(
			schema.Object(schema.Req("channelName", schema.Lit(schema.String))),
			"channelName",
		)),
	),
	"adult", "inKey", "videoId", "contentId", "ownerChannel", "contentTitle", "",
)

// API chzzk 开放接口客户端，本层不做重试
type API struct {
	Header http.Header
	// BaseURL 默认正式域名，测试时指向 httptest 服务
	BaseURL string
}

func NewAPI(cfg *config.AppConfig) *API {
	header := make(http.Header)
	header.Set("User-Agent", userAgent)
	header.Set("Referer", referer)
	if cfg != nil {
		if cookie := strings.TrimSpace(cfg.Chzzk.Cookie); cookie != "" {
			header.Set("Cookie", cookie)
		}
	}
	return &API{Header: header, BaseURL: defaultBaseURL}
}

// query 请求端点并把响应体交给 schema.Classify 分类
// 200/400/404 都是待分类的正常业务响应，其余状态码是传输层错误
func (a *API) query(apiURL string, node schema.Node) (schema.Outcome, error) {
	body, err := fetcher.FetchBody(apiURL, nil, a.Header,
		http.StatusOK, http.StatusBadRequest, http.StatusNotFound)
	if err != nil {
		return schema.Outcome{}, err
	}

	outcome, err := schema.Classify(body, node)
	if err != nil {
		log.Err(err).Msgf("[chzzk] 响应分类失败: %s", apiURL)
		return schema.Outcome{}, err
	}
	return outcome, nil
}

// GetLiveDetail 查询频道直播详情
func (a *API) GetLiveDetail(channelID string) (schema.Outcome, error) {
	return a.query(a.BaseURL+fmt.Sprintf(liveDetailPath, channelID), liveDetailNode)
}

// GetVideos 查询点播视频
func (a *API) GetVideos(videoID string) (schema.Outcome, error) {
	return a.query(a.BaseURL+fmt.Sprintf(videosPath, videoID), videosNode)
}

// GetClips 查询剪辑
func (a *API) GetClips(clipID string) (schema.Outcome, error) {
	return a.query(a.BaseURL+fmt.Sprintf(clipPath, clipID), clipNode)
}

// VodPlaybackURL 拼出 DASH manifest 地址
func VodPlaybackURL(videoID, inKey string) string {
	return fmt.Sprintf(vodPlaybackURL, videoID, inKey)
}

// ---------------------------------------------------------------------------------------------------------------------
// 元组解码：顺序由上面的 Tuple 声明保证

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt(v any) int {
	if i, ok := v.(int); ok {
		return i
	}
	return 0
}

func asBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}

// LiveDetailFromFields 把数据成功分支的元组还原成结构体
func LiveDetailFromFields(fields []any) (*LiveDetail, error) {
	if len(fields) != 7 {
		return nil, fmt.Errorf("live-detail 元组长度不对: %d", len(fields))
	}
	detail := &LiveDetail{
		Status:   asString(fields[1]),
		LiveID:   asInt(fields[2]),
		Channel:  asString(fields[3]),
		Category: asString(fields[4]),
		Title:    asString(fields[5]),
		Adult:    asBool(fields[6]),
	}
	if rawMedia, ok := fields[0].([]any); ok {
		for _, item := range rawMedia {
			tuple, ok := item.([]any)
			if !ok || len(tuple) != 3 {
				return nil, fmt.Errorf("media 元组形态不对: %v", item)
			}
			detail.Media = append(detail.Media, MediaDescriptor{
				MediaID:  asString(tuple[0]),
				Protocol: asString(tuple[1]),
				Path:     asString(tuple[2]),
			})
		}
	}
	return detail, nil
}

// VideoFromFields 还原点播元组
func VideoFromFields(fields []any) (*Video, error) {
	if len(fields) != 7 {
		return nil, fmt.Errorf("videos 元组长度不对: %d", len(fields))
	}
	return &Video{
		Adult:    asBool(fields[0]),
		InKey:    asString(fields[1]),
		VideoID:  asString(fields[2]),
		VideoNo:  asInt(fields[3]),
		Channel:  asString(fields[4]),
		Title:    asString(fields[5]),
		Category: asString(fields[6]),
	}, nil
}

// ClipFromFields 还原剪辑元组
func ClipFromFields(fields []any) (*Clip, error) {
	if len(fields) != 7 {
		return nil, fmt.Errorf("clip 元组长度不对: %d", len(fields))
	}
	return &Clip{
		Adult:     asBool(fields[0]),
		InKey:     asString(fields[1]),
		VideoID:   asString(fields[2]),
		ContentID: asString(fields[3]),
		Channel:   asString(fields[4]),
		Title:     asString(fields[5]),
	}, nil
}
