package schema

import (
	"errors"
	"reflect"
	"testing"
)

func TestClassifyError(t *testing.T) {
	// 错误形态优先匹配，多余键不影响结果
	raw := []byte(`{"code":4004,"message":"CHANNEL_NOT_FOUND","extra":{"x":1},"trace":"abc"}`)

	outcome, err := Classify(raw, Object())
	if err != nil {
		t.Fatalf("Classify 失败: %v", err)
	}
	if outcome.Kind != KindError {
		t.Fatalf("期望 KindError，实际 %v", outcome.Kind)
	}
	if outcome.Message != "CHANNEL_NOT_FOUND" {
		t.Fatalf("错误信息不匹配: %q", outcome.Message)
	}
}

func TestClassifyEmpty(t *testing.T) {
	raw := []byte(`{"code":200,"content":null}`)

	outcome, err := Classify(raw, Object())
	if err != nil {
		t.Fatalf("Classify 失败: %v", err)
	}
	if outcome.Kind != KindEmpty {
		t.Fatalf("期望 KindEmpty，实际 %v", outcome.Kind)
	}
}

func TestClassifyData(t *testing.T) {
	raw := []byte(`{"code":200,"content":{"b":"second","a":"first","ignored":true}}`)
	node := Tuple(
		Object(
			Req("a", Lit(String)),
			Req("b", Lit(String)),
		),
		"a", "b",
	)

	// 元组顺序由声明决定，与源 JSON 键序无关；重复调用结果一致
	for i := 0; i < 3; i++ {
		outcome, err := Classify(raw, node)
		if err != nil {
			t.Fatalf("Classify 失败: %v", err)
		}
		if outcome.Kind != KindData {
			t.Fatalf("期望 KindData，实际 %v", outcome.Kind)
		}
		want := []any{"first", "second"}
		if !reflect.DeepEqual(outcome.Fields, want) {
			t.Fatalf("元组不匹配: %v != %v", outcome.Fields, want)
		}
	}
}

func TestClassifyMismatch(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"非对象顶层", `[1,2,3]`},
		{"code 非 200 且无 message", `{"code":500}`},
		{"content 是数组", `{"code":200,"content":[1]}`},
		{"非法 JSON", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Classify([]byte(tc.raw), Object())
			if !errors.Is(err, ErrMismatch) {
				t.Fatalf("期望 ErrMismatch，实际 %v", err)
			}
		})
	}
}

func TestObjectOptionalAndRequired(t *testing.T) {
	node := Object(
		Req("must", Lit(String)),
		Opt("maybe", Lit(String)),
	)

	out, err := node.Validate(map[string]any{"must": "x"})
	if err != nil {
		t.Fatalf("可选字段缺失不应失败: %v", err)
	}
	m := out.(map[string]any)
	if m["maybe"] != nil {
		t.Fatalf("缺失的可选字段应投影为 nil，实际 %v", m["maybe"])
	}

	if _, err := node.Validate(map[string]any{"maybe": "y"}); !errors.Is(err, ErrMismatch) {
		t.Fatalf("必填字段缺失应返回 ErrMismatch，实际 %v", err)
	}
}

func TestUnionOrder(t *testing.T) {
	// 首个匹配分支生效
	node := Union(
		Get(Object(Req("v", Lit(String))), "v"),
		Lit(Any),
	)

	out, err := node.Validate(map[string]any{"v": "hit"})
	if err != nil {
		t.Fatalf("Union 校验失败: %v", err)
	}
	if out != "hit" {
		t.Fatalf("应命中第一个分支，实际 %v", out)
	}
}

func TestNestedJSON(t *testing.T) {
	node := NestedJSON(Get(
		Object(Req("media", List(Tuple(
			Object(
				Req("mediaId", Lit(String)),
				Req("protocol", Lit(String)),
				Req("path", URL()),
			),
			"mediaId", "protocol", "path",
		)))),
		"media",
	))

	out, err := node.Validate(`{"media":[{"mediaId":"HLS","protocol":"HLS","path":"https://x/hls.m3u8"}]}`)
	if err != nil {
		t.Fatalf("嵌套 JSON 校验失败: %v", err)
	}
	media := out.([]any)
	if len(media) != 1 {
		t.Fatalf("media 数量不对: %d", len(media))
	}
	want := []any{"HLS", "HLS", "https://x/hls.m3u8"}
	if !reflect.DeepEqual(media[0], want) {
		t.Fatalf("media 元组不匹配: %v", media[0])
	}

	// 不是合法 JSON 的字符串
	if _, err := node.Validate("not-json"); !errors.Is(err, ErrMismatch) {
		t.Fatalf("期望 ErrMismatch，实际 %v", err)
	}
}

func TestNullable(t *testing.T) {
	node := Nullable(Lit(String))

	if out, err := node.Validate(nil); err != nil || out != nil {
		t.Fatalf("null 应通过并投影为 nil: out=%v err=%v", out, err)
	}
	if out, err := node.Validate("s"); err != nil || out != "s" {
		t.Fatalf("字符串应原样通过: out=%v err=%v", out, err)
	}
	if _, err := node.Validate(1.0); !errors.Is(err, ErrMismatch) {
		t.Fatalf("数字应失败，实际 %v", err)
	}
}

func TestURLNode(t *testing.T) {
	if _, err := URL().Validate("https://cdn.example.com/a.m3u8"); err != nil {
		t.Fatalf("合法 URL 校验失败: %v", err)
	}
	if _, err := URL().Validate("no-scheme"); !errors.Is(err, ErrMismatch) {
		t.Fatalf("无 scheme 应失败，实际 %v", err)
	}
	if _, err := URL("rtmp", "https").Validate("http://x/y"); !errors.Is(err, ErrMismatch) {
		t.Fatalf("scheme 白名单外应失败，实际 %v", err)
	}
}

func TestTuplePlaceholder(t *testing.T) {
	// 空 key 的位置固定为 nil 占位（clip 元组的尾部占位）
	node := Tuple(Object(Req("a", Lit(String))), "a", "")

	out, err := node.Validate(map[string]any{"a": "x"})
	if err != nil {
		t.Fatalf("校验失败: %v", err)
	}
	want := []any{"x", nil}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("占位元组不匹配: %v", out)
	}
}
