package schema

import (
	"encoding/json"
	"fmt"
)

// Kind 标识一次 API 调用的分类结果
type Kind int

const (
	// KindError 平台返回了业务错误 {code, message}
	KindError Kind = iota
	// KindEmpty code == 200 但 content 为 null
	KindEmpty
	// KindData code == 200 且 content 通过了端点字段模式
	KindData
)

// Outcome 一次 API 响应的分类与提取结果，产生后不再修改
// 三种形态调用方都必须处理
type Outcome struct {
	Kind    Kind
	Message string // KindError 时平台给出的错误信息
	Fields  []any  // KindData 时按声明顺序排列的字段元组
}

// Decode 解析 JSON 响应体并用 node 校验提取
// 适用于不走 code/content 信封的接口
func Decode(raw []byte, node Node) (any, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: JSON 解析失败: %v", ErrMismatch, err)
	}
	return node.Validate(doc)
}

// Classify 把任意形态的 JSON 响应体分类成三种结果之一
// 匹配顺序固定：错误形态 → 空成功 → 数据成功，首个结构匹配的分支生效
// content 节点（通常是 Tuple(Object(...), keys...)）只在数据成功分支生效
// 没有任何分支匹配时返回 ErrMismatch
func Classify(raw []byte, content Node) (Outcome, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Outcome{}, fmt.Errorf("%w: JSON 解析失败: %v", ErrMismatch, err)
	}

	m, ok := doc.(map[string]any)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: 顶层不是对象", ErrMismatch)
	}

	// 1. 错误形态 {code: int, message: string}
	if _, err := (Lit(Int)).Validate(m["code"]); err == nil {
		if msg, ok := m["message"].(string); ok {
			return Outcome{Kind: KindError, Message: msg}, nil
		}
	}

	code, codeOK := m["code"].(float64)
	if !codeOK || code != 200 {
		return Outcome{}, fmt.Errorf("%w: code 既不是错误形态也不是 200", ErrMismatch)
	}

	// 2. 空成功 {code: 200, content: null}
	body, present := m["content"]
	if present && body == nil {
		return Outcome{Kind: KindEmpty}, nil
	}

	// 3. 数据成功 {code: 200, content: object}
	if inner, ok := body.(map[string]any); ok {
		out, err := content.Validate(inner)
		if err != nil {
			return Outcome{}, err
		}
		fields, ok := out.([]any)
		if !ok {
			// content 节点不是 Tuple 时退化成单元素元组
			fields = []any{out}
		}
		return Outcome{Kind: KindData, Fields: fields}, nil
	}

	return Outcome{}, fmt.Errorf("%w: content 既不是 null 也不是对象", ErrMismatch)
}
