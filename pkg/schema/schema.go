// Package schema 提供声明式的 JSON 响应校验与字段提取
// 模式树是纯数据，校验函数没有副作用，失败以普通错误值返回
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
)

// ErrMismatch 响应结构不在预期形态之内
// 对单次 API 调用是致命的，调用方记录日志后按"无数据"处理，不重试
var ErrMismatch = errors.New("响应结构不匹配")

// Node 是模式树的一个节点
// Validate 校验 v 并返回投影后的值；校验失败返回 ErrMismatch（可能带上下文包装）
type Node interface {
	Validate(v any) (any, error)
}

// ---------------------------------------------------------------------------------------------------------------------
// 基础类型

// Lit 校验 JSON 基础类型
type Lit int

const (
	String Lit = iota
	Int
	Float
	Bool
	Any
)

func (l Lit) Validate(v any) (any, error) {
	switch l {
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Int:
		// encoding/json 把所有数字解码成 float64，这里只接受整数值
		if f, ok := v.(float64); ok && f == math.Trunc(f) {
			return int(f), nil
		}
	case Float:
		if f, ok := v.(float64); ok {
			return f, nil
		}
	case Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case Any:
		return v, nil
	}
	return nil, fmt.Errorf("%w: 期望 %s，实际 %T", ErrMismatch, l.name(), v)
}

func (l Lit) name() string {
	switch l {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	default:
		return "any"
	}
}

// eq 精确匹配某个值（数值按 float64 比较）
type eq struct{ want any }

// Eq 要求值精确等于 want
func Eq(want any) Node {
	if i, ok := want.(int); ok {
		want = float64(i)
	}
	return eq{want: want}
}

func (e eq) Validate(v any) (any, error) {
	if v == e.want {
		return v, nil
	}
	return nil, fmt.Errorf("%w: 期望 %v，实际 %v", ErrMismatch, e.want, v)
}

// nullable 允许 null，null 时投影为 nil
type nullable struct{ inner Node }

// Nullable 对应 validate.any(x, None)：值为 null 时直接通过并投影为 nil
func Nullable(inner Node) Node {
	return nullable{inner: inner}
}

func (n nullable) Validate(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return n.inner.Validate(v)
}

// URL 校验字符串是一个带 scheme 和 host 的 URL
type urlNode struct{ schemes []string }

func URL(schemes ...string) Node {
	return urlNode{schemes: schemes}
}

func (u urlNode) Validate(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: URL 字段期望 string，实际 %T", ErrMismatch, v)
	}
	parsed, err := url.Parse(s)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: 不是合法的 URL: %q", ErrMismatch, s)
	}
	if len(u.schemes) > 0 {
		for _, scheme := range u.schemes {
			if parsed.Scheme == scheme {
				return s, nil
			}
		}
		return nil, fmt.Errorf("%w: URL scheme 不被允许: %q", ErrMismatch, parsed.Scheme)
	}
	return s, nil
}

// ---------------------------------------------------------------------------------------------------------------------
// 组合节点

// Field 对象中的一个字段声明
type Field struct {
	Name     string
	Node     Node
	Optional bool // 缺失时投影为 nil，而不是校验失败
}

// Opt 声明一个可选字段
func Opt(name string, node Node) Field {
	return Field{Name: name, Node: node, Optional: true}
}

// Req 声明一个必填字段
func Req(name string, node Node) Field {
	return Field{Name: name, Node: node}
}

type object struct{ fields []Field }

// Object 校验 JSON 对象：逐字段独立校验，未声明的多余键被忽略
// 投影结果是 map[string]any，只包含声明过的字段
func Object(fields ...Field) Node {
	return object{fields: fields}
}

func (o object) Validate(v any) (any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: 期望对象，实际 %T", ErrMismatch, v)
	}
	out := make(map[string]any, len(o.fields))
	for _, f := range o.fields {
		raw, present := m[f.Name]
		if !present {
			if f.Optional {
				out[f.Name] = nil
				continue
			}
			return nil, fmt.Errorf("%w: 缺少必填字段 %q", ErrMismatch, f.Name)
		}
		val, err := f.Node.Validate(raw)
		if err != nil {
			return nil, fmt.Errorf("字段 %q: %w", f.Name, err)
		}
		out[f.Name] = val
	}
	return out, nil
}

type union struct{ alts []Node }

// Union 按声明顺序逐个尝试，第一个匹配的分支生效
func Union(alts ...Node) Node {
	return union{alts: alts}
}

func (u union) Validate(v any) (any, error) {
	for _, alt := range u.alts {
		if out, err := alt.Validate(v); err == nil {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: 没有任何 Union 分支匹配", ErrMismatch)
}

type list struct{ elem Node }

// List 校验数组，每个元素经 elem 校验后投影
func List(elem Node) Node {
	return list{elem: elem}
}

func (l list) Validate(v any) (any, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: 期望数组，实际 %T", ErrMismatch, v)
	}
	out := make([]any, 0, len(arr))
	for i, item := range arr {
		val, err := l.elem.Validate(item)
		if err != nil {
			return nil, fmt.Errorf("数组下标 %d: %w", i, err)
		}
		out = append(out, val)
	}
	return out, nil
}

type get struct {
	inner Node
	path  []string
}

// Get 先经 inner 校验，再沿 path 逐层取子字段作为投影结果
// 对应 validate.get：把 channel 对象压缩成 channelName 字符串之类的提取
func Get(inner Node, path ...string) Node {
	return get{inner: inner, path: path}
}

func (g get) Validate(v any) (any, error) {
	out, err := g.inner.Validate(v)
	if err != nil {
		return nil, err
	}
	for _, key := range g.path {
		m, ok := out.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: 无法在 %T 上取字段 %q", ErrMismatch, out, key)
		}
		out = m[key]
	}
	return out, nil
}

type nestedJSON struct{ inner Node }

// NestedJSON 值必须是字符串，解析为 JSON 后再经 inner 校验
// 对应 chzzk 的 livePlaybackJson 这类"JSON 里套 JSON 字符串"的字段
func NestedJSON(inner Node) Node {
	return nestedJSON{inner: inner}
}

func (n nestedJSON) Validate(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: 嵌套 JSON 字段期望 string，实际 %T", ErrMismatch, v)
	}
	var doc any
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return nil, fmt.Errorf("%w: 嵌套 JSON 解析失败: %v", ErrMismatch, err)
	}
	return n.inner.Validate(doc)
}

type tuple struct {
	inner Node
	keys  []string
}

// Tuple 先经 inner 校验（结果须为对象投影），再按 keys 的声明顺序
// 取出各字段组成固定顺序的元组，与源 JSON 的键序无关
// key 为空字符串时该位置固定为 nil 占位
func Tuple(inner Node, keys ...string) Node {
	return tuple{inner: inner, keys: keys}
}

func (t tuple) Validate(v any) (any, error) {
	out, err := t.inner.Validate(v)
	if err != nil {
		return nil, err
	}
	m, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: Tuple 只能作用于对象投影，实际 %T", ErrMismatch, out)
	}
	fields := make([]any, len(t.keys))
	for i, key := range t.keys {
		if key == "" {
			continue
		}
		fields[i] = m[key]
	}
	return fields, nil
}
