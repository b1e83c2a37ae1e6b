// Package validation 字段级表单校验：每个字段独立执行规则，返回规范化后的值或字段错误。
package validation

import (
	"net/mail"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// ValidationError 单个字段的校验失败
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewError 创建字段校验错误
func NewError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

var (
	ErrRequired      = NewError("this field is required")
	ErrNotNumber     = NewError("must be a number")
	ErrInvalidEmail  = NewError("enter a valid email address")
	ErrInvalidChoice = NewError("select a valid choice")
)

// Errors 字段名 -> 错误信息
type Errors map[string][]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e[f], "; "))
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

// Add 追加字段错误
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Has 字段是否有错误
func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// Clean 把原始文本转换为规范化值，失败返回 *ValidationError
type Clean func(raw []string) (any, error)

// Field 声明一个表单字段
type Field struct {
	Name      string
	Label     string
	Required  bool
	MaxLength int
	Widget    string // text / textarea / select / checkbox，仅用于渲染
	Clean     Clean  // 为空时按字符串处理
}

// Form 一组字段
type Form struct {
	Fields []Field
}

// Only 按给定顺序返回字段子集；后台只暴露可编辑字段（owner 永远不在其中）
func (f Form) Only(names ...string) Form {
	byName := make(map[string]Field, len(f.Fields))
	for _, fd := range f.Fields {
		byName[fd.Name] = fd
	}
	out := Form{Fields: make([]Field, 0, len(names))}
	for _, n := range names {
		if fd, ok := byName[n]; ok {
			out.Fields = append(out.Fields, fd)
		}
	}
	return out
}

// Names 字段名列表
func (f Form) Names() []string {
	names := make([]string, 0, len(f.Fields))
	for _, fd := range f.Fields {
		names = append(names, fd.Name)
	}
	return names
}

// Validate 对每个字段执行规则；所有字段都会被校验，不会因为前一个字段失败而提前返回。
// 未声明的输入字段被忽略。
func (f Form) Validate(input url.Values) (Values, Errors) {
	cleaned := make(Values, len(f.Fields))
	errs := Errors{}

	for _, fd := range f.Fields {
		raw := trimAll(input[fd.Name])
		if isEmpty(raw) {
			if fd.Required {
				errs.Add(fd.Name, ErrRequired.Message)
				continue
			}
			if fd.Clean == nil {
				cleaned[fd.Name] = ""
				continue
			}
		}

		if fd.MaxLength > 0 && len(raw) > 0 && utf8.RuneCountInString(raw[0]) > fd.MaxLength {
			errs.Add(fd.Name, "ensure this value has at most "+strconv.Itoa(fd.MaxLength)+" characters")
			continue
		}

		if fd.Clean == nil {
			cleaned[fd.Name] = first(raw)
			continue
		}
		v, err := fd.Clean(raw)
		if err != nil {
			errs.Add(fd.Name, err.Error())
			continue
		}
		cleaned[fd.Name] = v
	}

	if len(errs) == 0 {
		return cleaned, nil
	}
	return cleaned, errs
}

// Digits 要求每个字符都是十进制数字，并转换为 int64。全角数字（１２３）按半角处理。
func Digits(raw []string) (any, error) {
	s := width.Narrow.String(first(raw))
	if s == "" {
		return nil, ErrNotNumber
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, ErrNotNumber
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// 超出 int64 范围
		return nil, ErrNotNumber
	}
	return n, nil
}

// Email 校验邮箱地址
func Email(raw []string) (any, error) {
	s := first(raw)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return nil, ErrInvalidEmail
	}
	return s, nil
}

// Choice 取值必须在给定整数集合中
func Choice(allowed ...int) Clean {
	return func(raw []string) (any, error) {
		n, err := strconv.Atoi(first(raw))
		if err != nil {
			return nil, ErrInvalidChoice
		}
		for _, a := range allowed {
			if a == n {
				return n, nil
			}
		}
		return nil, ErrInvalidChoice
	}
}

// Default 空值时使用默认值，否则交给 next
func Default(def any, next Clean) Clean {
	return func(raw []string) (any, error) {
		if isEmpty(raw) {
			return def, nil
		}
		return next(raw)
	}
}

// Bool checkbox 语义：缺省为 false
func Bool(raw []string) (any, error) {
	switch strings.ToLower(first(raw)) {
	case "", "0", "false", "off", "no":
		return false, nil
	case "1", "true", "on", "yes":
		return true, nil
	default:
		return nil, NewError("enter a valid boolean")
	}
}

// Ref 引用另一条记录的 id
func Ref(raw []string) (any, error) {
	id, err := strconv.ParseInt(first(raw), 10, 64)
	if err != nil || id <= 0 {
		return nil, ErrInvalidChoice
	}
	return id, nil
}

// Refs 多个 id，支持重复参数或逗号分隔
func Refs(raw []string) (any, error) {
	ids := make([]int64, 0, len(raw))
	seen := map[int64]bool{}
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, ErrInvalidChoice
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func trimAll(raw []string) []string {
	out := make([]string, len(raw))
	for i, r := range raw {
		out[i] = strings.TrimSpace(r)
	}
	return out
}

func isEmpty(raw []string) bool {
	for _, r := range raw {
		if r != "" {
			return false
		}
	}
	return true
}

func first(raw []string) string {
	if len(raw) == 0 {
		return ""
	}
	return raw[0]
}
