package validation

import (
	"fmt"
	"net/url"
	"strconv"
)

// Values 校验通过后的规范化值
type Values map[string]any

func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

func (v Values) Int(name string) int {
	n, _ := v[name].(int)
	return n
}

func (v Values) Int64(name string) int64 {
	n, _ := v[name].(int64)
	return n
}

func (v Values) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}

func (v Values) Int64s(name string) []int64 {
	ids, _ := v[name].([]int64)
	return ids
}

// Has 字段是否出现在规范化结果中
func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// FromJSON 把 JSON 请求体（已解码为 map）转换为表单输入
func FromJSON(body map[string]any) url.Values {
	out := url.Values{}
	for k, raw := range body {
		switch val := raw.(type) {
		case nil:
			continue
		case []any:
			for _, item := range val {
				out.Add(k, scalar(item))
			}
		default:
			out.Set(k, scalar(val))
		}
	}
	return out
}

func scalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
