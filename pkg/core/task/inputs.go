package task

import (
	"fmt"
	"sort"
	"strconv"
)

// Inputs 节点已解析的输入（参数名 -> 值）（对外导出）
// 可选输入的上游被跳过时，该参数不出现在 Inputs 中
type Inputs map[string]any

// Names 参数名（排序）
func (in Inputs) Names() []string {
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has 参数是否存在（可选输入缺席时返回 false）
func (in Inputs) Has(name string) bool {
	_, ok := in[name]
	return ok
}

// Get 获取参数值，不存在返回nil
func (in Inputs) Get(name string) any {
	if in == nil {
		return nil
	}
	return in[name]
}

// String 获取字符串参数
func (in Inputs) String(name string) string {
	val := in.Get(name)
	if val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", val)
}

// Int 获取整数参数
func (in Inputs) Int(name string) (int, error) {
	val := in.Get(name)
	if val == nil {
		return 0, fmt.Errorf("参数 %s 不存在", name)
	}
	switch v := val.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("参数 %s 类型不是整数，当前类型: %T", name, val)
	}
}

// Float 获取浮点数参数
func (in Inputs) Float(name string) (float64, error) {
	val := in.Get(name)
	if val == nil {
		return 0, fmt.Errorf("参数 %s 不存在", name)
	}
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("参数 %s 类型不是浮点数，当前类型: %T", name, val)
	}
}

// Bool 获取布尔参数
func (in Inputs) Bool(name string) (bool, error) {
	val := in.Get(name)
	if val == nil {
		return false, fmt.Errorf("参数 %s 不存在", name)
	}
	switch v := val.(type) {
	case bool:
		return v, nil
	case string:
		return v == "true" || v == "1" || v == "yes", nil
	default:
		return false, fmt.Errorf("参数 %s 类型不是布尔值，当前类型: %T", name, val)
	}
}

// Value 按类型取参数（对外导出）
// 参数缺席或类型不符时 ok=false
func Value[T any](in Inputs, name string) (T, bool) {
	v, ok := in.Get(name).(T)
	return v, ok
}
