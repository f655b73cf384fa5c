package workflow

import (
	"fmt"
	"regexp"
	"sort"
)

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_.\-]+)\}`)

// ReplacePlaceholder 替换字符串中的 ${name} 占位符
// 整个字符串恰好是一个占位符时保留参数原始类型；否则按字符串拼接
// 返回替换结果与未找到的占位符名称
func ReplacePlaceholder(value string, params map[string]any) (any, []string) {
	var missing []string

	if m := placeholderPattern.FindStringSubmatchIndex(value); m != nil && m[0] == 0 && m[1] == len(value) {
		name := value[m[2]:m[3]]
		if actual, ok := params[name]; ok {
			return actual, nil
		}
		return value, []string{name}
	}

	replaced := placeholderPattern.ReplaceAllStringFunc(value, func(token string) string {
		name := placeholderPattern.FindStringSubmatch(token)[1]
		actual, ok := params[name]
		if !ok {
			missing = append(missing, name)
			return token
		}
		if actual == nil {
			return ""
		}
		return fmt.Sprintf("%v", actual)
	})
	return replaced, missing
}

// ReplaceParams 递归替换 map/slice/string 中的占位符（对外导出）
// 未找到的占位符原样保留，并在错误中列出
func ReplaceParams(value any, params map[string]any) (any, error) {
	missing := make(map[string]bool)
	out := replaceValue(value, params, missing)
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return out, fmt.Errorf("以下占位符未找到对应的参数值: %v", names)
	}
	return out, nil
}

func replaceValue(value any, params map[string]any, missing map[string]bool) any {
	switch v := value.(type) {
	case string:
		out, names := ReplacePlaceholder(v, params)
		for _, name := range names {
			missing[name] = true
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = replaceValue(item, params, missing)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = replaceValue(item, params, missing)
		}
		return out
	default:
		return value
	}
}
