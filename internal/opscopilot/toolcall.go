package opscopilot

import (
	"log/slog"
	"time"
	"unicode/utf8"
)

// maxToolResultLog 工具返回值在日志中的最大长度
const maxToolResultLog = 120

// callTool 调用工具并记录参数、截断后的返回值与耗时
func callTool(logger *slog.Logger, name string, args []any, fn func() string) string {
	logger.Debug("🔧 调用工具", "tool", name, slog.Group("args", args...))
	start := time.Now()
	result := fn()
	logger.Info("🔧 工具返回", "tool", name,
		"result", clip(result, maxToolResultLog),
		"elapsed", time.Since(start))
	return result
}

// clip 按字符截断
func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "..."
}
