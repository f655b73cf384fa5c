// Package output 命令行的彩色消息、表格、JSON 与运行事件渲染
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

var (
	mu  sync.Mutex
	out io.Writer = color.Output
)

// SetOutput 设置输出目标，返回原目标（测试使用）
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return prev
}

// Writer 当前输出目标
func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return out
}

// PrintJSON 输出JSON格式
func PrintJSON(data any) error {
	encoder := json.NewEncoder(Writer())
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(data)
}

// Success 输出成功消息
func Success(format string, args ...any) {
	color.New(color.FgGreen, color.Bold).Fprintf(Writer(), "✅ "+format+"\n", args...)
}

// Error 输出错误消息
func Error(format string, args ...any) {
	color.New(color.FgRed, color.Bold).Fprintf(Writer(), "❌ "+format+"\n", args...)
}

// Info 输出信息
func Info(format string, args ...any) {
	color.New(color.FgCyan).Fprintf(Writer(), "ℹ️  "+format+"\n", args...)
}

// Warning 输出警告
func Warning(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(Writer(), "⚠️  "+format+"\n", args...)
}

// Plain 原样输出
func Plain(format string, args ...any) {
	fmt.Fprintf(Writer(), format, args...)
}
