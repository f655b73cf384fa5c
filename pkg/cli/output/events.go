package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/LENAX/agentflow/pkg/core/realtime"
)

// StatusIcon 运行或节点状态图标
func StatusIcon(status string) string {
	switch status {
	case "Completed":
		return "✅"
	case "Failed":
		return "❌"
	case "Running":
		return "🔄"
	case "Suspended":
		return "⏸️"
	case "Pending", "Ready":
		return "⏳"
	case "Skipped":
		return "⏭️"
	case "Cancelled":
		return "🛑"
	default:
		return "❓"
	}
}

// FormatStatus 带图标的状态文本
func FormatStatus(status string) string {
	return StatusIcon(status) + " " + status
}

// summarize 把事件值压缩为一行
func summarize(v any, max int) string {
	var s string
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s = val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			s = fmt.Sprintf("%v", val)
		} else {
			s = string(data)
		}
	}
	s = strings.Join(strings.Fields(s), " ")
	return Truncate(s, max)
}

// EventLine 运行事件的单行描述（不含颜色）
func EventLine(ev realtime.Event) string {
	switch ev.Type {
	case realtime.EventNodeStarted:
		return fmt.Sprintf("▶️  %s 开始执行", ev.NodeID)
	case realtime.EventNodeCompleted:
		return fmt.Sprintf("✅ %s 完成 %s", ev.NodeID, summarize(ev.Value, 80))
	case realtime.EventNodeSkipped:
		return fmt.Sprintf("⏭️  %s 跳过 (%s)", ev.NodeID, ev.Reason)
	case realtime.EventNodeFailed:
		if ev.Metadata["best_effort"] == "true" {
			return fmt.Sprintf("⚠️  %s 失败（尽力而为，继续执行）: %s", ev.NodeID, ev.Error)
		}
		return fmt.Sprintf("❌ %s 失败: %s", ev.NodeID, ev.Error)
	case realtime.EventNodeProgress:
		return fmt.Sprintf("   %s │ %s", ev.NodeID, summarize(ev.Value, 120))
	case realtime.EventApprovalRequested:
		if ev.Request == nil {
			return fmt.Sprintf("✋ %s 等待审批", ev.NodeID)
		}
		return fmt.Sprintf("✋ %s 等待审批 [%s] %s", ev.NodeID, ev.Request.RequestID, summarize(ev.Request.Payload, 120))
	case realtime.EventRunOutput:
		if ev.Metadata["fallback"] == "true" {
			return "📦 运行输出（回退值）"
		}
		return "📦 运行输出"
	case realtime.EventRunCompleted:
		return "🏁 运行完成"
	case realtime.EventRunFailed:
		return fmt.Sprintf("💥 运行失败: %s", ev.Error)
	case realtime.EventRunCancelled:
		return "🛑 运行已取消"
	default:
		return fmt.Sprintf("%s %s", ev.Type, ev.NodeID)
	}
}

// eventColor 事件颜色
func eventColor(t realtime.EventType) *color.Color {
	switch t {
	case realtime.EventNodeCompleted, realtime.EventRunCompleted:
		return color.New(color.FgGreen)
	case realtime.EventNodeFailed, realtime.EventRunFailed:
		return color.New(color.FgRed, color.Bold)
	case realtime.EventNodeSkipped, realtime.EventRunCancelled:
		return color.New(color.FgHiBlack)
	case realtime.EventApprovalRequested:
		return color.New(color.FgYellow, color.Bold)
	case realtime.EventNodeProgress:
		return color.New(color.FgWhite)
	default:
		return color.New(color.FgCyan)
	}
}

// Event 渲染一个运行事件，RunOutput 的值按原文输出
func Event(ev realtime.Event) {
	w := Writer()
	eventColor(ev.Type).Fprintf(w, "[%03d] %s\n", ev.Sequence, EventLine(ev))
	if ev.Type == realtime.EventRunOutput && ev.Value != nil {
		if s, ok := ev.Value.(string); ok {
			fmt.Fprintln(w, s)
			return
		}
		data, err := json.MarshalIndent(ev.Value, "", "  ")
		if err != nil {
			fmt.Fprintf(w, "%v\n", ev.Value)
			return
		}
		fmt.Fprintln(w, string(data))
	}
}
