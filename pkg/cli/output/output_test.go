package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/agentflow/pkg/core/realtime"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	noColor := color.NoColor
	color.NoColor = true
	buf := &bytes.Buffer{}
	prev := SetOutput(buf)
	t.Cleanup(func() {
		SetOutput(prev)
		color.NoColor = noColor
	})
	return buf
}

func TestMessages(t *testing.T) {
	buf := capture(t)
	Success("完成 %d", 1)
	Error("失败")
	Info("信息")
	Warning("警告")
	assert.Equal(t, "✅ 完成 1\n❌ 失败\nℹ️  信息\n⚠️  警告\n", buf.String())
}

func TestPrintJSON(t *testing.T) {
	buf := capture(t)
	require.NoError(t, PrintJSON(map[string]any{"a": "<b>"}))
	assert.Equal(t, "{\n  \"a\": \"<b>\"\n}\n", buf.String())
}

func TestTable(t *testing.T) {
	buf := capture(t)
	table := NewTable("ID", "STATUS")
	table.AddRow("run-1", "✅ Completed")
	table.AddRow("r2", "x", "ignored")
	assert.Equal(t, 2, table.Len())
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "ID     STATUS       ", lines[0])
	assert.Equal(t, "-----  -----------  ", lines[1])
	assert.Equal(t, "r2     x            ", lines[3])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdefgh", 5))
	assert.Equal(t, "中文...", Truncate("中文中文中文", 5))
}

func TestEventLine(t *testing.T) {
	ev := realtime.NewEvent(realtime.EventNodeFailed, "run", "wf", "A")
	ev.Error = "boom"
	assert.Equal(t, "❌ A 失败: boom", EventLine(ev))
	assert.Contains(t, EventLine(ev.WithMetadata("best_effort", "true")), "尽力而为")

	req := realtime.NewEvent(realtime.EventApprovalRequested, "run", "wf", "B")
	req.Request = &realtime.ApprovalInfo{RequestID: "req-1", NodeID: "B", Payload: map[string]any{"action": "restart_service"}}
	assert.Equal(t, `✋ B 等待审批 [req-1] {"action":"restart_service"}`, EventLine(req))

	progress := realtime.NewEvent(realtime.EventNodeProgress, "run", "wf", "writer")
	progress.Value = "Step 1:\n  check"
	assert.Equal(t, "   writer │ Step 1: check", EventLine(progress))

	out := realtime.NewEvent(realtime.EventRunOutput, "run", "wf", "")
	assert.Equal(t, "📦 运行输出（回退值）", EventLine(out.WithMetadata("fallback", "true")))
}

func TestEvent_PrintsOutputValue(t *testing.T) {
	buf := capture(t)
	ev := realtime.NewEvent(realtime.EventRunOutput, "run", "wf", "")
	ev.Sequence = 7
	ev.Value = "line1\nline2"
	Event(ev)
	assert.Equal(t, "[007] 📦 运行输出\nline1\nline2\n", buf.String())
}

func TestFormatStatus(t *testing.T) {
	assert.Equal(t, "⏸️ Suspended", FormatStatus("Suspended"))
	assert.Equal(t, "❓ Weird", FormatStatus("Weird"))
}
