package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/agentflow/pkg/core/realtime"
)

func TestApprovalGate_RespondAllOrNothing(t *testing.T) {
	g := newApprovalGate()
	a := g.open("A", "restart")
	b := g.open("B", "scale")

	err := g.respond(map[string]any{a.RequestID: "yes", "ghost": "no"})
	assert.ErrorIs(t, err, ErrUnknownRequest)
	assert.Len(t, g.pending(), 2, "无效批次不应改变状态")
	assert.Empty(t, g.take())

	require.NoError(t, g.respond(map[string]any{a.RequestID: "yes"}))
	select {
	case <-g.wake:
	default:
		t.Fatal("接受响应后应唤醒调度协程")
	}
	taken := g.take()
	require.Len(t, taken, 1)
	assert.Equal(t, "A", taken[0].NodeID)
	assert.Equal(t, "yes", taken[0].Decision)

	err = g.respond(map[string]any{a.RequestID: "again", b.RequestID: "ok"})
	assert.ErrorIs(t, err, ErrDuplicateResponse)
	assert.Equal(t, []string{"B"}, nodeIDs(g.pending()))
}

func TestApprovalGate_Close(t *testing.T) {
	g := newApprovalGate()
	a := g.open("A", nil)
	dropped := g.close()
	require.Len(t, dropped, 1)
	assert.Equal(t, a.RequestID, dropped[0].RequestID)
	assert.Nil(t, g.close())

	assert.ErrorIs(t, g.respond(map[string]any{a.RequestID: "late"}), ErrUnknownRequest)
	assert.Empty(t, g.pending())
}

func TestApprovalGate_EmptyBatch(t *testing.T) {
	g := newApprovalGate()
	assert.NoError(t, g.respond(nil))
	select {
	case <-g.wake:
		t.Fatal("空批次不应唤醒")
	default:
	}
}

func nodeIDs(infos []realtime.ApprovalInfo) []string {
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.NodeID)
	}
	return out
}
