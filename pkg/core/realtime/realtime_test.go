package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	ev := NewEvent(EventNodeStarted, "run-1", "wf", "A")
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "run-1", ev.RunID)
	assert.False(t, ev.Timestamp.IsZero())

	tagged := ev.WithMetadata("attempt", "2")
	assert.Equal(t, "2", tagged.Metadata["attempt"])
	assert.Nil(t, ev.Metadata, "WithMetadata 不应修改原事件")
}

func TestEvent_JSONIsPlainData(t *testing.T) {
	ev := NewEvent(EventApprovalRequested, "run-1", "wf", "A")
	ev.Request = &ApprovalInfo{RequestID: "req-1", NodeID: "A", Payload: map[string]any{"action": "restart_service"}}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "approval.requested", decoded["type"])
	req := decoded["request"].(map[string]any)
	assert.Equal(t, "req-1", req["request_id"])
}

func TestEventType_IsTerminal(t *testing.T) {
	assert.True(t, EventRunCompleted.IsTerminal())
	assert.True(t, EventRunCancelled.IsTerminal())
	assert.False(t, EventRunOutput.IsTerminal())
}

func TestEventQueue_OrderAndSequence(t *testing.T) {
	q := NewEventQueue(0)
	for i := 0; i < 100; i++ {
		ev, ok := q.Push(NewEvent(EventNodeProgress, "run", "wf", fmt.Sprintf("n%d", i)))
		require.True(t, ok)
		assert.Equal(t, int64(i+1), ev.Sequence)
	}
	q.Close()

	_, ok := q.Push(NewEvent(EventNodeProgress, "run", "wf", "late"))
	assert.False(t, ok, "关闭后不应再接受事件")

	var got []string
	for ev := range q.Out() {
		got = append(got, ev.NodeID)
	}
	require.Len(t, got, 100)
	assert.Equal(t, "n0", got[0])
	assert.Equal(t, "n99", got[99])

	in, out := q.Stats()
	assert.Equal(t, int64(100), in)
	assert.Equal(t, int64(100), out)
}

func TestEventQueue_RelayKeepsSequence(t *testing.T) {
	q := NewRelayQueue(1)
	ev := NewEvent(EventNodeStarted, "run", "wf", "A")
	ev.Sequence = 42
	q.Push(ev)
	q.Close()
	got := <-q.Out()
	assert.Equal(t, int64(42), got.Sequence)
}

func TestEventQueue_Abort(t *testing.T) {
	q := NewEventQueue(0)
	q.Push(NewEvent(EventNodeStarted, "run", "wf", "A"))
	q.Push(NewEvent(EventNodeStarted, "run", "wf", "B"))
	q.Abort()
	q.Abort()

	select {
	case _, ok := <-q.Out():
		// 中止前可能已投递第一条
		if ok {
			_, ok = <-q.Out()
			assert.False(t, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("Abort 后输出通道未关闭")
	}
}

func TestBus_PublishSubscribeInOrder(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx, ForRun("run-1"))
	require.NoError(t, err)
	types, err := bus.Subscribe(ctx, OfTypes(EventRunOutput))
	require.NoError(t, err)

	for i := 1; i <= 20; i++ {
		ev := NewEvent(EventNodeCompleted, "run-1", "wf", fmt.Sprintf("n%d", i))
		ev.Sequence = int64(i)
		bus.Publish(ev)
		bus.Publish(NewEvent(EventNodeCompleted, "run-2", "wf", "other"))
	}
	out := NewEvent(EventRunOutput, "run-1", "wf", "")
	out.Sequence = 21
	bus.Publish(out)

	for i := 1; i <= 21; i++ {
		select {
		case ev := <-events:
			assert.Equal(t, "run-1", ev.RunID)
			assert.Equal(t, int64(i), ev.Sequence)
		case <-time.After(2 * time.Second):
			t.Fatalf("等待第 %d 个事件超时", i)
		}
	}

	select {
	case ev := <-types:
		assert.Equal(t, EventRunOutput, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("类型过滤订阅未收到事件")
	}
}

func TestBus_SubscriptionEndsWithContext(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events, err := bus.Subscribe(ctx, nil)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("取消订阅后通道未关闭")
	}
}
