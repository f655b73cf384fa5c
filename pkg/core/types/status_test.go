package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunStatus_Transitions(t *testing.T) {
	assert.True(t, RunStatusRunning.CanTransitionTo(RunStatusSuspended))
	assert.True(t, RunStatusSuspended.CanTransitionTo(RunStatusRunning))
	assert.True(t, RunStatusSuspended.CanTransitionTo(RunStatusCancelled))
	assert.True(t, RunStatusRunning.CanTransitionTo(RunStatusCompleted))

	for _, terminal := range []RunStatus{RunStatusCompleted, RunStatusFailed, RunStatusCancelled} {
		assert.True(t, terminal.IsTerminal())
		assert.False(t, terminal.CanTransitionTo(RunStatusRunning), "终态 %s 不能再转换", terminal)
	}

	assert.False(t, RunStatus("Paused").IsValid())
}

func TestNodeStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to NodeStatus
		ok       bool
	}{
		{NodeStatusPending, NodeStatusReady, true},
		{NodeStatusPending, NodeStatusSkipped, true},
		{NodeStatusPending, NodeStatusRunning, false},
		{NodeStatusReady, NodeStatusRunning, true},
		{NodeStatusReady, NodeStatusFailed, true},
		{NodeStatusRunning, NodeStatusSuspended, true},
		{NodeStatusRunning, NodeStatusSkipped, false},
		{NodeStatusSuspended, NodeStatusRunning, true},
		{NodeStatusSuspended, NodeStatusSkipped, true},
		{NodeStatusSuspended, NodeStatusCompleted, false},
		{NodeStatusCompleted, NodeStatusRunning, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}

	assert.True(t, NodeStatusSkipped.IsSettled())
	assert.False(t, NodeStatusSuspended.IsSettled())
	assert.True(t, NodeStatusSuspended.IsValid())
}
