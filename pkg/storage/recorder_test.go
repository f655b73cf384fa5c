package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/agentflow/pkg/core/realtime"
	"github.com/LENAX/agentflow/pkg/storage"
	"github.com/LENAX/agentflow/pkg/storage/sqlite"
	"github.com/LENAX/agentflow/pkg/storage/sqlstore"
)

func TestRecorder_PersistsRunLifecycle(t *testing.T) {
	repo, err := sqlstore.Open(sqlite.NewSQLiteDialect(), ":memory:")
	require.NoError(t, err)
	defer repo.Close()
	rec := storage.NewRecorder(repo, nil)
	ctx := context.Background()

	seq := int64(0)
	emit := func(typ realtime.EventType, nodeID string, mutate func(*realtime.Event)) {
		seq++
		ev := realtime.NewEvent(typ, "run-1", "opscopilot", nodeID)
		ev.Sequence = seq
		if mutate != nil {
			mutate(&ev)
		}
		require.NoError(t, rec.Record(ctx, ev))
	}

	emit(realtime.EventNodeStarted, "dangerous_action", nil)
	emit(realtime.EventApprovalRequested, "dangerous_action", func(ev *realtime.Event) {
		ev.Request = &realtime.ApprovalInfo{RequestID: "req-1", NodeID: "dangerous_action"}
	})
	run, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Suspended", run.Status)

	emit(realtime.EventNodeCompleted, "dangerous_action", nil)
	run, err = repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Running", run.Status)

	emit(realtime.EventRunOutput, "aggregator", func(ev *realtime.Event) { ev.Value = "plan" })
	emit(realtime.EventRunCompleted, "", nil)

	run, err = repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Completed", run.Status)
	assert.True(t, run.FinishedAt.Valid)
	out, err := run.DecodeOutput()
	require.NoError(t, err)
	assert.Equal(t, "plan", out)

	events, err := repo.ListEvents(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, events, 5)
	assert.Equal(t, string(realtime.EventApprovalRequested), events[1].EventType)
}

func TestRecorder_FailedRun(t *testing.T) {
	repo, err := sqlstore.Open(sqlite.NewSQLiteDialect(), ":memory:")
	require.NoError(t, err)
	defer repo.Close()
	rec := storage.NewRecorder(repo, nil)
	ctx := context.Background()

	ev := realtime.NewEvent(realtime.EventRunFailed, "run-2", "wf", "B")
	ev.Sequence = 1
	ev.Error = "run failed: boom"
	require.NoError(t, rec.Record(ctx, ev))

	run, err := repo.GetRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, "Failed", run.Status)
	assert.Equal(t, "run failed: boom", run.ErrorMsg.String)
}
