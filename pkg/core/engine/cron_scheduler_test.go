package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/agentflow/pkg/config"
	"github.com/LENAX/agentflow/pkg/core/workflow"
)

func TestCronScheduler_AddSchedule(t *testing.T) {
	eng := newTestEngine(t)
	g := mustBuild(t, workflow.NewBuilder("nightly", "").
		AddExecutor("A", addInt(1), []workflow.InputBinding{workflow.Input("x")}).
		SetOutput("A"))
	require.NoError(t, eng.RegisterWorkflow(g))

	assert.Error(t, eng.Cron().AddSchedule(config.ScheduleConfig{Workflow: "ghost", Cron: "@every 1s"}))
	assert.Error(t, eng.Cron().AddSchedule(config.ScheduleConfig{Workflow: "nightly", Cron: "not a cron"}))

	require.NoError(t, eng.Cron().AddSchedule(config.ScheduleConfig{Workflow: "nightly", Cron: "@every 1s", Input: map[string]any{"x": 1}}))
	schedules := eng.Cron().Schedules()
	require.Len(t, schedules, 1)
	assert.Equal(t, "nightly", schedules[0].Name)

	assert.Eventually(t, func() bool { return len(eng.ListExecutions()) > 0 }, 3*time.Second, 50*time.Millisecond)

	require.NoError(t, eng.Cron().RemoveSchedule("nightly"))
	assert.Empty(t, eng.Cron().Schedules())
	assert.Error(t, eng.Cron().RemoveSchedule("nightly"))
}

func TestCronScheduler_ConfigSchedules(t *testing.T) {
	cfg := testConfig()
	cfg.AgentFlow.Schedules = []config.ScheduleConfig{{Name: "sweep", Workflow: "ghost", Cron: "@every 1h"}}
	eng, err := NewEngine(cfg)
	require.NoError(t, err)
	assert.Error(t, eng.Start(context.Background()), "配置中的调度引用未注册的Workflow")
	assert.False(t, eng.IsRunning())
}
