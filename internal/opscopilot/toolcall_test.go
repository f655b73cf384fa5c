package opscopilot

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/agentflow/pkg/config"
	"github.com/LENAX/agentflow/pkg/core/engine"
	"github.com/LENAX/agentflow/pkg/logging"
)

// syncBuffer 并发写日志时使用
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCallTool_LogsArgsAndClippedResult(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("debug", "json", &buf)
	long := strings.Repeat("状", maxToolResultLog+30)

	got := callTool(logger, "fetch_service_health", []any{"service", "APIM-Prod-East"}, func() string { return long })
	assert.Equal(t, long, got, "调用方拿到完整返回值")

	logs := buf.String()
	assert.Contains(t, logs, "调用工具")
	assert.Contains(t, logs, `"args":{"service":"APIM-Prod-East"}`)
	assert.Contains(t, logs, "工具返回")
	assert.Contains(t, logs, `"tool":"fetch_service_health"`)
	assert.Contains(t, logs, strings.Repeat("状", maxToolResultLog)+"...")
	assert.NotContains(t, logs, long)
	assert.Contains(t, logs, `"elapsed"`)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "abc...", clip("abcdef", 3))
	assert.Equal(t, "故障...", clip("故障排查", 2))
}

func TestRun_ToolCallsLogged(t *testing.T) {
	buf := &syncBuffer{}
	eng, err := engine.NewEngine(config.Default(), engine.WithLogger(logging.New("debug", "json", buf)))
	require.NoError(t, err)
	_, err = Install(eng, NewOpsMemory(nil, time.Hour))
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eng.Stop(ctx)
	})

	x, err := eng.RunWorkflow(context.Background(), WorkflowID, "INC-003")
	require.NoError(t, err)
	_, err = x.Wait(context.Background())
	require.NoError(t, err)

	logs := buf.String()
	for _, tool := range []string{"fetch_service_health", "lookup_runbook", "search_known_issues"} {
		assert.Contains(t, logs, `"tool":"`+tool+`"`)
	}
	assert.Contains(t, logs, `"node_id":"`+NodeEnrichment+`"`)
	assert.NotContains(t, logs, `"tool":"restart_service"`, "无需审批时不执行危险操作")
}
