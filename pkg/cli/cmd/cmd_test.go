package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/agentflow/internal/app"
	"github.com/LENAX/agentflow/pkg/api"
	"github.com/LENAX/agentflow/pkg/api/dto"
	"github.com/LENAX/agentflow/pkg/cli/output"
	"github.com/LENAX/agentflow/pkg/config"
	"github.com/LENAX/agentflow/pkg/core/types"
	"github.com/LENAX/agentflow/pkg/logging"
)

// execute 执行命令并返回输出
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var buf bytes.Buffer
	prev := output.SetOutput(&buf)
	defer output.SetOutput(prev)

	root := NewRootCommand()
	root.SetArgs(append(args, "--log-level", "error"))
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&buf)
	root.SetErr(&buf)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestVersion_JSON(t *testing.T) {
	out, err := execute(t, "", "version", "--json")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info["version"])
}

func TestIncidents_Table(t *testing.T) {
	out, err := execute(t, "", "incidents")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "INC-001")
	assert.Contains(t, out, "INC-008")
	assert.Contains(t, out, "AKS-Prod-West")
}

func TestGraph_Levels(t *testing.T) {
	out, err := execute(t, "", "graph")
	require.NoError(t, err)
	assert.Contains(t, out, "Level 0: prepare_classifier")
	assert.Contains(t, out, "conditional")
	assert.Contains(t, out, "输出节点: aggregator")

	_, err = execute(t, "", "graph", "missing")
	assert.ErrorContains(t, err, "missing")
}

func TestRun_AutoApprove(t *testing.T) {
	out, err := execute(t, "", "run", "--incident", "INC-001", "--approve")
	require.NoError(t, err)
	assert.Contains(t, out, "已自动批准")
	assert.Contains(t, out, "⚠️ DANGEROUS ACTION EXECUTED")
	assert.Contains(t, out, "🏁 运行完成")
}

func TestRun_AutoReject(t *testing.T) {
	out, err := execute(t, "", "run", "opscopilot", "--incident", "INC-004", "--reject", "--language", "english")
	require.NoError(t, err)
	assert.Contains(t, out, "已自动拒绝")
	assert.Contains(t, out, "⛔ DANGEROUS ACTION NOT EXECUTED")
	assert.Contains(t, out, "Hello AdventureWorks")
}

func TestRun_InteractivePrompt(t *testing.T) {
	out, err := execute(t, "y\n", "run", "--incident", "INC-008")
	require.NoError(t, err)
	assert.Contains(t, out, "批准执行? [y/N]")
	assert.Contains(t, out, "⚠️ DANGEROUS ACTION EXECUTED")

	// 输入结束视为拒绝
	out, err = execute(t, "", "run", "--incident", "INC-008")
	require.NoError(t, err)
	assert.Contains(t, out, "⛔ DANGEROUS ACTION NOT EXECUTED")
}

func TestRun_NoApprovalNeeded(t *testing.T) {
	out, err := execute(t, "", "run", "--incident", "INC-003")
	require.NoError(t, err)
	assert.NotContains(t, out, "批准执行?")
	assert.Contains(t, out, "dangerous_action 跳过")
}

func TestRun_Errors(t *testing.T) {
	_, err := execute(t, "", "run", "--incident", "INC-404")
	assert.ErrorContains(t, err, "INC-404")

	_, err = execute(t, "", "run", "--input", "{not json")
	assert.ErrorContains(t, err, "--input")

	_, err = execute(t, "", "run", "--approve", "--reject")
	assert.Error(t, err)

	_, err = execute(t, "", "run", "nope")
	assert.Error(t, err)
}

func newRemote(t *testing.T) (*app.App, string) {
	t.Helper()
	a, err := app.New(config.Default(), app.Options{Version: "test", Logger: logging.Discard()})
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	srv := httptest.NewServer(a.Server(api.DefaultServerConfig()).Handler())
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	return a, srv.URL
}

func TestRuns_RemoteApprovalFlow(t *testing.T) {
	a, url := newRemote(t)

	out, err := execute(t, "", "runs", "start", "--incident", "INC-002", "--server", url, "--json")
	require.NoError(t, err)
	var started dto.StartRunResponse
	require.NoError(t, json.Unmarshal([]byte(out), &started))
	require.NotEmpty(t, started.RunID)

	require.Eventually(t, func() bool {
		x, ok := a.Engine.Execution(started.RunID)
		return ok && len(x.PendingRequests()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	out, err = execute(t, "", "runs", "list", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, started.RunID)

	out, err = execute(t, "", "runs", "status", started.RunID, "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "等待审批")

	out, err = execute(t, "", "runs", "approve", started.RunID, "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "已批准")

	require.Eventually(t, func() bool {
		x, _ := a.Engine.Execution(started.RunID)
		return x.Status() == types.RunStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	out, err = execute(t, "", "runs", "status", started.RunID, "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Completed")
	assert.Contains(t, out, "DANGEROUS ACTION EXECUTED")

	out, err = execute(t, "", "runs", "events", started.RunID, "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "🏁 运行完成")

	_, err = execute(t, "", "runs", "reject", started.RunID, "--server", url)
	assert.ErrorContains(t, err, "没有待审批的请求")
}

func TestRuns_CancelAndNotFound(t *testing.T) {
	a, url := newRemote(t)

	out, err := execute(t, "", "runs", "start", "--incident", "INC-004", "--server", url, "--json")
	require.NoError(t, err)
	var started dto.StartRunResponse
	require.NoError(t, json.Unmarshal([]byte(out), &started))

	require.Eventually(t, func() bool {
		x, ok := a.Engine.Execution(started.RunID)
		return ok && x.Status() == types.RunStatusSuspended
	}, 5*time.Second, 10*time.Millisecond)

	out, err = execute(t, "", "runs", "cancel", started.RunID, "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "已取消运行")

	require.Eventually(t, func() bool {
		x, _ := a.Engine.Execution(started.RunID)
		return x.Status() == types.RunStatusCancelled
	}, 5*time.Second, 10*time.Millisecond)

	_, err = execute(t, "", "runs", "status", "no-such-run", "--server", url)
	assert.ErrorContains(t, err, "运行不存在")
}
