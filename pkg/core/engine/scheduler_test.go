package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/agentflow/pkg/core/realtime"
	"github.com/LENAX/agentflow/pkg/core/task"
	"github.com/LENAX/agentflow/pkg/core/types"
	"github.com/LENAX/agentflow/pkg/core/workflow"
)

func TestFailure_AbortsRunAndCancelsInFlight(t *testing.T) {
	eng := newTestEngine(t)
	observed := make(chan struct{})
	g := mustBuild(t, workflow.NewBuilder("abort", "").
		AddExecutor("B", func(ctx *task.Context, in task.Inputs) (any, error) {
			time.Sleep(10 * time.Millisecond)
			return nil, errors.New("log source offline")
		}, []workflow.InputBinding{workflow.Input("x")}).
		AddExecutor("slow", func(ctx *task.Context, in task.Inputs) (any, error) {
			<-ctx.Done()
			close(observed)
			return nil, ctx.Err()
		}, []workflow.InputBinding{workflow.Input("x")}).
		AddExecutor("D", addInt(1), []workflow.InputBinding{workflow.Node("x", "B"), workflow.Node("y", "slow")}).
		SetOutput("D"))

	x, err := eng.Run(context.Background(), g, 1)
	require.NoError(t, err)
	events := collect(t, x)

	last := events[len(events)-1]
	assert.Equal(t, realtime.EventRunFailed, last.Type)
	assert.Equal(t, "B", last.NodeID)
	assert.Equal(t, -1, indexOf(events, realtime.EventNodeStarted, "D"))
	_, hasOutput := find(events, realtime.EventRunOutput)
	assert.False(t, hasOutput)

	select {
	case <-observed:
	case <-time.After(2 * time.Second):
		t.Fatal("在途节点未观察到取消")
	}

	res, err := x.Wait(context.Background())
	assert.ErrorIs(t, err, ErrRunFailed)
	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "B", nodeErr.NodeID)
	assert.Equal(t, types.RunStatusFailed, res.Status)
	assert.Equal(t, types.NodeStatusSkipped, res.Nodes["D"])
}

func TestConditionPanic_FailsNode(t *testing.T) {
	eng := newTestEngine(t)
	g := mustBuild(t, workflow.NewBuilder("panic", "").
		AddExecutor("A", addInt(1), []workflow.InputBinding{workflow.Input("x")},
			workflow.WithCondition(func(in task.Inputs) (bool, error) { panic("bad rule") })).
		SetOutput("A"))

	x, err := eng.Run(context.Background(), g, 1)
	require.NoError(t, err)
	events := collect(t, x)
	assert.Equal(t, []string{"node.failed:A", "run.failed:A"}, kinds(events))

	_, err = x.Wait(context.Background())
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "bad rule", panicErr.Value)
	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, phaseCondition, nodeErr.Phase)
}

func TestBodyPanic_FailsNode(t *testing.T) {
	eng := newTestEngine(t)
	g := mustBuild(t, workflow.NewBuilder("panic", "").
		AddExecutor("A", func(ctx *task.Context, in task.Inputs) (any, error) {
			var m map[string]int
			m["boom"] = 1
			return nil, nil
		}, []workflow.InputBinding{workflow.Input("x")}).
		SetOutput("A"))

	x, err := eng.Run(context.Background(), g, 1)
	require.NoError(t, err)
	_, err = x.Wait(context.Background())
	var panicErr *PanicError
	assert.ErrorAs(t, err, &panicErr)
	assert.ErrorIs(t, err, ErrRunFailed)
}

func TestCancel_EndsRunCancelled(t *testing.T) {
	eng := newTestEngine(t)
	started := make(chan struct{})
	var observed atomic.Bool
	g := mustBuild(t, workflow.NewBuilder("cancel", "").
		AddExecutor("A", func(ctx *task.Context, in task.Inputs) (any, error) {
			close(started)
			<-ctx.Done()
			observed.Store(true)
			return nil, ctx.Err()
		}, []workflow.InputBinding{workflow.Input("x")}).
		AddExecutor("B", addInt(1), []workflow.InputBinding{workflow.Node("x", "A")}).
		SetOutput("B"))

	x, err := eng.Run(context.Background(), g, 1)
	require.NoError(t, err)
	<-started
	require.NoError(t, eng.Cancel(x.ID()))

	events := collect(t, x)
	assert.Equal(t, realtime.EventRunCancelled, events[len(events)-1].Type)
	assert.Equal(t, -1, indexOf(events, realtime.EventNodeStarted, "B"))
	assert.Eventually(t, observed.Load, time.Second, 5*time.Millisecond)

	res, err := x.Wait(context.Background())
	assert.ErrorIs(t, err, ErrRunCancelled)
	assert.Equal(t, types.RunStatusCancelled, res.Status)
	assert.Equal(t, types.RunStatusCancelled, x.Status())
}

func TestCancel_ParentContext(t *testing.T) {
	eng := newTestEngine(t)
	g := mustBuild(t, workflow.NewBuilder("cancel", "").
		AddExecutor("A", func(ctx *task.Context, in task.Inputs) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}, []workflow.InputBinding{workflow.Input("x")}).
		SetOutput("A"))

	ctx, cancel := context.WithCancel(context.Background())
	x, err := eng.Run(ctx, g, 1)
	require.NoError(t, err)
	cancel()

	_, err = x.Wait(context.Background())
	assert.ErrorIs(t, err, ErrRunCancelled)
}

func TestCancel_WhileSuspended(t *testing.T) {
	eng := newTestEngine(t)
	g := mustBuild(t, workflow.NewBuilder("suspended", "").
		AddExecutor("A", func(ctx *task.Context, in task.Inputs) (any, error) {
			return nil, ctx.RequestApproval("restart?")
		}, []workflow.InputBinding{workflow.Input("x")}).
		SetOutput("A"))

	x, err := eng.Run(context.Background(), g, 1)
	require.NoError(t, err)
	next(t, x)
	req := next(t, x)
	require.Equal(t, realtime.EventApprovalRequested, req.Type)

	x.Cancel()
	rest := collect(t, x)
	assert.Equal(t, []string{"run.cancelled"}, kinds(rest))
	assert.ErrorIs(t, x.SendResponses(map[string]any{req.Request.RequestID: "yes"}), ErrUnknownRequest)
}

func TestNodeTimeout(t *testing.T) {
	eng := newTestEngine(t)
	g := mustBuild(t, workflow.NewBuilder("timeout", "").
		AddExecutor("A", func(ctx *task.Context, in task.Inputs) (any, error) {
			time.Sleep(time.Second)
			return "late", nil
		}, []workflow.InputBinding{workflow.Input("x")}, workflow.WithTimeout(20*time.Millisecond)).
		SetOutput("A"))

	begin := time.Now()
	x, err := eng.Run(context.Background(), g, 1)
	require.NoError(t, err)
	_, err = x.Wait(context.Background())
	assert.ErrorIs(t, err, ErrNodeTimeout)
	assert.Less(t, time.Since(begin), 500*time.Millisecond, "超时后不应等待执行函数返回")
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	eng := newTestEngine(t)
	var calls atomic.Int32
	g := mustBuild(t, workflow.NewBuilder("retry", "").
		AddExecutor("A", func(ctx *task.Context, in task.Inputs) (any, error) {
			if calls.Add(1) < 3 {
				return nil, errors.New("flaky")
			}
			return ctx.Attempt, nil
		}, []workflow.InputBinding{workflow.Input("x")}, workflow.WithRetry(2)).
		SetOutput("A"))

	x, err := eng.Run(context.Background(), g, 1)
	require.NoError(t, err)
	events := collect(t, x)
	assert.Equal(t, []string{"node.started:A", "node.completed:A", "run.output", "run.completed"}, kinds(events))
	assert.Equal(t, 3, events[1].Value)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetry_ExhaustedFails(t *testing.T) {
	eng := newTestEngine(t)
	var calls atomic.Int32
	g := mustBuild(t, workflow.NewBuilder("retry", "").
		AddExecutor("A", func(ctx *task.Context, in task.Inputs) (any, error) {
			calls.Add(1)
			return nil, errors.New("always")
		}, []workflow.InputBinding{workflow.Input("x")}, workflow.WithRetry(1)).
		SetOutput("A"))

	x, err := eng.Run(context.Background(), g, 1)
	require.NoError(t, err)
	_, err = x.Wait(context.Background())
	assert.ErrorContains(t, err, "always")
	assert.Equal(t, int32(2), calls.Load())
}

func TestMaxConcurrencyPerRun(t *testing.T) {
	eng := newTestEngine(t)
	var running, peak atomic.Int32
	body := func(ctx *task.Context, in task.Inputs) (any, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return 1, nil
	}

	b := workflow.NewBuilder("wide", "")
	var joins []workflow.InputBinding
	for _, id := range []string{"n1", "n2", "n3", "n4", "n5", "n6"} {
		b.AddExecutor(id, body, []workflow.InputBinding{workflow.Input("x")})
		joins = append(joins, workflow.Node(id, id))
	}
	b.AddExecutor("join", func(ctx *task.Context, in task.Inputs) (any, error) {
		return len(in), nil
	}, joins).SetOutput("join")
	g := mustBuild(t, b)

	x, err := eng.Run(context.Background(), g, nil, WithMaxConcurrency(2))
	require.NoError(t, err)
	res, err := x.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, res.Output)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestProgressEvents_PrecedeCompletion(t *testing.T) {
	eng := newTestEngine(t)
	g := mustBuild(t, workflow.NewBuilder("stream", "").
		AddExecutor("writer", func(ctx *task.Context, in task.Inputs) (any, error) {
			for _, line := range []string{"## Summary", "## Steps", "## Rollback"} {
				ctx.Emit(line)
			}
			return "plan", nil
		}, []workflow.InputBinding{workflow.Input("x")}).
		SetOutput("writer"))

	x, err := eng.Run(context.Background(), g, nil)
	require.NoError(t, err)
	events := collect(t, x)

	var lines []any
	for _, ev := range events {
		if ev.Type == realtime.EventNodeProgress {
			lines = append(lines, ev.Value)
		}
	}
	assert.Equal(t, []any{"## Summary", "## Steps", "## Rollback"}, lines)
	assert.Less(t, indexOf(events, realtime.EventNodeProgress, "writer"), indexOf(events, realtime.EventNodeCompleted, "writer"))
}

func TestConcurrentRuns_Independent(t *testing.T) {
	eng := newTestEngine(t)
	g := mustBuild(t, workflow.NewBuilder("double", "").
		AddExecutor("A", func(ctx *task.Context, in task.Inputs) (any, error) {
			n, err := in.Int("x")
			time.Sleep(time.Millisecond)
			return n * 2, err
		}, []workflow.InputBinding{workflow.Input("x")}).
		SetOutput("A"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			x, err := eng.Run(context.Background(), g, n)
			if !assert.NoError(t, err) {
				return
			}
			res, err := x.Wait(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, n*2, res.Output)
		}(i)
	}
	wg.Wait()
}

func TestRetry_ExplicitZeroOverridesEngineDefault(t *testing.T) {
	cfg := testConfig()
	cfg.AgentFlow.Execution.Retry.MaxAttempts = 2
	eng := newTestEngineWithConfig(t, cfg)

	var once, fallback atomic.Int32
	failing := func(calls *atomic.Int32) workflow.ExecutorFunc {
		return func(ctx *task.Context, in task.Inputs) (any, error) {
			calls.Add(1)
			return nil, errors.New("side effect failed")
		}
	}

	g := mustBuild(t, workflow.NewBuilder("no-retry", "").
		AddExecutor("A", failing(&once), []workflow.InputBinding{workflow.Input("x")}, workflow.WithRetry(0)).
		SetOutput("A"))
	x, err := eng.Run(context.Background(), g, 1)
	require.NoError(t, err)
	_, err = x.Wait(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(1), once.Load())

	g = mustBuild(t, workflow.NewBuilder("default-retry", "").
		AddExecutor("A", failing(&fallback), []workflow.InputBinding{workflow.Input("x")}).
		SetOutput("A"))
	x, err = eng.Run(context.Background(), g, 1)
	require.NoError(t, err)
	_, err = x.Wait(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(3), fallback.Load())
}

func TestNodeTimeout_LateProgressDropped(t *testing.T) {
	eng := newTestEngine(t)
	g := mustBuild(t, workflow.NewBuilder("late-progress", "").
		AddExecutor("A", func(ctx *task.Context, in task.Inputs) (any, error) {
			time.Sleep(60 * time.Millisecond)
			ctx.Emit("too late")
			return "late", nil
		}, []workflow.InputBinding{workflow.Input("x")},
			workflow.WithTimeout(10*time.Millisecond), workflow.WithRetry(0), workflow.BestEffort()).
		AddExecutor("C", func(ctx *task.Context, in task.Inputs) (any, error) {
			time.Sleep(150 * time.Millisecond)
			return "slow", nil
		}, []workflow.InputBinding{workflow.Input("x")}).
		AddExecutor("out", func(ctx *task.Context, in task.Inputs) (any, error) {
			return in.String("c"), nil
		}, []workflow.InputBinding{workflow.Node("c", "C"), workflow.Optional("a", "A")}).
		SetOutput("out"))

	x, err := eng.Run(context.Background(), g, 1)
	require.NoError(t, err)
	events := collect(t, x)

	assert.NotEqual(t, -1, indexOf(events, realtime.EventNodeFailed, "A"))
	assert.Equal(t, -1, indexOf(events, realtime.EventNodeProgress, "A"), "超时节点不应在失败后再发进度: %v", kinds(events))
	out, ok := find(events, realtime.EventRunOutput)
	require.True(t, ok)
	assert.Equal(t, "slow", out.Value)
}

func TestNodeTimeout_AbandonedBodyHoldsWorker(t *testing.T) {
	cfg := testConfig()
	cfg.AgentFlow.Execution.WorkerConcurrency = 1
	eng := newTestEngineWithConfig(t, cfg)

	var aEnded, bStarted atomic.Int64
	g := mustBuild(t, workflow.NewBuilder("one-worker", "").
		AddExecutor("A", func(ctx *task.Context, in task.Inputs) (any, error) {
			time.Sleep(80 * time.Millisecond)
			aEnded.Store(time.Now().UnixNano())
			return nil, nil
		}, []workflow.InputBinding{workflow.Input("x")},
			workflow.WithTimeout(10*time.Millisecond), workflow.WithRetry(0), workflow.BestEffort()).
		AddExecutor("B", func(ctx *task.Context, in task.Inputs) (any, error) {
			bStarted.Store(time.Now().UnixNano())
			return "b", nil
		}, []workflow.InputBinding{workflow.Input("x")}).
		AddExecutor("out", func(ctx *task.Context, in task.Inputs) (any, error) {
			return in.String("b"), nil
		}, []workflow.InputBinding{workflow.Node("b", "B"), workflow.Optional("a", "A")}).
		SetOutput("out"))

	x, err := eng.Run(context.Background(), g, 1)
	require.NoError(t, err)
	res, err := x.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", res.Output)
	assert.Equal(t, types.NodeStatusFailed, res.Nodes["A"])

	require.NotZero(t, aEnded.Load())
	assert.GreaterOrEqual(t, bStarted.Load(), aEnded.Load(), "超时节点的执行函数返回前不应让出工作协程")
}

func TestMiddleware_WrapsEveryNode(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	record := func(name string) task.Middleware {
		return func(next task.Func) task.Func {
			return func(ctx *task.Context, in task.Inputs) (any, error) {
				mu.Lock()
				calls = append(calls, name+":"+ctx.NodeID)
				mu.Unlock()
				return next(ctx, in)
			}
		}
	}
	eng := newTestEngine(t, WithMiddleware(record("outer")), WithMiddleware(record("inner")))
	g := mustBuild(t, workflow.NewBuilder("chain", "").
		AddExecutor("A", addInt(1), []workflow.InputBinding{workflow.Input("x")}).
		AddExecutor("B", addInt(1), []workflow.InputBinding{workflow.Node("x", "A")}).
		SetOutput("B"))

	x, err := eng.Run(context.Background(), g, 1)
	require.NoError(t, err)
	res, err := x.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Output)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"outer:A", "inner:A", "outer:B", "inner:B"}, calls)
}

func TestMaxConcurrency_OutputPathFirst(t *testing.T) {
	eng := newTestEngine(t)
	side := func(ctx *task.Context, in task.Inputs) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return "side", nil
	}
	g := mustBuild(t, workflow.NewBuilder("priority", "").
		AddExecutor("S1", side, []workflow.InputBinding{workflow.Input("x")}).
		AddExecutor("S2", side, []workflow.InputBinding{workflow.Input("x")}).
		AddExecutor("A", addInt(1), []workflow.InputBinding{workflow.Input("x")}).
		AddExecutor("out", addInt(1), []workflow.InputBinding{workflow.Node("x", "A")}).
		SetOutput("out"))

	x, err := eng.Run(context.Background(), g, 1, WithMaxConcurrency(1))
	require.NoError(t, err)
	events := collect(t, x)

	assert.Equal(t, []string{
		"node.started:A", "node.completed:A",
		"node.started:out", "node.completed:out",
		"run.output", "run.completed",
	}, kinds(events))

	res, err := x.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Output)
	assert.Equal(t, types.NodeStatusSkipped, res.Nodes["S1"])
	assert.Equal(t, types.NodeStatusSkipped, res.Nodes["S2"])
	for id, status := range x.Snapshot().Nodes {
		assert.True(t, status.IsSettled(), "节点 %s 结束后仍为 %s", id, status)
	}
}

func TestOutputReached_DropsParkedApproval(t *testing.T) {
	eng := newTestEngine(t)
	g := mustBuild(t, workflow.NewBuilder("parked", "").
		AddExecutor("gate", func(ctx *task.Context, in task.Inputs) (any, error) {
			return nil, ctx.RequestApproval("page on-call?")
		}, []workflow.InputBinding{workflow.Input("x")}).
		AddExecutor("out", func(ctx *task.Context, in task.Inputs) (any, error) {
			time.Sleep(30 * time.Millisecond)
			return "summary", nil
		}, []workflow.InputBinding{workflow.Input("x")}).
		SetOutput("out"))

	x, err := eng.Run(context.Background(), g, 1)
	require.NoError(t, err)
	events := collect(t, x)
	assert.NotEqual(t, -1, indexOf(events, realtime.EventApprovalRequested, "gate"))

	res, err := x.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "summary", res.Output)
	assert.Equal(t, types.NodeStatusSkipped, res.Nodes["gate"])
	assert.Equal(t, types.NodeStatusSkipped, x.Snapshot().Nodes["gate"])
	assert.Empty(t, x.PendingRequests())
}
