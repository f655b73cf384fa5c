package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/agentflow/pkg/core/task"
	"github.com/LENAX/agentflow/pkg/core/types"
	"github.com/LENAX/agentflow/pkg/core/workflow"
)

func TestResolve(t *testing.T) {
	g := mustBuild(t, workflow.NewBuilder("resolve", "").
		AddExecutor("A", addInt(0), []workflow.InputBinding{workflow.Input("x")}).
		AddExecutor("B", addInt(0), []workflow.InputBinding{workflow.Input("x")}).
		AddExecutor("C", addInt(0), []workflow.InputBinding{
			workflow.Node("a", "A"), workflow.Optional("b", "B"), workflow.Literal("mode", "fast"),
		}).
		SetOutput("C"))
	st := newRunState(g, 7)
	c, _ := g.Node("C")

	_, res := resolve(st, c)
	assert.Equal(t, resolveWait, res)

	st.status["A"] = types.NodeStatusCompleted
	st.completed["A"] = 1
	_, res = resolve(st, c)
	assert.Equal(t, resolveWait, res, "可选上游未结束时仍需等待")

	st.status["B"] = types.NodeStatusSkipped
	st.absent["B"] = true
	in, res := resolve(st, c)
	require.Equal(t, resolveReady, res)
	assert.Equal(t, task.Inputs{"a": 1, "mode": "fast"}, in)

	st.absent["A"] = true
	st.status["A"] = types.NodeStatusSkipped
	_, res = resolve(st, c)
	assert.Equal(t, resolveUnreachable, res)

	a, _ := g.Node("A")
	in, res = resolve(st, a)
	require.Equal(t, resolveReady, res)
	assert.Equal(t, 7, in["x"])
}

func TestEvaluateCondition(t *testing.T) {
	ok, err := evaluateCondition(nil, nil)
	assert.True(t, ok)
	assert.NoError(t, err)

	ok, err = evaluateCondition(func(in task.Inputs) (bool, error) { return in.Bool("go") }, task.Inputs{"go": false})
	assert.False(t, ok)
	assert.NoError(t, err)

	_, err = evaluateCondition(func(task.Inputs) (bool, error) { panic("boom") }, nil)
	var panicErr *PanicError
	assert.ErrorAs(t, err, &panicErr)
}
