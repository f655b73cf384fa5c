package task

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_CarriesIDs(t *testing.T) {
	tc := NewContext(context.Background(), "run-1", "wf-1", "node-A")

	assert.Equal(t, "run-1", GetRunID(tc.Context()))
	assert.Equal(t, "wf-1", GetWorkflowID(tc.Context()))
	assert.Equal(t, "node-A", GetNodeID(tc.Context()))
	assert.Equal(t, 1, tc.Attempt)
	assert.NotNil(t, tc.Logger())
}

func TestContext_ServicesOnlyDeclared(t *testing.T) {
	tc := NewContext(context.Background(), "run-1", "wf-1", "A").
		WithServices(map[string]any{"memory": "store"})

	svc, err := tc.Service("memory")
	require.NoError(t, err)
	assert.Equal(t, "store", svc)

	_, err = tc.Service("findings")
	assert.ErrorIs(t, err, ErrServiceNotDeclared)

	s, err := ServiceAs[string](tc, "memory")
	require.NoError(t, err)
	assert.Equal(t, "store", s)

	_, err = ServiceAs[int](tc, "memory")
	assert.Error(t, err)
}

func TestContext_ApprovalRequestAndDecision(t *testing.T) {
	tc := NewContext(context.Background(), "run-1", "wf-1", "A")

	_, ok := tc.Decision()
	assert.False(t, ok)

	err := tc.RequestApproval(map[string]string{"action": "restart_service"})
	req, ok := AsApprovalRequest(fmt.Errorf("包装: %w", err))
	require.True(t, ok)
	assert.Equal(t, "A", req.NodeID)

	_, ok = AsApprovalRequest(errors.New("普通错误"))
	assert.False(t, ok)

	tc.WithDecision(true)
	d, ok := tc.Decision()
	assert.True(t, ok)
	assert.Equal(t, true, d)
}

func TestContext_Emit(t *testing.T) {
	var got []any
	tc := NewContext(context.Background(), "run-1", "wf-1", "A").
		WithProgress(func(data any) { got = append(got, data) })

	tc.Emit("line 1")
	tc.Emit("line 2")
	assert.Equal(t, []any{"line 1", "line 2"}, got)

	// 未设置回调时不应panic
	NewContext(context.Background(), "r", "w", "B").Emit("ignored")
}

func TestInputs_Getters(t *testing.T) {
	in := Inputs{"n": 3, "f": "2.5", "b": "yes", "s": 7}

	n, err := in.Int("n")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	f, err := in.Float("f")
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	b, err := in.Bool("b")
	require.NoError(t, err)
	assert.True(t, b)

	assert.Equal(t, "7", in.String("s"))
	assert.False(t, in.Has("missing"))
	_, err = in.Int("missing")
	assert.Error(t, err)

	v, ok := Value[int](in, "n")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	_, ok = Value[string](in, "n")
	assert.False(t, ok)
}

func TestFunctionRegistry(t *testing.T) {
	r := NewFunctionRegistry()
	fn := func(ctx *Context, in Inputs) (any, error) { return nil, nil }

	require.NoError(t, r.Register("double", fn, "乘以2"))
	assert.Error(t, r.Register("double", fn, ""))
	assert.Error(t, r.Register("", fn, ""))
	assert.Error(t, r.Register("nil", nil, ""))

	require.NoError(t, r.RegisterCondition("always", func(Inputs) (bool, error) { return true, nil }))
	assert.Error(t, r.RegisterCondition("always", func(Inputs) (bool, error) { return true, nil }))

	_, ok := r.Get("double")
	assert.True(t, ok)
	_, ok = r.GetCondition("always")
	assert.True(t, ok)
	assert.Equal(t, "乘以2", r.Description("double"))
	assert.Equal(t, []string{"double"}, r.List())
}
