package engine

import (
	"github.com/LENAX/agentflow/pkg/core/task"
	"github.com/LENAX/agentflow/pkg/core/workflow"
)

// evaluateCondition 在调度协程内求值节点条件，panic 转为错误
func evaluateCondition(cond workflow.Condition, in task.Inputs) (ok bool, err error) {
	if cond == nil {
		return true, nil
	}
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, &PanicError{Value: r}
		}
	}()
	return cond(in)
}
