package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// 构建期错误，可通过 errors.Is 判断（对外导出）
// 所有具体错误同时匹配 ErrGraph
var (
	ErrGraph            = errors.New("graph error")
	ErrDuplicateID      = errors.New("duplicate executor id")
	ErrUnknownReference = errors.New("unknown node reference")
	ErrCycle            = errors.New("dependency cycle")
	ErrNoOutput         = errors.New("no output node")
	ErrInvalidExecutor  = errors.New("invalid executor")
)

// DuplicateIDError 执行器ID重复
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("%s: 执行器ID重复: %s", ErrGraph, e.ID)
}

func (e *DuplicateIDError) Unwrap() []error { return []error{ErrDuplicateID, ErrGraph} }

// UnknownReferenceError 输入绑定引用了不存在的节点
type UnknownReferenceError struct {
	NodeID string // 声明绑定的节点
	Param  string // 参数名
	Ref    string // 引用的节点ID
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("%s: 节点 %s 的参数 %s 引用了不存在的节点 %s", ErrGraph, e.NodeID, e.Param, e.Ref)
}

func (e *UnknownReferenceError) Unwrap() []error { return []error{ErrUnknownReference, ErrGraph} }

// CycleError 依赖关系存在环
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: 检测到循环依赖: %s", ErrGraph, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() []error { return []error{ErrCycle, ErrGraph} }

// NoOutputError 未设置输出节点或输出节点不存在
type NoOutputError struct {
	ID string // 为空表示从未调用 SetOutput
}

func (e *NoOutputError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: 未设置输出节点", ErrGraph)
	}
	return fmt.Sprintf("%s: 输出节点 %s 不存在", ErrGraph, e.ID)
}

func (e *NoOutputError) Unwrap() []error { return []error{ErrNoOutput, ErrGraph} }

// InvalidExecutorError 执行器定义不合法（空ID、缺少执行函数、参数名重复等）
type InvalidExecutorError struct {
	ID     string
	Reason string
}

func (e *InvalidExecutorError) Error() string {
	return fmt.Sprintf("%s: 执行器 %q 不合法: %s", ErrGraph, e.ID, e.Reason)
}

func (e *InvalidExecutorError) Unwrap() []error { return []error{ErrInvalidExecutor, ErrGraph} }
