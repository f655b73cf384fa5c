package task

import (
	"fmt"
	"sort"
	"sync"
)

// FunctionRegistry 执行函数与条件函数注册中心（对外导出）
// YAML 定义的 Workflow 通过名称引用这里注册的函数
type FunctionRegistry struct {
	mu          sync.RWMutex
	executors   map[string]Func
	conditions  map[string]ConditionFunc
	description map[string]string
}

// NewFunctionRegistry 创建注册中心（对外导出）
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		executors:   make(map[string]Func),
		conditions:  make(map[string]ConditionFunc),
		description: make(map[string]string),
	}
}

// Register 注册执行函数
func (r *FunctionRegistry) Register(name string, fn Func, description string) error {
	if name == "" {
		return fmt.Errorf("函数名称不能为空")
	}
	if fn == nil {
		return fmt.Errorf("函数 %s 不能为nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[name]; exists {
		return fmt.Errorf("函数 %s 已注册", name)
	}
	r.executors[name] = fn
	r.description[name] = description
	return nil
}

// RegisterCondition 注册条件函数
func (r *FunctionRegistry) RegisterCondition(name string, fn ConditionFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("条件函数名称与实现均不能为空")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conditions[name]; exists {
		return fmt.Errorf("条件函数 %s 已注册", name)
	}
	r.conditions[name] = fn
	return nil
}

// Get 按名称获取执行函数
func (r *FunctionRegistry) Get(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.executors[name]
	return fn, ok
}

// GetCondition 按名称获取条件函数
func (r *FunctionRegistry) GetCondition(name string) (ConditionFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.conditions[name]
	return fn, ok
}

// Description 获取执行函数描述
func (r *FunctionRegistry) Description(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.description[name]
}

// List 列出已注册的执行函数名称（字典序）
func (r *FunctionRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
