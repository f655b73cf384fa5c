package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LENAX/agentflow/pkg/core/realtime"
	"github.com/LENAX/agentflow/pkg/core/task"
	"github.com/LENAX/agentflow/pkg/core/workflow"
)

// nodeWork 一次节点派发
type nodeWork struct {
	exec        *workflow.Executor
	inputs      task.Inputs
	decision    any
	hasDecision bool
}

// nodeResult 节点执行结果（工作协程 -> 调度协程）
type nodeResult struct {
	nodeID   string
	value    any
	err      error
	approval *task.ApprovalRequest
	attempts int
}

// run 工作池任务：先回报结果，再等待被放弃的执行函数真正返回
// 被放弃的执行函数仍占用工作协程，worker_concurrency 上限保持有效
func (s *scheduler) run(w *nodeWork) {
	var abandoned []<-chan struct{}
	s.results <- s.execute(w, func(done <-chan struct{}) {
		abandoned = append(abandoned, done)
	})
	for _, done := range abandoned {
		<-done
	}
}

// execute 在工作池中执行节点：超时、重试、panic 恢复
// 审批请求、运行取消、携带审批决定的执行都不重试
// 超时或取消时仍在运行的执行函数交给 abandon
func (s *scheduler) execute(w *nodeWork, abandon func(<-chan struct{})) nodeResult {
	id := w.exec.ID
	res := nodeResult{nodeID: id}

	services, err := s.servicesFor(w.exec)
	if err != nil {
		res.err = err
		return res
	}

	maxAttempts := 1 + s.settings.retryAttempts
	if w.exec.RetrySet {
		maxAttempts = 1 + w.exec.MaxRetries
	}
	if w.hasDecision {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.attempts = attempt
		value, pending, err := s.attempt(w, services, attempt)
		if pending != nil && abandon != nil {
			abandon(pending)
		}
		if err == nil {
			res.value, res.err = value, nil
			return res
		}
		if req, ok := task.AsApprovalRequest(err); ok {
			res.approval, res.err = req, nil
			return res
		}
		res.err = err
		if s.ctx.Err() != nil || attempt == maxAttempts {
			return res
		}

		delay := s.backoff(attempt)
		s.logger.Warn("🔄 节点执行失败，准备重试", "node_id", id, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			return res
		}
	}
	return res
}

// attempt 执行一次节点主体
// 超时或取消时不再等待主体返回，pending 在主体真正返回后关闭
// 本次执行结束后主体发出的进度被丢弃，不会出现在节点的结算事件之后
func (s *scheduler) attempt(w *nodeWork, services map[string]any, attempt int) (value any, pending <-chan struct{}, err error) {
	ctx, cancel := s.ctx, context.CancelFunc(func() {})
	timeout := w.exec.Timeout
	if timeout <= 0 {
		timeout = s.settings.nodeTimeout
	}
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, timeout)
	}
	defer cancel()

	gate := &progressGate{}
	defer gate.close()

	tc := task.NewContext(ctx, s.x.id, s.x.workflowID, w.exec.ID).
		WithServices(services).
		WithProgress(gate.wrap(s.progress(w.exec.ID)))
	tc.Attempt = attempt
	if w.hasDecision {
		tc.WithDecision(w.decision)
	}

	type bodyResult struct {
		value any
		err   error
	}
	body := task.Chain(w.exec.Body, s.settings.middleware...)
	done := make(chan bodyResult, 1)
	exited := make(chan struct{})
	go func() {
		var out bodyResult
		defer func() {
			if r := recover(); r != nil {
				out = bodyResult{err: &PanicError{Value: r}}
			}
			done <- out
			close(exited)
		}()
		out.value, out.err = body(tc, w.inputs)
	}()

	select {
	case out := <-done:
		return out.value, nil, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && s.ctx.Err() == nil {
			return nil, exited, fmt.Errorf("%w: %s", ErrNodeTimeout, timeout)
		}
		return nil, exited, ctx.Err()
	}
}

// progressGate 一次执行的进度出口，关闭后丢弃进度
// 发出进度与关闭互斥，关闭前发出的进度一定先于结算事件入队
type progressGate struct {
	mu     sync.Mutex
	closed bool
}

func (g *progressGate) wrap(emit func(data any)) func(data any) {
	return func(data any) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if !g.closed {
			emit(data)
		}
	}
}

func (g *progressGate) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// backoff 指数退避：delay * 2^(attempt-1)，不超过 maxDelay
func (s *scheduler) backoff(attempt int) time.Duration {
	delay := s.settings.retryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if s.settings.retryMaxDelay > 0 && delay >= s.settings.retryMaxDelay {
			return s.settings.retryMaxDelay
		}
	}
	return delay
}

// servicesFor 只注入执行器声明的服务
func (s *scheduler) servicesFor(exec *workflow.Executor) (map[string]any, error) {
	if len(exec.Services) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(exec.Services))
	for _, name := range exec.Services {
		svc, ok := s.services[name]
		if !ok {
			return nil, fmt.Errorf("服务 %s 未注册", name)
		}
		out[name] = svc
	}
	return out, nil
}

// progress 节点内部进度事件，直接进入事件流
func (s *scheduler) progress(nodeID string) func(data any) {
	return func(data any) {
		ev := realtime.NewEvent(realtime.EventNodeProgress, s.x.id, s.x.workflowID, nodeID)
		ev.Value = data
		s.x.emit(ev)
	}
}
