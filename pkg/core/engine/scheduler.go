package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LENAX/agentflow/pkg/core/executor"
	"github.com/LENAX/agentflow/pkg/core/realtime"
	"github.com/LENAX/agentflow/pkg/core/task"
	"github.com/LENAX/agentflow/pkg/core/types"
	"github.com/LENAX/agentflow/pkg/core/workflow"
)

// outcomeKind 运行结局
type outcomeKind int

const (
	outcomeNone outcomeKind = iota
	outcomeCompleted
	outcomeFailed
	outcomeCancelled
)

type outcome struct {
	kind outcomeKind
	err  error
}

// dispatchItem 等待派发的节点
type dispatchItem struct {
	nodeID   string
	inputs   task.Inputs
	resume   bool // 审批恢复：不再发 NodeStarted
	decision any
}

// runSettings 单次运行的调度参数
type runSettings struct {
	maxConcurrency int
	nodeTimeout    time.Duration
	retryAttempts  int
	retryDelay     time.Duration
	retryMaxDelay  time.Duration
	middleware     []task.Middleware
}

// scheduler 驱动一次运行
// 状态只在 loop 所在协程内修改；执行函数在工作池中运行，通过 results 回报
type scheduler struct {
	x        *Execution
	graph    *workflow.Graph
	order    []string
	st       *runState
	gate     *approvalGate
	pool     *executor.Pool
	services map[string]any
	settings runSettings
	logger   *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	results chan nodeResult
	ready   []dispatchItem

	stopping bool
	outcome  outcome
	output   any
	fallback bool
}

func newScheduler(ctx context.Context, x *Execution, pool *executor.Pool, services map[string]any, settings runSettings, logger *slog.Logger) *scheduler {
	runCtx, cancel := context.WithCancel(ctx)
	st := newRunState(x.graph, x.input)
	x.nodes = st.status
	x.cancel = cancel
	return &scheduler{
		x:        x,
		graph:    x.graph,
		order:    x.graph.NodeIDs(),
		st:       st,
		gate:     x.gate,
		pool:     pool,
		services: services,
		settings: settings,
		logger:   logger,
		ctx:      runCtx,
		cancel:   cancel,
		results:  make(chan nodeResult, x.graph.Len()),
	}
}

// loop 调度主循环
func (s *scheduler) loop() {
	defer s.finish()
	s.logger.Info("▶️ 运行开始", "nodes", s.graph.Len())

	cancelled := s.ctx.Done()
	if s.ctx.Err() != nil {
		cancelled = nil
		s.stop(outcome{kind: outcomeCancelled, err: context.Cause(s.ctx)})
	}
	s.tick()
	for !s.done() {
		select {
		case res := <-s.results:
			s.settle(res)
		case <-s.gate.wake:
			s.resume()
		case <-cancelled:
			cancelled = nil
			s.stop(outcome{kind: outcomeCancelled, err: context.Cause(s.ctx)})
		}
		s.tick()
		s.syncRunStatus()
	}
}

// done 是否可以结束运行
func (s *scheduler) done() bool {
	if s.stopping {
		return s.st.inFlight == 0
	}
	if s.st.inFlight == 0 && len(s.ready) == 0 && len(s.st.suspended) == 0 {
		// 没有可推进的节点却未到达输出
		s.stop(outcome{kind: outcomeFailed, err: ErrRunStalled})
		return true
	}
	return false
}

// tick 解析依赖直到不动点，然后派发就绪节点
func (s *scheduler) tick() {
	for changed := true; changed && !s.stopping; {
		changed = false
		for _, id := range s.order {
			if s.stopping {
				return
			}
			if s.st.status[id] != types.NodeStatusPending {
				continue
			}
			exec, _ := s.graph.Node(id)
			in, res := resolve(s.st, exec)
			switch res {
			case resolveUnreachable:
				s.skip(id, realtime.SkipReasonUpstream)
				changed = true
			case resolveReady:
				s.setStatus(id, types.NodeStatusReady)
				ok, err := evaluateCondition(exec.Condition, in)
				if err != nil {
					s.fail(id, &NodeError{NodeID: id, Phase: phaseCondition, Err: err})
					changed = true
					continue
				}
				if !ok {
					s.skip(id, realtime.SkipReasonCondition)
					changed = true
					continue
				}
				s.ready = append(s.ready, dispatchItem{nodeID: id, inputs: in})
			}
		}
	}
	s.dispatch()
}

// dispatch 在并发上限内派发就绪节点
func (s *scheduler) dispatch() {
	for len(s.ready) > 0 && !s.stopping {
		if s.settings.maxConcurrency > 0 && s.st.inFlight >= s.settings.maxConcurrency {
			return
		}
		i := s.nextReady()
		item := s.ready[i]
		s.ready = append(s.ready[:i], s.ready[i+1:]...)
		s.start(item)
	}
}

// nextReady 选出下一个派发的节点
// 有并发上限时，审批恢复与输出依赖路径上的节点优先，旁支不挡住输出
func (s *scheduler) nextReady() int {
	if s.settings.maxConcurrency <= 0 {
		return 0
	}
	for i, item := range s.ready {
		if item.resume || s.graph.OnOutputPath(item.nodeID) {
			return i
		}
	}
	return 0
}

func (s *scheduler) start(item dispatchItem) {
	id := item.nodeID
	exec, _ := s.graph.Node(id)
	s.st.inputs[id] = item.inputs
	if !item.resume {
		s.x.emit(realtime.NewEvent(realtime.EventNodeStarted, s.x.id, s.x.workflowID, id))
	}
	s.setStatus(id, types.NodeStatusRunning)
	s.st.inFlight++

	w := &nodeWork{
		exec:        exec,
		inputs:      item.inputs,
		decision:    item.decision,
		hasDecision: item.resume,
	}
	job := &executor.Job{
		ID:  s.x.id + "/" + id,
		Run: func() { s.run(w) },
		OnReject: func(err error) {
			s.results <- nodeResult{nodeID: id, err: err}
		},
	}
	if err := s.pool.Submit(job); err != nil {
		s.results <- nodeResult{nodeID: id, err: err}
	}
}

// settle 处理一个节点的执行结果
func (s *scheduler) settle(res nodeResult) {
	s.st.inFlight--
	id := res.nodeID
	switch {
	case res.approval != nil:
		s.suspend(id, res.approval)
	case res.err != nil:
		s.fail(id, &NodeError{NodeID: id, Phase: phaseBody, Err: res.err})
	default:
		s.complete(id, res.value)
	}
}

func (s *scheduler) complete(id string, value any) {
	s.setStatus(id, types.NodeStatusCompleted)
	s.st.completed[id] = value
	ev := realtime.NewEvent(realtime.EventNodeCompleted, s.x.id, s.x.workflowID, id)
	ev.Value = value
	s.x.emit(ev)
	if id == s.graph.Output() {
		s.reachOutput(value, false)
	}
}

func (s *scheduler) skip(id, reason string) {
	s.setStatus(id, types.NodeStatusSkipped)
	s.st.skipped[id] = reason
	s.st.absent[id] = true
	ev := realtime.NewEvent(realtime.EventNodeSkipped, s.x.id, s.x.workflowID, id)
	ev.Reason = reason
	s.x.emit(ev)
	s.logger.Debug("节点跳过", "node_id", id, "reason", reason)
	if id == s.graph.Output() {
		s.reachOutput(s.graph.Fallback(), true)
	}
}

func (s *scheduler) fail(id string, err *NodeError) {
	exec, _ := s.graph.Node(id)
	s.setStatus(id, types.NodeStatusFailed)
	s.st.failed[id] = err
	ev := realtime.NewEvent(realtime.EventNodeFailed, s.x.id, s.x.workflowID, id)
	ev.Error = err.Error()
	if exec.BestEffort {
		ev = ev.WithMetadata("best_effort", "true")
	}
	s.x.emit(ev)

	if exec.BestEffort {
		// 尽力而为：失败被隔离，下游按跳过处理
		s.logger.Warn("⚠️ 尽力而为节点失败", "node_id", id, "error", err.Err)
		s.st.absent[id] = true
		if id == s.graph.Output() {
			s.reachOutput(s.graph.Fallback(), true)
		}
		return
	}
	s.logger.Error("❌ 节点失败", "node_id", id, "error", err.Err)
	s.stop(outcome{kind: outcomeFailed, err: err})
}

func (s *scheduler) suspend(id string, req *task.ApprovalRequest) {
	s.setStatus(id, types.NodeStatusSuspended)
	if s.stopping {
		// 运行已不再接受审批
		s.logger.Info("运行结束中，丢弃审批请求", "node_id", id)
		return
	}
	info := s.gate.open(id, req.Payload)
	s.st.suspended[id] = info.RequestID
	ev := realtime.NewEvent(realtime.EventApprovalRequested, s.x.id, s.x.workflowID, id)
	ev.Request = &info
	s.x.emit(ev)
	s.logger.Info("⏸️ 节点等待审批", "node_id", id, "request_id", info.RequestID)
}

// resume 把已接受的审批决定排到就绪队列最前
func (s *scheduler) resume() {
	var resumed []dispatchItem
	for _, resp := range s.gate.take() {
		if s.stopping {
			continue
		}
		if s.st.suspended[resp.NodeID] != resp.RequestID {
			continue
		}
		delete(s.st.suspended, resp.NodeID)
		resumed = append(resumed, dispatchItem{
			nodeID:   resp.NodeID,
			inputs:   s.st.inputs[resp.NodeID],
			resume:   true,
			decision: resp.Decision,
		})
		s.logger.Info("▶️ 审批已答复，恢复节点", "node_id", resp.NodeID, "request_id", resp.RequestID)
	}
	s.ready = append(resumed, s.ready...)
}

// reachOutput 产出运行输出，停止接纳新节点
func (s *scheduler) reachOutput(value any, fallback bool) {
	if s.stopping {
		return
	}
	s.output = value
	s.fallback = fallback
	ev := realtime.NewEvent(realtime.EventRunOutput, s.x.id, s.x.workflowID, s.graph.Output())
	ev.Value = value
	if fallback {
		ev = ev.WithMetadata("fallback", "true")
	}
	s.x.emit(ev)
	s.stop(outcome{kind: outcomeCompleted})
}

// stop 停止接纳节点；先到的结局生效
// 输出已产出时让在途节点自然结束，失败或取消时向在途节点传播取消
func (s *scheduler) stop(o outcome) {
	if s.stopping {
		return
	}
	s.stopping = true
	s.outcome = o
	s.ready = nil
	for _, info := range s.gate.close() {
		delete(s.st.suspended, info.NodeID)
		s.logger.Info("丢弃未答复的审批请求", "node_id", info.NodeID, "request_id", info.RequestID)
	}
	if o.kind != outcomeCompleted {
		s.cancel()
	}
}

// finish 发出终止事件并关闭事件流
func (s *scheduler) finish() {
	s.gate.close()
	s.cancel()
	s.abandonUnsettled()

	res := &Result{
		RunID:        s.x.id,
		WorkflowID:   s.x.workflowID,
		Nodes:        s.x.NodeStatuses(),
		StartedAt:    s.x.startedAt,
		FinishedAt:   time.Now(),
		Output:       s.output,
		UsedFallback: s.fallback,
	}
	var ev realtime.Event
	switch s.outcome.kind {
	case outcomeCompleted:
		res.Status = types.RunStatusCompleted
		res.HasOutput = true
		ev = realtime.NewEvent(realtime.EventRunCompleted, s.x.id, s.x.workflowID, "")
		ev.Value = s.output
	case outcomeCancelled:
		res.Status = types.RunStatusCancelled
		res.Err = fmt.Errorf("%w: %w", ErrRunCancelled, causeOr(s.outcome.err, context.Canceled))
		ev = realtime.NewEvent(realtime.EventRunCancelled, s.x.id, s.x.workflowID, "")
		ev.Error = res.Err.Error()
	default:
		res.Status = types.RunStatusFailed
		res.Err = fmt.Errorf("%w: %w", ErrRunFailed, causeOr(s.outcome.err, ErrRunStalled))
		ev = realtime.NewEvent(realtime.EventRunFailed, s.x.id, s.x.workflowID, "")
		var nodeErr *NodeError
		if errors.As(s.outcome.err, &nodeErr) {
			ev.NodeID = nodeErr.NodeID
		}
		ev.Error = res.Err.Error()
	}

	s.x.setRunStatus(res.Status)
	s.x.emit(ev)
	s.logger.Info("⏹️ 运行结束", "status", res.Status, "duration", res.FinishedAt.Sub(res.StartedAt))
	s.x.complete(res)
}

// abandonUnsettled 运行终止时仍未结束的节点记为跳过，原因为 aborted
// 只修正状态表，不补发事件；结果与快照中每个节点都处于终态
func (s *scheduler) abandonUnsettled() {
	for _, id := range s.order {
		switch s.st.status[id] {
		case types.NodeStatusPending, types.NodeStatusReady, types.NodeStatusSuspended:
			s.setStatus(id, types.NodeStatusSkipped)
			s.st.skipped[id] = realtime.SkipReasonAborted
		}
	}
}

func causeOr(err, def error) error {
	if err != nil {
		return err
	}
	return def
}

func (s *scheduler) setStatus(id string, status types.NodeStatus) {
	old := s.st.status[id]
	if old != status && !old.CanTransitionTo(status) {
		s.logger.Warn("非预期的节点状态转换", "node_id", id, "from", old, "to", status)
	}
	s.x.mu.Lock()
	s.st.status[id] = status
	s.x.mu.Unlock()
}

// syncRunStatus 有未答复审批时运行为挂起状态
func (s *scheduler) syncRunStatus() {
	if s.stopping {
		return
	}
	if len(s.st.suspended) > 0 {
		s.x.setRunStatus(types.RunStatusSuspended)
	} else {
		s.x.setRunStatus(types.RunStatusRunning)
	}
}
