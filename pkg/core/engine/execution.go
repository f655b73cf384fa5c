package engine

import (
	"context"
	"sync"
	"time"

	"github.com/LENAX/agentflow/pkg/core/realtime"
	"github.com/LENAX/agentflow/pkg/core/types"
	"github.com/LENAX/agentflow/pkg/core/workflow"
)

// Result 运行结果（对外导出）
type Result struct {
	RunID        string
	WorkflowID   string
	Status       types.RunStatus
	Output       any
	HasOutput    bool // 是否产出了输出（含回退值）
	UsedFallback bool // 输出节点无值，使用了图声明的回退值
	Err          error
	Nodes        map[string]types.NodeStatus
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Snapshot 运行状态快照（对外导出）
type Snapshot struct {
	RunID      string                      `json:"run_id"`
	WorkflowID string                      `json:"workflow_id"`
	Status     types.RunStatus             `json:"status"`
	Nodes      map[string]types.NodeStatus `json:"nodes"`
	Pending    []realtime.ApprovalInfo     `json:"pending_requests,omitempty"`
	Output     any                         `json:"output,omitempty"`
	Error      string                      `json:"error,omitempty"`
	StartedAt  time.Time                   `json:"started_at"`
	FinishedAt *time.Time                  `json:"finished_at,omitempty"`
}

// Execution 一次运行的句柄（对外导出）
// 事件按顺序从 Events() 读出，终止事件之后通道关闭；
// 有未答复审批时事件流保持打开，直到 SendResponses 或 Cancel
type Execution struct {
	id         string
	workflowID string
	graph      *workflow.Graph
	input      any
	startedAt  time.Time

	queue *realtime.EventQueue
	bus   *realtime.Bus
	gate  *approvalGate

	mu      sync.RWMutex
	status  types.RunStatus
	nodes   map[string]types.NodeStatus // 与调度状态共享，写入时持锁
	history []realtime.Event
	result  *Result

	cancel   context.CancelFunc
	done     chan struct{}
	detached sync.Once
}

func newExecution(id string, graph *workflow.Graph, input any, buffer int, bus *realtime.Bus) *Execution {
	return &Execution{
		id:         id,
		workflowID: graph.ID(),
		graph:      graph,
		input:      input,
		startedAt:  time.Now(),
		queue:      realtime.NewEventQueue(buffer),
		bus:        bus,
		gate:       newApprovalGate(),
		status:     types.RunStatusRunning,
		done:       make(chan struct{}),
	}
}

// ID 运行ID
func (x *Execution) ID() string { return x.id }

// WorkflowID Workflow ID
func (x *Execution) WorkflowID() string { return x.workflowID }

// Graph 运行的执行图
func (x *Execution) Graph() *workflow.Graph { return x.graph }

// Input 运行的外部输入
func (x *Execution) Input() any { return x.input }

// Events 有序事件流（对外导出）
func (x *Execution) Events() <-chan realtime.Event {
	return x.queue.Out()
}

// SendResponses 提交审批决定（对外导出）
// 未知或已失效的请求ID返回 ErrUnknownRequest，重复答复返回 ErrDuplicateResponse；
// 出错时整批不生效
func (x *Execution) SendResponses(responses map[string]any) error {
	return x.gate.respond(responses)
}

// PendingRequests 等待答复的审批请求
func (x *Execution) PendingRequests() []realtime.ApprovalInfo {
	return x.gate.pending()
}

// Cancel 取消运行（对外导出）
// 停止接纳新节点并向在途节点传播取消；运行以 Cancelled 结束
func (x *Execution) Cancel() {
	if x.cancel != nil {
		x.cancel()
	}
}

// Done 运行结束后关闭
func (x *Execution) Done() <-chan struct{} {
	return x.done
}

// Wait 等待运行结束（对外导出）
// 返回的 error 即 Result.Err；ctx 先结束时返回 ctx 的错误
func (x *Execution) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-x.done:
		res := x.Result()
		return res, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result 运行结果，未结束时为 nil
func (x *Execution) Result() *Result {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.result
}

// Status 当前运行状态
func (x *Execution) Status() types.RunStatus {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.status
}

// NodeStatuses 各节点当前状态（副本）
func (x *Execution) NodeStatuses() map[string]types.NodeStatus {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make(map[string]types.NodeStatus, len(x.nodes))
	for id, s := range x.nodes {
		out[id] = s
	}
	return out
}

// History 已发出的全部事件（副本）
func (x *Execution) History() []realtime.Event {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]realtime.Event(nil), x.history...)
}

// Snapshot 运行状态快照
func (x *Execution) Snapshot() Snapshot {
	snap := Snapshot{
		RunID:      x.id,
		WorkflowID: x.workflowID,
		Status:     x.Status(),
		Nodes:      x.NodeStatuses(),
		Pending:    x.PendingRequests(),
		StartedAt:  x.startedAt,
	}
	if res := x.Result(); res != nil {
		snap.Output = res.Output
		if res.Err != nil {
			snap.Error = res.Err.Error()
		}
		finished := res.FinishedAt
		snap.FinishedAt = &finished
	}
	return snap
}

// Detach 后台丢弃事件流，调用方改用 History 或事件总线观察运行
func (x *Execution) Detach() {
	x.detached.Do(func() {
		go func() {
			for range x.queue.Out() {
			}
		}()
	})
}

// emit 追加事件：分配序号、记录历史、转发总线
// 持锁保证历史、事件流、总线三处顺序一致
func (x *Execution) emit(ev realtime.Event) {
	x.mu.Lock()
	defer x.mu.Unlock()
	ev, ok := x.queue.Push(ev)
	if !ok {
		return
	}
	x.history = append(x.history, ev)
	if x.bus != nil {
		x.bus.Publish(ev)
	}
}

func (x *Execution) setRunStatus(status types.RunStatus) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.status == status || !x.status.CanTransitionTo(status) {
		return
	}
	x.status = status
}

// complete 记录结果并关闭事件流
func (x *Execution) complete(res *Result) {
	x.mu.Lock()
	x.result = res
	x.mu.Unlock()
	x.queue.Close()
	close(x.done)
}
