package engine

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/LENAX/agentflow/pkg/core/realtime"
)

// approvalGate 审批请求/响应登记（运行内）
// 调用方协程提交响应，调度协程取走已接受的响应，两者通过互斥锁交接
type approvalGate struct {
	mu          sync.Mutex
	outstanding map[string]realtime.ApprovalInfo // 请求ID -> 等待中的请求
	answered    map[string]bool
	accepted    []approvalResponse
	closed      bool
	wake        chan struct{}
}

// approvalResponse 已接受的审批决定
type approvalResponse struct {
	RequestID string
	NodeID    string
	Decision  any
}

func newApprovalGate() *approvalGate {
	return &approvalGate{
		outstanding: make(map[string]realtime.ApprovalInfo),
		answered:    make(map[string]bool),
		wake:        make(chan struct{}, 1),
	}
}

// open 登记新请求并分配ID
func (g *approvalGate) open(nodeID string, payload any) realtime.ApprovalInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	info := realtime.ApprovalInfo{RequestID: uuid.NewString(), NodeID: nodeID, Payload: payload}
	g.outstanding[info.RequestID] = info
	return info
}

// respond 校验并接受一批审批决定
// 先校验全部ID，任一无效则整批拒绝，不改变任何状态
func (g *approvalGate) respond(responses map[string]any) error {
	ids := make([]string, 0, len(responses))
	for id := range responses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		if g.answered[id] {
			return &ApprovalError{RequestID: id, Err: ErrDuplicateResponse}
		}
		if _, ok := g.outstanding[id]; !ok || g.closed {
			return &ApprovalError{RequestID: id, Err: ErrUnknownRequest}
		}
	}
	for _, id := range ids {
		info := g.outstanding[id]
		delete(g.outstanding, id)
		g.answered[id] = true
		g.accepted = append(g.accepted, approvalResponse{RequestID: id, NodeID: info.NodeID, Decision: responses[id]})
	}
	if len(ids) > 0 {
		select {
		case g.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

// take 取走已接受的响应（调度协程调用）
func (g *approvalGate) take() []approvalResponse {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.accepted
	g.accepted = nil
	return out
}

// pending 等待中的请求（按节点ID排序）
func (g *approvalGate) pending() []realtime.ApprovalInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]realtime.ApprovalInfo, 0, len(g.outstanding))
	for _, info := range g.outstanding {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// close 运行不再接受审批：丢弃等待中的请求与未处理的响应
func (g *approvalGate) close() []realtime.ApprovalInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	dropped := make([]realtime.ApprovalInfo, 0, len(g.outstanding))
	for id, info := range g.outstanding {
		dropped = append(dropped, info)
		delete(g.outstanding, id)
	}
	g.accepted = nil
	return dropped
}
