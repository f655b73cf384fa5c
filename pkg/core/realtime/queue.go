package realtime

import (
	"sync"
	"sync/atomic"
)

// EventQueue 无界有序事件队列（对外导出）
// 写入方永不阻塞，内部协程按写入顺序投递到输出通道；
// 写入方（调度循环）因此不会被慢消费者拖住
type EventQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []Event
	closed  bool
	aborted bool
	abort   chan struct{}
	out     chan Event
	seq     int64
	relay   bool // 转发模式：保留事件原有序号

	// 统计
	totalIn  int64 // atomic，总入队数
	totalOut int64 // atomic，总出队数
}

// NewEventQueue 创建事件队列（对外导出）
// buffer: 输出通道缓冲大小
func NewEventQueue(buffer int) *EventQueue {
	return newEventQueue(buffer, false)
}

// NewRelayQueue 创建转发队列，不改写事件序号（对外导出）
func NewRelayQueue(buffer int) *EventQueue {
	return newEventQueue(buffer, true)
}

func newEventQueue(buffer int, relay bool) *EventQueue {
	if buffer < 0 {
		buffer = 0
	}
	q := &EventQueue{
		abort: make(chan struct{}),
		out:   make(chan Event, buffer),
		relay: relay,
	}
	q.cond = sync.NewCond(&q.mu)
	go q.pump()
	return q
}

// Push 入队（非阻塞）
// 非转发模式下为事件分配递增序号；队列已关闭时返回 false
func (q *EventQueue) Push(ev Event) (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.aborted {
		return ev, false
	}
	if !q.relay {
		q.seq++
		ev.Sequence = q.seq
	}
	q.items = append(q.items, ev)
	atomic.AddInt64(&q.totalIn, 1)
	q.cond.Signal()
	return ev, true
}

// Out 输出通道，队列关闭且排空后关闭
func (q *EventQueue) Out() <-chan Event {
	return q.out
}

// Close 停止写入，已入队事件投递完后关闭输出通道
func (q *EventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Abort 丢弃未投递事件并立即关闭输出通道
func (q *EventQueue) Abort() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.aborted {
		return
	}
	q.aborted = true
	q.items = nil
	close(q.abort)
	q.cond.Broadcast()
}

// Len 未投递事件数
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats 获取统计信息
func (q *EventQueue) Stats() (totalIn, totalOut int64) {
	return atomic.LoadInt64(&q.totalIn), atomic.LoadInt64(&q.totalOut)
}

func (q *EventQueue) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed && !q.aborted {
			q.cond.Wait()
		}
		if q.aborted || len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		ev := q.items[0]
		q.items[0] = Event{}
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- ev:
			atomic.AddInt64(&q.totalOut, 1)
		case <-q.abort:
			return
		}
	}
}
