// Package executor 有界工作池，所有运行共享，节点主体在这里执行
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/LENAX/agentflow/pkg/logging"
)

// ErrPoolClosed 工作池已关闭
var ErrPoolClosed = errors.New("工作池已关闭")

const (
	maxGlobalWorkers = 1000  // 全局最大并发数上限
	defaultQueueSize = 10000 // 默认任务队列大小
)

// Job 待执行的作业（对外导出）
type Job struct {
	ID       string      // 作业标识，用于日志（通常为 runID/nodeID）
	Run      func()      // 作业主体
	OnReject func(error) // 工作池关闭导致作业未执行时回调（可选）
}

// Pool 工作池（对外导出）
type Pool struct {
	mu         sync.RWMutex
	maxWorkers int
	workerPool chan struct{} // 并发令牌
	taskQueue  chan *Job     // 待调度队列
	wg         sync.WaitGroup
	running    bool
	shutdown   chan struct{}
	stopped    chan struct{}
	logger     *slog.Logger

	active    int64 // atomic，执行中的作业数
	completed int64 // atomic，已完成作业数
	panics    int64 // atomic，作业panic次数
}

// NewPool 创建工作池（对外导出）
func NewPool(maxWorkers int, logger *slog.Logger) (*Pool, error) {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU() * 2
	}
	if maxWorkers > maxGlobalWorkers {
		return nil, fmt.Errorf("最大并发数不能超过 %d", maxGlobalWorkers)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pool{
		maxWorkers: maxWorkers,
		workerPool: make(chan struct{}, maxWorkers),
		taskQueue:  make(chan *Job, defaultQueueSize),
		shutdown:   make(chan struct{}),
		stopped:    make(chan struct{}),
		logger:     logger,
	}, nil
}

// Start 启动工作池（对外导出）
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	select {
	case <-p.shutdown:
		return
	default:
	}
	p.running = true
	go p.scheduler()
	p.logger.Info("✅ 工作池已启动", "max_workers", p.maxWorkers)
}

// Submit 提交作业（对外导出）
// 队列已满时阻塞，直到有空间或工作池关闭
func (p *Pool) Submit(job *Job) error {
	if job == nil || job.Run == nil {
		return fmt.Errorf("作业不能为空")
	}
	p.mu.RLock()
	running := p.running
	p.mu.RUnlock()
	if !running {
		return ErrPoolClosed
	}

	select {
	case p.taskQueue <- job:
		return nil
	case <-p.shutdown:
		return ErrPoolClosed
	}
}

// Shutdown 关闭工作池并等待执行中的作业结束（对外导出）
// 尚未开始的作业通过 OnReject 通知；ctx 到期后不再等待
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.shutdown)
	p.mu.Unlock()

	<-p.stopped
	p.drain()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("✅ 工作池已关闭", "completed", atomic.LoadInt64(&p.completed))
		return nil
	case <-ctx.Done():
		p.logger.Warn("工作池关闭超时，仍有作业在执行", "active", atomic.LoadInt64(&p.active))
		return fmt.Errorf("等待作业结束超时: %w", ctx.Err())
	}
}

// MaxWorkers 最大并发数
func (p *Pool) MaxWorkers() int {
	return p.maxWorkers
}

// Stats 统计信息：执行中、排队中、已完成
func (p *Pool) Stats() (active, queued, completed int64) {
	return atomic.LoadInt64(&p.active), int64(len(p.taskQueue)), atomic.LoadInt64(&p.completed)
}

func (p *Pool) scheduler() {
	defer close(p.stopped)
	for {
		select {
		case job := <-p.taskQueue:
			if !p.dispatch(job) {
				p.drain()
				return
			}
		case <-p.shutdown:
			p.drain()
			return
		}
	}
}

// dispatch 获取令牌后启动作业；工作池关闭时返回 false
func (p *Pool) dispatch(job *Job) bool {
	select {
	case p.workerPool <- struct{}{}:
		p.wg.Add(1)
		atomic.AddInt64(&p.active, 1)
		go p.execute(job)
		return true
	case <-p.shutdown:
		reject(job)
		return false
	}
}

func (p *Pool) drain() {
	for {
		select {
		case job := <-p.taskQueue:
			reject(job)
		default:
			return
		}
	}
}

func reject(job *Job) {
	if job.OnReject != nil {
		job.OnReject(ErrPoolClosed)
	}
}

func (p *Pool) execute(job *Job) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.panics, 1)
			p.logger.Error("❌ 作业panic", "job_id", job.ID, "panic", r)
		}
		atomic.AddInt64(&p.active, -1)
		atomic.AddInt64(&p.completed, 1)
		<-p.workerPool
		p.wg.Done()
	}()
	job.Run()
}
