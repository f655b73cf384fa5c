package handler

import (
	"context"

	"github.com/LENAX/agentflow/pkg/core/engine"
	"github.com/LENAX/agentflow/pkg/core/realtime"
)

// follow 先回放历史再转发实时事件，终止事件之后关闭
// 先订阅总线再读历史，按序号去重，保证不漏不重
func follow(ctx context.Context, bus *realtime.Bus, x *engine.Execution, after int64) (<-chan realtime.Event, error) {
	live, err := bus.Subscribe(ctx, realtime.ForRun(x.ID()))
	if err != nil {
		return nil, err
	}

	out := make(chan realtime.Event, 16)
	go func() {
		defer close(out)
		last := after
		// send 返回 false 表示应结束
		send := func(ev realtime.Event) bool {
			if ev.Sequence <= last {
				return true
			}
			last = ev.Sequence
			select {
			case out <- ev:
			case <-ctx.Done():
				return false
			}
			return !ev.Type.IsTerminal()
		}

		for _, ev := range x.History() {
			if !send(ev) {
				return
			}
		}
		for {
			select {
			case ev, ok := <-live:
				if !ok || !send(ev) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
