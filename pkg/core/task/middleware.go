package task

import (
	"log/slog"
	"time"
)

// Middleware 包装执行函数，可在执行前后插入逻辑（对外导出）
type Middleware func(next Func) Func

// Chain 按顺序套上中间件，第一个中间件在最外层
func Chain(fn Func, mws ...Middleware) Func {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			fn = mws[i](fn)
		}
	}
	return fn
}

// LoggingMiddleware 记录每次执行的开始、结束、耗时与错误
// 日志写入 ctx.Logger()，带运行与节点属性；审批挂起单独记录
func LoggingMiddleware() Middleware {
	return func(next Func) Func {
		return func(ctx *Context, in Inputs) (any, error) {
			logger := ctx.Logger()
			logger.Debug("▶️ 节点开始执行", "attempt", ctx.Attempt, "params", in.Names())
			start := time.Now()
			out, err := next(ctx, in)
			elapsed := time.Since(start)
			_, parked := AsApprovalRequest(err)
			switch {
			case err == nil:
				logger.Info("✅ 节点执行完成", "attempt", ctx.Attempt, "elapsed", elapsed)
			case parked:
				logger.Info("✋ 节点等待审批", "elapsed", elapsed)
			default:
				logger.Warn("❌ 节点执行失败", "attempt", ctx.Attempt, "elapsed", elapsed, slog.Any("error", err))
			}
			return out, err
		}
	}
}
