package engine

import (
	"go.uber.org/zap"

	"github.com/BaSui01/fetchflow/provider"
	"github.com/BaSui01/fetchflow/types"
)

// =============================================================================
// 🔄 协作式完成入口
// =============================================================================
// 协作式（事件循环）后端的续体入口。线程化平台上由 IO worker 循环完成
// 的工作，在协作式平台上被拆分为下面三个完成回调：AsyncProvider 在其
// 异步操作结束时从引擎所属 goroutine 调用它们。
// =============================================================================

var _ provider.Completions = (*Engine)(nil)

// OnHeadResponse 处理 open-and-size 阶段的完成：记录内容大小；若已
// 绑定缓冲区则立即发起首个范围读取（跳过 OPENED 回合），否则将请求
// 放回 user-outgoing 以便回调携带 Opened 状态通知用户提供缓冲区。
func (e *Engine) OnHeadResponse(slot types.Handle, contentSize int64) {
	if !e.valid {
		return
	}
	it := e.pool.Lookup(slot)
	if it == nil {
		return
	}
	it.IO.ContentSize = contentSize
	if it.Buffer != nil {
		e.channels[it.Channel].StartAsyncRead(slot, it)
		return
	}
	e.channels[it.Channel].PushOutgoing(slot)
}

// OnRangeResponse 处理一次范围读取的完成：推进 io 侧进度，内容耗尽时
// 标记结束，并将请求放回 user-outgoing 等待回调。
func (e *Engine) OnRangeResponse(slot types.Handle, fetched int64) {
	if !e.valid {
		return
	}
	it := e.pool.Lookup(slot)
	if it == nil {
		return
	}
	it.IO.FetchedSize = fetched
	it.IO.ContentOffset += fetched
	if fetched == 0 || (it.IO.ContentSize > 0 && it.IO.ContentOffset >= it.IO.ContentSize) {
		it.IO.Finished = true
	}
	e.channels[it.Channel].PushOutgoing(slot)
}

// OnFailed 处理任一阶段的失败：标记失败与结束，并将请求放回
// user-outgoing，最后一次回调将携带 Failed+Finished。
func (e *Engine) OnFailed(slot types.Handle, code types.ErrorCode) {
	if !e.valid {
		return
	}
	it := e.pool.Lookup(slot)
	if it == nil {
		return
	}
	e.logger.Debug("async fetch failed",
		zap.Uint32("slot", uint32(slot)),
		zap.String("code", string(code)),
	)
	it.IO.Failed = true
	it.IO.FailCode = code
	it.IO.Finished = true
	e.channels[it.Channel].PushOutgoing(slot)
}
