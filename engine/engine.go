// Package engine exposes the public surface of the FetchFlow fetch
// engine: setup, shutdown, request submission and the per-frame DoWork
// pump that drives the channel state machines and delivers response
// callbacks.
package engine

import (
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/fetchflow/internal/channel"
	"github.com/BaSui01/fetchflow/internal/metrics"
	"github.com/BaSui01/fetchflow/internal/pool"
	"github.com/BaSui01/fetchflow/provider"
	"github.com/BaSui01/fetchflow/types"
)

// =============================================================================
// 🚀 引擎
// =============================================================================

// Engine 异步文件/URL 抓取引擎。
//
// 引擎绑定到调用 New 的 goroutine：除响应回调外的所有公开方法都只能
// 从该 goroutine 调用，回调也只会在 DoWork 执行期间从该 goroutine 发出。
// 不同 goroutine 上可以各自持有独立的引擎实例。
type Engine struct {
	cfg      types.EngineConfig
	pool     *pool.Pool
	channels []*channel.Channel

	valid      bool
	inCallback bool

	collector *metrics.Collector
	logger    *zap.Logger
}

// Option 配置引擎的可选项
type Option func(*options)

type options struct {
	async      provider.AsyncProvider
	logger     *zap.Logger
	registerer prometheus.Registerer
	namespace  string
}

// WithAsyncProvider 切换到协作式（事件循环）后端：通道不再启动 IO
// worker，而是通过 AsyncProvider 的续体回调推进请求。
func WithAsyncProvider(p provider.AsyncProvider) Option {
	return func(o *options) { o.async = p }
}

// WithLogger 设置自定义 zap logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegisterer 设置 Prometheus 注册表（默认使用全局注册表）
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithNamespace 设置指标命名空间（默认 "fetchflow"）
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// New 创建引擎：分配请求池与所有通道（含 IO worker）。此后所有请求
// 路径上的操作都不再分配内存。prov 在协作模式（WithAsyncProvider）下
// 可以为 nil。
func New(cfg types.EngineConfig, prov provider.Provider, opts ...Option) (*Engine, error) {
	o := &options{
		logger:    zap.NewNop(),
		namespace: "fetchflow",
	}
	for _, opt := range opts {
		opt(o)
	}

	if clamped := cfg.Normalize(); clamped {
		o.logger.Warn("num_channels clamped", zap.Int("max_channels", types.MaxChannels))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if prov == nil && o.async == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "an IO provider is required")
	}

	logger := o.logger.With(
		zap.String("component", "engine"),
		zap.String("engine_id", uuid.NewString()[:8]),
	)

	e := &Engine{
		cfg:       cfg,
		pool:      pool.New(cfg.MaxRequests),
		collector: metrics.NewCollector(o.namespace, o.registerer, o.logger),
		logger:    logger,
	}

	e.channels = make([]*channel.Channel, cfg.NumChannels)
	for i := 0; i < cfg.NumChannels; i++ {
		e.channels[i] = channel.New(i, channel.Config{
			Pool:      e.pool,
			Provider:  prov,
			Async:     o.async,
			MaxItems:  cfg.MaxRequests,
			NumLanes:  cfg.NumLanes,
			Collector: e.collector,
			Logger:    o.logger,
		})
	}
	if o.async != nil {
		o.async.Bind(e)
	}
	e.valid = true

	logger.Info("engine initialized",
		zap.Int("max_requests", cfg.MaxRequests),
		zap.Int("num_channels", cfg.NumChannels),
		zap.Int("num_lanes", cfg.NumLanes),
		zap.Bool("cooperative", o.async != nil),
	)
	return e, nil
}

// Close 关闭引擎：逐个 join IO worker，在途请求不再收到任何回调。
// 请求池不做显式释放，随引擎对象一起回收。幂等。
func (e *Engine) Close() error {
	if !e.valid {
		return nil
	}
	e.valid = false
	for _, c := range e.channels {
		c.Discard()
	}
	e.logger.Info("engine closed")
	return nil
}

// Valid 报告引擎是否可用
func (e *Engine) Valid() bool {
	return e.valid
}

// Config 返回生效的引擎配置（含默认值与钳制）
func (e *Engine) Config() types.EngineConfig {
	return e.cfg
}

// MaxPath 返回路径/URL 的最大长度
func (e *Engine) MaxPath() int {
	return types.MaxPath
}

// MaxUserDataBytes 返回内联用户数据块的最大字节数
func (e *Engine) MaxUserDataBytes() int {
	return types.MaxUserDataBytes
}

// =============================================================================
// 📨 请求提交
// =============================================================================

// Send 校验请求、分配请求池槽位并放入目标通道的 sent 队列。
// 被拒绝时返回 InvalidHandle 与结构化错误，不会产生任何回调。
func (e *Engine) Send(req *types.Request) (types.Handle, error) {
	if !e.valid {
		return types.InvalidHandle, types.NewError(types.ErrEngineClosed, "engine is closed")
	}
	if err := e.validateRequest(req); err != nil {
		e.collector.RecordReject("validation")
		return types.InvalidHandle, err
	}
	slot := e.pool.Alloc(req)
	if slot == types.InvalidHandle {
		e.logger.Warn("send: request pool exhausted", zap.String("path", req.Path))
		e.collector.RecordReject("pool_exhausted")
		return types.InvalidHandle, types.NewError(types.ErrPoolExhausted, "too many active requests")
	}
	if !e.channels[req.Channel].Send(slot) {
		e.pool.Free(slot)
		e.collector.RecordReject("queue_full")
		return types.InvalidHandle, types.NewError(types.ErrQueueFull, "channel sent queue is full")
	}
	e.collector.RecordSend(channelLabel(req.Channel))
	return slot, nil
}

func (e *Engine) validateRequest(req *types.Request) error {
	if req == nil {
		return types.NewError(types.ErrInvalidRequest, "request is nil")
	}
	if req.Channel < 0 || req.Channel >= e.cfg.NumChannels {
		return types.NewError(types.ErrChannelOutOfRange, "request channel out of range")
	}
	if req.Path == "" {
		return types.NewError(types.ErrInvalidRequest, "request path is empty")
	}
	if len(req.Path) > types.MaxPath-1 {
		return types.NewError(types.ErrPathTooLong, "request path too long")
	}
	if req.Callback == nil {
		return types.NewError(types.ErrCallbackMissing, "request callback missing")
	}
	if len(req.UserData) > types.MaxUserDataBytes {
		return types.NewError(types.ErrUserDataTooLarge, "request user data too large")
	}
	return nil
}

// =============================================================================
// ⚙️ 泵循环
// =============================================================================

// DoWork 驱动所有通道各执行两遍完整的状态机流转（双泵）：刚从 IO
// worker 返回且仍有数据待取的请求可以在同一次调用内重新进入 worker，
// 将单块数据的可见延迟减半。所有响应回调都在本调用内发出。
func (e *Engine) DoWork() {
	if !e.valid {
		return
	}
	if e.inCallback {
		panic("fetchflow: DoWork called from inside a response callback")
	}
	e.inCallback = true
	for pass := 0; pass < 2; pass++ {
		for _, c := range e.channels {
			c.DoWork()
		}
	}
	e.inCallback = false
	e.collector.RecordPoolFreeSlots(e.pool.FreeCount())
}

// =============================================================================
// 🎛️ 请求控制
// =============================================================================

// HandleValid 报告句柄是否仍指向一个存活请求。已结束并被复用的槽位
// 因代数不匹配返回 false。
func (e *Engine) HandleValid(h types.Handle) bool {
	if !e.valid || h == types.InvalidHandle {
		return false
	}
	return e.pool.Lookup(h) != nil
}

// Pause 暂停一个进行中的请求。在下一次 DoWork 生效；暂停期间每次
// DoWork 都会发出一个 Paused 回调。对无效句柄为空操作。
func (e *Engine) Pause(h types.Handle) {
	if !e.valid {
		return
	}
	if it := e.pool.Lookup(h); it != nil {
		it.User.Pause = true
		it.User.Continue = false
	}
}

// Continue 恢复一个已暂停的请求。对无效句柄为空操作。
func (e *Engine) Continue(h types.Handle) {
	if !e.valid {
		return
	}
	if it := e.pool.Lookup(h); it != nil {
		it.User.Continue = true
		it.User.Pause = false
	}
}

// Cancel 取消一个进行中的请求。在下一次 DoWork 生效：请求转入失败
// 终态，最后一次回调携带 Failed+Cancelled+Finished。对无效句柄为空操作。
func (e *Engine) Cancel(h types.Handle) {
	if !e.valid {
		return
	}
	if it := e.pool.Lookup(h); it != nil {
		it.User.Pause = false
		it.User.Continue = false
		it.User.Cancel = true
	}
}

// =============================================================================
// 🧺 缓冲区绑定
// =============================================================================

// BindBuffer 将调用方拥有的缓冲区绑定到请求。只能在响应回调执行期间
// 调用，且当前必须没有已绑定的缓冲区。
func (e *Engine) BindBuffer(h types.Handle, buf []byte) error {
	if !e.valid {
		return types.NewError(types.ErrEngineClosed, "engine is closed")
	}
	if !e.inCallback {
		panic("fetchflow: BindBuffer must be called from inside a response callback")
	}
	it := e.pool.Lookup(h)
	if it == nil {
		return types.NewError(types.ErrInvalidRequest, "stale or invalid handle")
	}
	if it.Buffer != nil {
		return types.NewError(types.ErrInvalidRequest, "a buffer is already bound")
	}
	it.Buffer = buf
	return nil
}

// UnbindBuffer 解绑并返回之前绑定的缓冲区。只能在响应回调执行期间
// 调用。对无效句柄返回 nil。
func (e *Engine) UnbindBuffer(h types.Handle) []byte {
	if !e.valid {
		return nil
	}
	if !e.inCallback {
		panic("fetchflow: UnbindBuffer must be called from inside a response callback")
	}
	it := e.pool.Lookup(h)
	if it == nil {
		return nil
	}
	prev := it.Buffer
	it.Buffer = nil
	return prev
}

// =============================================================================
// 📊 统计
// =============================================================================

// ChannelStats 单个通道的瞬时状态
type ChannelStats struct {
	LanesInUse int `json:"lanes_in_use"`
	Backlog    int `json:"backlog"`
}

// Stats 引擎瞬时统计
type Stats struct {
	FreeSlots int            `json:"free_slots"`
	Channels  []ChannelStats `json:"channels"`
}

// GetStats 返回引擎当前的瞬时统计信息
func (e *Engine) GetStats() Stats {
	s := Stats{
		FreeSlots: e.pool.FreeCount(),
		Channels:  make([]ChannelStats, len(e.channels)),
	}
	for i, c := range e.channels {
		s.Channels[i] = ChannelStats{
			LanesInUse: c.LanesInUse(),
			Backlog:    c.Backlog(),
		}
	}
	return s
}

func channelLabel(i int) string {
	// channel indices are clamped to MaxChannels, a tiny table beats
	// a strconv call on the send path
	return labels[i]
}

var labels = [types.MaxChannels]string{
	"0", "1", "2", "3", "4", "5", "6", "7",
	"8", "9", "10", "11", "12", "13", "14", "15",
}
