package xfault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xcachekit/pkg/context/xctx"
	"github.com/omeyang/xcachekit/pkg/observability/xlog"
)

// State 熔断器状态
type State = gobreaker.State

// 熔断器状态常量
const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// Stats 错误统计快照
type Stats struct {
	TotalErrors  int64
	ByKind       map[Kind]int64
	BySeverity   map[Severity]int64
	ErrorRate    float64 // 当前滑动窗口内的失败率
	Requests     uint32  // 当前滑动窗口内的请求数
	CircuitState State
	HistorySize  int
	LastErrorAt  time.Time
}

// Handler 错误处理器。并发安全，必须通过 [NewHandler] 创建。
type Handler struct {
	opts   options
	logger xlog.Logger

	cb atomic.Pointer[gobreaker.TwoStepCircuitBreaker[struct{}]]

	mu          sync.Mutex
	total       int64
	byKind      map[Kind]int64
	bySeverity  map[Severity]int64
	lastErrorAt time.Time
	seq         uint64
	history     *simplelru.LRU[uint64, *Error]
}

// NewHandler 创建错误处理器
func NewHandler(opts ...Option) (*Handler, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.historySize <= 0 {
		return nil, ErrInvalidHistorySize
	}
	if o.failureThreshold <= 0 || o.failureThreshold > 1 {
		return nil, ErrInvalidThreshold
	}

	history, err := simplelru.NewLRU[uint64, *Error](o.historySize, nil)
	if err != nil {
		return nil, fmt.Errorf("xfault: create history: %w", err)
	}

	logger := o.logger
	if logger == nil {
		logger = xlog.Default()
	}

	h := &Handler{
		opts:       o,
		logger:     logger.With(xlog.Component(o.name)),
		byKind:     make(map[Kind]int64),
		bySeverity: make(map[Severity]int64),
		history:    history,
	}
	h.cb.Store(h.newBreaker())
	return h, nil
}

func (h *Handler) newBreaker() *gobreaker.TwoStepCircuitBreaker[struct{}] {
	threshold := h.opts.failureThreshold
	minRequests := h.opts.minRequests
	return gobreaker.NewTwoStepCircuitBreaker[struct{}](gobreaker.Settings{
		Name:         h.opts.name,
		MaxRequests:  defaultHalfOpenRequests,
		Interval:     h.opts.window,
		BucketPeriod: h.opts.bucketPeriod,
		Timeout:      h.opts.openTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < minRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= threshold
		},
		// 调用方取消与参数错误不代表下游故障
		IsExcluded: func(err error) bool {
			if errors.Is(err, context.Canceled) {
				return true
			}
			var fe *Error
			return errors.As(err, &fe) && fe.Kind == KindValidation
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			h.logger.Warn(context.Background(), "circuit state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
}

func (h *Handler) breaker() *gobreaker.TwoStepCircuitBreaker[struct{}] {
	return h.cb.Load()
}

// Handle 处理一次失败：分类、记录统计与历史、计入熔断器、记录日志并通知 OnError。
//
// 返回包装后的 *Error；err 为 nil 时返回 nil。
// 已经是 *Error 的错误（例如 ExecuteWithRetry 的返回值）视为已处理，原样返回且不重复计数。
func (h *Handler) Handle(ctx context.Context, err error, op, key string) error {
	if err == nil {
		return nil
	}
	if fe, ok := err.(*Error); ok { //nolint:errorlint // 只识别直接传入的已处理错误
		return fe
	}
	fe := h.record(ctx, err, op, key)
	if done, aerr := h.breaker().Allow(); aerr == nil {
		done(fe)
	}
	return fe
}

// Record 与 Handle 相同地分类、记录并通知，但不计入熔断器。
//
// 用于本地状态错误（例如缓存已关闭），这类错误与下游健康状况无关。
func (h *Handler) Record(ctx context.Context, err error, op, key string) error {
	if err == nil {
		return nil
	}
	if fe, ok := err.(*Error); ok { //nolint:errorlint // 只识别直接传入的已处理错误
		return fe
	}
	return h.record(ctx, err, op, key)
}

// RecordSuccess 向熔断器报告一次成功。
//
// 仅通过 Handle 上报失败的调用方，应在成功路径调用此方法，使失败率反映真实比例。
func (h *Handler) RecordSuccess() {
	if done, err := h.breaker().Allow(); err == nil {
		done(nil)
	}
}

// record 分类并记录错误，不计入熔断器
func (h *Handler) record(ctx context.Context, err error, op, key string) *Error {
	if ctx == nil {
		ctx = context.Background()
	}
	c := Classify(err)
	fe := &Error{
		Kind:          c.Kind,
		Severity:      c.Severity,
		Recoverable:   c.Recoverable,
		Op:            op,
		Key:           key,
		CorrelationID: uuid.NewString(),
		Time:          h.opts.now(),
		Err:           err,
	}

	h.mu.Lock()
	h.total++
	h.byKind[fe.Kind]++
	h.bySeverity[fe.Severity]++
	h.lastErrorAt = fe.Time
	h.seq++
	h.history.Add(h.seq, fe)
	h.mu.Unlock()

	if cctx, cerr := xctx.WithCorrelationID(ctx, fe.CorrelationID); cerr == nil {
		ctx = cctx
	}
	h.log(ctx, fe)
	h.notify(ctx, fe)
	return fe
}

func (h *Handler) log(ctx context.Context, fe *Error) {
	attrs := []slog.Attr{
		xlog.Operation(fe.Op),
		xlog.ErrorKind(string(fe.Kind)),
		xlog.Err(fe.Err),
	}
	if fe.Key != "" {
		attrs = append(attrs, xlog.Key(fe.Key))
	}
	switch fe.Severity {
	case SeverityHigh, SeverityCritical:
		h.logger.Error(ctx, "cache operation failed", attrs...)
	default:
		h.logger.Warn(ctx, "cache operation failed", attrs...)
	}
}

func (h *Handler) notify(ctx context.Context, fe *Error) {
	if h.opts.onError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error(ctx, "onError callback panicked", xlog.Err(fmt.Errorf("%v", r)))
		}
	}()
	h.opts.onError(ctx, fe)
}

// Stats 返回错误统计快照
func (h *Handler) Stats() Stats {
	cb := h.breaker()
	counts := cb.Counts()

	h.mu.Lock()
	defer h.mu.Unlock()

	s := Stats{
		TotalErrors:  h.total,
		ByKind:       make(map[Kind]int64, len(h.byKind)),
		BySeverity:   make(map[Severity]int64, len(h.bySeverity)),
		Requests:     counts.Requests,
		CircuitState: cb.State(),
		HistorySize:  h.history.Len(),
		LastErrorAt:  h.lastErrorAt,
	}
	for k, v := range h.byKind {
		s.ByKind[k] = v
	}
	for k, v := range h.bySeverity {
		s.BySeverity[k] = v
	}
	if counts.Requests > 0 {
		s.ErrorRate = float64(counts.TotalFailures) / float64(counts.Requests)
	}
	return s
}

// History 按从旧到新返回错误历史快照
func (h *Handler) History() []*Error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.history.Values()
}

// ResetStats 清空统计与历史，并以关闭状态重建熔断器
func (h *Handler) ResetStats() {
	h.mu.Lock()
	h.total = 0
	clear(h.byKind)
	clear(h.bySeverity)
	h.lastErrorAt = time.Time{}
	h.history.Purge()
	h.mu.Unlock()

	h.cb.Store(h.newBreaker())
}

// State 返回熔断器状态
func (h *Handler) State() State {
	return h.breaker().State()
}

// IsOpen 熔断器是否处于打开状态
func (h *Handler) IsOpen() bool {
	return h.State() == StateOpen
}
