package stream

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/weitingzhao/bifrost-trader/internal/events"
)

var log = logrus.WithField("component", "stream")

// MarketDataHandler 行情推送处理器接口
type MarketDataHandler interface {
	OnMarketData(ctx context.Context, event *events.MarketDataEvent) error
}

// OrderUpdateHandler 订单变化处理器接口
type OrderUpdateHandler interface {
	OnOrderUpdate(ctx context.Context, event *events.OrderUpdateEvent) error
}

// PortfolioUpdateHandler 账户变化处理器接口
type PortfolioUpdateHandler interface {
	OnPortfolioUpdate(ctx context.Context, event *events.PortfolioUpdateEvent) error
}

// ConnectionStateHandler 连接状态变化处理器接口
type ConnectionStateHandler interface {
	OnConnectionState(ctx context.Context, event *events.ConnectionStateEvent) error
}

// TradingDataStream 实时交易数据流接口
type TradingDataStream interface {
	OnMarketData(handler MarketDataHandler)
	OnOrderUpdate(handler OrderUpdateHandler)
	OnPortfolioUpdate(handler PortfolioUpdateHandler)
	OnConnectionState(handler ConnectionStateHandler)

	// Connect 连接到实时通道
	Connect(ctx context.Context) error

	// Close 关闭连接
	Close() error
}

// HandlerList 处理器列表（按事件类型参数化）
type HandlerList[E any] struct {
	handlers []func(ctx context.Context, event E) error
	mu       sync.RWMutex
}

// NewHandlerList 创建新的处理器列表
func NewHandlerList[E any]() *HandlerList[E] {
	return &HandlerList[E]{}
}

// Add 添加处理器
func (h *HandlerList[E]) Add(fn func(ctx context.Context, event E) error) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, fn)
}

// Snapshot 返回处理器快照（遍历时不持锁）
func (h *HandlerList[E]) Snapshot() []func(ctx context.Context, event E) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]func(ctx context.Context, event E) error, len(h.handlers))
	copy(out, h.handlers)
	return out
}

// Emit 串行触发所有处理器。
// 串行执行保证单写者语义：同一份视图状态不会被并发回调修改。
func (h *HandlerList[E]) Emit(ctx context.Context, event E) {
	for i, fn := range h.Snapshot() {
		func(idx int, call func(ctx context.Context, event E) error) {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("处理器 %d panic: %v", idx, r)
				}
			}()
			if err := call(ctx, event); err != nil {
				log.Errorf("处理器 %d 执行失败: %v", idx, err)
			}
		}(i, fn)
	}
}

// Count 返回处理器数量（用于调试）
func (h *HandlerList[E]) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers)
}
