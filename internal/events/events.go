package events

import (
	"encoding/json"
	"time"

	"github.com/weitingzhao/bifrost-trader/internal/domain"
)

// EventType 实时通道消息类型
type EventType string

const (
	EventMarketData      EventType = "market_data"      // 行情推送（带数据）
	EventOrderUpdate     EventType = "order_update"     // 订单变化（只作失效信号）
	EventPortfolioUpdate EventType = "portfolio_update" // 账户变化（只作失效信号）
	EventPong            EventType = "pong"             // 心跳应答
)

// Envelope 实时通道消息信封：{type, data, timestamp}
type Envelope struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// MarketDataEvent 行情推送事件：symbol -> 行情快照
type MarketDataEvent struct {
	Quotes     map[string]domain.Quote
	ReceivedAt time.Time
}

// OrderUpdateEvent 订单变化事件。
// 推送 payload 不用于渲染，仅触发一次订单列表的 REST 重新拉取，
// 所以这里不携带任何订单字段。
type OrderUpdateEvent struct {
	ReceivedAt time.Time
}

// PortfolioUpdateEvent 账户变化事件，同样只作失效信号
type PortfolioUpdateEvent struct {
	ReceivedAt time.Time
}

// ConnectionStateEvent 连接状态变化事件
type ConnectionStateEvent struct {
	State      domain.ConnectionState
	ReceivedAt time.Time
}
