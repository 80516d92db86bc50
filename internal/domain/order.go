package domain

import (
	"time"
)

// Side 订单方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"   // 待成交
	OrderStatusFilled    OrderStatus = "FILLED"    // 已成交
	OrderStatusCancelled OrderStatus = "CANCELLED" // 已取消
	OrderStatusRejected  OrderStatus = "REJECTED"  // 已拒绝
)

// OrderType 订单类型
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

// Order 订单视图模型。
// 每次刷新用服务端返回的列表整体替换，不做字段级合并，
// 保证界面上不会出现新旧字段混杂的订单。
type Order struct {
	OrderID   string      `json:"order_id"`
	Symbol    string      `json:"symbol"`
	Side      Side        `json:"side"`
	Quantity  int         `json:"quantity"`
	OrderType OrderType   `json:"order_type"`
	Price     *float64    `json:"price,omitempty"` // 市价单为 nil
	StopPrice *float64    `json:"stop_price,omitempty"`
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

// IsCancellable 只有待成交订单可以撤单
func (o *Order) IsCancellable() bool {
	return o.Status == OrderStatusPending
}

// IsFinal 检查订单是否为终态（终态订单不会再变化）
func (o *Order) IsFinal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// BadgeColor 徽章颜色（对应界面上的语义色）
type BadgeColor string

const (
	BadgeSuccess   BadgeColor = "success"
	BadgeWarning   BadgeColor = "warning"
	BadgeSecondary BadgeColor = "secondary"
	BadgeDanger    BadgeColor = "danger"
)

// statusColors 状态到徽章颜色的固定映射
var statusColors = map[OrderStatus]BadgeColor{
	OrderStatusFilled:    BadgeSuccess,
	OrderStatusPending:   BadgeWarning,
	OrderStatusCancelled: BadgeSecondary,
	OrderStatusRejected:  BadgeDanger,
}

// StatusColor 返回状态徽章颜色。
// 未知状态一律返回 secondary，绝不报错，保证渲染总能完成。
func StatusColor(status OrderStatus) BadgeColor {
	if c, ok := statusColors[status]; ok {
		return c
	}
	return BadgeSecondary
}

// SideColor 返回方向徽章颜色：BUY 为 success，其余（含 SELL）为 danger
func SideColor(side Side) BadgeColor {
	if side == SideBuy {
		return BadgeSuccess
	}
	return BadgeDanger
}
