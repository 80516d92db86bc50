package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/weitingzhao/bifrost-trader/internal/domain"
	"github.com/weitingzhao/bifrost-trader/pkg/api"
)

var orderLog = logrus.WithField("component", "orders")

// OrderTicket 下单表单的原始输入（未经校验的字符串）
type OrderTicket struct {
	Symbol    string
	Side      domain.Side
	Quantity  string
	OrderType domain.OrderType
	Price     string
}

// OrderRefresher 下单成功后需要触发的刷新能力
type OrderRefresher interface {
	RefreshOrders(ctx context.Context)
	RefreshAccount(ctx context.Context)
}

// OrderService 订单提交与撤销。
// 关键约定：成功 = 通知 + 刷新；失败 = 只通知，不刷新 ——
// 失败时服务端状态没有变化，刷新只会白白多打一轮请求。
type OrderService struct {
	client   TradingAPI
	notifier Notifier
	refresh  OrderRefresher
}

// NewOrderService 创建订单服务
func NewOrderService(client TradingAPI, notifier Notifier, refresh OrderRefresher) *OrderService {
	return &OrderService{
		client:   client,
		notifier: notifier,
		refresh:  refresh,
	}
}

// buildRequest 校验表单并组装请求。
// 本地校验失败直接返回错误，不会发出任何 HTTP 请求。
func buildRequest(ticket OrderTicket) (api.OrderRequest, error) {
	var req api.OrderRequest

	symbol := strings.ToUpper(strings.TrimSpace(ticket.Symbol))
	if symbol == "" {
		return req, fmt.Errorf("标的代码不能为空")
	}

	qty, err := strconv.Atoi(strings.TrimSpace(ticket.Quantity))
	if err != nil || qty <= 0 {
		return req, fmt.Errorf("数量必须是正整数")
	}

	req = api.OrderRequest{
		Symbol:    symbol,
		Side:      ticket.Side,
		Quantity:  qty,
		OrderType: string(ticket.OrderType),
	}

	// 限价/止损单需要价格；市价单忽略价格输入，Price 保持 nil，
	// 序列化后为 "price": null
	if ticket.OrderType == domain.OrderTypeLimit || ticket.OrderType == domain.OrderTypeStop {
		price, err := strconv.ParseFloat(strings.TrimSpace(ticket.Price), 64)
		if err != nil || price <= 0 {
			return req, fmt.Errorf("限价单需要有效的价格")
		}
		if ticket.OrderType == domain.OrderTypeStop {
			req.StopPrice = &price
		} else {
			req.Price = &price
		}
	}

	return req, nil
}

// Submit 提交订单。
// 返回值仅表示"是否需要清空表单"（提交成功清空，失败保留输入）。
func (s *OrderService) Submit(ctx context.Context, ticket OrderTicket) bool {
	req, err := buildRequest(ticket)
	if err != nil {
		s.notifier.Notify(NotifyWarning, err.Error())
		return false
	}

	order, err := s.client.PlaceOrder(ctx, req)
	if err != nil {
		s.notifyError("下单失败", err)
		return false
	}

	orderLog.Infof("✅ 下单成功: %s %s %d %s", order.Side, order.Symbol, order.Quantity, order.OrderID)
	s.notifier.Notify(NotifySuccess,
		fmt.Sprintf("下单成功: %s %d %s", order.Side, order.Quantity, order.Symbol))

	// 成交回报最终会通过推送通道到达，但推送只是失效信号，
	// 这里立刻拉一次给用户即时反馈
	s.refresh.RefreshOrders(ctx)
	s.refresh.RefreshAccount(ctx)
	return true
}

// Cancel 撤销订单
func (s *OrderService) Cancel(ctx context.Context, orderID string) {
	if strings.TrimSpace(orderID) == "" {
		return
	}

	if err := s.client.CancelOrder(ctx, orderID); err != nil {
		s.notifyError("撤单失败", err)
		return
	}

	orderLog.Infof("订单已撤销: %s", orderID)
	s.notifier.Notify(NotifySuccess, fmt.Sprintf("订单已撤销: %s", orderID))
	s.refresh.RefreshOrders(ctx)
	s.refresh.RefreshAccount(ctx)
}

// notifyError 失败只通知，不触发刷新。
// 业务错误（带状态码）把服务端的原话带给用户，传输错误给通用提示。
func (s *OrderService) notifyError(prefix string, err error) {
	if apiErr, ok := api.AsAPIError(err); ok && apiErr.Message != "" {
		s.notifier.Notify(NotifyDanger, fmt.Sprintf("%s: %s", prefix, apiErr.Message))
		return
	}
	orderLog.Errorf("%s: %v", prefix, err)
	s.notifier.Notify(NotifyDanger, fmt.Sprintf("%s: 请求未能送达服务器", prefix))
}
