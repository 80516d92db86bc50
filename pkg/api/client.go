// Package api 提供交易门户 REST API 客户端
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/weitingzhao/bifrost-trader/internal/domain"
)

// Client 交易门户 REST 客户端
type Client struct {
	rc *resty.Client
}

// NewClient 创建 REST 客户端。
// 不做自动重试：下单/撤单不是幂等操作，重试必须由调用方显式决定。
func NewClient(baseURL string) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")

	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "bifrost-trader-terminal/1.0")

	return &Client{rc: rc}
}

// OrderRequest 下单请求体。
// Price 用指针且不带 omitempty：市价单序列化为 "price": null，
// 服务端以此区分市价/限价。
type OrderRequest struct {
	Symbol    string      `json:"symbol"`
	Side      domain.Side `json:"side"`
	Quantity  int         `json:"quantity"`
	OrderType string      `json:"order_type"`
	Price     *float64    `json:"price"`
	StopPrice *float64    `json:"stop_price,omitempty"`
}

// APIError 服务端业务错误（非 2xx 且带 {error} 响应体）。
// 与传输层错误区分：传输层错误不会有 StatusCode。
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error (%d)", e.StatusCode)
}

// AsAPIError 尝试把错误解释为 APIError
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// parseError 从非 2xx 响应中提取 {error} 字段
func parseError(resp *resty.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(resp.Body(), &body)
	return &APIError{
		StatusCode: resp.StatusCode(),
		Message:    body.Error,
	}
}

// GetAccountSummary 获取账户概要
func (c *Client) GetAccountSummary(ctx context.Context) (domain.AccountSummary, error) {
	var out domain.AccountSummary
	resp, err := c.rc.R().SetContext(ctx).SetResult(&out).Get("/api/trading/account-summary")
	if err != nil {
		return out, errors.Wrap(err, "获取账户概要失败")
	}
	if !resp.IsSuccess() {
		return out, parseError(resp)
	}
	return out, nil
}

// GetActiveOrders 获取当前订单列表
func (c *Client) GetActiveOrders(ctx context.Context) ([]domain.Order, error) {
	var out struct {
		Orders []domain.Order `json:"orders"`
	}
	resp, err := c.rc.R().SetContext(ctx).SetResult(&out).Get("/api/trading/active-orders")
	if err != nil {
		return nil, errors.Wrap(err, "获取订单列表失败")
	}
	if !resp.IsSuccess() {
		return nil, parseError(resp)
	}
	return out.Orders, nil
}

// GetMarketData 获取全部行情（symbol -> 行情快照）
func (c *Client) GetMarketData(ctx context.Context) (map[string]domain.Quote, error) {
	out := make(map[string]domain.Quote)
	resp, err := c.rc.R().SetContext(ctx).SetResult(&out).Get("/api/trading/market-data")
	if err != nil {
		return nil, errors.Wrap(err, "获取行情失败")
	}
	if !resp.IsSuccess() {
		return nil, parseError(resp)
	}
	for symbol, q := range out {
		if q.Symbol == "" {
			q.Symbol = symbol
			out[symbol] = q
		}
	}
	return out, nil
}

// GetQuote 获取单个标的的行情
func (c *Client) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	var out struct {
		Symbol string       `json:"symbol"`
		Quote  domain.Quote `json:"quote"`
	}
	resp, err := c.rc.R().SetContext(ctx).SetResult(&out).
		Get("/api/trading/quotes/" + strings.ToUpper(symbol))
	if err != nil {
		return domain.Quote{}, errors.Wrap(err, "获取行情失败")
	}
	if !resp.IsSuccess() {
		return domain.Quote{}, parseError(resp)
	}
	q := out.Quote
	if q.Symbol == "" {
		q.Symbol = out.Symbol
	}
	return q, nil
}

// PlaceOrder 提交订单
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*domain.Order, error) {
	var out domain.Order
	resp, err := c.rc.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		Post("/api/trading/orders")
	if err != nil {
		return nil, errors.Wrap(err, "提交订单失败")
	}
	if !resp.IsSuccess() {
		return nil, parseError(resp)
	}
	return &out, nil
}

// CancelOrder 撤销订单
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	resp, err := c.rc.R().SetContext(ctx).Delete("/api/trading/orders/" + orderID)
	if err != nil {
		return errors.Wrap(err, "撤销订单失败")
	}
	if !resp.IsSuccess() {
		return parseError(resp)
	}
	return nil
}
