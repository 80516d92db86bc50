package portal

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weitingzhao/bifrost-trader/internal/domain"
	"github.com/weitingzhao/bifrost-trader/pkg/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(config.PortalConfig{
		ListenAddr:    "127.0.0.1:0",
		DBPath:        filepath.Join(t.TempDir(), "portal.db"),
		Symbols:       []string{"AAPL", "MSFT"},
		QuoteInterval: config.Duration{Duration: time.Second},
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.repo.close() })
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestPlaceLimitOrder(t *testing.T) {
	s := newTestServer(t)

	price := 170.0
	w := doJSON(t, s, http.MethodPost, "/api/trading/orders", map[string]interface{}{
		"symbol": "aapl", "side": "buy", "quantity": 100,
		"order_type": "limit", "price": price,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var order domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.NotEmpty(t, order.OrderID)
	assert.Equal(t, "AAPL", order.Symbol)
	assert.Equal(t, domain.SideBuy, order.Side)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	require.NotNil(t, order.Price)
	assert.Equal(t, price, *order.Price)
}

func TestPlaceMarketOrderIgnoresPrice(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/trading/orders", map[string]interface{}{
		"symbol": "MSFT", "side": "SELL", "quantity": 10,
		"order_type": "MARKET", "price": 999.0,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var order domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Nil(t, order.Price, "市价单不应携带价格")
}

func TestPlaceOrderValidation(t *testing.T) {
	s := newTestServer(t)

	cases := []map[string]interface{}{
		{"symbol": "", "side": "BUY", "quantity": 1, "order_type": "MARKET"},
		{"symbol": "ZZZZ", "side": "BUY", "quantity": 1, "order_type": "MARKET"},
		{"symbol": "AAPL", "side": "HOLD", "quantity": 1, "order_type": "MARKET"},
		{"symbol": "AAPL", "side": "BUY", "quantity": 0, "order_type": "MARKET"},
		{"symbol": "AAPL", "side": "BUY", "quantity": -5, "order_type": "MARKET"},
		{"symbol": "AAPL", "side": "BUY", "quantity": 1, "order_type": "LIMIT"},
		{"symbol": "AAPL", "side": "BUY", "quantity": 1, "order_type": "LIMIT", "price": -1.0},
		{"symbol": "AAPL", "side": "BUY", "quantity": 1, "order_type": "ICEBERG"},
	}
	for i, body := range cases {
		w := doJSON(t, s, http.MethodPost, "/api/trading/orders", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "用例 %d", i)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "用例 %d", i)
		assert.NotEmpty(t, resp["error"], "用例 %d 应返回 error 字段", i)
	}
}

func TestCancelOrderLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/trading/orders", map[string]interface{}{
		"symbol": "AAPL", "side": "BUY", "quantity": 5,
		"order_type": "LIMIT", "price": 150.0,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var order domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))

	// 首次撤单成功
	w = doJSON(t, s, http.MethodDelete, "/api/trading/orders/"+order.OrderID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cancelled domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cancelled))
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)

	// 再次撤单：已是终态，409 + error
	w = doJSON(t, s, http.MethodDelete, "/api/trading/orders/"+order.OrderID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "order is not cancellable", resp["error"])

	// 不存在的订单：404
	w = doJSON(t, s, http.MethodDelete, "/api/trading/orders/no-such-order", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActiveOrdersShape(t *testing.T) {
	s := newTestServer(t)

	// 空库也要返回 orders 数组而不是 null
	w := doJSON(t, s, http.MethodGet, "/api/trading/active-orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"orders":[]}`, w.Body.String())

	doJSON(t, s, http.MethodPost, "/api/trading/orders", map[string]interface{}{
		"symbol": "AAPL", "side": "BUY", "quantity": 1, "order_type": "MARKET",
	})

	w = doJSON(t, s, http.MethodGet, "/api/trading/active-orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Orders []domain.Order `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, "AAPL", resp.Orders[0].Symbol)
}

func TestMarketDataAndQuote(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/trading/market-data", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var quotes map[string]domain.Quote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quotes))
	require.Contains(t, quotes, "AAPL")
	assert.Equal(t, 175.50, quotes["AAPL"].Price)
	assert.Greater(t, quotes["AAPL"].Ask, quotes["AAPL"].Bid)

	// 路径参数大小写不敏感
	w = doJSON(t, s, http.MethodGet, "/api/trading/quotes/aapl", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/trading/quotes/ZZZZ", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAccountSummarySeedValues(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/trading/account-summary", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summary domain.AccountSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 100000.0, summary.BuyingPower)
	assert.Equal(t, 25000.0, summary.CashBalance)
	assert.Equal(t, 75000.0, summary.MarginUsed)
	assert.Equal(t, 100000.0, summary.Equity)
	assert.Equal(t, 200000.0, summary.DayTradingBuyingPower)
}

func TestFillDecision(t *testing.T) {
	limit := 100.0
	stop := 100.0

	cases := []struct {
		name   string
		order  domain.Order
		last   float64
		filled bool
		price  float64
	}{
		{"市价单立即成交", domain.Order{OrderType: domain.OrderTypeMarket, Side: domain.SideBuy}, 99.5, true, 99.5},
		{"限价买入价格下穿", domain.Order{OrderType: domain.OrderTypeLimit, Side: domain.SideBuy, Price: &limit}, 99.0, true, 100.0},
		{"限价买入价格未及", domain.Order{OrderType: domain.OrderTypeLimit, Side: domain.SideBuy, Price: &limit}, 101.0, false, 0},
		{"限价卖出价格上穿", domain.Order{OrderType: domain.OrderTypeLimit, Side: domain.SideSell, Price: &limit}, 101.0, true, 100.0},
		{"止损买入触发", domain.Order{OrderType: domain.OrderTypeStop, Side: domain.SideBuy, StopPrice: &stop}, 101.0, true, 101.0},
		{"止损卖出未触发", domain.Order{OrderType: domain.OrderTypeStop, Side: domain.SideSell, StopPrice: &stop}, 101.0, false, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			price, filled := fillDecision(c.order, decimal.NewFromFloat(c.last))
			assert.Equal(t, c.filled, filled)
			if filled {
				assert.Equal(t, c.price, price.InexactFloat64())
			}
		})
	}
}

func TestAccountBookApplyFill(t *testing.T) {
	book := newAccountBook()
	quotes := map[string]domain.Quote{"AAPL": {Price: 180.0}}

	book.ApplyFill(domain.Order{
		Symbol: "AAPL", Side: domain.SideBuy, Quantity: 100,
	}, decimal.NewFromFloat(175.0))

	summary := book.Summary(quotes)
	// 现金 25000 - 17500 = 7500；持仓按 180 估值 18000
	assert.Equal(t, 7500.0, summary.CashBalance)
	assert.Equal(t, 25500.0+75000.0, summary.Equity)

	book.ApplyFill(domain.Order{
		Symbol: "AAPL", Side: domain.SideSell, Quantity: 100,
	}, decimal.NewFromFloat(180.0))

	summary = book.Summary(quotes)
	assert.Equal(t, 25500.0, summary.CashBalance)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestQuoteServedFromCacheWithinTTL(t *testing.T) {
	s := newTestServer(t)

	var first struct {
		Quote domain.Quote `json:"quote"`
	}
	w := doJSON(t, s, http.MethodGet, "/api/trading/quotes/aapl", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	// 行情步进后，TTL 内的请求仍命中缓存里的旧报价
	s.feed.Step()
	w = doJSON(t, s, http.MethodGet, "/api/trading/quotes/AAPL", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cached struct {
		Quote domain.Quote `json:"quote"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cached))
	assert.Equal(t, first.Quote.Price, cached.Quote.Price)

	// 缓存失效后返回行情源的最新报价
	s.quoteCache.Delete("AAPL")
	live, ok := s.feed.Quote("AAPL")
	require.True(t, ok)
	w = doJSON(t, s, http.MethodGet, "/api/trading/quotes/AAPL", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fresh struct {
		Quote domain.Quote `json:"quote"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fresh))
	assert.Equal(t, live.Price, fresh.Quote.Price)
}
