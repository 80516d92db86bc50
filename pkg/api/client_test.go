package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/weitingzhao/bifrost-trader/internal/domain"
)

func TestAPIErrorFromResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "order is not cancellable"})
	}))
	defer srv.Close()

	err := NewClient(srv.URL).CancelOrder(context.Background(), "ord-1")
	if err == nil {
		t.Fatal("非 2xx 响应应返回错误")
	}

	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("应可解释为 APIError，实际 %T", err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Errorf("状态码应为 409，实际 %d", apiErr.StatusCode)
	}
	if apiErr.Message != "order is not cancellable" {
		t.Errorf("应携带服务端错误原文，实际 %q", apiErr.Message)
	}
}

func TestTransportErrorIsNotAPIError(t *testing.T) {
	// 无人监听的端口：传输层错误
	err := NewClient("http://127.0.0.1:1").CancelOrder(context.Background(), "ord-1")
	if err == nil {
		t.Fatal("连接失败应返回错误")
	}
	if _, ok := AsAPIError(err); ok {
		t.Error("传输层错误不应被解释为 APIError")
	}
}

func TestGetQuoteFillsSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/trading/quotes/AAPL" {
			t.Errorf("标的应转为大写，实际路径 %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"symbol": "AAPL",
			"quote":  domain.Quote{Price: 175.5},
		})
	}))
	defer srv.Close()

	q, err := NewClient(srv.URL).GetQuote(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("获取行情失败: %v", err)
	}
	if q.Symbol != "AAPL" {
		t.Errorf("Symbol 应从响应补全，实际 %q", q.Symbol)
	}
}

func TestGetActiveOrdersUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"orders": []domain.Order{{OrderID: "a"}, {OrderID: "b"}},
		})
	}))
	defer srv.Close()

	orders, err := NewClient(srv.URL).GetActiveOrders(context.Background())
	if err != nil {
		t.Fatalf("获取订单失败: %v", err)
	}
	if len(orders) != 2 {
		t.Errorf("应解析出 2 个订单，实际 %d 个", len(orders))
	}
}
