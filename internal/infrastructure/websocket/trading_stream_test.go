package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/weitingzhao/bifrost-trader/internal/domain"
	"github.com/weitingzhao/bifrost-trader/internal/events"
)

var testUpgrader = gws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newWSServer 启动一个测试 WebSocket 服务端，onConn 在每个连接上运行
func newWSServer(t *testing.T, onConn func(conn *gws.Conn, connIndex int64)) (*httptest.Server, string) {
	t.Helper()
	var connCount int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("升级失败: %v", err)
			return
		}
		idx := atomic.AddInt64(&connCount, 1)
		onConn(conn, idx)
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

type stateRecorder struct {
	c chan domain.ConnectionState
}

func (r *stateRecorder) OnConnectionState(ctx context.Context, ev *events.ConnectionStateEvent) error {
	r.c <- ev.State
	return nil
}

type marketRecorder struct {
	c chan *events.MarketDataEvent
}

func (r *marketRecorder) OnMarketData(ctx context.Context, ev *events.MarketDataEvent) error {
	r.c <- ev
	return nil
}

type orderSignalRecorder struct {
	c chan struct{}
}

func (r *orderSignalRecorder) OnOrderUpdate(ctx context.Context, ev *events.OrderUpdateEvent) error {
	r.c <- struct{}{}
	return nil
}

func waitState(t *testing.T, c chan domain.ConnectionState, want domain.ConnectionState) time.Time {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case got := <-c:
			if got == want {
				return time.Now()
			}
		case <-deadline:
			t.Fatalf("等待状态 %s 超时", want)
		}
	}
}

func TestDispatchesEnvelopes(t *testing.T) {
	msgs := []string{
		`{"type":"market_data","data":{"AAPL":{"price":175.5,"bid":175.45,"ask":175.55}}}`,
		`这不是JSON`, // 非法消息：记日志后丢弃，循环不中断
		`{"type":"order_update","data":{"revision":7}}`,
		`{"type":"pong","timestamp":"2026-09-01T10:00:00Z"}`,
		`{"type":"mystery_event"}`, // 未识别类型：no-op
		`{"type":"order_update"}`,
	}

	_, url := newWSServer(t, func(conn *gws.Conn, _ int64) {
		for _, m := range msgs {
			if err := conn.WriteMessage(gws.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		// 保持连接直到测试结束
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	s := NewTradingStream(url, Options{ReconnectDelay: 100 * time.Millisecond})
	market := &marketRecorder{c: make(chan *events.MarketDataEvent, 8)}
	orders := &orderSignalRecorder{c: make(chan struct{}, 8)}
	s.OnMarketData(market)
	s.OnOrderUpdate(orders)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("连接失败: %v", err)
	}
	defer s.Close()

	select {
	case ev := <-market.c:
		q, ok := ev.Quotes["AAPL"]
		if !ok {
			t.Fatal("行情事件应包含 AAPL")
		}
		if q.Symbol != "AAPL" {
			t.Errorf("Symbol 应从 map 键补全，实际 %q", q.Symbol)
		}
		if q.Price != 175.5 {
			t.Errorf("价格应为 175.5，实际 %v", q.Price)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("等待行情事件超时")
	}

	// 两条 order_update（带 payload 与不带 payload）都应作为信号到达
	for i := 0; i < 2; i++ {
		select {
		case <-orders.c:
		case <-time.After(3 * time.Second):
			t.Fatalf("等待第 %d 条订单信号超时", i+1)
		}
	}
}

func TestReconnectsExactlyOncePerDrop(t *testing.T) {
	const reconnectDelay = 300 * time.Millisecond

	var dropTime atomic.Value // time.Time
	var connCount int64

	_, url := newWSServer(t, func(conn *gws.Conn, idx int64) {
		atomic.StoreInt64(&connCount, idx)
		if idx == 1 {
			// 第一个连接立即被服务端断开
			dropTime.Store(time.Now())
			conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	s := NewTradingStream(url, Options{ReconnectDelay: reconnectDelay})
	states := &stateRecorder{c: make(chan domain.ConnectionState, 8)}
	s.OnConnectionState(states)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("连接失败: %v", err)
	}
	defer s.Close()

	waitState(t, states.c, domain.StateConnected)
	discAt := waitState(t, states.c, domain.StateDisconnected)
	reconnAt := waitState(t, states.c, domain.StateConnected)

	// 断开指示必须在重连延迟生效之前翻转
	if dropped, ok := dropTime.Load().(time.Time); ok {
		if discAt.Sub(dropped) >= reconnectDelay {
			t.Errorf("断开指示应先于重连延迟翻转: 耗时 %v", discAt.Sub(dropped))
		}
	}
	// 重连发生在固定延迟之后（留一点调度余量）
	if gap := reconnAt.Sub(discAt); gap < reconnectDelay-50*time.Millisecond {
		t.Errorf("重连应等待固定延迟 %v，实际 %v", reconnectDelay, gap)
	}

	// 一次断线恰好一次重连：稳定后连接数应为 2 且不再增长
	time.Sleep(3 * reconnectDelay)
	if n := atomic.LoadInt64(&connCount); n != 2 {
		t.Errorf("一次断线应恰好重连一次，实际连接数 %d", n)
	}
}

func TestInitialDialFailureRetries(t *testing.T) {
	srv, url := newWSServer(t, func(conn *gws.Conn, _ int64) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	// 先关掉服务端，让初次拨号失败
	srv.CloseClientConnections()
	srv.Close()

	s := NewTradingStream(url, Options{ReconnectDelay: 100 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初次拨号失败不报错：按断线处理，进入重连循环
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("初次连接失败不应返回错误: %v", err)
	}
	if s.State() != domain.StateDisconnected {
		t.Errorf("初次拨号失败后状态应为 disconnected，实际 %s", s.State())
	}

	// 等两个重连周期，确认重试不会 panic、状态保持断开
	time.Sleep(300 * time.Millisecond)
	if s.State() != domain.StateDisconnected {
		t.Errorf("服务端不可达时状态应保持 disconnected，实际 %s", s.State())
	}
	s.Close()
}

func TestScheduleReconnectCoalesces(t *testing.T) {
	s := NewTradingStream("ws://127.0.0.1:0/ws/trading", Options{})
	for i := 0; i < 5; i++ {
		s.scheduleReconnect()
	}
	// 容量 1：五次信号合并为一个
	select {
	case <-s.reconnectC.C():
	default:
		t.Fatal("应存在一个待处理的重连信号")
	}
	select {
	case <-s.reconnectC.C():
		t.Error("重复信号应被合并，不应有第二个")
	default:
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	_, url := newWSServer(t, func(conn *gws.Conn, _ int64) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	s := NewTradingStream(url, Options{ReconnectDelay: 100 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("连接失败: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("关闭失败: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("重复关闭不应报错: %v", err)
	}
	if err := s.Connect(ctx); err == nil {
		t.Error("关闭后重新连接应报错")
	}
}
