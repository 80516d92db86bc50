package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/weitingzhao/bifrost-trader/internal/domain"
	"github.com/weitingzhao/bifrost-trader/internal/events"
	"github.com/weitingzhao/bifrost-trader/internal/stream"
	"github.com/weitingzhao/bifrost-trader/pkg/sigchan"
	"github.com/weitingzhao/bifrost-trader/pkg/syncgroup"
)

var streamLog = logrus.WithField("component", "trading_stream")

const (
	defaultPingInterval   = 10 * time.Second
	defaultReconnectDelay = 5 * time.Second
	readTimeout           = 30 * time.Second
	writeTimeout          = 10 * time.Second
	handshakeTimeout      = 15 * time.Second
)

// Options 实时通道配置
type Options struct {
	// PingInterval 应用层 ping 间隔
	PingInterval time.Duration
	// ReconnectDelay 断线后的固定重连延迟。
	// 注意：固定延迟 + 无上限重试，沿用原有行为；退避策略见 DESIGN.md。
	ReconnectDelay time.Duration
}

// TradingStream 交易实时通道（/ws/trading）。
//
// 单连接管理：断线时同步把状态置为 disconnected，
// 然后通过 reconnectC（容量 1）恰好安排一次延迟重连；
// 重连失败会再次发信号，形成无上限的固定间隔重试。
type TradingStream struct {
	// 连接管理
	url        string
	conn       *websocket.Conn
	connMu     sync.Mutex
	connCancel context.CancelFunc

	opts Options

	// 重连管理
	reconnectC *sigchan.Chan // 信号驱动（容量 1 → 一次断线只安排一次重连）
	closeC     chan struct{}
	closeOnce  sync.Once

	// 连接状态
	state   domain.ConnectionState
	stateMu sync.RWMutex

	// 事件处理器
	marketDataHandlers  *stream.HandlerList[*events.MarketDataEvent]
	orderUpdateHandlers *stream.HandlerList[*events.OrderUpdateEvent]
	portfolioHandlers   *stream.HandlerList[*events.PortfolioUpdateEvent]
	stateHandlers       *stream.HandlerList[*events.ConnectionStateEvent]

	// Goroutine 管理
	sg     *syncgroup.SyncGroup // 长期运行的 goroutine（reconnector）
	connSg *syncgroup.SyncGroup // 连接相关的 goroutine（read, ping）

	// 心跳
	lastPong   time.Time
	lastPongMu sync.RWMutex
}

// NewTradingStream 创建交易实时通道客户端
func NewTradingStream(url string, opts Options) *TradingStream {
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}

	return &TradingStream{
		url:                 url,
		opts:                opts,
		reconnectC:          sigchan.New(1),
		closeC:              make(chan struct{}),
		state:               domain.StateDisconnected,
		marketDataHandlers:  stream.NewHandlerList[*events.MarketDataEvent](),
		orderUpdateHandlers: stream.NewHandlerList[*events.OrderUpdateEvent](),
		portfolioHandlers:   stream.NewHandlerList[*events.PortfolioUpdateEvent](),
		stateHandlers:       stream.NewHandlerList[*events.ConnectionStateEvent](),
		sg:                  syncgroup.NewSyncGroup(),
		connSg:              syncgroup.NewSyncGroup(),
		lastPong:            time.Now(),
	}
}

// OnMarketData 注册行情推送回调
func (s *TradingStream) OnMarketData(handler stream.MarketDataHandler) {
	if handler == nil {
		return
	}
	s.marketDataHandlers.Add(handler.OnMarketData)
}

// OnOrderUpdate 注册订单变化回调
func (s *TradingStream) OnOrderUpdate(handler stream.OrderUpdateHandler) {
	if handler == nil {
		return
	}
	s.orderUpdateHandlers.Add(handler.OnOrderUpdate)
}

// OnPortfolioUpdate 注册账户变化回调
func (s *TradingStream) OnPortfolioUpdate(handler stream.PortfolioUpdateHandler) {
	if handler == nil {
		return
	}
	s.portfolioHandlers.Add(handler.OnPortfolioUpdate)
}

// OnConnectionState 注册连接状态变化回调
func (s *TradingStream) OnConnectionState(handler stream.ConnectionStateHandler) {
	if handler == nil {
		return
	}
	s.stateHandlers.Add(handler.OnConnectionState)
}

// State 返回当前连接状态
func (s *TradingStream) State() domain.ConnectionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// setState 更新连接状态，变化时同步触发状态回调。
// 同步触发保证：断线指示先于重连延迟生效。
func (s *TradingStream) setState(ctx context.Context, state domain.ConnectionState) {
	s.stateMu.Lock()
	changed := s.state != state
	s.state = state
	s.stateMu.Unlock()

	if changed {
		s.stateHandlers.Emit(ctx, &events.ConnectionStateEvent{
			State:      state,
			ReceivedAt: time.Now(),
		})
	}
}

// Connect 连接到实时通道并启动重连器。
// 初次拨号失败不报错：按断线处理，走同一条重连路径。
func (s *TradingStream) Connect(ctx context.Context) error {
	select {
	case <-s.closeC:
		return fmt.Errorf("实时通道已关闭")
	default:
	}

	s.sg.Add(func() {
		s.reconnector(ctx)
	})
	s.sg.Run()

	if err := s.dialAndConnect(ctx); err != nil {
		streamLog.Warnf("初始连接失败: %v，%s 后重连", err, s.opts.ReconnectDelay)
		s.scheduleReconnect()
	}
	return nil
}

// dialAndConnect 拨号并启动连接相关的 goroutine
func (s *TradingStream) dialAndConnect(ctx context.Context) error {
	select {
	case <-s.closeC:
		return fmt.Errorf("实时通道已关闭，取消连接")
	default:
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("拨号失败: %w", err)
	}

	connCtx, connCancel := s.setConn(ctx, conn)

	// 等待旧连接的 goroutine 退出，避免两组 read/ping 同时运行
	done := make(chan struct{})
	go func() {
		s.connSg.WaitAndClear()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		streamLog.Debugf("等待旧连接 goroutine 退出超时，继续启动新连接")
	}

	s.connSg.Add(func() {
		s.readLoop(connCtx, conn, connCancel)
	})
	s.connSg.Add(func() {
		s.pingLoop(connCtx, conn, connCancel)
	})
	s.connSg.Run()

	s.setState(ctx, domain.StateConnected)
	streamLog.Infof("✅ 实时通道已连接: %s", s.url)
	return nil
}

// setConn 原子替换连接（取消旧连接的 context）
func (s *TradingStream) setConn(ctx context.Context, conn *websocket.Conn) (context.Context, context.CancelFunc) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.connCancel != nil {
		s.connCancel()
	}

	connCtx, connCancel := context.WithCancel(ctx)
	s.conn = conn
	s.connCancel = connCancel
	return connCtx, connCancel
}

// scheduleReconnect 安排一次重连（非阻塞；已有待处理信号时合并）
func (s *TradingStream) scheduleReconnect() {
	s.reconnectC.Emit()
}

// reconnector 重连器 goroutine：收到信号后等待固定延迟再重连
func (s *TradingStream) reconnector(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closeC:
			return
		case <-s.reconnectC.C():
			streamLog.Warnf("连接断开，%s 后重连...", s.opts.ReconnectDelay)

			select {
			case <-ctx.Done():
				return
			case <-s.closeC:
				return
			case <-time.After(s.opts.ReconnectDelay):
			}

			if err := s.dialAndConnect(ctx); err != nil {
				streamLog.Warnf("重连失败: %v，将再次尝试", err)
				s.scheduleReconnect()
			}
		}
	}
}

// readLoop 读取循环
func (s *TradingStream) readLoop(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closeC:
			return
		default:
		}

		// 用 deadline 让 ReadMessage 至多阻塞 readTimeout，便于周期性检查退出条件
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			streamLog.Errorf("设置读取超时失败: %v", err)
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
				continue
			}

			// 先同步置为断开，再安排重连：指示器必须在延迟生效前翻转
			s.setState(ctx, domain.StateDisconnected)
			_ = conn.Close()

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				streamLog.Infof("实时通道正常关闭")
			} else {
				streamLog.Warnf("实时通道读取错误: %v", err)
			}

			select {
			case <-s.closeC:
				return
			default:
				s.scheduleReconnect()
			}
			return
		}

		s.handleMessage(ctx, message)
	}
}

// pingLoop 心跳循环：定期发送应用层 ping
func (s *TradingStream) pingLoop(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closeC:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
				streamLog.Warnf("发送 ping 失败: %v", err)
				s.setState(ctx, domain.StateDisconnected)
				s.scheduleReconnect()
				return
			}
		}
	}
}

// handleMessage 解析并分发一条推送消息。
// 非法 JSON 记日志后丢弃，不中断读取循环。
func (s *TradingStream) handleMessage(ctx context.Context, data []byte) {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		streamLog.Warnf("解析推送消息失败: %v，丢弃（前 100 字节: %.100s）", err, string(data))
		return
	}

	now := time.Now()
	switch env.Type {
	case events.EventMarketData:
		quotes := make(map[string]domain.Quote)
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &quotes); err != nil {
				streamLog.Warnf("解析行情数据失败: %v", err)
				return
			}
		}
		for symbol, q := range quotes {
			if q.Symbol == "" {
				q.Symbol = symbol
				quotes[symbol] = q
			}
		}
		s.marketDataHandlers.Emit(ctx, &events.MarketDataEvent{Quotes: quotes, ReceivedAt: now})

	case events.EventOrderUpdate:
		// payload 不用于渲染，只作失效信号：到达即触发一次订单列表重拉
		s.orderUpdateHandlers.Emit(ctx, &events.OrderUpdateEvent{ReceivedAt: now})

	case events.EventPortfolioUpdate:
		s.portfolioHandlers.Emit(ctx, &events.PortfolioUpdateEvent{ReceivedAt: now})

	case events.EventPong:
		s.lastPongMu.Lock()
		s.lastPong = now
		s.lastPongMu.Unlock()

	default:
		// 未识别的类型是 no-op
		streamLog.Debugf("忽略未识别的推送类型: %q", env.Type)
	}
}

// LastPong 返回最近一次 pong 时间（用于诊断）
func (s *TradingStream) LastPong() time.Time {
	s.lastPongMu.RLock()
	defer s.lastPongMu.RUnlock()
	return s.lastPong
}

// Close 关闭实时通道
func (s *TradingStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeC)
	})

	s.connMu.Lock()
	if s.connCancel != nil {
		s.connCancel()
	}
	if s.conn != nil {
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	s.connSg.Wait()
	s.sg.Wait()
	streamLog.Infof("实时通道已停止")
	return nil
}
