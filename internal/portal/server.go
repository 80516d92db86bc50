// Package portal 交易门户后端：REST API、实时推送与模拟撮合。
// 终端仪表盘是它唯一的消费方。
package portal

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/weitingzhao/bifrost-trader/internal/domain"
	"github.com/weitingzhao/bifrost-trader/internal/events"
	"github.com/weitingzhao/bifrost-trader/pkg/cache"
	"github.com/weitingzhao/bifrost-trader/pkg/config"
	"github.com/weitingzhao/bifrost-trader/pkg/syncgroup"
)

var log = logrus.WithField("component", "portal")

// 广播节奏
const (
	orderBroadcastInterval     = 500 * time.Millisecond
	portfolioBroadcastInterval = 2 * time.Second
)

// Server 门户后端
type Server struct {
	cfg  config.PortalConfig
	repo *ordersRepo
	feed *QuoteFeed
	book *accountBook
	hub  *Hub

	// quoteCache 兜住单标的报价的高频轮询，TTL 取行情步进的一半保证新鲜度
	quoteCache *cache.InMemoryCache[string, domain.Quote]

	engine  *gin.Engine
	httpSrv *http.Server

	sg     *syncgroup.SyncGroup
	closeC chan struct{}

	// orderRev 每次订单状态变化自增，广播循环据此判断是否有新变化
	orderRev      atomic.Int64
	sentOrderRev  atomic.Int64
	portfolioRev  atomic.Int64
	sentPortfolio atomic.Int64
}

// NewServer 创建门户后端（打开存储、构建路由，不开始监听）
func NewServer(cfg config.PortalConfig) (*Server, error) {
	repo, err := openOrdersRepo(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	symbols := cfg.Symbols
	if len(symbols) == 0 {
		symbols = []string{"AAPL", "MSFT"}
	}

	cacheTTL := cfg.QuoteInterval.Duration / 2
	if cacheTTL <= 0 {
		cacheTTL = 500 * time.Millisecond
	}

	s := &Server{
		cfg:        cfg,
		repo:       repo,
		feed:       NewQuoteFeed(symbols),
		book:       newAccountBook(),
		hub:        NewHub(),
		quoteCache: cache.NewInMemoryCache[string, domain.Quote](cacheTTL),
		sg:         syncgroup.NewSyncGroup(),
		closeC:     make(chan struct{}),
	}
	s.engine = s.buildRouter()
	s.httpSrv = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: s.engine,
	}
	return s, nil
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	api := engine.Group("/api/trading")
	{
		api.GET("/account-summary", s.handleAccountSummary)
		api.GET("/active-orders", s.handleActiveOrders)
		api.GET("/market-data", s.handleMarketData)
		api.GET("/quotes/:symbol", s.handleQuote)
		api.POST("/orders", s.handlePlaceOrder)
		api.DELETE("/orders/:id", s.handleCancelOrder)
	}
	engine.GET("/ws/trading", func(c *gin.Context) {
		s.hub.ServeWS(c.Writer, c.Request)
	})
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return engine
}

// Handler 返回 HTTP 处理器（测试用）
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start 启动广播循环并开始监听（阻塞直到 Shutdown）
func (s *Server) Start() error {
	s.sg.Add(func() { s.quoteLoop() })
	s.sg.Add(func() { s.orderBroadcastLoop() })
	s.sg.Add(func() { s.portfolioBroadcastLoop() })
	s.sg.Run()

	log.Infof("🚀 门户后端监听 %s", s.cfg.ListenAddr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 停止监听、断开推送连接并等待循环退出
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.closeC)
	err := s.httpSrv.Shutdown(ctx)
	s.hub.Close()
	s.quoteCache.Stop()
	s.sg.Wait()
	if cerr := s.repo.close(); err == nil {
		err = cerr
	}
	log.Info("门户后端已停止")
	return err
}

// --- 广播循环 ---

// quoteLoop 行情步进 + 模拟撮合 + market_data 广播
func (s *Server) quoteLoop() {
	interval := s.cfg.QuoteInterval.Duration
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closeC:
			return
		case <-ticker.C:
			s.feed.Step()
			s.simulateFills()
			s.hub.Broadcast(events.EventMarketData, s.feed.Snapshot())
		}
	}
}

// orderBroadcastLoop 订单变化信号。只在有变化时广播，
// payload 不携带订单数据：客户端收到后自行重新拉取列表。
func (s *Server) orderBroadcastLoop() {
	ticker := time.NewTicker(orderBroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closeC:
			return
		case <-ticker.C:
			rev := s.orderRev.Load()
			if rev == s.sentOrderRev.Load() {
				continue
			}
			s.sentOrderRev.Store(rev)
			s.hub.Broadcast(events.EventOrderUpdate, map[string]int64{"revision": rev})
		}
	}
}

// portfolioBroadcastLoop 账户变化信号，同样只作失效通知
func (s *Server) portfolioBroadcastLoop() {
	ticker := time.NewTicker(portfolioBroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closeC:
			return
		case <-ticker.C:
			rev := s.portfolioRev.Load()
			if rev == s.sentPortfolio.Load() {
				continue
			}
			s.sentPortfolio.Store(rev)
			s.hub.Broadcast(events.EventPortfolioUpdate, map[string]int64{"revision": rev})
		}
	}
}

// simulateFills 模拟撮合：市价单按最新价立即成交，
// 限价/止损单在价格穿越时成交。
func (s *Server) simulateFills() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pending, err := s.repo.listPendingOrders(ctx)
	if err != nil {
		log.Errorf("读取待成交订单失败: %v", err)
		return
	}

	for _, o := range pending {
		last, ok := s.feed.LastPrice(o.Symbol)
		if !ok {
			continue
		}
		fillPrice, filled := fillDecision(o, last)
		if !filled {
			continue
		}
		if err := s.repo.fillOrder(ctx, o.OrderID, fillPrice.InexactFloat64()); err != nil {
			log.Errorf("标记成交失败 %s: %v", o.OrderID, err)
			continue
		}
		s.book.ApplyFill(o, fillPrice)
		s.orderRev.Add(1)
		s.portfolioRev.Add(1)
		log.Infof("✅ 订单成交: %s %s %d %s @%s",
			o.Side, o.Symbol, o.Quantity, o.OrderID, fillPrice.StringFixed(2))
	}
}

// fillDecision 判定订单是否成交及成交价
func fillDecision(o domain.Order, last decimal.Decimal) (decimal.Decimal, bool) {
	switch o.OrderType {
	case domain.OrderTypeMarket:
		return last, true
	case domain.OrderTypeLimit:
		if o.Price == nil {
			return decimal.Zero, false
		}
		limit := decimal.NewFromFloat(*o.Price)
		if o.Side == domain.SideBuy && last.LessThanOrEqual(limit) {
			return limit, true
		}
		if o.Side == domain.SideSell && last.GreaterThanOrEqual(limit) {
			return limit, true
		}
	case domain.OrderTypeStop:
		if o.StopPrice == nil {
			return decimal.Zero, false
		}
		stop := decimal.NewFromFloat(*o.StopPrice)
		if o.Side == domain.SideBuy && last.GreaterThanOrEqual(stop) {
			return last, true
		}
		if o.Side == domain.SideSell && last.LessThanOrEqual(stop) {
			return last, true
		}
	}
	return decimal.Zero, false
}

// --- HTTP 处理器 ---

func (s *Server) handleAccountSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.book.Summary(s.feed.Snapshot()))
}

func (s *Server) handleActiveOrders(c *gin.Context) {
	orders, err := s.repo.listRecentOrders(c.Request.Context(), 50)
	if err != nil {
		log.Errorf("查询订单列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load orders"})
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) handleMarketData(c *gin.Context) {
	c.JSON(http.StatusOK, s.feed.Snapshot())
}

func (s *Server) handleQuote(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	quote, ok := s.quoteCache.Get(symbol)
	if !ok {
		quote, ok = s.feed.Quote(symbol)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol"})
			return
		}
		s.quoteCache.Set(symbol, quote)
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "quote": quote})
}

type placeOrderRequest struct {
	Symbol    string   `json:"symbol"`
	Side      string   `json:"side"`
	Quantity  int      `json:"quantity"`
	OrderType string   `json:"order_type"`
	Price     *float64 `json:"price"`
	StopPrice *float64 `json:"stop_price"`
}

func (req *placeOrderRequest) validate(feed *QuoteFeed) (domain.Order, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return domain.Order{}, errors.New("symbol is required")
	}
	if !feed.Has(symbol) {
		return domain.Order{}, errors.New("unknown symbol")
	}

	side := domain.Side(strings.ToUpper(req.Side))
	if side != domain.SideBuy && side != domain.SideSell {
		return domain.Order{}, errors.New("side must be BUY or SELL")
	}
	if req.Quantity <= 0 {
		return domain.Order{}, errors.New("quantity must be positive")
	}

	orderType := domain.OrderType(strings.ToUpper(req.OrderType))
	switch orderType {
	case domain.OrderTypeMarket:
		// 市价单忽略传入价格
		req.Price = nil
	case domain.OrderTypeLimit:
		if req.Price == nil || *req.Price <= 0 {
			return domain.Order{}, errors.New("limit order requires a positive price")
		}
	case domain.OrderTypeStop:
		if req.StopPrice == nil || *req.StopPrice <= 0 {
			return domain.Order{}, errors.New("stop order requires a positive stop_price")
		}
	default:
		return domain.Order{}, errors.New("order_type must be MARKET, LIMIT or STOP")
	}

	return domain.Order{
		OrderID:   uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Quantity:  req.Quantity,
		OrderType: orderType,
		Price:     req.Price,
		StopPrice: req.StopPrice,
		Status:    domain.OrderStatusPending,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (s *Server) handlePlaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := req.validate(s.feed)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.repo.insertOrder(c.Request.Context(), order); err != nil {
		log.Errorf("写入订单失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store order"})
		return
	}
	s.orderRev.Add(1)

	log.Infof("📥 新订单: %s %s %d %s", order.Side, order.Symbol, order.Quantity, order.OrderID)
	c.JSON(http.StatusOK, order)
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	orderID := c.Param("id")
	order, err := s.repo.cancelOrder(c.Request.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		case errors.Is(err, ErrNotCancellable):
			c.JSON(http.StatusConflict, gin.H{"error": "order is not cancellable"})
		default:
			log.Errorf("撤单失败 %s: %v", orderID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel order"})
		}
		return
	}
	s.orderRev.Add(1)

	log.Infof("订单已撤销: %s", orderID)
	c.JSON(http.StatusOK, order)
}
