// Package dashboard 终端交易仪表盘（Bubble Tea）。
// 负责把实时推送、REST 刷新结果和用户操作汇聚到一个 TUI 程序里。
package dashboard

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/weitingzhao/bifrost-trader/internal/domain"
	"github.com/weitingzhao/bifrost-trader/internal/events"
	"github.com/weitingzhao/bifrost-trader/internal/services"
	"github.com/weitingzhao/bifrost-trader/pkg/snapshot"
)

var log = logrus.WithField("component", "dashboard")

// 快照存储键
const (
	snapshotKeyAccount = "view/account"
	snapshotKeyQuotes  = "view/quotes"
)

// Refresher 仪表盘依赖的刷新能力（*services.RefreshCoordinator 实现）
type Refresher interface {
	RefreshAll(ctx context.Context)
	RefreshOrders(ctx context.Context)
	RefreshAccount(ctx context.Context)
}

// Dashboard 终端仪表盘。
// 同时实现 services.ViewSink、services.Notifier 和 stream 的各个处理器接口，
// 外部数据统一经 program.Send 进入 Bubble Tea 的单线程更新循环。
type Dashboard struct {
	state   *State
	history *PriceHistory
	chart   ChartRenderer
	store   *snapshot.Store

	refresher Refresher
	orders    orderActions

	mu          sync.Mutex
	program     *tea.Program
	programDone chan struct{}
}

// New 创建仪表盘。store 可为 nil（不做快照持久化）。
func New(defaultTimeframe string, store *snapshot.Store) *Dashboard {
	return &Dashboard{
		state:       NewState(defaultTimeframe),
		history:     NewPriceHistory(120),
		chart:       Sparkline{},
		store:       store,
		programDone: make(chan struct{}),
	}
}

// SetRefresher 注入刷新协调器（构造顺序上协调器依赖仪表盘作为 sink，
// 所以只能在创建后注入）
func (d *Dashboard) SetRefresher(r Refresher) {
	d.refresher = r
}

// SetOrderService 注入订单服务
func (d *Dashboard) SetOrderService(s *services.OrderService) {
	d.orders = s
}

// loadSnapshots 启动时回放上次的账户与行情快照，
// 首次 REST 刷新完成前界面就有数据可看
func (d *Dashboard) loadSnapshots() {
	if d.store == nil {
		return
	}
	var account domain.AccountSummary
	if err := d.store.LoadJSON(snapshotKeyAccount, &account); err == nil {
		d.state.ApplyAccount(account)
	}
	var quotes map[string]domain.Quote
	if err := d.store.LoadJSON(snapshotKeyQuotes, &quotes); err == nil {
		d.state.ApplyQuotes(quotes)
	}
}

// Start 启动 TUI 程序（阻塞直到退出或 ctx 取消）
func (d *Dashboard) Start(ctx context.Context) error {
	d.loadSnapshots()

	m := newModel(d.state, d.history, d.chart, d.orders)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	d.mu.Lock()
	d.program = program
	d.mu.Unlock()

	log.Info("📊 仪表盘已启动")
	_, err := program.Run()
	close(d.programDone)
	return err
}

// Stop 请求退出并等待程序结束
func (d *Dashboard) Stop() {
	d.mu.Lock()
	program := d.program
	d.mu.Unlock()
	if program == nil {
		return
	}
	program.Quit()
	select {
	case <-d.programDone:
	case <-time.After(2 * time.Second):
	}
}

func (d *Dashboard) send(msg tea.Msg) {
	d.mu.Lock()
	program := d.program
	d.mu.Unlock()
	if program != nil {
		program.Send(msg)
	}
}

// --- services.ViewSink ---

func (d *Dashboard) OnAccountSummary(summary domain.AccountSummary) {
	d.send(accountMsg(summary))
	if d.store != nil {
		if err := d.store.SaveJSON(snapshotKeyAccount, summary); err != nil {
			log.Warnf("保存账户快照失败: %v", err)
		}
	}
}

func (d *Dashboard) OnOrders(orders []domain.Order) {
	d.send(ordersMsg(orders))
}

func (d *Dashboard) OnQuotes(quotes map[string]domain.Quote) {
	d.send(quotesMsg(quotes))
	if d.store != nil {
		if err := d.store.SaveJSON(snapshotKeyQuotes, quotes); err != nil {
			log.Warnf("保存行情快照失败: %v", err)
		}
	}
}

// --- services.Notifier ---

func (d *Dashboard) Notify(level services.NotifyLevel, message string) {
	d.send(notifyMsg{level: level, message: message})
}

// --- stream 处理器 ---

// OnMarketData 行情推送直接进入界面（推送自带数据）
func (d *Dashboard) OnMarketData(ctx context.Context, event *events.MarketDataEvent) error {
	d.OnQuotes(event.Quotes)
	return nil
}

// OnOrderUpdate 订单变化是失效信号：收到后重新拉取订单列表
func (d *Dashboard) OnOrderUpdate(ctx context.Context, event *events.OrderUpdateEvent) error {
	if d.refresher != nil {
		d.refresher.RefreshOrders(ctx)
	}
	return nil
}

// OnPortfolioUpdate 账户变化同样只触发重新拉取
func (d *Dashboard) OnPortfolioUpdate(ctx context.Context, event *events.PortfolioUpdateEvent) error {
	if d.refresher != nil {
		d.refresher.RefreshAccount(ctx)
	}
	return nil
}

// OnConnectionState 连接状态进入界面；重连成功后做一次全量对账，
// 补齐断线期间错过的变化
func (d *Dashboard) OnConnectionState(ctx context.Context, event *events.ConnectionStateEvent) error {
	d.send(connMsg(event.State))
	if event.State == domain.StateConnected && d.refresher != nil {
		go d.refresher.RefreshAll(ctx)
	}
	return nil
}
