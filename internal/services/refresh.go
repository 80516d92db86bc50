package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/weitingzhao/bifrost-trader/internal/domain"
	"github.com/weitingzhao/bifrost-trader/pkg/api"
	"github.com/weitingzhao/bifrost-trader/pkg/syncgroup"
)

var refreshLog = logrus.WithField("component", "refresh")

// TradingAPI 刷新与下单所需的 REST 能力（*api.Client 实现）
type TradingAPI interface {
	GetAccountSummary(ctx context.Context) (domain.AccountSummary, error)
	GetActiveOrders(ctx context.Context) ([]domain.Order, error)
	GetMarketData(ctx context.Context) (map[string]domain.Quote, error)
	PlaceOrder(ctx context.Context, req api.OrderRequest) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// ViewSink 刷新结果的接收方（界面视图模型）。
// 每个回调都是整体替换：协调器从不做字段级合并。
type ViewSink interface {
	OnAccountSummary(summary domain.AccountSummary)
	OnOrders(orders []domain.Order)
	OnQuotes(quotes map[string]domain.Quote)
}

// RefreshCoordinator 数据刷新协调器。
// 后台刷新失败只记日志，不打扰用户，界面保留上一次的数据。
type RefreshCoordinator struct {
	client TradingAPI
	sink   ViewSink
}

// NewRefreshCoordinator 创建刷新协调器
func NewRefreshCoordinator(client TradingAPI, sink ViewSink) *RefreshCoordinator {
	return &RefreshCoordinator{
		client: client,
		sink:   sink,
	}
}

// RefreshAccount 刷新账户概要
func (r *RefreshCoordinator) RefreshAccount(ctx context.Context) {
	summary, err := r.client.GetAccountSummary(ctx)
	if err != nil {
		refreshLog.Warnf("刷新账户概要失败: %v", err)
		return
	}
	r.sink.OnAccountSummary(summary)
}

// RefreshOrders 刷新订单列表
func (r *RefreshCoordinator) RefreshOrders(ctx context.Context) {
	orders, err := r.client.GetActiveOrders(ctx)
	if err != nil {
		refreshLog.Warnf("刷新订单列表失败: %v", err)
		return
	}
	r.sink.OnOrders(orders)
}

// RefreshMarketData 刷新全部行情
func (r *RefreshCoordinator) RefreshMarketData(ctx context.Context) {
	quotes, err := r.client.GetMarketData(ctx)
	if err != nil {
		refreshLog.Warnf("刷新行情失败: %v", err)
		return
	}
	r.sink.OnQuotes(quotes)
}

// RefreshAll 并发刷新三类数据，全部完成后返回。
// 用于启动时的首次加载和重连成功后的全量对账。
func (r *RefreshCoordinator) RefreshAll(ctx context.Context) {
	sg := syncgroup.NewSyncGroup()
	sg.Add(func() { r.RefreshAccount(ctx) })
	sg.Add(func() { r.RefreshOrders(ctx) })
	sg.Add(func() { r.RefreshMarketData(ctx) })
	sg.Run()
	sg.Wait()
}
