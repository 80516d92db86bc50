package dashboard

import (
	"testing"
	"time"

	"github.com/weitingzhao/bifrost-trader/internal/domain"
	"github.com/weitingzhao/bifrost-trader/internal/services"
)

func TestApplyQuotesReplacesWholeMap(t *testing.T) {
	s := NewState("1m")
	s.ApplyQuotes(map[string]domain.Quote{
		"AAPL": {Symbol: "AAPL", Price: 185},
		"TSLA": {Symbol: "TSLA", Price: 250},
	})
	// 第二次更新缺少 TSLA：整体替换后 TSLA 必须消失，而不是保留旧值
	s.ApplyQuotes(map[string]domain.Quote{
		"AAPL": {Symbol: "AAPL", Price: 186},
	})

	if len(s.Quotes) != 1 {
		t.Fatalf("行情应整体替换，期望 1 个标的，实际 %d 个", len(s.Quotes))
	}
	if _, ok := s.Quotes["TSLA"]; ok {
		t.Error("旧行情不应在整体替换后残留")
	}
	if s.Quotes["AAPL"].Price != 186 {
		t.Errorf("AAPL 价格应为 186，实际 %v", s.Quotes["AAPL"].Price)
	}
}

func TestApplyOrdersReplacesWholeList(t *testing.T) {
	s := NewState("1m")
	s.ApplyOrders([]domain.Order{{OrderID: "a"}, {OrderID: "b"}})
	s.ApplyOrders([]domain.Order{{OrderID: "c"}})

	if len(s.Orders) != 1 || s.Orders[0].OrderID != "c" {
		t.Errorf("订单列表应整体替换，实际 %v", s.Orders)
	}
}

func TestSelectTimeframeIsExclusive(t *testing.T) {
	s := NewState("1m")
	if s.Timeframe != "1m" {
		t.Fatalf("默认周期应为 1m，实际 %q", s.Timeframe)
	}

	s.SelectTimeframe("1h")
	if s.Timeframe != "1h" {
		t.Errorf("切换后激活周期应为 1h，实际 %q", s.Timeframe)
	}

	// 非法周期被忽略，当前激活项保持不变
	s.SelectTimeframe("2h")
	if s.Timeframe != "1h" {
		t.Errorf("非法周期不应改变激活项，实际 %q", s.Timeframe)
	}

	// 重复选择当前项是幂等的
	s.SelectTimeframe("1h")
	if s.Timeframe != "1h" {
		t.Errorf("重复选择不应有副作用，实际 %q", s.Timeframe)
	}
}

func TestNewStateFallsBackOnBadTimeframe(t *testing.T) {
	s := NewState("2w")
	if s.Timeframe != "1m" {
		t.Errorf("非法默认周期应回退到 1m，实际 %q", s.Timeframe)
	}
}

func TestNotificationsAutoDismissAfterTTL(t *testing.T) {
	s := NewState("1m")
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	s.AddNotification(services.NotifySuccess, "下单成功", base)
	s.AddNotification(services.NotifyDanger, "撤单失败", base.Add(2*time.Second))

	if len(s.Notifications) != 2 {
		t.Fatalf("两条通知应该同时堆叠展示，实际 %d 条", len(s.Notifications))
	}

	// 4.9 秒：第一条还差 0.1 秒到期
	if s.PruneNotifications(base.Add(4900 * time.Millisecond)) {
		t.Error("到期前不应清除任何通知")
	}

	// 5 秒整：第一条到期，第二条还在
	if !s.PruneNotifications(base.Add(5 * time.Second)) {
		t.Fatal("第一条通知应在 5 秒后清除")
	}
	if len(s.Notifications) != 1 || s.Notifications[0].Message != "撤单失败" {
		t.Errorf("只应保留第二条通知，实际 %v", s.Notifications)
	}

	// 7 秒：第二条也到期
	s.PruneNotifications(base.Add(7 * time.Second))
	if len(s.Notifications) != 0 {
		t.Errorf("所有通知都应已清除，实际 %d 条", len(s.Notifications))
	}
}

func TestDismissNotificationsClearsAll(t *testing.T) {
	s := NewState("1m")
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	s.AddNotification(services.NotifyInfo, "后台刷新完成", base)
	s.AddNotification(services.NotifyWarning, "行情延迟", base)

	s.DismissNotifications()
	if len(s.Notifications) != 0 {
		t.Errorf("手动清除后不应残留通知，实际 %d 条", len(s.Notifications))
	}
}

func TestCancellableAt(t *testing.T) {
	s := NewState("1m")
	s.ApplyOrders([]domain.Order{
		{OrderID: "a", Status: domain.OrderStatusPending},
		{OrderID: "b", Status: domain.OrderStatusFilled},
	})

	if !s.CancellableAt(0) {
		t.Error("待成交订单应可撤")
	}
	if s.CancellableAt(1) {
		t.Error("已成交订单不应可撤")
	}
	if s.CancellableAt(-1) || s.CancellableAt(2) {
		t.Error("越界索引应返回 false")
	}
}
