package domain

import "testing"

func TestStatusColorMapping(t *testing.T) {
	cases := []struct {
		status OrderStatus
		want   BadgeColor
	}{
		{OrderStatusFilled, BadgeSuccess},
		{OrderStatusPending, BadgeWarning},
		{OrderStatusCancelled, BadgeSecondary},
		{OrderStatusRejected, BadgeDanger},
		{OrderStatus("PARTIAL"), BadgeSecondary}, // 未知状态兜底
		{OrderStatus(""), BadgeSecondary},
	}
	for _, c := range cases {
		if got := StatusColor(c.status); got != c.want {
			t.Errorf("StatusColor(%q) = %q, 期望 %q", c.status, got, c.want)
		}
	}
}

func TestSideColorMapping(t *testing.T) {
	if SideColor(SideBuy) != BadgeSuccess {
		t.Error("BUY 应为 success")
	}
	if SideColor(SideSell) != BadgeDanger {
		t.Error("SELL 应为 danger")
	}
	if SideColor(Side("SHORT")) != BadgeDanger {
		t.Error("未知方向应为 danger")
	}
}

func TestIsCancellable(t *testing.T) {
	cases := []struct {
		status OrderStatus
		want   bool
	}{
		{OrderStatusPending, true},
		{OrderStatusFilled, false},
		{OrderStatusCancelled, false},
		{OrderStatusRejected, false},
	}
	for _, c := range cases {
		o := Order{Status: c.status}
		if o.IsCancellable() != c.want {
			t.Errorf("IsCancellable(%q) = %v, 期望 %v", c.status, !c.want, c.want)
		}
	}
}

func TestConnectionColor(t *testing.T) {
	if ConnectionColor(StateConnected) != BadgeSuccess {
		t.Error("connected 应为 success")
	}
	if ConnectionColor(StateDisconnected) != BadgeDanger {
		t.Error("disconnected 应为 danger")
	}
}
