package dashboard

import (
	"sort"
	"time"

	"github.com/weitingzhao/bifrost-trader/internal/domain"
	"github.com/weitingzhao/bifrost-trader/internal/services"
)

// notificationTTL 提示条展示时长，到期自动消失
const notificationTTL = 5 * time.Second

// Timeframes 图表周期选项（顺序即界面展示顺序）
var Timeframes = []string{"1m", "5m", "1h", "1d"}

// Notification 一条界面提示
type Notification struct {
	Level     services.NotifyLevel
	Message   string
	CreatedAt time.Time
}

// State 仪表盘的全部视图状态。
// 所有写入都是整体替换：每次收到新数据直接覆盖对应字段，
// 不做字段级合并，界面永远展示某一时刻的完整快照。
type State struct {
	Connection domain.ConnectionState
	Account    domain.AccountSummary
	Quotes     map[string]domain.Quote
	Orders     []domain.Order

	Timeframe     string
	Notifications []Notification
}

// NewState 创建初始状态：断开连接、空数据、默认周期
func NewState(defaultTimeframe string) *State {
	tf := defaultTimeframe
	if !validTimeframe(tf) {
		tf = Timeframes[0]
	}
	return &State{
		Connection: domain.StateDisconnected,
		Quotes:     make(map[string]domain.Quote),
		Timeframe:  tf,
	}
}

func validTimeframe(tf string) bool {
	for _, t := range Timeframes {
		if t == tf {
			return true
		}
	}
	return false
}

// ApplyQuotes 整体替换行情
func (s *State) ApplyQuotes(quotes map[string]domain.Quote) {
	if quotes == nil {
		quotes = make(map[string]domain.Quote)
	}
	s.Quotes = quotes
}

// ApplyOrders 整体替换订单列表
func (s *State) ApplyOrders(orders []domain.Order) {
	s.Orders = orders
}

// ApplyAccount 整体替换账户概要
func (s *State) ApplyAccount(summary domain.AccountSummary) {
	s.Account = summary
}

// SetConnection 更新连接状态指示
func (s *State) SetConnection(state domain.ConnectionState) {
	s.Connection = state
}

// SelectTimeframe 切换图表周期。
// 周期选择是互斥的：任意时刻只有一个激活项，非法值直接忽略。
func (s *State) SelectTimeframe(tf string) {
	if !validTimeframe(tf) {
		return
	}
	s.Timeframe = tf
}

// AddNotification 追加一条提示（新提示堆叠在已有提示之后）
func (s *State) AddNotification(level services.NotifyLevel, message string, now time.Time) {
	s.Notifications = append(s.Notifications, Notification{
		Level:     level,
		Message:   message,
		CreatedAt: now,
	})
}

// DismissNotifications 清空全部提示
func (s *State) DismissNotifications() {
	s.Notifications = nil
}

// PruneNotifications 移除超过展示时长的提示，返回是否有变化
func (s *State) PruneNotifications(now time.Time) bool {
	if len(s.Notifications) == 0 {
		return false
	}
	kept := s.Notifications[:0]
	for _, n := range s.Notifications {
		if now.Sub(n.CreatedAt) < notificationTTL {
			kept = append(kept, n)
		}
	}
	changed := len(kept) != len(s.Notifications)
	s.Notifications = kept
	return changed
}

// SortedSymbols 返回按字典序排序的标的列表（map 遍历顺序不稳定）
func (s *State) SortedSymbols() []string {
	symbols := make([]string, 0, len(s.Quotes))
	for symbol := range s.Quotes {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// CancellableAt 第 idx 行订单是否可撤（越界返回 false）
func (s *State) CancellableAt(idx int) bool {
	if idx < 0 || idx >= len(s.Orders) {
		return false
	}
	return s.Orders[idx].IsCancellable()
}
