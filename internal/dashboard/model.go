package dashboard

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/weitingzhao/bifrost-trader/internal/domain"
	"github.com/weitingzhao/bifrost-trader/internal/services"
)

// 消息类型：外部数据到达时由 Dashboard 通过 program.Send 注入

type quotesMsg map[string]domain.Quote

type ordersMsg []domain.Order

type accountMsg domain.AccountSummary

type connMsg domain.ConnectionState

type notifyMsg struct {
	level   services.NotifyLevel
	message string
}

type tickMsg time.Time

type submitDoneMsg struct {
	cleared bool
}

// orderActions 下单/撤单能力（*services.OrderService 实现）
type orderActions interface {
	Submit(ctx context.Context, ticket services.OrderTicket) bool
	Cancel(ctx context.Context, orderID string)
}

// 焦点区域
type focusZone int

const (
	focusSymbol focusZone = iota
	focusQuantity
	focusPrice
	focusOrders
	focusZoneCount
)

// quickTradeForm 快捷下单表单（原始字符串输入，提交时才校验）
type quickTradeForm struct {
	Symbol    string
	Quantity  string
	Price     string
	Side      domain.Side
	OrderType domain.OrderType
}

func newQuickTradeForm() quickTradeForm {
	return quickTradeForm{
		Side:      domain.SideBuy,
		OrderType: domain.OrderTypeMarket,
	}
}

func (f quickTradeForm) ticket() services.OrderTicket {
	return services.OrderTicket{
		Symbol:    f.Symbol,
		Side:      f.Side,
		Quantity:  f.Quantity,
		OrderType: f.OrderType,
		Price:     f.Price,
	}
}

type model struct {
	state   *State
	history *PriceHistory
	chart   ChartRenderer
	orders  orderActions

	form     quickTradeForm
	focus    focusZone
	selected int

	submitting bool

	width  int
	height int
	now    time.Time
}

func newModel(state *State, history *PriceHistory, chart ChartRenderer, orders orderActions) model {
	return model{
		state:   state,
		history: history,
		chart:   chart,
		orders:  orders,
		form:    newQuickTradeForm(),
		now:     time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return m.tick()
}

func (m model) tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		m.state.PruneNotifications(m.now)
		return m, m.tick()

	case quotesMsg:
		m.state.ApplyQuotes(map[string]domain.Quote(msg))
		now := time.Now()
		for symbol, q := range msg {
			m.history.Observe(symbol, q.Price, now)
		}
		return m, nil

	case ordersMsg:
		m.state.ApplyOrders([]domain.Order(msg))
		if m.selected >= len(m.state.Orders) {
			m.selected = len(m.state.Orders) - 1
		}
		if m.selected < 0 {
			m.selected = 0
		}
		return m, nil

	case accountMsg:
		m.state.ApplyAccount(domain.AccountSummary(msg))
		return m, nil

	case connMsg:
		m.state.SetConnection(domain.ConnectionState(msg))
		return m, nil

	case notifyMsg:
		m.state.AddNotification(msg.level, msg.message, time.Now())
		return m, nil

	case submitDoneMsg:
		m.submitting = false
		if msg.cleared {
			m.form = newQuickTradeForm()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.focus = (m.focus + 1) % focusZoneCount
		return m, nil
	case "shift+tab":
		m.focus = (m.focus + focusZoneCount - 1) % focusZoneCount
		return m, nil
	case "enter":
		return m.submit()
	}

	if m.focus == focusOrders {
		return m.handleOrdersKey(key)
	}
	return m.handleFormKey(key)
}

// handleOrdersKey 订单区按键：移动光标、撤单、切换周期/方向/类型
func (m model) handleOrdersKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.state.Orders)-1 {
			m.selected++
		}
	case "c":
		// 撤单操作只对待成交订单可用
		if m.state.CancellableAt(m.selected) {
			orderID := m.state.Orders[m.selected].OrderID
			return m, func() tea.Msg {
				m.orders.Cancel(context.Background(), orderID)
				return nil
			}
		}
	case "b":
		m.form.Side = domain.SideBuy
	case "s":
		m.form.Side = domain.SideSell
	case "m":
		m.form.OrderType = domain.OrderTypeMarket
	case "l":
		m.form.OrderType = domain.OrderTypeLimit
	case "x":
		m.state.DismissNotifications()
	case "1", "2", "3", "4":
		idx := int(key[0] - '1')
		if idx < len(Timeframes) {
			m.state.SelectTimeframe(Timeframes[idx])
		}
	}
	return m, nil
}

// handleFormKey 表单区按键：文本输入
func (m model) handleFormKey(key string) (tea.Model, tea.Cmd) {
	field := m.focusedField()
	if field == nil {
		return m, nil
	}

	switch key {
	case "backspace":
		if len(*field) > 0 {
			*field = (*field)[:len(*field)-1]
		}
	case "esc":
		*field = ""
	default:
		if len(key) == 1 && key[0] >= ' ' {
			*field += key
			if m.focus == focusSymbol {
				*field = strings.ToUpper(*field)
			}
		}
	}
	return m, nil
}

func (m *model) focusedField() *string {
	switch m.focus {
	case focusSymbol:
		return &m.form.Symbol
	case focusQuantity:
		return &m.form.Quantity
	case focusPrice:
		return &m.form.Price
	}
	return nil
}

// submit 异步提交订单，结果通过 Notifier 以通知形式回到界面
func (m model) submit() (tea.Model, tea.Cmd) {
	if m.submitting || m.orders == nil {
		return m, nil
	}
	m.submitting = true
	ticket := m.form.ticket()
	return m, func() tea.Msg {
		cleared := m.orders.Submit(context.Background(), ticket)
		return submitDoneMsg{cleared: cleared}
	}
}
