package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/weitingzhao/bifrost-trader/internal/domain"
	"github.com/weitingzhao/bifrost-trader/internal/services"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
	panelStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)

	// badgeStyles 语义色到终端色的固定映射
	badgeStyles = map[domain.BadgeColor]lipgloss.Style{
		domain.BadgeSuccess:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46")),
		domain.BadgeWarning:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220")),
		domain.BadgeDanger:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		domain.BadgeSecondary: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}

	notifyStyles = map[services.NotifyLevel]lipgloss.Style{
		services.NotifySuccess: badgeStyles[domain.BadgeSuccess],
		services.NotifyDanger:  badgeStyles[domain.BadgeDanger],
		services.NotifyWarning: badgeStyles[domain.BadgeWarning],
		services.NotifyInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	}
)

func badge(color domain.BadgeColor, text string) string {
	return badgeStyles[color].Render(text)
}

func (m model) View() string {
	availableWidth := m.width - 4
	if availableWidth < 76 {
		availableWidth = 76
	}
	leftWidth := availableWidth/2 - 1
	rightWidth := availableWidth - leftWidth - 2

	left := lipgloss.JoinVertical(lipgloss.Left,
		panelStyle.Width(leftWidth).Render(m.renderAccount(leftWidth)),
		panelStyle.Width(leftWidth).Render(m.renderQuotes(leftWidth)),
		panelStyle.Width(leftWidth).Render(m.renderChart(leftWidth)),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		panelStyle.Width(rightWidth).Render(m.renderOrders(rightWidth)),
		panelStyle.Width(rightWidth).Render(m.renderTradeForm(rightWidth)),
	)

	sections := []string{
		m.renderHeader(),
		lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right),
	}
	if notifications := m.renderNotifications(); notifications != "" {
		sections = append(sections, notifications)
	}
	sections = append(sections, dimStyle.Render(
		"tab 切换焦点 | enter 下单 | c 撤单 | b/s 方向 | m/l 类型 | 1-4 周期 | x 清除提示 | q 退出"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m model) renderHeader() string {
	conn := badge(domain.ConnectionColor(m.state.Connection), "● "+string(m.state.Connection))
	title := titleStyle.Render("Bifrost Trader")
	clock := dimStyle.Render(m.now.Format("15:04:05"))
	return lipgloss.NewStyle().Padding(0, 1).Render(
		fmt.Sprintf("%s  %s  %s", title, conn, clock))
}

func (m model) renderAccount(width int) string {
	a := m.state.Account
	var lines []string
	lines = append(lines, titleStyle.Render("Account"))
	lines = append(lines, strings.Repeat("─", width-2))
	lines = append(lines, fmt.Sprintf("Equity:       $%12.2f", a.Equity))
	lines = append(lines, fmt.Sprintf("Cash:         $%12.2f", a.CashBalance))
	lines = append(lines, fmt.Sprintf("Buying Power: $%12.2f", a.BuyingPower))
	lines = append(lines, fmt.Sprintf("Margin Used:  $%12.2f", a.MarginUsed))
	lines = append(lines, fmt.Sprintf("Day Trading:  $%12.2f", a.DayTradingBuyingPower))
	return strings.Join(lines, "\n")
}

func (m model) renderQuotes(width int) string {
	var lines []string
	lines = append(lines, titleStyle.Render("Market"))
	lines = append(lines, strings.Repeat("─", width-2))

	symbols := m.state.SortedSymbols()
	if len(symbols) == 0 {
		lines = append(lines, dimStyle.Render("等待行情..."))
		return strings.Join(lines, "\n")
	}

	lines = append(lines, dimStyle.Render(
		fmt.Sprintf("%-6s %10s %8s %8s %10s", "SYM", "PRICE", "CHG%", "BID/ASK", "VOL")))
	for _, symbol := range symbols {
		q := m.state.Quotes[symbol]
		chgColor := domain.BadgeSuccess
		if q.Change < 0 {
			chgColor = domain.BadgeDanger
		}
		lines = append(lines, fmt.Sprintf("%-6s %10.2f %s %8s %10d",
			symbol, q.Price,
			badge(chgColor, fmt.Sprintf("%+7.2f%%", q.ChangePercent)),
			fmt.Sprintf("%.1f/%.1f", q.Bid, q.Ask),
			q.Volume))
	}
	return strings.Join(lines, "\n")
}

func (m model) renderChart(width int) string {
	var lines []string

	// 周期选择器：互斥高亮当前激活项
	var tabs []string
	for _, tf := range Timeframes {
		if tf == m.state.Timeframe {
			tabs = append(tabs, activeStyle.Render("["+tf+"]"))
		} else {
			tabs = append(tabs, dimStyle.Render(" "+tf+" "))
		}
	}
	lines = append(lines, titleStyle.Render("Chart ")+strings.Join(tabs, " "))
	lines = append(lines, strings.Repeat("─", width-2))

	symbols := m.state.SortedSymbols()
	if len(symbols) == 0 {
		lines = append(lines, dimStyle.Render("暂无数据"))
		return strings.Join(lines, "\n")
	}
	for _, symbol := range symbols {
		series := m.history.Series(symbol, m.state.Timeframe)
		lines = append(lines, m.chart.Render(symbol, m.state.Timeframe, series, width-14))
	}
	return strings.Join(lines, "\n")
}

// renderOrders 订单表。空列表渲染占位行；
// 撤单标记只出现在待成交订单上。
func (m model) renderOrders(width int) string {
	var lines []string
	header := titleStyle.Render("Orders")
	if m.focus == focusOrders {
		header += activeStyle.Render(" ◀")
	}
	lines = append(lines, header)
	lines = append(lines, strings.Repeat("─", width-2))

	if len(m.state.Orders) == 0 {
		lines = append(lines, dimStyle.Render("No active orders"))
		return strings.Join(lines, "\n")
	}

	for i, o := range m.state.Orders {
		cursor := "  "
		if m.focus == focusOrders && i == m.selected {
			cursor = activeStyle.Render("▸ ")
		}
		price := "MKT"
		if o.Price != nil {
			price = fmt.Sprintf("%.2f", *o.Price)
		}
		cancelMark := "   "
		if o.IsCancellable() {
			cancelMark = dimStyle.Render("[c]")
		}
		lines = append(lines, fmt.Sprintf("%s%-6s %s %5d @%-8s %s %s",
			cursor,
			o.Symbol,
			badge(domain.SideColor(o.Side), fmt.Sprintf("%-4s", o.Side)),
			o.Quantity,
			price,
			badge(domain.StatusColor(o.Status), fmt.Sprintf("%-9s", o.Status)),
			cancelMark))
	}
	return strings.Join(lines, "\n")
}

func (m model) renderTradeForm(width int) string {
	field := func(zone focusZone, label, value string) string {
		if value == "" {
			value = dimStyle.Render("_")
		}
		if m.focus == zone {
			return fmt.Sprintf("%s %s%s", label, value, activeStyle.Render("▌"))
		}
		return fmt.Sprintf("%s %s", label, value)
	}

	priceLabel := "Price: "
	if m.form.OrderType == domain.OrderTypeMarket {
		priceLabel = dimStyle.Render("Price:*")
	}

	var lines []string
	lines = append(lines, titleStyle.Render("Quick Trade"))
	lines = append(lines, strings.Repeat("─", width-2))
	lines = append(lines, field(focusSymbol, "Symbol:", m.form.Symbol))
	lines = append(lines, field(focusQuantity, "Qty:   ", m.form.Quantity))
	lines = append(lines, field(focusPrice, priceLabel, m.form.Price))
	lines = append(lines, fmt.Sprintf("Side: %s  Type: %s",
		badge(domain.SideColor(m.form.Side), string(m.form.Side)),
		string(m.form.OrderType)))
	if m.submitting {
		lines = append(lines, dimStyle.Render("提交中..."))
	}
	return strings.Join(lines, "\n")
}

func (m model) renderNotifications() string {
	if len(m.state.Notifications) == 0 {
		return ""
	}
	var lines []string
	for _, n := range m.state.Notifications {
		style, ok := notifyStyles[n.Level]
		if !ok {
			style = dimStyle
		}
		lines = append(lines, style.Render("▌ ")+n.Message)
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
}
