package domain

// Quote 单个标的的行情快照。
// 每条 market_data 消息整体覆盖，不保留历史。
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	Bid           float64 `json:"bid"`
	Ask           float64 `json:"ask"`
}

// AccountSummary 账户概要，每次获取整体覆盖
type AccountSummary struct {
	BuyingPower           float64 `json:"buying_power"`
	CashBalance           float64 `json:"cash_balance"`
	MarginUsed            float64 `json:"margin_used"`
	Equity                float64 `json:"equity"`
	DayTradingBuyingPower float64 `json:"day_trading_buying_power"`
}

// ConnectionState 实时通道连接状态
type ConnectionState string

const (
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
)

// ConnectionColor 连接状态徽章颜色
func ConnectionColor(state ConnectionState) BadgeColor {
	if state == StateConnected {
		return BadgeSuccess
	}
	return BadgeDanger
}
