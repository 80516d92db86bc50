package portal

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/weitingzhao/bifrost-trader/internal/domain"
)

// 账户初始参数
var (
	seedCash     = decimal.NewFromInt(25000)
	seedHoldings = decimal.NewFromInt(75000) // 长期持仓估值，不参与模拟成交
	seedMargin   = decimal.NewFromInt(75000)

	buyingPowerMultiple = decimal.NewFromInt(4)
	dayTradingMultiple  = decimal.NewFromInt(8)
)

type position struct {
	quantity int64
}

// accountBook 模拟账户。成交会更新现金与持仓，
// 概要里的权益按最新行情对持仓估值。
type accountBook struct {
	mu        sync.RWMutex
	cash      decimal.Decimal
	holdings  decimal.Decimal
	margin    decimal.Decimal
	positions map[string]*position
}

func newAccountBook() *accountBook {
	return &accountBook{
		cash:      seedCash,
		holdings:  seedHoldings,
		margin:    seedMargin,
		positions: make(map[string]*position),
	}
}

// ApplyFill 按成交价更新现金与持仓
func (b *accountBook) ApplyFill(o domain.Order, fillPrice decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	notional := fillPrice.Mul(decimal.NewFromInt(int64(o.Quantity)))
	pos, ok := b.positions[o.Symbol]
	if !ok {
		pos = &position{}
		b.positions[o.Symbol] = pos
	}
	if o.Side == domain.SideBuy {
		b.cash = b.cash.Sub(notional)
		pos.quantity += int64(o.Quantity)
	} else {
		b.cash = b.cash.Add(notional)
		pos.quantity -= int64(o.Quantity)
	}
}

// Summary 按当前行情生成账户概要
func (b *accountBook) Summary(quotes map[string]domain.Quote) domain.AccountSummary {
	b.mu.RLock()
	defer b.mu.RUnlock()

	positionsValue := decimal.Zero
	for symbol, pos := range b.positions {
		if pos.quantity == 0 {
			continue
		}
		q, ok := quotes[symbol]
		if !ok {
			continue
		}
		positionsValue = positionsValue.Add(
			decimal.NewFromFloat(q.Price).Mul(decimal.NewFromInt(pos.quantity)))
	}

	equity := b.cash.Add(b.holdings).Add(positionsValue)
	return domain.AccountSummary{
		BuyingPower:           b.cash.Mul(buyingPowerMultiple).Round(2).InexactFloat64(),
		CashBalance:           b.cash.Round(2).InexactFloat64(),
		MarginUsed:            b.margin.Round(2).InexactFloat64(),
		Equity:                equity.Round(2).InexactFloat64(),
		DayTradingBuyingPower: b.cash.Mul(dayTradingMultiple).Round(2).InexactFloat64(),
	}
}
