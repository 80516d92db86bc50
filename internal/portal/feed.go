package portal

import (
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/weitingzhao/bifrost-trader/internal/domain"
)

// seedQuotes 预置标的的初始价（其余标的从 100 起步）
var seedQuotes = map[string]struct {
	price  float64
	volume int64
}{
	"AAPL": {175.50, 45000000},
	"MSFT": {380.25, 25000000},
	"SPY":  {456.78, 80000000},
	"QQQ":  {389.45, 52000000},
}

// maxStepBps 单次波动上限（基点）
const maxStepBps = 20

type quoteState struct {
	open   decimal.Decimal
	last   decimal.Decimal
	volume int64
}

// QuoteFeed 模拟行情源：按固定基点范围做随机游走。
// 价格用 decimal 计算，避免一长串浮点步进累积出 175.49999 这类脏价。
type QuoteFeed struct {
	mu     sync.RWMutex
	rng    *rand.Rand
	states map[string]*quoteState
}

// NewQuoteFeed 创建行情源并播种初始价
func NewQuoteFeed(symbols []string) *QuoteFeed {
	f := &QuoteFeed{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		states: make(map[string]*quoteState, len(symbols)),
	}
	for _, symbol := range symbols {
		open := decimal.NewFromInt(100)
		var volume int64 = 1000000
		if seed, ok := seedQuotes[symbol]; ok {
			open = decimal.NewFromFloat(seed.price)
			volume = seed.volume
		}
		f.states[symbol] = &quoteState{open: open, last: open, volume: volume}
	}
	return f
}

// Step 推进一个行情周期：每个标的随机游走一步
func (f *QuoteFeed) Step() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, st := range f.states {
		// [-maxStepBps, +maxStepBps] 基点
		bps := f.rng.Intn(2*maxStepBps+1) - maxStepBps
		step := st.last.Mul(decimal.NewFromInt(int64(bps))).Div(decimal.NewFromInt(10000))
		next := st.last.Add(step).Round(2)
		if next.LessThanOrEqual(decimal.Zero) {
			next = st.last
		}
		st.last = next
		st.volume += int64(f.rng.Intn(500000))
	}
}

// spread 固定半个价差
var halfSpread = decimal.NewFromFloat(0.05)

func (f *QuoteFeed) quoteLocked(symbol string, st *quoteState) domain.Quote {
	change := st.last.Sub(st.open)
	changePct := decimal.Zero
	if !st.open.IsZero() {
		changePct = change.Div(st.open).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return domain.Quote{
		Symbol:        symbol,
		Price:         st.last.InexactFloat64(),
		Change:        change.Round(2).InexactFloat64(),
		ChangePercent: changePct.InexactFloat64(),
		Volume:        st.volume,
		Bid:           st.last.Sub(halfSpread).Round(2).InexactFloat64(),
		Ask:           st.last.Add(halfSpread).Round(2).InexactFloat64(),
	}
}

// Snapshot 当前全部行情
func (f *QuoteFeed) Snapshot() map[string]domain.Quote {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]domain.Quote, len(f.states))
	for symbol, st := range f.states {
		out[symbol] = f.quoteLocked(symbol, st)
	}
	return out
}

// Quote 单个标的的行情，标的不存在时 ok 为 false
func (f *QuoteFeed) Quote(symbol string) (domain.Quote, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	st, ok := f.states[symbol]
	if !ok {
		return domain.Quote{}, false
	}
	return f.quoteLocked(symbol, st), true
}

// Has 标的是否在行情源中
func (f *QuoteFeed) Has(symbol string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.states[symbol]
	return ok
}

// LastPrice 标的的最新价（decimal，供成交模拟使用）
func (f *QuoteFeed) LastPrice(symbol string) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	st, ok := f.states[symbol]
	if !ok {
		return decimal.Zero, false
	}
	return st.last, true
}
