package dashboard

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ChartRenderer 图表渲染器。
// 周期切换只改变渲染参数，数据来源不变，
// 所以渲染器只拿到采样序列，不关心数据怎么来的。
type ChartRenderer interface {
	Render(symbol string, timeframe string, prices []float64, width int) string
}

// sparkTicks 火花线字符，从低到高
var sparkTicks = []rune("▁▂▃▄▅▆▇█")

// Sparkline 单行火花线渲染器（终端里最紧凑的价格走势表达）
type Sparkline struct{}

// Render 把价格序列渲染为一行火花线
func (Sparkline) Render(symbol string, timeframe string, prices []float64, width int) string {
	if len(prices) == 0 {
		return fmt.Sprintf("%s [%s] 暂无数据", symbol, timeframe)
	}
	if width < 10 {
		width = 10
	}
	if len(prices) > width {
		prices = prices[len(prices)-width:]
	}

	lo, hi := prices[0], prices[0]
	for _, p := range prices {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}

	var b strings.Builder
	span := hi - lo
	for _, p := range prices {
		idx := 0
		if span > 0 {
			idx = int((p - lo) / span * float64(len(sparkTicks)-1))
		}
		b.WriteRune(sparkTicks[idx])
	}
	return fmt.Sprintf("%s [%s] %s %.2f", symbol, timeframe, b.String(), prices[len(prices)-1])
}

// timeframeBuckets 各周期的采样间隔
var timeframeBuckets = map[string]time.Duration{
	"1m": time.Second,
	"5m": 5 * time.Second,
	"1h": time.Minute,
	"1d": 15 * time.Minute,
}

// PriceHistory 按标的、按周期记录价格采样，供图表渲染。
// 每个周期各自降采样，容量固定，旧样本滚动淘汰。
type PriceHistory struct {
	mu       sync.RWMutex
	capacity int
	series   map[string]map[string]*sampledSeries
}

type sampledSeries struct {
	bucket     time.Duration
	lastSample time.Time
	prices     []float64
}

// NewPriceHistory 创建价格历史，capacity 为每条序列保留的样本数
func NewPriceHistory(capacity int) *PriceHistory {
	if capacity <= 0 {
		capacity = 120
	}
	return &PriceHistory{
		capacity: capacity,
		series:   make(map[string]map[string]*sampledSeries),
	}
}

// Observe 记录一次价格观测（对所有周期各自降采样）
func (h *PriceHistory) Observe(symbol string, price float64, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	perTF, ok := h.series[symbol]
	if !ok {
		perTF = make(map[string]*sampledSeries, len(Timeframes))
		h.series[symbol] = perTF
	}

	for _, tf := range Timeframes {
		ss, ok := perTF[tf]
		if !ok {
			ss = &sampledSeries{bucket: timeframeBuckets[tf]}
			perTF[tf] = ss
		}
		if !ss.lastSample.IsZero() && now.Sub(ss.lastSample) < ss.bucket {
			// 同一采样桶内只保留第一笔，后续更新覆盖末尾样本
			if len(ss.prices) > 0 {
				ss.prices[len(ss.prices)-1] = price
			}
			continue
		}
		ss.lastSample = now
		ss.prices = append(ss.prices, price)
		if len(ss.prices) > h.capacity {
			ss.prices = ss.prices[len(ss.prices)-h.capacity:]
		}
	}
}

// Series 返回指定标的与周期的价格序列副本
func (h *PriceHistory) Series(symbol string, timeframe string) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	perTF, ok := h.series[symbol]
	if !ok {
		return nil
	}
	ss, ok := perTF[timeframe]
	if !ok {
		return nil
	}
	out := make([]float64, len(ss.prices))
	copy(out, ss.prices)
	return out
}
