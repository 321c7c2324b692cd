package detect

import (
	"math"
	"sort"
	"time"

	"stock-radar/internal/config"
	"stock-radar/internal/provider"
)

// Percentile returns the p-th percentile (0-100) of values using linear
// interpolation between closest ranks. Returns 0 for an empty slice.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	pos := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// Mean returns the arithmetic mean of values, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SMA returns the simple moving average of the last period closes. Returns
// 0 and false when fewer than period observations exist.
func SMA(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}
	return Mean(closes[len(closes)-period:]), true
}

// ThresholdFloor clamps a baseline-derived threshold so a sparse or placid
// history never produces a hair-trigger: the configured default is the floor.
func ThresholdFloor(derived, floor float64) float64 {
	return math.Max(derived, floor)
}

// tail returns the last n elements of values, or all of them when fewer.
func tail(values []float64, n int) []float64 {
	if n <= 0 || len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// DailyBaseline holds the per-symbol benchmarks the trading detector
// compares intraday observations against. Recomputed from daily bars on
// every sweep, never cached.
type DailyBaseline struct {
	PriceJumpThreshold  float64         // 90th percentile of abs daily %change
	VolumeBenchmark     float64         // mean daily volume
	VolatilityThreshold float64         // percentile of abs daily returns, fractional
	MAValues            map[int]float64 // period -> latest SMA of closes
	LatestDailyClose    float64
	CalcTime            time.Time
}

// ComputeDailyBaseline derives the trading benchmarks from daily candles,
// oldest first.
func ComputeDailyBaseline(candles []provider.Candle, cfg config.TradingConfig) *DailyBaseline {
	if len(candles) == 0 {
		return nil
	}

	pctChanges := make([]float64, 0, len(candles))
	volumes := make([]float64, 0, len(candles))
	closes := make([]float64, 0, len(candles))
	for _, c := range candles {
		pctChanges = append(pctChanges, math.Abs(c.PctChange))
		volumes = append(volumes, c.Volume)
		closes = append(closes, c.Close)
	}

	// Daily returns from consecutive closes, abs.
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] != 0 {
			returns = append(returns, math.Abs(closes[i]/closes[i-1]-1))
		}
	}

	volatility := cfg.DefaultVolatility
	if recent := tail(returns, cfg.VolatilityLookback); len(recent) > 0 {
		volatility = Percentile(recent, cfg.VolatilityPercentile)
	}

	maValues := make(map[int]float64, len(cfg.MAPeriods))
	for _, period := range cfg.MAPeriods {
		if v, ok := SMA(closes, period); ok {
			maValues[period] = v
		}
	}

	return &DailyBaseline{
		PriceJumpThreshold:  Percentile(tail(pctChanges, cfg.PriceLookback), 90),
		VolumeBenchmark:     Mean(tail(volumes, cfg.VolumeLookback)),
		VolatilityThreshold: volatility,
		MAValues:            maValues,
		LatestDailyClose:    closes[len(closes)-1],
		CalcTime:            time.Now(),
	}
}

// CompanyBaseline holds the historical disclosure benchmarks for one symbol.
type CompanyBaseline struct {
	ProfitChangeThreshold float64 // abs %change percentile, floored
	UnlockRatioThreshold  float64 // % of total shares percentile, floored
}
