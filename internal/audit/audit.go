// Package audit aggregates simulated trades into per-strategy performance
// reports for a market.
package audit

import (
	"math"
	"sort"
	"time"

	"market-signals/internal/scoring"
	"market-signals/internal/series"
	"market-signals/internal/simulator"
)

// topAssetLimit caps the per-strategy breakdown of best-traded symbols.
const topAssetLimit = 8

// AssetStats summarizes one symbol's closed trades under a strategy.
type AssetStats struct {
	Symbol    string  `json:"symbol"`
	Trades    int     `json:"trades"`
	AvgReturn float64 `json:"avgReturn"`
}

// StrategyStats is the performance summary of one strategy across a market.
type StrategyStats struct {
	Strategy        simulator.StrategyKey `json:"strategy"`
	Trades          int               `json:"trades"`
	Wins            int               `json:"wins"`
	WinRate         float64           `json:"winRate"`
	AvgReturnPct    float64           `json:"avgReturnPct"`
	MedianReturnPct float64           `json:"medianReturnPct"`
	TotalReturnPct  float64           `json:"totalReturnPct"`
	CompoundedValue float64           `json:"compoundedValue"`
	MaxDrawdownPct  float64           `json:"maxDrawdownPct"`
	AvgDaysHeld     float64           `json:"avgDaysHeld"`
	TopAssets       []AssetStats      `json:"topAssets,omitempty"`
}

// Report is a full audit of one market and mode.
type Report struct {
	Market      scoring.Market            `json:"market"`
	Mode        scoring.Mode              `json:"mode"`
	GeneratedAt time.Time                 `json:"generatedAt"`
	Symbols     int                       `json:"symbols"`
	Strategies  []StrategyStats           `json:"strategies"`
	Open        []simulator.OpenPosition  `json:"openPositions,omitempty"`

	// Trades holds the closed trades behind each strategy's stats. They
	// are persisted separately and kept out of the JSON payload.
	Trades map[simulator.StrategyKey][]simulator.Trade `json:"-"`
}

// Run simulates every strategy over every symbol's series and aggregates
// the results.
func Run(market scoring.Market, mode scoring.Mode, bySymbol map[string][]series.Point) *Report {
	report := &Report{
		Market:      market,
		Mode:        mode,
		GeneratedAt: time.Now().UTC(),
		Symbols:     len(bySymbol),
		Trades:      make(map[simulator.StrategyKey][]simulator.Trade),
	}

	symbols := make([]string, 0, len(bySymbol))
	for symbol := range bySymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, strategy := range simulator.Strategies() {
		var trades []simulator.Trade
		for _, symbol := range symbols {
			symTrades, open := simulator.Simulate(symbol, bySymbol[symbol], strategy)
			trades = append(trades, symTrades...)
			if open != nil {
				report.Open = append(report.Open, *open)
			}
		}
		report.Trades[strategy] = trades
		report.Strategies = append(report.Strategies, Compute(strategy, trades))
	}

	return report
}

// Compute builds a strategy summary from its closed trades. Trades are
// ordered chronologically before compounding so the equity walk is
// deterministic.
func Compute(strategy simulator.StrategyKey, trades []simulator.Trade) StrategyStats {
	stats := StrategyStats{Strategy: strategy, CompoundedValue: 100}
	if len(trades) == 0 {
		return stats
	}

	ordered := make([]simulator.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.ExitDate.Equal(b.ExitDate) {
			return a.ExitDate.Before(b.ExitDate)
		}
		if !a.EntryDate.Equal(b.EntryDate) {
			return a.EntryDate.Before(b.EntryDate)
		}
		return a.Symbol < b.Symbol
	})

	returns := make([]float64, len(ordered))
	totalDays := 0
	for i, t := range ordered {
		returns[i] = t.ReturnPct
		stats.TotalReturnPct += t.ReturnPct
		totalDays += t.DaysHeld
		if t.ReturnPct > 0 {
			stats.Wins++
		}
	}

	stats.Trades = len(ordered)
	stats.WinRate = float64(stats.Wins) / float64(stats.Trades)
	stats.AvgReturnPct = stats.TotalReturnPct / float64(stats.Trades)
	stats.MedianReturnPct = median(returns)
	stats.AvgDaysHeld = float64(totalDays) / float64(stats.Trades)
	stats.CompoundedValue, stats.MaxDrawdownPct = equityWalk(returns)
	stats.TopAssets = topAssets(ordered)

	return stats
}

// equityWalk compounds the trade returns from a base of 100 and tracks the
// worst peak-to-trough drawdown along the way.
func equityWalk(returns []float64) (final, maxDrawdown float64) {
	equity := 100.0
	peak := equity

	for _, r := range returns {
		equity *= 1 + r/100
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (peak - equity) / peak * 100
			if dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	return equity, math.Min(maxDrawdown, 100)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func topAssets(trades []simulator.Trade) []AssetStats {
	type acc struct {
		trades int
		sum    float64
	}
	perSymbol := make(map[string]*acc)
	for _, t := range trades {
		a := perSymbol[t.Symbol]
		if a == nil {
			a = &acc{}
			perSymbol[t.Symbol] = a
		}
		a.trades++
		a.sum += t.ReturnPct
	}

	assets := make([]AssetStats, 0, len(perSymbol))
	for symbol, a := range perSymbol {
		assets = append(assets, AssetStats{
			Symbol:    symbol,
			Trades:    a.trades,
			AvgReturn: a.sum / float64(a.trades),
		})
	}

	sort.Slice(assets, func(i, j int) bool {
		if assets[i].Trades != assets[j].Trades {
			return assets[i].Trades > assets[j].Trades
		}
		if assets[i].AvgReturn != assets[j].AvgReturn {
			return assets[i].AvgReturn > assets[j].AvgReturn
		}
		return assets[i].Symbol < assets[j].Symbol
	})

	if len(assets) > topAssetLimit {
		assets = assets[:topAssetLimit]
	}
	return assets
}
