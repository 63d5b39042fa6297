// Package validate searches for a strength cutoff and holding horizon that
// generalize across a market, using leave-one-out cross validation over
// signal flip events.
package validate

import (
	"math"
	"sort"
	"time"

	"market-signals/internal/scoring"
	"market-signals/internal/series"
)

// Config controls the cutoff search and the validation acceptance bar.
type Config struct {
	Horizons      []int
	CutoffMin     float64
	CutoffMax     float64
	CutoffStep    float64
	TargetWinRate float64
	MinTrades     int
}

// DefaultConfig is the production search grid: three holding horizons and
// strength cutoffs from 50 to 90 in steps of 2.
func DefaultConfig() Config {
	return Config{
		Horizons:      []int{5, 10, 20},
		CutoffMin:     50,
		CutoffMax:     90,
		CutoffStep:    2,
		TargetWinRate: 0.55,
		MinTrades:     5,
	}
}

// Event is a status flip into BUY or SELL, with the direction-aligned
// forward returns at each horizon. A horizon that runs past the end of the
// series has no entry.
type Event struct {
	Symbol   string
	Date     time.Time
	Status   scoring.Status
	Strength float64
	Forward  map[int]float64
}

// Candidate is one evaluated (cutoff, horizon) cell.
type Candidate struct {
	Cutoff       float64 `json:"cutoff"`
	Horizon      int     `json:"horizon"`
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	WinRate      float64 `json:"winRate"`
	AvgReturn    float64 `json:"avgReturn"`
	MedianReturn float64 `json:"medianReturn"`
	ProfitFactor float64 `json:"profitFactor"`
	Coverage     float64 `json:"coverage"`
	MeetsTarget  bool    `json:"meetsTarget"`
}

// Summary aggregates held-out trades across all leave-one-out folds.
type Summary struct {
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	WinRate      float64 `json:"winRate"`
	AvgReturn    float64 `json:"avgReturn"`
	ProfitFactor float64 `json:"profitFactor"`
}

// ActiveSignal is a fresh flip on the latest day that clears the
// recommended cutoff.
type ActiveSignal struct {
	Symbol   string         `json:"symbol"`
	Status   scoring.Status `json:"status"`
	Strength float64        `json:"strength"`
	Date     time.Time      `json:"date"`
}

// Report is the validator's result for one market and mode.
type Report struct {
	Market         scoring.Market `json:"market"`
	Mode           scoring.Mode   `json:"mode"`
	GeneratedAt    time.Time      `json:"generatedAt"`
	Events         int            `json:"events"`
	Recommendation *Candidate     `json:"recommendation,omitempty"`
	HeldOut        Summary        `json:"heldOut"`
	Validated      bool           `json:"validated"`
	ActiveSignals  []ActiveSignal `json:"activeSignals,omitempty"`
}

// Run extracts flip events from every symbol's series, picks the best
// (cutoff, horizon) on the full sample, measures how that choice holds up
// when each event is left out in turn, and flags the active signals.
func Run(market scoring.Market, mode scoring.Mode, bySymbol map[string][]series.Point, cfg Config) *Report {
	report := &Report{
		Market:      market,
		Mode:        mode,
		GeneratedAt: time.Now().UTC(),
	}

	symbols := make([]string, 0, len(bySymbol))
	for symbol := range bySymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var all []Event
	for _, symbol := range symbols {
		all = append(all, ExtractEvents(symbol, bySymbol[symbol], cfg.Horizons)...)
	}
	report.Events = len(all)

	report.Recommendation = Best(all, cfg)
	if report.Recommendation == nil {
		return report
	}

	// Leave-one-out: refit the recommendation with each event excluded,
	// then score that event out of sample. A fold only counts when its
	// own recommendation clears the target win rate and the held-out
	// event clears the fold's cutoff.
	var heldOutReturns []float64
	train := make([]Event, 0, len(all)-1)
	for i, ev := range all {
		train = train[:0]
		train = append(train, all[:i]...)
		train = append(train, all[i+1:]...)

		rec := Best(train, cfg)
		if rec == nil || !rec.MeetsTarget {
			continue
		}
		if ev.Strength < rec.Cutoff {
			continue
		}
		if ret, ok := ev.Forward[rec.Horizon]; ok {
			heldOutReturns = append(heldOutReturns, ret)
		}
	}

	report.HeldOut = summarize(heldOutReturns)
	report.Validated = report.Recommendation.MeetsTarget &&
		report.HeldOut.Trades >= cfg.MinTrades &&
		report.HeldOut.WinRate >= cfg.TargetWinRate &&
		report.HeldOut.AvgReturn > 0

	report.ActiveSignals = activeSignals(symbols, bySymbol, report.Recommendation.Cutoff)
	return report
}

// ExtractEvents finds the flips into a directional status and computes the
// aligned forward return at each horizon that fits inside the series.
func ExtractEvents(symbol string, points []series.Point, horizons []int) []Event {
	var events []Event

	for i := range points {
		p := &points[i]
		if !isFlip(points, i) || p.Strength == nil {
			continue
		}

		forward := make(map[int]float64, len(horizons))
		for _, h := range horizons {
			j := i + h
			if j >= len(points) || p.Close == 0 {
				continue
			}
			ret := (points[j].Close - p.Close) / p.Close * 100
			if p.Status == scoring.StatusSell {
				ret = -ret
			}
			if !math.IsNaN(ret) && !math.IsInf(ret, 0) {
				forward[h] = ret
			}
		}

		events = append(events, Event{
			Symbol:   symbol,
			Date:     p.Date,
			Status:   p.Status,
			Strength: *p.Strength,
			Forward:  forward,
		})
	}

	return events
}

func isFlip(points []series.Point, i int) bool {
	p := points[i]
	if p.Status != scoring.StatusBuy && p.Status != scoring.StatusSell {
		return false
	}
	return i == 0 || points[i-1].Status != p.Status
}

// Best evaluates the full (cutoff, horizon) grid over the events and
// returns the strongest candidate with enough trades, or nil. Candidates
// whose win rate clears the target are preferred as a group; only when
// none clear it does selection fall back to the whole pool. Ties break by
// average return, then win rate, then coverage, then the higher cutoff.
func Best(events []Event, cfg Config) *Candidate {
	var qualifying, fallback *Candidate

	for _, horizon := range cfg.Horizons {
		evaluable := 0
		for _, ev := range events {
			if _, ok := ev.Forward[horizon]; ok {
				evaluable++
			}
		}
		if evaluable == 0 {
			continue
		}

		for cutoff := cfg.CutoffMin; cutoff <= cfg.CutoffMax+1e-9; cutoff += cfg.CutoffStep {
			c := evaluate(events, cutoff, horizon, evaluable, cfg.TargetWinRate)
			if c.Trades < cfg.MinTrades {
				continue
			}
			if c.MeetsTarget && (qualifying == nil || better(c, *qualifying)) {
				tmp := c
				qualifying = &tmp
			}
			if fallback == nil || better(c, *fallback) {
				tmp := c
				fallback = &tmp
			}
		}
	}

	if qualifying != nil {
		return qualifying
	}
	return fallback
}

func evaluate(events []Event, cutoff float64, horizon, evaluable int, targetWinRate float64) Candidate {
	c := Candidate{Cutoff: cutoff, Horizon: horizon}

	var returns []float64
	sum := 0.0
	sumPos := 0.0
	sumNeg := 0.0
	for _, ev := range events {
		if ev.Strength < cutoff {
			continue
		}
		ret, ok := ev.Forward[horizon]
		if !ok {
			continue
		}
		returns = append(returns, ret)
		sum += ret
		if ret > 0 {
			c.Wins++
			sumPos += ret
		} else if ret < 0 {
			sumNeg += -ret
		}
	}

	c.Trades = len(returns)
	if c.Trades > 0 {
		c.WinRate = float64(c.Wins) / float64(c.Trades)
		c.AvgReturn = sum / float64(c.Trades)
		c.MedianReturn = median(returns)
		c.Coverage = float64(c.Trades) / float64(evaluable)
		c.MeetsTarget = c.WinRate >= targetWinRate
		switch {
		case sumNeg > 0:
			c.ProfitFactor = sumPos / sumNeg
		case sumPos > 0:
			c.ProfitFactor = 100
		default:
			c.ProfitFactor = 0
		}
	}
	return c
}

func median(returns []float64) float64 {
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func better(a, b Candidate) bool {
	if a.AvgReturn != b.AvgReturn {
		return a.AvgReturn > b.AvgReturn
	}
	if a.WinRate != b.WinRate {
		return a.WinRate > b.WinRate
	}
	if a.Coverage != b.Coverage {
		return a.Coverage > b.Coverage
	}
	return a.Cutoff > b.Cutoff
}

func summarize(returns []float64) Summary {
	s := Summary{Trades: len(returns)}
	if len(returns) == 0 {
		return s
	}

	sum := 0.0
	sumPos := 0.0
	sumNeg := 0.0
	for _, r := range returns {
		sum += r
		if r > 0 {
			s.Wins++
			sumPos += r
		} else if r < 0 {
			sumNeg += -r
		}
	}

	s.WinRate = float64(s.Wins) / float64(s.Trades)
	s.AvgReturn = sum / float64(s.Trades)

	switch {
	case sumNeg > 0:
		s.ProfitFactor = sumPos / sumNeg
	case sumPos > 0:
		s.ProfitFactor = 100
	default:
		s.ProfitFactor = 0
	}

	return s
}

func activeSignals(symbols []string, bySymbol map[string][]series.Point, cutoff float64) []ActiveSignal {
	var active []ActiveSignal
	for _, symbol := range symbols {
		points := bySymbol[symbol]
		if len(points) == 0 {
			continue
		}
		last := len(points) - 1
		p := points[last]
		if !isFlip(points, last) || p.Strength == nil || *p.Strength < cutoff {
			continue
		}
		active = append(active, ActiveSignal{
			Symbol:   symbol,
			Status:   p.Status,
			Strength: *p.Strength,
			Date:     p.Date,
		})
	}
	return active
}
