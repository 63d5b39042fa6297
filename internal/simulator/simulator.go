// Package simulator replays trading strategies over walk-forward signal
// series. Positions are held one at a time per symbol and every decision
// uses only the information visible at that day's close.
package simulator

import (
	"math"
	"time"

	"market-signals/internal/scoring"
	"market-signals/internal/series"
)

// StrategyKey names a replayable strategy.
type StrategyKey string

const (
	// StrategyStatusFlip enters on any directional status and exits when
	// the status changes.
	StrategyStatusFlip StrategyKey = "status_flip"

	// Strength-gated strategies enter when status strength clears the
	// threshold and exit when it no longer does.
	StrategyStrength70 StrategyKey = "strength_70"
	StrategyStrength80 StrategyKey = "strength_80"

	// Entry-gated strategies additionally require the entry checklist to
	// pass before opening. The checklist only gates entries; exits follow
	// the strength rule.
	StrategyEntry70 StrategyKey = "entry_70"
	StrategyEntry80 StrategyKey = "entry_80"
)

// Strategies returns all strategy keys in their canonical order.
func Strategies() []StrategyKey {
	return []StrategyKey{
		StrategyStatusFlip,
		StrategyStrength70,
		StrategyStrength80,
		StrategyEntry70,
		StrategyEntry80,
	}
}

func (k StrategyKey) threshold() float64 {
	switch k {
	case StrategyStrength70, StrategyEntry70:
		return 70
	case StrategyStrength80, StrategyEntry80:
		return 80
	default:
		return 0
	}
}

func (k StrategyKey) requiresEntry() bool {
	return k == StrategyEntry70 || k == StrategyEntry80
}

// Trade is one closed round trip.
type Trade struct {
	Symbol     string         `json:"symbol"`
	Strategy   StrategyKey    `json:"strategy"`
	Side       scoring.Status `json:"side"`
	EntryDate  time.Time      `json:"entryDate"`
	ExitDate   time.Time      `json:"exitDate"`
	EntryPrice float64        `json:"entryPrice"`
	ExitPrice  float64        `json:"exitPrice"`
	EntryScore int            `json:"entryScore"`
	ExitScore  int            `json:"exitScore"`
	DaysHeld   int            `json:"daysHeld"`
	ReturnPct  float64        `json:"returnPct"`
}

// OpenPosition is a position still live at the end of the series, marked to
// the last close.
type OpenPosition struct {
	Symbol        string         `json:"symbol"`
	Strategy      StrategyKey    `json:"strategy"`
	Side          scoring.Status `json:"side"`
	EntryDate     time.Time      `json:"entryDate"`
	EntryPrice    float64        `json:"entryPrice"`
	EntryScore    int            `json:"entryScore"`
	DaysHeld      int            `json:"daysHeld"`
	UnrealizedPct float64        `json:"unrealizedPct"`
}

// position is the simulator's FSM value while a trade is live.
type position struct {
	side       scoring.Status
	entryIndex int
	entryDate  time.Time
	entryPrice float64
	entryScore int
}

// Simulate replays one strategy over a symbol's signal series. It returns
// the closed trades in order plus the still-open position, if any.
func Simulate(symbol string, points []series.Point, strategy StrategyKey) ([]Trade, *OpenPosition) {
	threshold := strategy.threshold()
	requireEntry := strategy.requiresEntry()

	directional := func(p *series.Point) bool {
		return p.Status == scoring.StatusBuy || p.Status == scoring.StatusSell
	}
	enterOK := func(p *series.Point) bool {
		if !directional(p) {
			return false
		}
		if strategy == StrategyStatusFlip {
			return true
		}
		return p.Eligible(threshold, requireEntry)
	}
	holdOK := func(p *series.Point, side scoring.Status) bool {
		if p.Status != side {
			return false
		}
		if strategy == StrategyStatusFlip {
			return true
		}
		// Exits ignore the entry checklist.
		return p.Eligible(threshold, false)
	}

	var trades []Trade
	var open *position

	for i := range points {
		p := &points[i]

		if open != nil && !holdOK(p, open.side) {
			if t, ok := closeTrade(symbol, strategy, open, p); ok {
				trades = append(trades, t)
			}
			open = nil
		}

		if open == nil && enterOK(p) {
			// Enter only on the transition into eligibility; a signal
			// that was already actionable yesterday is stale.
			if i > 0 && points[i-1].Status == p.Status && enterOK(&points[i-1]) {
				continue
			}
			open = &position{
				side:       p.Status,
				entryIndex: p.Index,
				entryDate:  p.Date,
				entryPrice: p.Close,
				entryScore: p.Score,
			}
		}
	}

	if open == nil || len(points) == 0 {
		return trades, nil
	}

	last := points[len(points)-1]
	unrealized := tradeReturn(open.side, open.entryPrice, last.Close)
	if !isFinite(unrealized) {
		return trades, nil
	}

	return trades, &OpenPosition{
		Symbol:        symbol,
		Strategy:      strategy,
		Side:          open.side,
		EntryDate:     open.entryDate,
		EntryPrice:    open.entryPrice,
		EntryScore:    open.entryScore,
		DaysHeld:      last.Index - open.entryIndex,
		UnrealizedPct: unrealized,
	}
}

func closeTrade(symbol string, strategy StrategyKey, pos *position, exit *series.Point) (Trade, bool) {
	ret := tradeReturn(pos.side, pos.entryPrice, exit.Close)
	if !isFinite(ret) {
		return Trade{}, false
	}

	return Trade{
		Symbol:     symbol,
		Strategy:   strategy,
		Side:       pos.side,
		EntryDate:  pos.entryDate,
		ExitDate:   exit.Date,
		EntryPrice: pos.entryPrice,
		ExitPrice:  exit.Close,
		EntryScore: pos.entryScore,
		ExitScore:  exit.Score,
		DaysHeld:   exit.Index - pos.entryIndex,
		ReturnPct:  ret,
	}, true
}

// tradeReturn is the percent return of the round trip, negated for short
// sides so that profitable SELL trades are positive.
func tradeReturn(side scoring.Status, entry, exit float64) float64 {
	if entry == 0 {
		return math.NaN()
	}
	ret := (exit - entry) / entry * 100
	if side == scoring.StatusSell {
		ret = -ret
	}
	return ret
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
