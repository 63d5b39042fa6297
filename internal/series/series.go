// Package series builds walk-forward signal series: one scored point per
// trading day, each computed only from data available up to that day.
package series

import (
	"time"

	"market-signals/internal/indicator"
	"market-signals/internal/marketdata"
	"market-signals/internal/scoring"
)

// Window is the number of most recent trading days a series covers.
const Window = 200

// minHistory is the minimum candle count needed to emit a full window. The
// first point still needs enough history behind it for the slow moving
// average plus the return lookback.
const minHistory = Window + 2

// Point is one day of a walk-forward signal series.
type Point struct {
	Index    int       `json:"index"`
	Date     time.Time `json:"date"`
	Close    float64   `json:"close"`
	Score    int       `json:"score"`
	Status   scoring.Status `json:"status"`
	Strength *float64  `json:"strength,omitempty"`

	// Entry qualifications are only graded for directional points whose
	// strength clears the respective threshold.
	Entry70 *scoring.EntryResult `json:"entry70,omitempty"`
	Entry80 *scoring.EntryResult `json:"entry80,omitempty"`
}

// Eligible reports whether the point's strength clears the threshold and,
// when graded, its entry checklist passed.
func (p *Point) Eligible(threshold float64, requireEntry bool) bool {
	if p.Strength == nil || *p.Strength < threshold {
		return false
	}
	if !requireEntry {
		return true
	}
	entry := p.Entry70
	if threshold >= 80 {
		entry = p.Entry80
	}
	return entry != nil && entry.Qualifies
}

// Build computes the walk-forward series for the last Window days of the
// given candles. Each point sees only candles up to and including its own
// day. Returns nil when there is not enough history for a full window.
func Build(candles []marketdata.Candle, market scoring.Market, mode scoring.Mode) []Point {
	if len(candles) < minHistory {
		return nil
	}

	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	start := len(candles) - Window
	points := make([]Point, 0, Window)

	for day := start; day < len(candles); day++ {
		snap := indicator.Compute(closes[:day+1], volumes[:day+1])
		res := scoring.Score(snap, market, mode)
		strength := scoring.Strength(res.Status, res.Score)

		p := Point{
			Index:    day - start,
			Date:     candles[day].Time,
			Close:    candles[day].Close,
			Score:    res.Score,
			Status:   res.Status,
			Strength: strength,
		}

		if strength != nil {
			if *strength >= 70 {
				e := scoring.QualifyEntry(res.Status, *strength, 70, snap)
				p.Entry70 = &e
			}
			if *strength >= 80 {
				e := scoring.QualifyEntry(res.Status, *strength, 80, snap)
				p.Entry80 = &e
			}
		}

		points = append(points, p)
	}

	return points
}
