package scoring

import (
	"math"

	"market-signals/internal/indicator"
)

// EntryResult is the outcome of qualifying a signal for entry at a given
// strength threshold.
type EntryResult struct {
	Score     int  `json:"score"`
	Qualifies bool `json:"qualifies"`
}

// Entry pass minimums per strength threshold. The stricter 80 threshold
// tolerates slightly less slack in the checklist.
const (
	entryPassAt70 = 60
	entryPassAt80 = 65
)

// QualifyEntry grades a BUY or SELL signal against a checklist of six point
// categories worth 100 points in total. Missing inputs earn half credit for
// their category rather than failing it, so thin data degrades the score
// gracefully. Threshold must be 70 or 80, matching the strength-gated
// strategies.
func QualifyEntry(status Status, strength float64, threshold float64, snap indicator.Snapshot) EntryResult {
	pts := 0.0
	pts += headroomPoints(strength, threshold)
	pts += momentumPoints(status, snap.Trend)
	pts += structurePoints(status, snap.Trend)
	pts += rsiComfortPoints(status, snap.RSI)
	pts += volumeSanityPoints(snap.Volume.Ratio)
	pts += volatilitySanityPoints(snap.Volatility.Stdev20)

	score := int(math.Round(pts))

	pass := entryPassAt70
	if threshold >= 80 {
		pass = entryPassAt80
	}

	return EntryResult{Score: score, Qualifies: score >= pass}
}

// headroomPoints (max 20): how far strength clears the threshold, two
// points per point of margin.
func headroomPoints(strength, threshold float64) float64 {
	margin := strength - threshold
	if margin <= 0 {
		return 0
	}
	return math.Min(20, margin*2)
}

// momentumPoints (max 20): short and medium returns aligned with the
// trade direction.
func momentumPoints(status Status, t indicator.TrendFeatures) float64 {
	pts := 0.0

	if t.Ret5 == nil {
		pts += 4
	} else if aligned(status, *t.Ret5) {
		pts += 8
	}

	if t.Ret20 == nil {
		pts += 6
	} else if aligned(status, *t.Ret20) {
		pts += 12
	}

	return pts
}

// structurePoints (max 20): position within the 20-day range plus trend
// efficiency. BUY wants price near the top of the range, SELL near the
// bottom.
func structurePoints(status Status, t indicator.TrendFeatures) float64 {
	pts := 0.0

	if t.RangePos20 == nil {
		pts += 6
	} else {
		pos := *t.RangePos20
		if status == StatusSell {
			pos = 1 - pos
		}
		switch {
		case pos >= 0.6:
			pts += 12
		case pos >= 0.4:
			pts += 6
		}
	}

	if t.Efficiency14 == nil {
		pts += 4
	} else {
		switch {
		case *t.Efficiency14 >= 0.35:
			pts += 8
		case *t.Efficiency14 >= 0.2:
			pts += 4
		}
	}

	return pts
}

// rsiComfortPoints (max 15): full credit inside the comfortable band for
// the direction, half-ish credit in the wider band, nothing outside.
func rsiComfortPoints(status Status, rsi *float64) float64 {
	if rsi == nil {
		return 7.5
	}

	ideal := [2]float64{45, 65}
	wide := [2]float64{40, 70}
	if status == StatusSell {
		ideal = [2]float64{35, 55}
		wide = [2]float64{30, 60}
	}

	switch {
	case *rsi >= ideal[0] && *rsi <= ideal[1]:
		return 15
	case *rsi >= wide[0] && *rsi <= wide[1]:
		return 8
	default:
		return 0
	}
}

// volumeSanityPoints (max 10): volume near its recent average. Both dead
// tape and blowoff spikes are penalized.
func volumeSanityPoints(ratio *float64) float64 {
	if ratio == nil {
		return 5
	}
	switch {
	case *ratio >= 0.8 && *ratio <= 2.5:
		return 10
	case *ratio >= 0.5 && *ratio <= 3.5:
		return 5
	default:
		return 0
	}
}

// volatilitySanityPoints (max 15): the tradeable volatility regime, with a
// wider band at partial credit.
func volatilitySanityPoints(stdev *float64) float64 {
	if stdev == nil {
		return 7.5
	}
	switch {
	case *stdev >= 0.5 && *stdev <= 3.0:
		return 15
	case *stdev >= 0.3 && *stdev <= 4.0:
		return 8
	default:
		return 0
	}
}

func aligned(status Status, ret float64) bool {
	if status == StatusSell {
		return ret < 0
	}
	return ret > 0
}
