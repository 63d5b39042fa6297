package scoring

import (
	"math"

	"market-signals/internal/indicator"
)

// Status is the directional verdict attached to a score.
type Status string

const (
	StatusBuy  Status = "BUY"
	StatusHold Status = "HOLD"
	StatusSell Status = "SELL"
)

// Component identifies one of the weighted scoring components.
type Component string

const (
	ComponentMA         Component = "ma"
	ComponentRSI        Component = "rsi"
	ComponentMACD       Component = "macd"
	ComponentVolume     Component = "volume"
	ComponentTrend      Component = "trend"
	ComponentVolatility Component = "volatility"
	ComponentConsensus  Component = "consensus"
)

// Base component weights. Components whose inputs are missing are omitted and
// the remaining weights renormalized, so these only need to sum to 1.0 for
// the fully-populated case.
var baseWeights = map[Component]float64{
	ComponentMA:         0.24,
	ComponentRSI:        0.16,
	ComponentMACD:       0.16,
	ComponentVolume:     0.10,
	ComponentTrend:      0.18,
	ComponentVolatility: 0.08,
	ComponentConsensus:  0.08,
}

// Tunable status-resolution constants. The soft override lets a score that
// clears the primary threshold by a wide margin through at a reduced
// confidence floor.
const (
	softOverrideMargin = 12.0

	softFloorReductionStandard = 0.08
	softFloorReductionHighConf = 0.06

	highConfThresholdShift = 5.0
	highConfMinConfidence  = 0.05
)

// Confidence sub-measure weights: coverage / strength / alignment.
const (
	confWeightCoverage  = 0.45
	confWeightStrength  = 0.30
	confWeightAlignment = 0.25
)

// Result is the outcome of scoring one indicator snapshot.
type Result struct {
	Score      int                   `json:"score"`
	Status     Status                `json:"status"`
	Confidence float64               `json:"confidence"`
	Market     Market                `json:"market"`
	Mode       Mode                  `json:"mode"`
	Components map[Component]float64 `json:"components,omitempty"`
}

// componentValue is one active entry of the sparse weighted average.
type componentValue struct {
	key    Component
	weight float64
	score  float64
}

// weightedSet accumulates the active components and their realized weight.
type weightedSet struct {
	values      []componentValue
	totalWeight float64
}

func (s *weightedSet) add(key Component, weight float64, score *float64) {
	if score == nil || weight <= 0 {
		return
	}
	s.values = append(s.values, componentValue{key: key, weight: weight, score: *score})
	s.totalWeight += weight
}

// Score fuses an indicator snapshot into a 0-100 score, a BUY/HOLD/SELL
// status and a confidence value, using the market's profile and the given
// mode. It is a pure function: identical inputs always produce identical
// results, and it never fails. Missing indicator values shrink the active
// component set instead.
func Score(snap indicator.Snapshot, market Market, mode Mode) Result {
	profile := profileFor(market)

	set := weightedSet{}
	possibleWeight := 0.0
	for key, base := range baseWeights {
		w := base * multiplier(profile, key)
		possibleWeight += w
	}

	set.add(ComponentMA, effectiveWeight(profile, ComponentMA), maComponent(snap))
	set.add(ComponentRSI, effectiveWeight(profile, ComponentRSI), rsiComponent(snap))
	set.add(ComponentMACD, effectiveWeight(profile, ComponentMACD), macdComponent(snap))
	set.add(ComponentVolume, effectiveWeight(profile, ComponentVolume), volumeComponent(snap))
	set.add(ComponentTrend, effectiveWeight(profile, ComponentTrend), trendComponent(snap))
	set.add(ComponentVolatility, effectiveWeight(profile, ComponentVolatility), volatilityComponent(snap))
	set.add(ComponentConsensus, effectiveWeight(profile, ComponentConsensus), consensusComponent(snap))

	if len(set.values) == 0 || set.totalWeight <= 0 {
		return Result{Score: 50, Status: StatusHold, Confidence: 0, Market: market, Mode: mode}
	}

	weighted := 0.0
	for _, v := range set.values {
		weighted += v.weight * v.score
	}
	raw := weighted / set.totalWeight
	score := int(math.Round(clamp(raw, 0, 100)))

	confidence := computeConfidence(set, possibleWeight)
	status := resolveStatus(float64(score), confidence, profile, mode)

	components := make(map[Component]float64, len(set.values))
	for _, v := range set.values {
		components[v.key] = math.Round(v.score*10) / 10
	}

	return Result{
		Score:      score,
		Status:     status,
		Confidence: confidence,
		Market:     market,
		Mode:       mode,
		Components: components,
	}
}

// Strength is the status-aligned score: for BUY it equals the score, for
// SELL it equals 100-score, and it is nil for HOLD.
func Strength(status Status, score int) *float64 {
	switch status {
	case StatusBuy:
		v := float64(score)
		return &v
	case StatusSell:
		v := float64(100 - score)
		return &v
	default:
		return nil
	}
}

func effectiveWeight(p Profile, key Component) float64 {
	return baseWeights[key] * multiplier(p, key)
}

func multiplier(p Profile, key Component) float64 {
	if p.Multipliers == nil {
		return 1.0
	}
	if m, ok := p.Multipliers[key]; ok {
		return m
	}
	return 1.0
}

// computeConfidence combines coverage (fraction of possible weight present),
// strength (average distance from neutral) and alignment (directional
// agreement) with fixed weights.
func computeConfidence(set weightedSet, possibleWeight float64) float64 {
	coverage := 0.0
	if possibleWeight > 0 {
		coverage = set.totalWeight / possibleWeight
	}

	weightedAbs := 0.0
	weightedSigned := 0.0
	for _, v := range set.values {
		d := v.score - 50
		weightedAbs += v.weight * math.Abs(d)
		weightedSigned += v.weight * d
	}

	strength := weightedAbs / (set.totalWeight * 50)

	alignment := 0.0
	if weightedAbs > 0 {
		alignment = math.Abs(weightedSigned) / weightedAbs
	}

	conf := confWeightCoverage*coverage + confWeightStrength*strength + confWeightAlignment*alignment
	return clamp(conf, 0, 1)
}

// resolveStatus applies the hard thresholds, then the soft wide-margin
// override at a reduced confidence floor, and otherwise holds.
func resolveStatus(score, confidence float64, p Profile, mode Mode) Status {
	buyTh := p.BuyThreshold
	sellTh := p.SellThreshold
	minConf := p.MinConfidence
	floorReduction := softFloorReductionStandard

	if mode == ModeHighConf {
		buyTh += highConfThresholdShift
		sellTh -= highConfThresholdShift
		minConf = math.Min(minConf+highConfMinConfidence, 0.95)
		floorReduction = softFloorReductionHighConf
	}

	if confidence >= minConf {
		if score >= buyTh {
			return StatusBuy
		}
		if score <= sellTh {
			return StatusSell
		}
		return StatusHold
	}

	softFloor := minConf - floorReduction
	if confidence >= softFloor {
		if score >= buyTh+softOverrideMargin {
			return StatusBuy
		}
		if score <= sellTh-softOverrideMargin {
			return StatusSell
		}
	}

	return StatusHold
}

// ============================================================================
// COMPONENTS
// ============================================================================

// maSpreadCap bounds the fast/slow moving-average spread that maps to a
// fully bullish or bearish component score.
const maSpreadCap = 0.05

func maComponent(snap indicator.Snapshot) *float64 {
	fast := snap.MA.MA50
	slow := snap.MA.MA200
	if fast == nil || slow == nil || *slow == 0 {
		return nil
	}

	spread := (*fast - *slow) / *slow
	return score(50 + 50*clamp(spread/maSpreadCap, -1, 1))
}

// rsiGamma amplifies the distance from the RSI midpoint, making the
// component more aggressive than a linear rescale.
const rsiGamma = 1.25

func rsiComponent(snap indicator.Snapshot) *float64 {
	if snap.RSI == nil {
		return nil
	}

	// Rescale the 30-70 band to 0-100, then push away from center.
	base := clamp((*snap.RSI-30)/40*100, 0, 100)
	return score(50 + (base-50)*rsiGamma)
}

func macdComponent(snap indicator.Snapshot) *float64 {
	hist := snap.MACD.Hist
	if hist == nil {
		return nil
	}

	slow := snap.MA.MA200
	if slow == nil || *slow == 0 {
		// No reference scale: fall back to the histogram sign.
		switch {
		case *hist > 0:
			return score(65)
		case *hist < 0:
			return score(35)
		default:
			return score(50)
		}
	}

	// Normalize by 1% of the slow moving average, capped linear map.
	norm := clamp(*hist/(0.01*math.Abs(*slow)), -1, 1)
	return score(50 + 50*norm)
}

func volumeComponent(snap indicator.Snapshot) *float64 {
	ratio := snap.Volume.Ratio
	if ratio == nil {
		return nil
	}

	return score(50 + (*ratio-1)*40)
}

// Sub-weights of the trend mix. Renormalized over the present features the
// same way the top-level components are.
var trendWeights = []struct {
	weight float64
	value  func(indicator.TrendFeatures) *float64
}{
	{0.15, func(t indicator.TrendFeatures) *float64 { return scaledReturn(t.Ret5, 4) }},
	{0.25, func(t indicator.TrendFeatures) *float64 { return scaledReturn(t.Ret20, 2) }},
	{0.10, func(t indicator.TrendFeatures) *float64 { return scaledReturn(t.Ret60, 1) }},
	{0.20, func(t indicator.TrendFeatures) *float64 { return scaledRangePos(t.RangePos20) }},
	{0.10, func(t indicator.TrendFeatures) *float64 { return scaledRangePos(t.RangePos55) }},
	{0.10, func(t indicator.TrendFeatures) *float64 { return scaledBreakout(t.Breakout20) }},
	{0.05, func(t indicator.TrendFeatures) *float64 { return scaledBreakout(t.Breakout55) }},
	{0.05, scaledEfficiency},
}

func trendComponent(snap indicator.Snapshot) *float64 {
	t := snap.Trend

	sum := 0.0
	weight := 0.0
	for _, f := range trendWeights {
		if v := f.value(t); v != nil {
			sum += f.weight * *v
			weight += f.weight
		}
	}
	if weight == 0 {
		return nil
	}

	mix := sum / weight

	// Dampen the mix when price is unusually stretched from its mean; a
	// strong trend reading two-plus sigmas out is not a fresh signal.
	if t.Stretch20 != nil {
		excess := math.Abs(*t.Stretch20) - 2.0
		if excess > 0 {
			damp := 1.0 / (1.0 + excess*0.5)
			mix = 50 + (mix-50)*damp
		}
	}

	return score(mix)
}

func scaledReturn(ret *float64, perPct float64) *float64 {
	if ret == nil {
		return nil
	}
	return score(50 + *ret*perPct)
}

func scaledRangePos(pos *float64) *float64 {
	if pos == nil {
		return nil
	}
	return score(*pos * 100)
}

func scaledBreakout(bo *float64) *float64 {
	if bo == nil {
		return nil
	}
	return score(50 + *bo*30)
}

func scaledEfficiency(t indicator.TrendFeatures) *float64 {
	// Efficiency is directionless; sign it with the medium-term return.
	if t.Efficiency14 == nil || t.Ret20 == nil {
		return nil
	}
	dir := 0.0
	if *t.Ret20 > 0 {
		dir = 1
	} else if *t.Ret20 < 0 {
		dir = -1
	}
	return score(50 + dir**t.Efficiency14*40)
}

// Volatility regime bands (stdev of daily returns, percent). Below the low
// band the signal is unreliable, the middle band is tradeable, above the
// high band risk dominates.
const (
	volLowBand  = 0.5
	volHighBand = 3.0
)

func volatilityComponent(snap indicator.Snapshot) *float64 {
	sd := snap.Volatility.Stdev20
	if sd == nil {
		return nil
	}

	switch {
	case *sd < volLowBand:
		return score(45)
	case *sd <= volHighBand:
		return score(60)
	default:
		return score(35)
	}
}

func consensusComponent(snap indicator.Snapshot) *float64 {
	signals := make([]float64, 0, 4)

	if snap.MA.MA50 != nil && snap.MA.MA200 != nil && *snap.MA.MA200 != 0 {
		signals = append(signals, sign(*snap.MA.MA50-*snap.MA.MA200))
	}
	if snap.RSI != nil {
		switch {
		case *snap.RSI > 55:
			signals = append(signals, 1)
		case *snap.RSI < 45:
			signals = append(signals, -1)
		default:
			signals = append(signals, 0)
		}
	}
	if snap.MACD.Hist != nil {
		signals = append(signals, sign(*snap.MACD.Hist))
	}
	if snap.Trend.Breakout20 != nil {
		signals = append(signals, *snap.Trend.Breakout20)
	}

	active := 0
	net := 0.0
	for _, s := range signals {
		if s != 0 {
			active++
			net += s
		}
	}
	// Consensus needs at least two directional opinions to say anything.
	if active < 2 {
		return nil
	}

	return score(50 + 50*net/float64(active))
}

func sign(v float64) float64 {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}

func score(v float64) *float64 {
	c := clamp(v, 0, 100)
	return &c
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
