package indicator

import "math"

// Snapshot bundles every indicator value the scoring engine consumes for one
// (asset, day) pair. Every field is a pointer: nil means the value could not
// be computed from the available history, which is different from zero.
type Snapshot struct {
	MA         MovingAverages `json:"ma"`
	RSI        *float64       `json:"rsi,omitempty"`
	MACD       MACD           `json:"macd"`
	Volume     VolumeStats    `json:"volume"`
	Trend      TrendFeatures  `json:"trend"`
	Volatility Volatility     `json:"volatility"`
}

// MovingAverages holds the fast/slow simple moving averages.
type MovingAverages struct {
	MA50  *float64 `json:"ma50,omitempty"`
	MA200 *float64 `json:"ma200,omitempty"`
}

// MACD holds the MACD histogram (12/26/9).
type MACD struct {
	Hist *float64 `json:"hist,omitempty"`
}

// VolumeStats holds the current-volume-over-average ratio.
type VolumeStats struct {
	Ratio *float64 `json:"ratio,omitempty"`
}

// TrendFeatures holds return, range-position, breakout, efficiency and
// stretch features used by the trend component and the entry qualifier.
// Returns are percentages; range positions are in [0,1]; breakouts are
// -1/0/+1 direction flags; stretch is a z-score against the 20-day mean.
type TrendFeatures struct {
	Ret5         *float64 `json:"ret5,omitempty"`
	Ret20        *float64 `json:"ret20,omitempty"`
	Ret60        *float64 `json:"ret60,omitempty"`
	RangePos20   *float64 `json:"range_pos_20,omitempty"`
	RangePos55   *float64 `json:"range_pos_55,omitempty"`
	Efficiency14 *float64 `json:"efficiency_14,omitempty"`
	Breakout20   *float64 `json:"breakout_20,omitempty"`
	Breakout55   *float64 `json:"breakout_55,omitempty"`
	Stretch20    *float64 `json:"stretch_20,omitempty"`
}

// Volatility holds realized volatility (stdev of daily returns, percent).
type Volatility struct {
	Stdev20 *float64 `json:"stdev20,omitempty"`
}

// Compute builds a Snapshot from a trailing window of closes and volumes.
// The slices must be chronologically ascending; the last element is "now".
// Indicators whose lookback exceeds the window come back nil.
func Compute(closes, volumes []float64) Snapshot {
	return Snapshot{
		MA: MovingAverages{
			MA50:  SMA(closes, 50),
			MA200: SMA(closes, 200),
		},
		RSI:  RSI(closes, 14),
		MACD: MACD{Hist: MACDHist(closes, 12, 26, 9)},
		Volume: VolumeStats{
			Ratio: VolumeRatio(volumes, 20),
		},
		Trend: TrendFeatures{
			Ret5:         Return(closes, 5),
			Ret20:        Return(closes, 20),
			Ret60:        Return(closes, 60),
			RangePos20:   RangePosition(closes, 20),
			RangePos55:   RangePosition(closes, 55),
			Efficiency14: Efficiency(closes, 14),
			Breakout20:   Breakout(closes, 20),
			Breakout55:   Breakout(closes, 55),
			Stretch20:    Stretch(closes, 20),
		},
		Volatility: Volatility{
			Stdev20: ReturnStdev(closes, 20),
		},
	}
}

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// SMA calculates the simple moving average over the trailing period.
func SMA(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period {
		return nil
	}

	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}

	return finite(sum / float64(period))
}

// emaSeries computes the full EMA series for the input. Returned slice has
// the same length as closes; entries before index period-1 are meaningless.
func emaSeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) < period {
		return out
	}

	// Seed with the SMA of the first period values.
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += closes[i]
	}
	seed /= float64(period)

	multiplier := 2.0 / float64(period+1)
	out[period-1] = seed
	for i := period; i < len(closes); i++ {
		out[i] = closes[i]*multiplier + out[i-1]*(1-multiplier)
	}

	return out
}

// ============================================================================
// RSI
// ============================================================================

// RSI calculates the Relative Strength Index over the trailing period.
func RSI(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}

	gains := 0.0
	losses := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		v := 100.0
		if avgGain == 0 {
			v = 50.0 // flat series
		}
		return &v
	}

	rs := avgGain / avgLoss
	return finite(100 - 100/(1+rs))
}

// ============================================================================
// MACD
// ============================================================================

// MACDHist calculates the MACD histogram (macd line minus signal line).
func MACDHist(closes []float64, fast, slow, signal int) *float64 {
	if len(closes) < slow+signal {
		return nil
	}

	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)

	// MACD line is only defined from index slow-1 onward.
	macdLine := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		macdLine = append(macdLine, fastEMA[i]-slowEMA[i])
	}

	signalSeries := emaSeries(macdLine, signal)
	last := len(macdLine) - 1
	return finite(macdLine[last] - signalSeries[last])
}

// ============================================================================
// VOLUME
// ============================================================================

// VolumeRatio compares the latest volume with the average of the preceding
// period. A ratio of 1.0 means typical volume.
func VolumeRatio(volumes []float64, period int) *float64 {
	if period <= 0 || len(volumes) < period+1 {
		return nil
	}

	sum := 0.0
	for i := len(volumes) - period - 1; i < len(volumes)-1; i++ {
		sum += volumes[i]
	}
	avg := sum / float64(period)
	if avg <= 0 {
		return nil
	}

	return finite(volumes[len(volumes)-1] / avg)
}

// ============================================================================
// TREND FEATURES
// ============================================================================

// Return calculates the percentage change over the trailing period.
func Return(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}

	past := closes[len(closes)-period-1]
	if past == 0 {
		return nil
	}

	return finite((closes[len(closes)-1] - past) / past * 100)
}

// RangePosition locates the latest close within the trailing period's
// low-high range: 0 is the low, 1 is the high.
func RangePosition(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period {
		return nil
	}

	lo, hi := rangeOf(closes[len(closes)-period:])
	if hi == lo {
		return nil // degenerate range
	}

	return finite((closes[len(closes)-1] - lo) / (hi - lo))
}

// Breakout flags whether the latest close escaped the preceding period's
// range: +1 above the prior high, -1 below the prior low, 0 inside.
func Breakout(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}

	prior := closes[len(closes)-period-1 : len(closes)-1]
	lo, hi := rangeOf(prior)
	last := closes[len(closes)-1]

	v := 0.0
	if last > hi {
		v = 1.0
	} else if last < lo {
		v = -1.0
	}
	return &v
}

// Efficiency is Kaufman's efficiency ratio over the trailing period: net
// movement divided by the sum of absolute daily movements, in [0,1]. High
// values mean a clean directional move, low values mean chop.
func Efficiency(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}

	start := len(closes) - period - 1
	net := math.Abs(closes[len(closes)-1] - closes[start])
	path := 0.0
	for i := start + 1; i < len(closes); i++ {
		path += math.Abs(closes[i] - closes[i-1])
	}
	if path == 0 {
		return nil
	}

	return finite(net / path)
}

// Stretch measures how far the latest close sits from its trailing mean, in
// standard deviations of price over the same period.
func Stretch(closes []float64, period int) *float64 {
	if period <= 1 || len(closes) < period {
		return nil
	}

	window := closes[len(closes)-period:]
	mean := 0.0
	for _, c := range window {
		mean += c
	}
	mean /= float64(period)

	variance := 0.0
	for _, c := range window {
		d := c - mean
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))
	if sd == 0 {
		return nil
	}

	return finite((closes[len(closes)-1] - mean) / sd)
}

// ============================================================================
// VOLATILITY
// ============================================================================

// ReturnStdev calculates the standard deviation of daily percentage returns
// over the trailing period (realized volatility, percent).
func ReturnStdev(closes []float64, period int) *float64 {
	if period <= 1 || len(closes) < period+1 {
		return nil
	}

	rets := make([]float64, 0, period)
	for i := len(closes) - period; i < len(closes); i++ {
		if closes[i-1] == 0 {
			return nil
		}
		rets = append(rets, (closes[i]-closes[i-1])/closes[i-1]*100)
	}

	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	variance := 0.0
	for _, r := range rets {
		d := r - mean
		variance += d * d
	}

	return finite(math.Sqrt(variance / float64(len(rets))))
}

func rangeOf(window []float64) (lo, hi float64) {
	lo, hi = window[0], window[0]
	for _, c := range window[1:] {
		if c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
	}
	return lo, hi
}

// finite returns a pointer to v, or nil when v is NaN or infinite. Degenerate
// arithmetic is treated as an absent value, never propagated downstream.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
