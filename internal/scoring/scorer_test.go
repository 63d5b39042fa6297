package scoring

import (
	"reflect"
	"testing"

	"market-signals/internal/indicator"
)

func fp(v float64) *float64 { return &v }

func bullishSnapshot() indicator.Snapshot {
	return indicator.Snapshot{
		MA:   indicator.MovingAverages{MA50: fp(110), MA200: fp(100)},
		RSI:  fp(65),
		MACD: indicator.MACD{Hist: fp(2)},
		Volume: indicator.VolumeStats{
			Ratio: fp(1.5),
		},
		Trend: indicator.TrendFeatures{
			Ret5:         fp(3),
			Ret20:        fp(6),
			Ret60:        fp(10),
			RangePos20:   fp(0.9),
			RangePos55:   fp(0.85),
			Efficiency14: fp(0.5),
			Breakout20:   fp(1),
			Breakout55:   fp(1),
			Stretch20:    fp(1.0),
		},
		Volatility: indicator.Volatility{Stdev20: fp(1.5)},
	}
}

func bearishSnapshot() indicator.Snapshot {
	return indicator.Snapshot{
		MA:   indicator.MovingAverages{MA50: fp(90), MA200: fp(100)},
		RSI:  fp(32),
		MACD: indicator.MACD{Hist: fp(-2)},
		Volume: indicator.VolumeStats{
			Ratio: fp(1.4),
		},
		Trend: indicator.TrendFeatures{
			Ret5:         fp(-4),
			Ret20:        fp(-7),
			Ret60:        fp(-12),
			RangePos20:   fp(0.05),
			RangePos55:   fp(0.1),
			Efficiency14: fp(0.5),
			Breakout20:   fp(-1),
			Breakout55:   fp(-1),
			Stretch20:    fp(-1.2),
		},
		Volatility: indicator.Volatility{Stdev20: fp(1.8)},
	}
}

func TestScoreEmptySnapshot(t *testing.T) {
	got := Score(indicator.Snapshot{}, MarketDefault, ModeStandard)

	if got.Score != 50 {
		t.Errorf("score = %d, want 50", got.Score)
	}
	if got.Status != StatusHold {
		t.Errorf("status = %s, want HOLD", got.Status)
	}
	if got.Confidence != 0 {
		t.Errorf("confidence = %f, want 0", got.Confidence)
	}
}

func TestScoreBullish(t *testing.T) {
	got := Score(bullishSnapshot(), MarketDefault, ModeStandard)

	if got.Status != StatusBuy {
		t.Fatalf("status = %s (score %d, conf %.3f), want BUY", got.Status, got.Score, got.Confidence)
	}
	if got.Score < 80 {
		t.Errorf("score = %d, want >= 80", got.Score)
	}
	if got.Confidence < 0.85 {
		t.Errorf("confidence = %f, want >= 0.85", got.Confidence)
	}
}

func TestScoreBearish(t *testing.T) {
	got := Score(bearishSnapshot(), MarketDefault, ModeStandard)

	if got.Status != StatusSell {
		t.Fatalf("status = %s (score %d, conf %.3f), want SELL", got.Status, got.Score, got.Confidence)
	}
	if got.Score > 30 {
		t.Errorf("score = %d, want <= 30", got.Score)
	}
}

func TestScoreRangeInvariant(t *testing.T) {
	snaps := []indicator.Snapshot{
		{},
		bullishSnapshot(),
		bearishSnapshot(),
		{RSI: fp(99), MACD: indicator.MACD{Hist: fp(1000)}},
		{Volume: indicator.VolumeStats{Ratio: fp(50)}},
		{Trend: indicator.TrendFeatures{Ret5: fp(-400)}},
	}

	for _, market := range Markets() {
		for _, mode := range []Mode{ModeStandard, ModeHighConf} {
			for i, snap := range snaps {
				got := Score(snap, market, mode)
				if got.Score < 0 || got.Score > 100 {
					t.Errorf("%s/%s snap %d: score %d out of range", market, mode, i, got.Score)
				}
				if got.Confidence < 0 || got.Confidence > 1 {
					t.Errorf("%s/%s snap %d: confidence %f out of range", market, mode, i, got.Confidence)
				}
			}
		}
	}
}

func TestScoreDeterministic(t *testing.T) {
	snap := bullishSnapshot()
	a := Score(snap, MarketCrypto, ModeHighConf)
	b := Score(snap, MarketCrypto, ModeHighConf)

	if !reflect.DeepEqual(a, b) {
		t.Errorf("same inputs produced different results:\n%+v\n%+v", a, b)
	}
}

func TestScoreSingleComponentHolds(t *testing.T) {
	// Only volume present scores above the buy threshold componentwise,
	// but coverage is far too thin to act on.
	snap := indicator.Snapshot{Volume: indicator.VolumeStats{Ratio: fp(1.5)}}
	got := Score(snap, MarketDefault, ModeStandard)

	if got.Status != StatusHold {
		t.Errorf("status = %s (score %d, conf %.3f), want HOLD", got.Status, got.Score, got.Confidence)
	}
}

func TestResolveStatus(t *testing.T) {
	profile := profileFor(MarketDefault) // 65 / 35 / 0.45

	tests := []struct {
		name  string
		score float64
		conf  float64
		mode  Mode
		want  Status
	}{
		{"confident buy", 66, 0.90, ModeStandard, StatusBuy},
		{"confident sell", 33, 0.90, ModeStandard, StatusSell},
		{"confident middle", 50, 0.90, ModeStandard, StatusHold},
		{"high conf raises buy bar", 66, 0.90, ModeHighConf, StatusHold},
		{"high conf narrows sell bar", 33, 0.90, ModeHighConf, StatusHold},
		{"high conf clears raised bar", 72, 0.90, ModeHighConf, StatusBuy},
		{"soft override wide margin", 78, 0.40, ModeStandard, StatusBuy},
		{"soft override narrow margin", 70, 0.40, ModeStandard, StatusHold},
		{"below soft floor", 78, 0.30, ModeStandard, StatusHold},
		{"soft override sell", 22, 0.40, ModeStandard, StatusSell},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveStatus(tt.score, tt.conf, profile, tt.mode)
			if got != tt.want {
				t.Errorf("resolveStatus(%.0f, %.2f, %s) = %s, want %s", tt.score, tt.conf, tt.mode, got, tt.want)
			}
		})
	}
}

func TestStrength(t *testing.T) {
	if got := Strength(StatusBuy, 82); got == nil || *got != 82 {
		t.Errorf("BUY strength = %v, want 82", got)
	}
	if got := Strength(StatusSell, 20); got == nil || *got != 80 {
		t.Errorf("SELL strength = %v, want 80", got)
	}
	if got := Strength(StatusHold, 50); got != nil {
		t.Errorf("HOLD strength = %v, want nil", got)
	}
}

func TestResolveMarket(t *testing.T) {
	tests := []struct {
		in   string
		want Market
	}{
		{"sp500", MarketSP500},
		{"S&P 500", MarketSP500},
		{"s_p_500", MarketSP500},
		{"DJIA", MarketDowJones},
		{"dow 30", MarketDowJones},
		{"^GDAXI", MarketDAX},
		{"nikkei 225", MarketNikkei225},
		{"Euro Stoxx 50", MarketEuroStoxx50},
		{"hang-seng", MarketHangSeng},
		{"crypto", MarketCrypto},
		{"ftse", MarketFTSE100},
		{"ibex-35", MarketIBEX35},
		{"cac 40", MarketCAC40},
		{"nasdaq  100", MarketNasdaq},
		{"", MarketDefault},
		{"somewhere else", MarketDefault},
	}

	for _, tt := range tests {
		if got := ResolveMarket(tt.in); got != tt.want {
			t.Errorf("ResolveMarket(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestResolveMode(t *testing.T) {
	if got := ResolveMode("high_conf"); got != ModeHighConf {
		t.Errorf("ResolveMode(high_conf) = %s, want HIGH_CONF", got)
	}
	if got := ResolveMode("strict"); got != ModeHighConf {
		t.Errorf("ResolveMode(strict) = %s, want HIGH_CONF", got)
	}
	if got := ResolveMode("anything"); got != ModeStandard {
		t.Errorf("ResolveMode(anything) = %s, want STANDARD", got)
	}
}
