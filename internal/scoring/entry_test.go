package scoring

import (
	"testing"

	"market-signals/internal/indicator"
)

func TestQualifyEntryStrongBuy(t *testing.T) {
	// Every category at full credit: 20 + 20 + 20 + 15 + 10 + 15 = 100.
	snap := indicator.Snapshot{
		RSI: fp(55),
		Trend: indicator.TrendFeatures{
			Ret5:         fp(2),
			Ret20:        fp(5),
			RangePos20:   fp(0.8),
			Efficiency14: fp(0.4),
		},
		Volume:     indicator.VolumeStats{Ratio: fp(1.2)},
		Volatility: indicator.Volatility{Stdev20: fp(1.0)},
	}

	got := QualifyEntry(StatusBuy, 85, 70, snap)
	if got.Score != 100 {
		t.Errorf("score = %d, want 100", got.Score)
	}
	if !got.Qualifies {
		t.Error("expected qualification")
	}
}

func TestQualifyEntryEmptySnapshot(t *testing.T) {
	// Missing inputs earn half credit in every data category; headroom is
	// the only fully-known one. 20 + 10 + 10 + 7.5 + 5 + 7.5 = 60.
	got := QualifyEntry(StatusBuy, 90, 70, indicator.Snapshot{})

	if got.Score != 60 {
		t.Errorf("score = %d, want 60", got.Score)
	}
	if !got.Qualifies {
		t.Error("60 should qualify at the 70 threshold")
	}

	// The same checklist fails the stricter 80-threshold minimum of 65.
	got = QualifyEntry(StatusBuy, 100, 80, indicator.Snapshot{})
	if got.Qualifies {
		t.Errorf("score %d should not qualify at the 80 threshold", got.Score)
	}
}

func TestQualifyEntrySellMirrors(t *testing.T) {
	// A falling tape near the bottom of its range is the SELL analogue of
	// the strong BUY setup.
	snap := indicator.Snapshot{
		RSI: fp(45),
		Trend: indicator.TrendFeatures{
			Ret5:         fp(-2),
			Ret20:        fp(-5),
			RangePos20:   fp(0.2),
			Efficiency14: fp(0.4),
		},
		Volume:     indicator.VolumeStats{Ratio: fp(1.2)},
		Volatility: indicator.Volatility{Stdev20: fp(1.0)},
	}

	got := QualifyEntry(StatusSell, 85, 70, snap)
	if got.Score != 100 {
		t.Errorf("score = %d, want 100", got.Score)
	}

	// The identical snapshot graded as a BUY loses the momentum and
	// structure credit entirely.
	buy := QualifyEntry(StatusBuy, 85, 70, snap)
	if buy.Score >= got.Score {
		t.Errorf("misaligned BUY scored %d, should be below SELL's %d", buy.Score, got.Score)
	}
}

func TestQualifyEntryNoHeadroom(t *testing.T) {
	got := QualifyEntry(StatusBuy, 70, 70, indicator.Snapshot{})
	// Zero margin earns zero headroom points; neutral credit alone is 40.
	if got.Score != 40 {
		t.Errorf("score = %d, want 40", got.Score)
	}
	if got.Qualifies {
		t.Error("40 must not qualify")
	}
}

func TestQualifyEntryExtremesPenalized(t *testing.T) {
	snap := indicator.Snapshot{
		RSI:        fp(85),
		Volume:     indicator.VolumeStats{Ratio: fp(6)},
		Volatility: indicator.Volatility{Stdev20: fp(7)},
	}

	got := QualifyEntry(StatusBuy, 90, 70, snap)
	// Headroom 20, momentum 10 (missing), structure 10 (missing), and
	// zero from the three out-of-band categories.
	if got.Score != 40 {
		t.Errorf("score = %d, want 40", got.Score)
	}
}
