package simulator

import (
	"math"
	"testing"
	"time"

	"market-signals/internal/marketdata"
	"market-signals/internal/scoring"
	"market-signals/internal/series"
)

func day(i int) time.Time {
	return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func pt(i int, close float64, status scoring.Status, strength float64) series.Point {
	p := series.Point{Index: i, Date: day(i), Close: close, Status: status}
	if status != scoring.StatusHold {
		s := strength
		p.Strength = &s
		if s >= 70 {
			p.Entry70 = &scoring.EntryResult{Score: 80, Qualifies: true}
		}
		if s >= 80 {
			p.Entry80 = &scoring.EntryResult{Score: 80, Qualifies: true}
		}
	}
	return p
}

func TestSimulateStatusFlip(t *testing.T) {
	points := []series.Point{
		pt(0, 100, scoring.StatusHold, 0),
		pt(1, 100, scoring.StatusBuy, 66),
		pt(2, 105, scoring.StatusBuy, 68),
		pt(3, 110, scoring.StatusSell, 60),
		pt(4, 99, scoring.StatusHold, 0),
	}

	trades, open := Simulate("AAA", points, StrategyStatusFlip)
	if open != nil {
		t.Fatalf("unexpected open position: %+v", open)
	}
	if len(trades) != 2 {
		t.Fatalf("len(trades) = %d, want 2", len(trades))
	}

	buy := trades[0]
	if buy.Side != scoring.StatusBuy || buy.EntryPrice != 100 || buy.ExitPrice != 110 {
		t.Errorf("buy trade = %+v", buy)
	}
	if math.Abs(buy.ReturnPct-10) > 1e-9 {
		t.Errorf("buy return = %f, want 10", buy.ReturnPct)
	}
	if buy.DaysHeld != 2 {
		t.Errorf("buy daysHeld = %d, want 2", buy.DaysHeld)
	}

	// The SELL opened the same day the BUY closed, and profits from the
	// drop into day 4.
	sell := trades[1]
	if sell.Side != scoring.StatusSell || sell.EntryPrice != 110 || sell.ExitPrice != 99 {
		t.Errorf("sell trade = %+v", sell)
	}
	if math.Abs(sell.ReturnPct-10) > 1e-9 {
		t.Errorf("sell return = %f, want 10", sell.ReturnPct)
	}
}

func TestSimulateSellReturnSign(t *testing.T) {
	points := []series.Point{
		pt(0, 90, scoring.StatusSell, 75),
		pt(1, 80, scoring.StatusHold, 0),
	}

	trades, _ := Simulate("BBB", points, StrategyStatusFlip)
	if len(trades) != 1 {
		t.Fatalf("len(trades) = %d, want 1", len(trades))
	}
	want := -(80.0 - 90.0) / 90.0 * 100
	if math.Abs(trades[0].ReturnPct-want) > 1e-9 {
		t.Errorf("sell return = %f, want %f", trades[0].ReturnPct, want)
	}
}

func TestSimulateStrengthGate(t *testing.T) {
	points := []series.Point{
		pt(0, 100, scoring.StatusBuy, 75),
		pt(1, 102, scoring.StatusBuy, 74),
		pt(2, 104, scoring.StatusBuy, 65), // weakens below the gate
		pt(3, 106, scoring.StatusBuy, 72), // strengthens again
		pt(4, 108, scoring.StatusBuy, 71),
	}

	trades, open := Simulate("CCC", points, StrategyStrength70)
	if len(trades) != 1 {
		t.Fatalf("len(trades) = %d, want 1", len(trades))
	}
	if trades[0].EntryPrice != 100 || trades[0].ExitPrice != 104 {
		t.Errorf("trade = %+v", trades[0])
	}
	if open == nil || open.EntryPrice != 106 {
		t.Fatalf("expected reentry at 106 to stay open, got %+v", open)
	}
	if open.DaysHeld != 1 {
		t.Errorf("open daysHeld = %d, want 1", open.DaysHeld)
	}
	wantUnrealized := (108.0 - 106.0) / 106.0 * 100
	if math.Abs(open.UnrealizedPct-wantUnrealized) > 1e-9 {
		t.Errorf("unrealized = %f, want %f", open.UnrealizedPct, wantUnrealized)
	}
}

func TestSimulateDebounce(t *testing.T) {
	// Eligibility that persists from the very first point without a
	// transition is not stale: the series starts inside the window.
	// A later second stretch of the same ongoing signal must not reopen.
	points := []series.Point{
		pt(0, 100, scoring.StatusBuy, 75),
		pt(1, 101, scoring.StatusBuy, 76),
		pt(2, 102, scoring.StatusBuy, 77),
	}
	trades, open := Simulate("DDD", points, StrategyStrength70)
	if len(trades) != 0 {
		t.Fatalf("len(trades) = %d, want 0", len(trades))
	}
	if open == nil || open.EntryPrice != 100 {
		t.Fatalf("expected a single position from day 0, got %+v", open)
	}
}

func TestSimulateEntryChecklistGates(t *testing.T) {
	points := []series.Point{
		pt(0, 100, scoring.StatusHold, 0),
		pt(1, 100, scoring.StatusBuy, 75),
		pt(2, 105, scoring.StatusBuy, 75),
	}
	// Fail the checklist on the flip day. Day 2 passes it, and since day 1
	// was not eligible, day 2 is a fresh transition into eligibility: the
	// position opens there at 105, not at the flip price.
	points[1].Entry70 = &scoring.EntryResult{Score: 40, Qualifies: false}

	trades, open := Simulate("EEE", points, StrategyEntry70)
	if len(trades) != 0 {
		t.Fatalf("len(trades) = %d, want 0", len(trades))
	}
	if open == nil || open.EntryPrice != 105 {
		t.Fatalf("entry should wait for the first checklist pass, got %+v", open)
	}

	// The plain strength gate ignores the checklist and enters on day 1.
	_, open = Simulate("EEE", points, StrategyStrength70)
	if open == nil || open.EntryPrice != 100 {
		t.Fatalf("strength gate should open on the flip day, got %+v", open)
	}
}

func TestSimulateEntryChecklistOnlyGatesEntries(t *testing.T) {
	points := []series.Point{
		pt(0, 100, scoring.StatusHold, 0),
		pt(1, 100, scoring.StatusBuy, 75),
		pt(2, 105, scoring.StatusBuy, 75),
		pt(3, 110, scoring.StatusBuy, 75),
	}
	// Checklist degrades after entry; the position holds regardless.
	points[2].Entry70 = &scoring.EntryResult{Score: 40, Qualifies: false}
	points[3].Entry70 = &scoring.EntryResult{Score: 40, Qualifies: false}

	trades, open := Simulate("FFF", points, StrategyEntry70)
	if len(trades) != 0 {
		t.Fatalf("len(trades) = %d, want 0", len(trades))
	}
	if open == nil || open.EntryPrice != 100 || open.DaysHeld != 2 {
		t.Fatalf("position should hold through checklist decay, got %+v", open)
	}
}

func TestSimulateNoOverlap(t *testing.T) {
	// Alternating statuses every day: positions must strictly alternate
	// with at most one live at a time.
	var points []series.Point
	for i := 0; i < 20; i++ {
		status := scoring.StatusBuy
		if i%2 == 1 {
			status = scoring.StatusSell
		}
		points = append(points, pt(i, 100+float64(i), status, 75))
	}

	trades, _ := Simulate("GGG", points, StrategyStatusFlip)
	for i := 1; i < len(trades); i++ {
		if trades[i].EntryDate.Before(trades[i-1].ExitDate) {
			t.Fatalf("trade %d entered %s before previous exit %s", i, trades[i].EntryDate, trades[i-1].ExitDate)
		}
	}
	if len(trades) != 19 {
		t.Errorf("len(trades) = %d, want 19", len(trades))
	}
}

func TestSimulateDropsBadPrices(t *testing.T) {
	points := []series.Point{
		pt(0, 0, scoring.StatusBuy, 75), // zero entry price
		pt(1, 100, scoring.StatusSell, 75),
		pt(2, 90, scoring.StatusHold, 0),
	}

	trades, open := Simulate("HHH", points, StrategyStatusFlip)
	if len(trades) != 1 {
		t.Fatalf("len(trades) = %d, want 1 (zero-entry trade dropped)", len(trades))
	}
	if trades[0].Side != scoring.StatusSell {
		t.Errorf("surviving trade side = %s, want SELL", trades[0].Side)
	}
	if open != nil {
		t.Errorf("unexpected open position %+v", open)
	}
}

func TestSimulateTradeCarriesScores(t *testing.T) {
	points := []series.Point{
		pt(0, 100, scoring.StatusHold, 0),
		pt(1, 100, scoring.StatusBuy, 72),
		pt(2, 108, scoring.StatusSell, 58),
	}
	points[1].Score = 72
	points[2].Score = 42

	trades, open := Simulate("III", points, StrategyStatusFlip)
	if len(trades) != 1 {
		t.Fatalf("len(trades) = %d, want 1", len(trades))
	}
	if trades[0].EntryScore != 72 || trades[0].ExitScore != 42 {
		t.Errorf("trade scores = %d/%d, want 72/42", trades[0].EntryScore, trades[0].ExitScore)
	}
	if open == nil || open.EntryScore != 42 {
		t.Fatalf("open position should carry its entry score, got %+v", open)
	}
}

// A full cycle through the real pipeline: 130 days of monotonic rise then
// 130 of decline must score BUY on the way up, flip to SELL after the
// peak, and leave status_flip with exactly one profitable closed long plus
// an open short. The peak at candle 130 lands at point index 70 since the
// series covers the last 200 of 260 days.
func TestSimulateRiseFallCycle(t *testing.T) {
	candles := make([]marketdata.Candle, 260)
	price := 100.0
	for i := range candles {
		candles[i] = marketdata.Candle{
			Time:   day(i),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 1000,
		}
		if i < 130 {
			price += 1.0
		} else {
			price -= 1.5
		}
	}

	points := series.Build(candles, scoring.MarketDefault, scoring.ModeStandard)
	if len(points) != 200 {
		t.Fatalf("len(points) = %d, want 200", len(points))
	}

	firstSell := -1
	sawBuy := false
	for i, p := range points {
		if p.Status == scoring.StatusBuy && firstSell == -1 {
			sawBuy = true
		}
		if p.Status == scoring.StatusSell && firstSell == -1 {
			firstSell = i
		}
	}
	if !sawBuy {
		t.Fatal("the rising leg should produce BUY points")
	}
	if firstSell == -1 {
		t.Fatal("the falling leg should produce a SELL flip")
	}
	if firstSell <= 70 {
		t.Errorf("first SELL at point %d, want after the peak", firstSell)
	}

	trades, open := Simulate("JJJ", points, StrategyStatusFlip)
	if len(trades) != 1 {
		t.Fatalf("len(trades) = %d, want exactly one closed long", len(trades))
	}
	long := trades[0]
	if long.Side != scoring.StatusBuy {
		t.Fatalf("trade side = %s, want BUY", long.Side)
	}
	if long.ExitPrice <= long.EntryPrice || long.ReturnPct <= 0 {
		t.Errorf("long closed near the peak should profit: %+v", long)
	}
	if open == nil || open.Side != scoring.StatusSell {
		t.Fatalf("expected an open short at the end, got %+v", open)
	}
	if open.UnrealizedPct <= 0 {
		t.Errorf("the short rides the decline, unrealized = %f", open.UnrealizedPct)
	}
}
