package validate

import (
	"math"
	"testing"
	"time"

	"market-signals/internal/scoring"
	"market-signals/internal/series"
)

func day(i int) time.Time {
	return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

// flipSeries builds a series whose day 0 is a BUY flip at the given
// strength, followed by a linear price path long enough for every horizon.
func flipSeries(strength float64, dailyChange float64, days int) []series.Point {
	points := make([]series.Point, days)
	price := 100.0
	for i := range points {
		points[i] = series.Point{
			Index:  i,
			Date:   day(i),
			Close:  price,
			Status: scoring.StatusHold,
		}
		price += dailyChange
	}
	s := strength
	points[0].Status = scoring.StatusBuy
	points[0].Strength = &s
	return points
}

func TestExtractEvents(t *testing.T) {
	points := flipSeries(75, 1, 30)
	events := ExtractEvents("AAA", points, []int{5, 10, 20})

	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Strength != 75 || ev.Status != scoring.StatusBuy {
		t.Errorf("event = %+v", ev)
	}
	// Price walks 100 -> 105 over five days: +5%.
	if ret, ok := ev.Forward[5]; !ok || math.Abs(ret-5) > 1e-9 {
		t.Errorf("forward[5] = %f (%v), want 5", ret, ok)
	}
	if ret, ok := ev.Forward[20]; !ok || math.Abs(ret-20) > 1e-9 {
		t.Errorf("forward[20] = %f (%v), want 20", ret, ok)
	}
}

func TestExtractEventsSellAligned(t *testing.T) {
	points := flipSeries(80, -2, 15)
	points[0].Status = scoring.StatusSell

	events := ExtractEvents("AAA", points, []int{5})
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	// Price falls 100 -> 90: a short gains +10%.
	if ret := events[0].Forward[5]; math.Abs(ret-10) > 1e-9 {
		t.Errorf("aligned sell forward = %f, want 10", ret)
	}
}

func TestExtractEventsHorizonPastEnd(t *testing.T) {
	points := flipSeries(75, 1, 8)
	events := ExtractEvents("AAA", points, []int{5, 10, 20})

	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if _, ok := events[0].Forward[5]; !ok {
		t.Error("forward[5] should fit inside an 8-day series")
	}
	if _, ok := events[0].Forward[10]; ok {
		t.Error("forward[10] must not be computed past the series end")
	}
}

func TestExtractEventsOnlyFlips(t *testing.T) {
	points := flipSeries(75, 1, 30)
	// Extend the BUY run: days 1 and 2 keep the status, day 10 flips in
	// again after a HOLD gap.
	s := 72.0
	points[1].Status = scoring.StatusBuy
	points[1].Strength = &s
	points[2].Status = scoring.StatusBuy
	points[2].Strength = &s
	points[10].Status = scoring.StatusBuy
	points[10].Strength = &s

	events := ExtractEvents("AAA", points, []int{5})
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2 (day 0 and day 10)", len(events))
	}
}

func mkEvent(symbol string, strength float64, forward map[int]float64) Event {
	return Event{Symbol: symbol, Date: day(0), Status: scoring.StatusBuy, Strength: strength, Forward: forward}
}

func TestBestPicksHighestAvgReturn(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTrades = 2

	// Strength >= 70 events return +4, weaker events drag the average
	// down, so the search should settle on a cutoff that keeps only the
	// strong ones.
	var events []Event
	for i := 0; i < 4; i++ {
		events = append(events, mkEvent("AAA", 75, map[int]float64{5: 4, 10: 4, 20: 4}))
	}
	for i := 0; i < 4; i++ {
		events = append(events, mkEvent("BBB", 55, map[int]float64{5: -2, 10: -2, 20: -2}))
	}

	best := Best(events, cfg)
	if best == nil {
		t.Fatal("expected a recommendation")
	}
	if best.Cutoff < 56 || best.Cutoff > 74 {
		t.Errorf("cutoff = %f, want a value excluding the weak events", best.Cutoff)
	}
	if math.Abs(best.AvgReturn-4) > 1e-9 {
		t.Errorf("avgReturn = %f, want 4", best.AvgReturn)
	}
	if best.WinRate != 1 {
		t.Errorf("winRate = %f, want 1", best.WinRate)
	}
}

func TestBestTieBreaksOnHigherCutoff(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizons = []int{5}
	cfg.MinTrades = 2

	// All events identical: every cutoff up to 80 scores the same, so the
	// tie must resolve to the highest one that keeps enough trades.
	var events []Event
	for i := 0; i < 5; i++ {
		events = append(events, mkEvent("AAA", 80, map[int]float64{5: 3}))
	}

	best := Best(events, cfg)
	if best == nil {
		t.Fatal("expected a recommendation")
	}
	if best.Cutoff != 80 {
		t.Errorf("cutoff = %f, want 80", best.Cutoff)
	}
}

func TestBestRespectsMinTrades(t *testing.T) {
	cfg := DefaultConfig()

	events := []Event{
		mkEvent("AAA", 75, map[int]float64{5: 4}),
		mkEvent("AAA", 75, map[int]float64{5: 4}),
	}

	if best := Best(events, cfg); best != nil {
		t.Errorf("two trades should not clear MinTrades=%d: %+v", cfg.MinTrades, best)
	}
}

func TestSummarizeProfitFactor(t *testing.T) {
	s := summarize([]float64{4, -2, 6})
	if math.Abs(s.ProfitFactor-5) > 1e-9 {
		t.Errorf("profitFactor = %f, want 5", s.ProfitFactor)
	}

	allWins := summarize([]float64{1, 2})
	if allWins.ProfitFactor != 100 {
		t.Errorf("all-win profitFactor = %f, want 100", allWins.ProfitFactor)
	}

	allFlat := summarize([]float64{0, 0})
	if allFlat.ProfitFactor != 0 {
		t.Errorf("flat profitFactor = %f, want 0", allFlat.ProfitFactor)
	}
}

func TestRunLeaveOneOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTrades = 2
	cfg.Horizons = []int{5}

	bySymbol := map[string][]series.Point{
		"AAA": flipSeries(78, 1, 30),
		"BBB": flipSeries(76, 1.2, 30),
		"CCC": flipSeries(82, 0.9, 30),
		"DDD": flipSeries(80, 1.1, 30),
	}

	report := Run(scoring.MarketDefault, scoring.ModeStandard, bySymbol, cfg)

	if report.Events != 4 {
		t.Fatalf("events = %d, want 4", report.Events)
	}
	if report.Recommendation == nil {
		t.Fatal("expected a recommendation")
	}
	if report.HeldOut.Trades > report.Events {
		t.Errorf("held-out trades %d exceed event count %d", report.HeldOut.Trades, report.Events)
	}
	// Every symbol rallies after its flip, so the held-out folds should
	// all be winners and the choice validates.
	if report.HeldOut.Trades < cfg.MinTrades {
		t.Fatalf("held-out trades = %d, want >= %d", report.HeldOut.Trades, cfg.MinTrades)
	}
	if report.HeldOut.WinRate != 1 {
		t.Errorf("held-out winRate = %f, want 1", report.HeldOut.WinRate)
	}
	if !report.Validated {
		t.Error("uniformly profitable folds should validate")
	}
}

func TestRunNoEvents(t *testing.T) {
	bySymbol := map[string][]series.Point{
		"AAA": make([]series.Point, 30),
	}

	report := Run(scoring.MarketDefault, scoring.ModeStandard, bySymbol, DefaultConfig())
	if report.Recommendation != nil || report.Validated {
		t.Errorf("no events must not validate: %+v", report)
	}
}

func TestRunActiveSignals(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTrades = 2
	cfg.Horizons = []int{5}

	bySymbol := map[string][]series.Point{
		"AAA": flipSeries(78, 1, 30),
		"BBB": flipSeries(76, 1, 30),
		"CCC": flipSeries(80, 1, 30),
	}
	// Give one symbol a fresh flip on its final day.
	last := len(bySymbol["CCC"]) - 1
	s := 90.0
	bySymbol["CCC"][last].Status = scoring.StatusBuy
	bySymbol["CCC"][last].Strength = &s

	report := Run(scoring.MarketDefault, scoring.ModeStandard, bySymbol, cfg)
	if report.Recommendation == nil {
		t.Fatal("expected a recommendation")
	}
	if len(report.ActiveSignals) != 1 || report.ActiveSignals[0].Symbol != "CCC" {
		t.Fatalf("activeSignals = %+v, want the fresh CCC flip", report.ActiveSignals)
	}
}

func TestRunFoldsPerEvent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizons = []int{5}

	// A single symbol carrying every event: each fold must still train on
	// the remaining events and score the held-out one.
	points := make([]series.Point, 100)
	price := 100.0
	for i := range points {
		points[i] = series.Point{Index: i, Date: day(i), Close: price, Status: scoring.StatusHold}
		price++
	}
	for f := 0; f < 8; f++ {
		s := 75.0
		points[f*10].Status = scoring.StatusBuy
		points[f*10].Strength = &s
	}

	report := Run(scoring.MarketDefault, scoring.ModeStandard, map[string][]series.Point{"AAA": points}, cfg)

	if report.Events != 8 {
		t.Fatalf("events = %d, want 8", report.Events)
	}
	if report.HeldOut.Trades != 8 {
		t.Fatalf("held-out trades = %d, want one per event", report.HeldOut.Trades)
	}
	if report.HeldOut.WinRate != 1 {
		t.Errorf("held-out winRate = %f, want 1", report.HeldOut.WinRate)
	}
	if !report.Validated {
		t.Error("uniformly winning folds on one symbol should validate")
	}
}

func TestBestPrefersTargetWinRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizons = []int{5, 10}

	// Horizon 5 has the higher average but only 2 wins in 5; horizon 10
	// wins every time. The target-clearing horizon must win the pick.
	var events []Event
	fast := []float64{10, 9, -0.5, -0.5, -1}
	for _, ret := range fast {
		events = append(events, mkEvent("AAA", 75, map[int]float64{5: ret, 10: 2}))
	}

	best := Best(events, cfg)
	if best == nil {
		t.Fatal("expected a recommendation")
	}
	if best.Horizon != 10 {
		t.Fatalf("horizon = %d, want the win-rate-qualifying 10", best.Horizon)
	}
	if !best.MeetsTarget {
		t.Error("chosen candidate should be flagged as meeting the target")
	}
	if math.Abs(best.MedianReturn-2) > 1e-9 {
		t.Errorf("medianReturn = %f, want 2", best.MedianReturn)
	}
	if best.ProfitFactor != 100 {
		t.Errorf("all-win profitFactor = %f, want 100", best.ProfitFactor)
	}
}

func TestRunUnqualifiedRecommendation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizons = []int{5}
	cfg.TargetWinRate = 0.6

	// Alternating winning and losing segments: half the flips pay off, so
	// no candidate reaches the 0.6 target in the full sample or any fold.
	points := make([]series.Point, 105)
	price := 100.0
	for seg := 0; seg < 10; seg++ {
		change := 2.0
		if seg%2 == 1 {
			change = -1.0
		}
		for d := 0; d < 10; d++ {
			i := seg*10 + d
			points[i] = series.Point{Index: i, Date: day(i), Close: price, Status: scoring.StatusHold}
			price += change
		}
		s := 75.0
		points[seg*10].Status = scoring.StatusBuy
		points[seg*10].Strength = &s
	}
	for i := 100; i < 105; i++ {
		points[i] = series.Point{Index: i, Date: day(i), Close: price, Status: scoring.StatusHold}
	}

	report := Run(scoring.MarketDefault, scoring.ModeStandard, map[string][]series.Point{"AAA": points}, cfg)

	if report.Recommendation == nil {
		t.Fatal("expected a fallback recommendation")
	}
	if report.Recommendation.MeetsTarget {
		t.Errorf("winRate %f should not meet the 0.6 target", report.Recommendation.WinRate)
	}
	if report.HeldOut.Trades != 0 {
		t.Errorf("held-out trades = %d, want 0 when no fold clears the target", report.HeldOut.Trades)
	}
	if report.Validated {
		t.Error("a recommendation below the target win rate must not validate")
	}
}
