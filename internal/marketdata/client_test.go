package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLimiter() *RateLimiter {
	return NewRateLimiter(1000, time.Minute)
}

func TestChartClientDaily(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v8/finance/chart/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"chart":{"result":[{
			"timestamp":[1700000000,1700086400,1700172800],
			"indicators":{"quote":[{
				"open":[99,101,103],
				"high":[101,103,105],
				"low":[98,100,102],
				"close":[100,102,104],
				"volume":[1000,1100,1200]
			}]}
		}]}}`)
	}))
	defer server.Close()

	client := NewChartClient(server.URL, testLimiter())
	candles, err := client.Daily(context.Background(), "AAPL", 500)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("len(candles) = %d, want 3", len(candles))
	}
	if candles[0].Close != 100 || candles[2].Close != 104 {
		t.Errorf("closes = %f..%f", candles[0].Close, candles[2].Close)
	}
	if candles[2].Volume != 1200 {
		t.Errorf("volume = %f, want 1200", candles[2].Volume)
	}
	if !candles[0].Time.Before(candles[2].Time) {
		t.Error("candles must be oldest first")
	}
}

func TestChartClientTrimsToDays(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{
			"timestamp":[1,2,3,4,5],
			"indicators":{"quote":[{
				"open":[1,1,1,1,1],"high":[1,1,1,1,1],"low":[1,1,1,1,1],
				"close":[10,20,30,40,50],"volume":[1,1,1,1,1]
			}]}
		}]}}`)
	}))
	defer server.Close()

	client := NewChartClient(server.URL, testLimiter())
	candles, err := client.Daily(context.Background(), "X", 2)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if len(candles) != 2 || candles[0].Close != 40 {
		t.Errorf("trim kept %d candles starting at %f, want the newest 2", len(candles), candles[0].Close)
	}
}

func TestChartClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[],"error":{"code":"Not Found","description":"No data found"}}}`)
	}))
	defer server.Close()

	client := NewChartClient(server.URL, testLimiter())
	if _, err := client.Daily(context.Background(), "NOPE", 10); err == nil {
		t.Fatal("expected error from chart API error payload")
	}
}

func TestCSVClientDaily(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Date,Open,High,Low,Close,Volume\n"+
			"2024-01-02,100,102,99,101,5000\n"+
			"2024-01-03,101,104,100,103,6000\n"+
			"bogus row\n")
	}))
	defer server.Close()

	client := NewCSVClient(server.URL, testLimiter())
	candles, err := client.Daily(context.Background(), "AAPL.US", 500)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("len(candles) = %d, want 2 (bad row skipped)", len(candles))
	}
	if candles[1].Close != 103 || candles[1].Volume != 6000 {
		t.Errorf("candle = %+v", candles[1])
	}
}

func TestChainFallsBack(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Date,Open,High,Low,Close,Volume\n2024-01-02,1,1,1,101,100\n")
	}))
	defer working.Close()

	chain := NewChain(zerolog.Nop(),
		NewChartClient(failing.URL, testLimiter()),
		NewCSVClient(working.URL, testLimiter()),
	)

	candles, err := chain.Daily(context.Background(), "AAPL", 10)
	if err != nil {
		t.Fatalf("chain should have fallen back: %v", err)
	}
	if len(candles) != 1 || candles[0].Close != 101 {
		t.Errorf("candles = %+v", candles)
	}
}

func TestChainAllFail(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	chain := NewChain(zerolog.Nop(), NewChartClient(failing.URL, testLimiter()))
	if _, err := chain.Daily(context.Background(), "AAPL", 10); err == nil {
		t.Fatal("expected error when every provider fails")
	}
}

func TestRateLimiterBlocksAtCapacity(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)

	ctx := context.Background()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if err := limiter.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	// The third slot is a minute away; a short deadline must trip first.
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(short); err == nil {
		t.Fatal("expected deadline error at capacity")
	}
}
