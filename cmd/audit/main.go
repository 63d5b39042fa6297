// Command audit replays the trading strategies over local CSV candle files
// and prints the per-strategy report, without any network or services.
//
// Usage:
//
//	audit -dir ./candles -market SP500 -mode STANDARD [-validate]
//
// Every *.csv file in the directory is one symbol (file name without
// extension), with Date,Open,High,Low,Close,Volume rows.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"market-signals/internal/engine"
	"market-signals/internal/marketdata"
	"market-signals/internal/scoring"
	"market-signals/internal/validate"
)

func main() {
	dir := flag.String("dir", ".", "directory of per-symbol CSV candle files")
	market := flag.String("market", "DEFAULT", "market profile to score with")
	mode := flag.String("mode", "STANDARD", "scoring mode (STANDARD or HIGH_CONF)")
	runValidation := flag.Bool("validate", false, "also run leave-one-out validation")
	flag.Parse()

	candlesBySymbol, err := loadDir(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if len(candlesBySymbol) == 0 {
		fmt.Fprintln(os.Stderr, "error: no CSV files found in", *dir)
		os.Exit(1)
	}

	m := scoring.ResolveMarket(*market)
	md := scoring.ResolveMode(*mode)

	report := engine.AuditFromCandles(m, md, candlesBySymbol)
	printJSON(report)

	if *runValidation {
		vr := engine.ValidationFromCandles(m, md, candlesBySymbol, validate.DefaultConfig())
		printJSON(vr)
	}
}

func loadDir(dir string) (map[string][]marketdata.Candle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	out := make(map[string][]marketdata.Candle)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}

		f, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		candles, err := marketdata.ParseCSV(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", entry.Name(), err)
		}

		symbol := strings.TrimSuffix(entry.Name(), ".csv")
		out[symbol] = candles
	}
	return out, nil
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
