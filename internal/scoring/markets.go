package scoring

import "strings"

// Market selects the weighting/threshold profile used by the score engine.
type Market string

const (
	MarketDefault     Market = "DEFAULT"
	MarketCrypto      Market = "CRYPTO"
	MarketSP500       Market = "SP500"
	MarketNasdaq      Market = "NASDAQ"
	MarketDowJones    Market = "DOWJONES"
	MarketDAX         Market = "DAX"
	MarketFTSE100     Market = "FTSE100"
	MarketNikkei225   Market = "NIKKEI225"
	MarketEuroStoxx50 Market = "EUROSTOXX50"
	MarketCAC40       Market = "CAC40"
	MarketIBEX35      Market = "IBEX35"
	MarketHangSeng    Market = "HANGSENG"
)

// Markets lists every supported canonical market key.
func Markets() []Market {
	return []Market{
		MarketDefault, MarketCrypto, MarketSP500, MarketNasdaq,
		MarketDowJones, MarketDAX, MarketFTSE100, MarketNikkei225,
		MarketEuroStoxx50, MarketCAC40, MarketIBEX35, MarketHangSeng,
	}
}

// Mode tightens or relaxes status resolution.
type Mode string

const (
	ModeStandard Mode = "STANDARD"
	ModeHighConf Mode = "HIGH_CONF"
)

// ResolveMarket maps a free-form market name to its canonical key. Matching
// is case-insensitive and ignores punctuation, so "S&P 500", "SP500" and
// "s_p_500" all resolve to SP500. Unknown names fall back to DEFAULT.
func ResolveMarket(name string) Market {
	switch normalizeKey(name) {
	case "", "DEFAULT":
		return MarketDefault
	case "CRYPTO", "CRYPTOCURRENCY", "CRYPTOPAIRS":
		return MarketCrypto
	case "SP500", "SANDP500", "STANDARDANDPOORS500":
		return MarketSP500
	case "NASDAQ", "NASDAQ100", "NASDAQCOMPOSITE":
		return MarketNasdaq
	case "DOWJONES", "DOW", "DJIA", "DOW30":
		return MarketDowJones
	case "DAX", "DAX40", "GDAXI":
		return MarketDAX
	case "FTSE100", "FTSE", "FOOTSIE":
		return MarketFTSE100
	case "NIKKEI225", "NIKKEI", "N225":
		return MarketNikkei225
	case "EUROSTOXX50", "EUROSTOXX", "STOXX50", "STOXX50E":
		return MarketEuroStoxx50
	case "CAC40", "CAC", "FCHI":
		return MarketCAC40
	case "IBEX35", "IBEX":
		return MarketIBEX35
	case "HANGSENG", "HANGSENGINDEX", "HSI":
		return MarketHangSeng
	default:
		return MarketDefault
	}
}

// ResolveMode maps a free-form mode name to a canonical mode, defaulting to
// STANDARD for anything unknown.
func ResolveMode(name string) Mode {
	switch normalizeKey(name) {
	case "HIGHCONF", "HIGHCONFIDENCE", "STRICT":
		return ModeHighConf
	default:
		return ModeStandard
	}
}

// normalizeKey uppercases and strips everything that is not a letter or
// digit, so punctuation and spacing variants collapse to one key.
func normalizeKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(name)) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	// "S AND P" style spellings keep the AND; "&" is dropped above, so
	// normalize the common spelled-out variant too.
	return b.String()
}

// Profile holds the per-market thresholds and component weight multipliers
// applied on top of the base component weights.
type Profile struct {
	BuyThreshold  float64
	SellThreshold float64
	MinConfidence float64
	Multipliers   map[Component]float64
}

// profileFor returns the profile for a canonical market. The switch is
// exhaustive over the supported markets; adding a market is a single-point
// change here plus the alias table above.
func profileFor(market Market) Profile {
	switch market {
	case MarketCrypto:
		return Profile{
			BuyThreshold:  68,
			SellThreshold: 32,
			MinConfidence: 0.50,
			Multipliers: map[Component]float64{
				ComponentVolume:     1.30,
				ComponentVolatility: 1.20,
				ComponentTrend:      1.05,
				ComponentConsensus:  0.85,
			},
		}
	case MarketSP500, MarketDowJones:
		return Profile{
			BuyThreshold:  64,
			SellThreshold: 36,
			MinConfidence: 0.48,
			Multipliers: map[Component]float64{
				ComponentTrend:     1.20,
				ComponentConsensus: 1.25,
				ComponentVolume:    0.70,
				ComponentMA:        1.10,
			},
		}
	case MarketNasdaq:
		return Profile{
			BuyThreshold:  66,
			SellThreshold: 34,
			MinConfidence: 0.48,
			Multipliers: map[Component]float64{
				ComponentTrend:      1.25,
				ComponentConsensus:  1.15,
				ComponentVolume:     0.75,
				ComponentVolatility: 1.10,
			},
		}
	case MarketDAX, MarketEuroStoxx50, MarketCAC40:
		return Profile{
			BuyThreshold:  65,
			SellThreshold: 35,
			MinConfidence: 0.46,
			Multipliers: map[Component]float64{
				ComponentTrend:     1.15,
				ComponentConsensus: 1.20,
				ComponentVolume:    0.75,
			},
		}
	case MarketFTSE100, MarketIBEX35:
		return Profile{
			BuyThreshold:  63,
			SellThreshold: 37,
			MinConfidence: 0.45,
			Multipliers: map[Component]float64{
				ComponentMA:        1.15,
				ComponentConsensus: 1.15,
				ComponentVolume:    0.70,
				ComponentRSI:       1.05,
			},
		}
	case MarketNikkei225, MarketHangSeng:
		return Profile{
			BuyThreshold:  66,
			SellThreshold: 34,
			MinConfidence: 0.48,
			Multipliers: map[Component]float64{
				ComponentTrend:      1.15,
				ComponentVolatility: 1.15,
				ComponentVolume:     0.80,
				ComponentConsensus:  1.10,
			},
		}
	default: // MarketDefault and anything unresolved
		return Profile{
			BuyThreshold:  65,
			SellThreshold: 35,
			MinConfidence: 0.45,
			Multipliers:   nil,
		}
	}
}
