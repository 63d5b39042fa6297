package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	MarketDataConfig MarketDataConfig    `json:"market_data"`
	MarketsConfig    MarketsConfig       `json:"markets"`
	ScoringConfig    ScoringConfig       `json:"scoring"`
	ValidationConfig ValidationConfig    `json:"validation"`
	SchedulerConfig  SchedulerConfig     `json:"scheduler"`
	ServerConfig     ServerConfig        `json:"server"`
	AuthConfig       AuthConfig          `json:"auth"`
	DatabaseConfig   DatabaseConfig      `json:"database"`
	RedisConfig      RedisConfig         `json:"redis"`
	LoggingConfig    LoggingConfig       `json:"logging"`
}

// MarketDataConfig holds the candle provider settings.
type MarketDataConfig struct {
	ChartBaseURL      string `json:"chart_base_url"`
	CSVBaseURL        string `json:"csv_base_url"`
	HistoryDays       int    `json:"history_days"`
	RequestsPerMinute int    `json:"requests_per_minute"`
	FetchConcurrency  int    `json:"fetch_concurrency"`
}

// MarketsConfig maps market names to their symbol universes.
type MarketsConfig struct {
	Symbols map[string][]string `json:"symbols"`
}

// ScoringConfig holds the default scoring mode for API responses that do
// not specify one.
type ScoringConfig struct {
	DefaultMode string `json:"default_mode"`
}

// ValidationConfig holds the cutoff-search acceptance bar.
type ValidationConfig struct {
	TargetWinRate float64 `json:"target_win_rate"`
	MinTrades     int     `json:"min_trades"`
}

// SchedulerConfig controls the background refresh loop.
type SchedulerConfig struct {
	Enabled         bool     `json:"enabled"`
	RefreshInterval int      `json:"refresh_interval"` // Minutes between refreshes
	Markets         []string `json:"markets"`          // Markets to keep warm
}

type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins
	ReadTimeout     int    `json:"read_timeout"`    // Seconds
	WriteTimeout    int    `json:"write_timeout"`   // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Enabled             bool          `json:"enabled"`
	JWTSecret           string        `json:"jwt_secret"`
	AccessTokenDuration time.Duration `json:"access_token_duration"`
	MinPasswordLength   int           `json:"min_password_length"`
}

type DatabaseConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type LoggingConfig struct {
	Level      string `json:"level"`       // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output"`      // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"` // Output as JSON, pretty console otherwise
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with an empty config
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Market data settings
	cfg.MarketDataConfig.ChartBaseURL = getEnvOrDefault("MARKETDATA_CHART_URL", cfg.MarketDataConfig.ChartBaseURL)
	cfg.MarketDataConfig.CSVBaseURL = getEnvOrDefault("MARKETDATA_CSV_URL", cfg.MarketDataConfig.CSVBaseURL)
	cfg.MarketDataConfig.HistoryDays = getEnvIntOrDefault("MARKETDATA_HISTORY_DAYS", cfg.MarketDataConfig.HistoryDays)
	cfg.MarketDataConfig.RequestsPerMinute = getEnvIntOrDefault("MARKETDATA_REQUESTS_PER_MINUTE", cfg.MarketDataConfig.RequestsPerMinute)
	cfg.MarketDataConfig.FetchConcurrency = getEnvIntOrDefault("MARKETDATA_FETCH_CONCURRENCY", cfg.MarketDataConfig.FetchConcurrency)

	// Scoring settings
	cfg.ScoringConfig.DefaultMode = getEnvOrDefault("SCORING_DEFAULT_MODE", cfg.ScoringConfig.DefaultMode)

	// Scheduler settings
	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		cfg.SchedulerConfig.Enabled = v == "true"
	}
	cfg.SchedulerConfig.RefreshInterval = getEnvIntOrDefault("SCHEDULER_REFRESH_INTERVAL", cfg.SchedulerConfig.RefreshInterval)
	if v := os.Getenv("SCHEDULER_MARKETS"); v != "" {
		cfg.SchedulerConfig.Markets = strings.Split(v, ",")
	}

	// Server settings
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", cfg.ServerConfig.ReadTimeout)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", cfg.ServerConfig.WriteTimeout)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", cfg.ServerConfig.ShutdownTimeout)

	// Auth settings
	if v := os.Getenv("AUTH_ENABLED"); v != "" {
		cfg.AuthConfig.Enabled = v == "true"
	}
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", cfg.AuthConfig.AccessTokenDuration)
	cfg.AuthConfig.MinPasswordLength = getEnvIntOrDefault("AUTH_MIN_PASSWORD_LENGTH", cfg.AuthConfig.MinPasswordLength)

	// Database settings
	if v := os.Getenv("DATABASE_ENABLED"); v != "" {
		cfg.DatabaseConfig.Enabled = v == "true"
	}
	cfg.DatabaseConfig.URL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseConfig.URL)

	// Redis settings
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisConfig.Enabled = v == "true"
	}
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", cfg.RedisConfig.PoolSize)

	// Logging settings
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	if v := os.Getenv("LOG_JSON"); v != "" {
		cfg.LoggingConfig.JSONFormat = v == "true"
	}
}

func applyDefaults(cfg *Config) {
	if cfg.MarketDataConfig.ChartBaseURL == "" {
		cfg.MarketDataConfig.ChartBaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.MarketDataConfig.CSVBaseURL == "" {
		cfg.MarketDataConfig.CSVBaseURL = "https://stooq.com"
	}
	if cfg.MarketDataConfig.HistoryDays == 0 {
		cfg.MarketDataConfig.HistoryDays = 420
	}
	if cfg.MarketDataConfig.RequestsPerMinute == 0 {
		cfg.MarketDataConfig.RequestsPerMinute = 60
	}
	if cfg.MarketDataConfig.FetchConcurrency == 0 {
		cfg.MarketDataConfig.FetchConcurrency = 4
	}

	if cfg.ScoringConfig.DefaultMode == "" {
		cfg.ScoringConfig.DefaultMode = "STANDARD"
	}

	if cfg.ValidationConfig.TargetWinRate == 0 {
		cfg.ValidationConfig.TargetWinRate = 0.55
	}
	if cfg.ValidationConfig.MinTrades == 0 {
		cfg.ValidationConfig.MinTrades = 5
	}

	if cfg.SchedulerConfig.RefreshInterval == 0 {
		cfg.SchedulerConfig.RefreshInterval = 60
	}

	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.AllowedOrigins == "" {
		cfg.ServerConfig.AllowedOrigins = "*"
	}
	if cfg.ServerConfig.ReadTimeout == 0 {
		cfg.ServerConfig.ReadTimeout = 30
	}
	if cfg.ServerConfig.WriteTimeout == 0 {
		cfg.ServerConfig.WriteTimeout = 30
	}
	if cfg.ServerConfig.ShutdownTimeout == 0 {
		cfg.ServerConfig.ShutdownTimeout = 10
	}

	if cfg.AuthConfig.AccessTokenDuration == 0 {
		cfg.AuthConfig.AccessTokenDuration = 24 * time.Hour
	}
	if cfg.AuthConfig.MinPasswordLength == 0 {
		cfg.AuthConfig.MinPasswordLength = 8
	}

	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.RedisConfig.PoolSize == 0 {
		cfg.RedisConfig.PoolSize = 10
	}

	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "INFO"
	}
	if cfg.LoggingConfig.Output == "" {
		cfg.LoggingConfig.Output = "stdout"
	}

	if len(cfg.MarketsConfig.Symbols) == 0 {
		cfg.MarketsConfig.Symbols = DefaultUniverses()
	}
}

// Validate checks invariants that would only surface later as runtime
// failures.
func (c *Config) Validate() error {
	if c.AuthConfig.Enabled && c.AuthConfig.JWTSecret == "" {
		return fmt.Errorf("auth is enabled but AUTH_JWT_SECRET is not set")
	}
	if c.DatabaseConfig.Enabled && c.DatabaseConfig.URL == "" {
		return fmt.Errorf("database is enabled but DATABASE_URL is not set")
	}
	if c.ValidationConfig.TargetWinRate < 0 || c.ValidationConfig.TargetWinRate > 1 {
		return fmt.Errorf("validation target win rate %f outside [0,1]", c.ValidationConfig.TargetWinRate)
	}
	return nil
}

// SymbolsFor returns the configured symbol universe for a market key.
func (c *Config) SymbolsFor(market string) []string {
	if syms, ok := c.MarketsConfig.Symbols[market]; ok {
		return syms
	}
	return nil
}

// DefaultUniverses is a compact built-in symbol list per market, used when
// the config file does not supply one.
func DefaultUniverses() map[string][]string {
	return map[string][]string{
		"CRYPTO": {
			"BTC-USD", "ETH-USD", "SOL-USD", "BNB-USD", "XRP-USD",
			"ADA-USD", "DOGE-USD", "AVAX-USD", "DOT-USD", "LINK-USD",
		},
		"SP500": {
			"AAPL", "MSFT", "NVDA", "AMZN", "GOOGL", "META", "BRK-B",
			"LLY", "AVGO", "JPM", "TSLA", "XOM", "UNH", "V", "PG",
		},
		"NASDAQ": {
			"AAPL", "MSFT", "NVDA", "AMZN", "GOOGL", "META", "TSLA",
			"AVGO", "COST", "NFLX", "AMD", "ADBE", "QCOM", "INTC",
		},
		"DOWJONES": {
			"AAPL", "MSFT", "JPM", "V", "UNH", "HD", "PG", "KO",
			"MRK", "CAT", "DIS", "MCD", "IBM", "BA",
		},
		"DAX": {
			"SAP.DE", "SIE.DE", "ALV.DE", "DTE.DE", "AIR.DE",
			"MUV2.DE", "MBG.DE", "BAS.DE", "BMW.DE", "IFX.DE",
		},
		"FTSE100": {
			"AZN.L", "SHEL.L", "HSBA.L", "ULVR.L", "BP.L",
			"GSK.L", "RIO.L", "DGE.L", "REL.L", "BARC.L",
		},
		"NIKKEI225": {
			"7203.T", "6758.T", "9984.T", "8306.T", "6861.T",
			"9432.T", "8035.T", "4063.T", "6098.T", "6501.T",
		},
		"EUROSTOXX50": {
			"ASML.AS", "MC.PA", "SAP.DE", "TTE.PA", "SIE.DE",
			"OR.PA", "SAN.PA", "ALV.DE", "AIR.PA", "IBE.MC",
		},
		"CAC40": {
			"MC.PA", "TTE.PA", "OR.PA", "SAN.PA", "AIR.PA",
			"SU.PA", "AI.PA", "BNP.PA", "CS.PA", "DG.PA",
		},
		"IBEX35": {
			"IBE.MC", "SAN.MC", "ITX.MC", "BBVA.MC", "TEF.MC",
			"REP.MC", "CABK.MC", "AMS.MC", "FER.MC", "AENA.MC",
		},
		"HANGSENG": {
			"0700.HK", "0939.HK", "0005.HK", "1299.HK", "3690.HK",
			"9988.HK", "1398.HK", "2318.HK", "0883.HK", "0941.HK",
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
