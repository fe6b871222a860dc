// Package config loads application configuration from a YAML file with
// environment variable overrides and sensible defaults.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pnf-systemv1/internal/chart"
)

// ChartConfig selects how charts are constructed for every symbol.
type ChartConfig struct {
	Construction string  `yaml:"construction"` // "close" or "high_low"
	BoxMode      string  `yaml:"box_mode"`     // "fixed", "default", "points", "percentage"
	BoxParam     float64 `yaml:"box_param"`    // fixed size, points multiplier, or percent
	Reversal     int     `yaml:"reversal"`
}

// Modes parses the construction and box-size mode strings.
func (c ChartConfig) Modes() (chart.ConstructionMode, chart.BoxSizeMode, error) {
	cm, err := chart.ParseConstructionMode(c.Construction)
	if err != nil {
		return "", "", err
	}
	bm, err := chart.ParseBoxSizeMode(c.BoxMode)
	if err != nil {
		return "", "", err
	}
	return cm, bm, nil
}

// SourceConfig selects where observations come from.
type SourceConfig struct {
	Mode        string `yaml:"mode"`         // "csv", "binance" or "sim"
	CSVDir      string `yaml:"csv_dir"`      // directory of <SYMBOL>.csv files
	Interval    string `yaml:"interval"`     // kline interval ("1h") or sim bar cadence ("1s")
	WarmupLimit int    `yaml:"warmup_limit"` // historical bars loaded before streaming
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Config holds all application configuration.
type Config struct {
	Symbols []string     `yaml:"symbols"`
	Chart   ChartConfig  `yaml:"chart"`
	Source  SourceConfig `yaml:"source"`

	// Resample buckets observations into a larger period before
	// charting ("1d", "4h", ...). Empty disables resampling.
	Resample string `yaml:"resample"`

	Redis      RedisConfig `yaml:"redis"`
	SQLitePath string      `yaml:"sqlite_path"`

	MetricsAddr string `yaml:"metrics_addr"`
	GatewayAddr string `yaml:"gateway_addr"`
	ReplayDepth int    `yaml:"replay_depth"`

	SnapshotCron string `yaml:"snapshot_cron"`
	ExportCron   string `yaml:"export_cron"`
	ExportDir    string `yaml:"export_dir"`

	// Alert delivery. All empty disables alerting entirely.
	AlertWebhookURL  string `yaml:"alert_webhook_url"`
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when the YAML file and
// environment provide nothing.
func Default() *Config {
	return &Config{
		Symbols: []string{"BTCUSDT"},
		Chart: ChartConfig{
			Construction: "close",
			BoxMode:      "default",
			BoxParam:     1.0,
			Reversal:     3,
		},
		Source: SourceConfig{
			Mode:        "csv",
			CSVDir:      "data",
			Interval:    "1h",
			WarmupLimit: 500,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		SQLitePath:   "data/pnf.db",
		MetricsAddr:  ":9090",
		GatewayAddr:  ":8080",
		ReplayDepth:  256,
		SnapshotCron: "*/5 * * * *",
		ExportCron:   "0 * * * *",
		ExportDir:    "exports",
		LogLevel:     "info",
	}
}

// Load reads the YAML file at path (missing file is fine), applies
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			log.Printf("[config] %s not found, using defaults + env", path)
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from environment variables when set.
func (c *Config) applyEnv() {
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = ParseSymbols(v)
	}
	envStr("CHART_CONSTRUCTION", &c.Chart.Construction)
	envStr("CHART_BOX_MODE", &c.Chart.BoxMode)
	envFloat("CHART_BOX_PARAM", &c.Chart.BoxParam)
	envInt("CHART_REVERSAL", &c.Chart.Reversal)

	envStr("SOURCE_MODE", &c.Source.Mode)
	envStr("CSV_DIR", &c.Source.CSVDir)
	envStr("BINANCE_INTERVAL", &c.Source.Interval)
	envInt("WARMUP_LIMIT", &c.Source.WarmupLimit)

	envStr("RESAMPLE_PERIOD", &c.Resample)

	envStr("REDIS_ADDR", &c.Redis.Addr)
	envStr("REDIS_PASSWORD", &c.Redis.Password)
	envInt("REDIS_DB", &c.Redis.DB)
	envStr("SQLITE_PATH", &c.SQLitePath)

	envStr("METRICS_ADDR", &c.MetricsAddr)
	envStr("GATEWAY_ADDR", &c.GatewayAddr)
	envInt("REPLAY_DEPTH", &c.ReplayDepth)

	envStr("SNAPSHOT_CRON", &c.SnapshotCron)
	envStr("EXPORT_CRON", &c.ExportCron)
	envStr("EXPORT_DIR", &c.ExportDir)

	envStr("ALERT_WEBHOOK_URL", &c.AlertWebhookURL)
	envStr("TELEGRAM_BOT_TOKEN", &c.TelegramBotToken)
	envStr("TELEGRAM_CHAT_ID", &c.TelegramChatID)

	envStr("LOG_LEVEL", &c.LogLevel)
}

// Validate checks the configuration for values the pipeline cannot
// start with.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: no symbols configured")
	}

	cm, bm, err := c.Chart.Modes()
	if err != nil {
		return fmt.Errorf("config: chart: %w", err)
	}
	if _, err := chart.New(cm, bm, c.Chart.BoxParam, c.Chart.Reversal); err != nil {
		return fmt.Errorf("config: chart: %w", err)
	}

	switch c.Source.Mode {
	case "csv":
		if c.Source.CSVDir == "" {
			return fmt.Errorf("config: source.csv_dir is required for csv mode")
		}
	case "binance":
		if c.Source.Interval == "" {
			return fmt.Errorf("config: source.interval is required for binance mode")
		}
	case "sim":
		// Defaults cover everything; an explicit interval must still parse.
		if c.Source.Interval != "" {
			if _, err := ParsePeriod(c.Source.Interval); err != nil {
				return fmt.Errorf("config: source.interval: %w", err)
			}
		}
	default:
		return fmt.Errorf("config: unknown source mode %q", c.Source.Mode)
	}

	if _, err := ParsePeriod(c.Resample); err != nil {
		return fmt.Errorf("config: resample: %w", err)
	}

	if (c.TelegramBotToken != "") != (c.TelegramChatID != "") {
		return fmt.Errorf("config: telegram_bot_token and telegram_chat_id must be set together")
	}
	return nil
}

// ParseSymbols parses a comma-separated symbol list, trimming and
// upper-casing each entry.
func ParseSymbols(s string) []string {
	parts := strings.Split(s, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		symbols = append(symbols, p)
	}
	return symbols
}

// ParsePeriod parses a resample period. Accepts time.ParseDuration
// syntax plus "d" (days) and "w" (weeks) suffixes; "" means disabled.
func ParsePeriod(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, ok := cutSuffixInt(s, "d"); ok {
		return time.Duration(n) * 24 * time.Hour, nil
	}
	if n, ok := cutSuffixInt(s, "w"); ok {
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid period %q", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("period %q must be positive", s)
	}
	return d, nil
}

func cutSuffixInt(s, suffix string) (int, bool) {
	rest, found := strings.CutSuffix(s, suffix)
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		} else {
			log.Printf("[config] ignoring invalid %s: %q", key, v)
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		} else {
			log.Printf("[config] ignoring invalid %s: %q", key, v)
		}
	}
}
