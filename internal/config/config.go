// Package config
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

/*
YAML config example:
mode: "watch"
source: "wallex"
symbol: "BTC-USDT"
side: "both"
quantities: [0.1, 0.5, 1]
buffer: 0.05
book_sizes: [10, 50, 100]
orders: [10, 50, 100]
iterations: 1000
seed: 42
watch_interval: "10s"
metrics_addr: ":9100"
proxy_url: ""
notification_retries: 3
notification_delay: "5s"
log_level: "info"
log_file: "logs/depthbook.log"
*/

const (
	ModeBench = "bench"
	ModeStats = "stats"
	ModeWatch = "watch"

	SourceSynthetic = "synthetic"
	SourceWallex    = "wallex"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Mode                string        `yaml:"mode"`
	Source              string        `yaml:"source"`
	Symbol              string        `yaml:"symbol"`
	Side                string        `yaml:"side"`
	Quantities          []float64     `yaml:"quantities"`
	Buffer              float64       `yaml:"buffer"`
	BookSizes           []int         `yaml:"book_sizes"`
	Orders              []int         `yaml:"orders"`
	Iterations          int           `yaml:"iterations"`
	Seed                uint64        `yaml:"seed"`
	WatchInterval       time.Duration `yaml:"watch_interval"`
	MetricsAddr         string        `yaml:"metrics_addr"`
	WallexAPIKey        string        `yaml:"wallex_api_key"`
	TelegramToken       string        `yaml:"telegram_token"`
	TelegramChatID      string        `yaml:"telegram_chat_id"`
	ProxyURL            string        `yaml:"proxy_url"`
	NotificationRetries int           `yaml:"notification_retries"`
	NotificationDelay   time.Duration `yaml:"notification_delay"`
	LogLevel            string        `yaml:"log_level"`
	LogFile             string        `yaml:"log_file"`
}

// Sides returns the book sides selected by Side.
func (c Config) Sides() []string {
	if c.Side == "" || c.Side == "both" {
		return []string{"bids", "asks"}
	}
	return []string{c.Side}
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeBench, ModeStats, ModeWatch:
	default:
		return fmt.Errorf("%w: unsupported mode %q", ErrInvalidConfig, c.Mode)
	}
	switch c.Source {
	case SourceSynthetic, SourceWallex:
	default:
		return fmt.Errorf("%w: unsupported source %q", ErrInvalidConfig, c.Source)
	}
	if c.Mode == ModeWatch && c.Source != SourceWallex {
		return fmt.Errorf("%w: watch mode needs the wallex source", ErrInvalidConfig)
	}
	switch c.Side {
	case "both", "bids", "asks":
	default:
		return fmt.Errorf("%w: side must be both, bids or asks, got %q", ErrInvalidConfig, c.Side)
	}
	if c.Source == SourceWallex && c.Symbol == "" {
		return fmt.Errorf("%w: symbol is required for the wallex source", ErrInvalidConfig)
	}
	if c.Mode != ModeBench && len(c.Quantities) == 0 {
		return fmt.Errorf("%w: at least one quantity is required", ErrInvalidConfig)
	}
	for _, q := range c.Quantities {
		if q <= 0 {
			return fmt.Errorf("%w: quantity must be positive, got %v", ErrInvalidConfig, q)
		}
	}
	if c.Buffer < 0 {
		return fmt.Errorf("%w: buffer must not be negative, got %v", ErrInvalidConfig, c.Buffer)
	}
	if c.Mode == ModeStats && c.Source == SourceSynthetic && len(c.BookSizes) == 0 {
		return fmt.Errorf("%w: synthetic stats need a book size", ErrInvalidConfig)
	}
	if c.Mode == ModeBench {
		if c.Iterations <= 0 {
			return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidConfig, c.Iterations)
		}
		if len(c.BookSizes) == 0 || len(c.Orders) == 0 {
			return fmt.Errorf("%w: bench needs book sizes and order counts", ErrInvalidConfig)
		}
	}
	if c.Mode == ModeWatch && c.WatchInterval <= 0 {
		return fmt.Errorf("%w: watch interval must be positive", ErrInvalidConfig)
	}
	return nil
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", ErrInvalidConfig, part)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: bad integer %q", ErrInvalidConfig, part)
		}
		out = append(out, v)
	}
	return out, nil
}

// Load builds the config from flags, then an optional YAML file given by
// -config, then secrets from the environment (and a .env file if present).
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("depthbook", flag.ContinueOnError)
	mode := fs.String("mode", ModeStats, "Mode: bench, stats or watch")
	source := fs.String("source", SourceSynthetic, "Book source: synthetic or wallex")
	symbol := fs.String("symbol", "BTC-USDT", "Trading symbol")
	side := fs.String("side", "both", "Book side: both, bids or asks")
	quantities := fs.String("quantities", "1,4,14,60", "Comma-separated quantities to price")
	buffer := fs.Float64("buffer", 0, "Volume skipped from the top of the book before pricing")
	bookSizes := fs.String("book-sizes", "10,50,100", "Comma-separated synthetic book sizes")
	orders := fs.String("orders", "10,50,100", "Comma-separated order counts for bench")
	iterations := fs.Int("iterations", 1000, "Iterations per bench case")
	seed := fs.Uint64("seed", 1, "Random seed for synthetic orders")
	watchInterval := fs.Duration("watch-interval", 10*time.Second, "Report interval in watch mode")
	metricsAddr := fs.String("metrics-addr", "", "Address to serve /metrics on in watch mode (e.g., :9100)")
	proxyURL := fs.String("proxy-url", "", "Proxy for Telegram requests (e.g., socks5://127.0.0.1:1080)")
	notificationRetries := fs.Int("notification-retries", 3, "Number of notification send attempts")
	notificationDelay := fs.Duration("notification-delay", 5*time.Second, "Delay between notification retries (e.g., 5s)")
	logLevel := fs.String("log-level", "", "Log level (overrides LOG_LEVEL)")
	logFile := fs.String("log-file", "logs/depthbook.log", "Rotated log file path")
	configFile := fs.String("config", "", "Path to YAML config file")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	qs, err := parseFloats(*quantities)
	if err != nil {
		return Config{}, err
	}
	sizes, err := parseInts(*bookSizes)
	if err != nil {
		return Config{}, err
	}
	counts, err := parseInts(*orders)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Mode:                *mode,
		Source:              *source,
		Symbol:              *symbol,
		Side:                strings.ToLower(*side),
		Quantities:          qs,
		Buffer:              *buffer,
		BookSizes:           sizes,
		Orders:              counts,
		Iterations:          *iterations,
		Seed:                *seed,
		WatchInterval:       *watchInterval,
		MetricsAddr:         *metricsAddr,
		ProxyURL:            *proxyURL,
		NotificationRetries: *notificationRetries,
		NotificationDelay:   *notificationDelay,
		LogLevel:            *logLevel,
		LogFile:             *logFile,
	}

	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.Side = strings.ToLower(cfg.Side)
	}

	// Missing .env is fine.
	_ = godotenv.Load()
	setFromEnv(&cfg.WallexAPIKey, "WALLEX_API_KEY")
	setFromEnv(&cfg.TelegramToken, "TELEGRAM_TOKEN")
	setFromEnv(&cfg.TelegramChatID, "TELEGRAM_CHAT_ID")
	setFromEnv(&cfg.ProxyURL, "PROXY_URL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = os.Getenv("LOG_LEVEL")
	}

	return cfg, cfg.Validate()
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func MustLoadConfig() Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
