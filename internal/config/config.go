package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Default values for optional configuration fields.
const (
	DefaultAsset               = "BTC"
	DefaultPolicy              = "fifo"
	DefaultTransferWindowHours = 72
	DefaultAmountTolerance     = "0.005" // 0.5% relative
	DefaultLongTermYears       = 1
	DefaultCachePath           = "coingains.db"
	DefaultPriceCSV            = ""
	DefaultListenAddr          = ":8080"
)

// Config drives one engine run. Zero values are filled by applyDefaults,
// so an empty file (or no file at all) yields a runnable FIFO setup.
type Config struct {
	// Asset is the tracked asset symbol, used for price lookups.
	Asset string `yaml:"asset"`

	// Policy selects the lot-matching order: fifo, lifo, highest_cost,
	// lowest_cost or specific_id.
	Policy string `yaml:"policy"`

	// TransferWindowHours bounds how long after a withdrawal a matching
	// deposit may settle.
	TransferWindowHours int `yaml:"transfer_window_hours"`

	// AmountTolerance is the relative difference allowed between the two
	// legs of a transfer, as a decimal string ("0.005" = 0.5%).
	AmountTolerance string `yaml:"amount_tolerance"`

	// LongTermYears is the holding-period threshold. A lot held exactly
	// this many calendar years classifies as short term; one day beyond
	// classifies as long term.
	LongTermYears int `yaml:"long_term_years"`

	// NonInteractive disables the prompt; an unclassified transaction is
	// then fatal unless AcceptDefaults is set.
	NonInteractive bool `yaml:"non_interactive"`

	// AcceptDefaults answers every prompt with its default and caches
	// the answer, mirroring an interactive run that hit enter throughout.
	AcceptDefaults bool `yaml:"accept_defaults"`

	// CachePath is the sqlite file holding classification decisions and
	// cached prices.
	CachePath string `yaml:"cache_path"`

	// PriceCSV optionally points at a local date,price file consulted
	// before any remote price source.
	PriceCSV string `yaml:"price_csv"`

	// ListenAddr is used by serve mode.
	ListenAddr string `yaml:"listen_addr"`
}

// Load reads a YAML config file, expands ${VAR} environment variables,
// applies defaults and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Asset == "" {
		c.Asset = DefaultAsset
	}
	if c.Policy == "" {
		c.Policy = DefaultPolicy
	}
	if c.TransferWindowHours == 0 {
		c.TransferWindowHours = DefaultTransferWindowHours
	}
	if c.AmountTolerance == "" {
		c.AmountTolerance = DefaultAmountTolerance
	}
	if c.LongTermYears == 0 {
		c.LongTermYears = DefaultLongTermYears
	}
	if c.CachePath == "" {
		c.CachePath = getEnv("COINGAINS_CACHE", DefaultCachePath)
	}
	if c.ListenAddr == "" {
		c.ListenAddr = getEnv("COINGAINS_LISTEN", DefaultListenAddr)
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.Policy {
	case "fifo", "lifo", "highest_cost", "lowest_cost", "specific_id":
	default:
		return fmt.Errorf("unknown policy %q", c.Policy)
	}
	if c.TransferWindowHours < 0 {
		return fmt.Errorf("transfer_window_hours must be non-negative")
	}
	tol, err := decimal.NewFromString(c.AmountTolerance)
	if err != nil {
		return fmt.Errorf("amount_tolerance: %w", err)
	}
	if tol.IsNegative() || tol.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("amount_tolerance must be in [0, 1)")
	}
	if c.LongTermYears < 0 {
		return fmt.Errorf("long_term_years must be non-negative")
	}
	return nil
}

// TransferWindow returns the matching window as a duration.
func (c *Config) TransferWindow() time.Duration {
	return time.Duration(c.TransferWindowHours) * time.Hour
}

// Tolerance returns the parsed amount tolerance. Validate must have
// accepted the config first.
func (c *Config) Tolerance() decimal.Decimal {
	return decimal.RequireFromString(c.AmountTolerance)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
