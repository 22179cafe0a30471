package infra

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"updown_go/internal/strategy"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config holds the full application configuration. Threshold values are
// YAML strings parsed into decimals during validation so no float ever
// touches a price.
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Mode string `yaml:"mode"` // "dry" or "live"
	} `yaml:"app"`

	API struct {
		Gamma struct {
			URL string `yaml:"url"`
		} `yaml:"gamma"`
		Clob struct {
			URL       string `yaml:"url"`
			WSURL     string `yaml:"ws_url"`
			APIKey    string `yaml:"api_key"`
			Secret    string `yaml:"secret"`
			Passphrase string `yaml:"passphrase"`
			FunderAddress string `yaml:"funder_address"`
		} `yaml:"clob"`
	} `yaml:"api"`

	Market struct {
		SlugPrefixes []string `yaml:"slug_prefixes"`
	} `yaml:"market"`

	Strategy struct {
		EntryTriggerVWAP string `yaml:"entry_trigger_vwap"`
		DCAStepPct       string `yaml:"dca_step_pct"`
		MaxDCA           int    `yaml:"max_dca"`
		ChunkStake       string `yaml:"chunk_stake"`
		MaxStakePerEvent string `yaml:"max_stake_per_event"`
		HedgeThreshold   string `yaml:"hedge_threshold"`
		SignalShares     string `yaml:"signal_shares"`
		MaxEntryVWAP     string `yaml:"max_entry_vwap"`
		MaxHedgeVWAP     string `yaml:"max_hedge_vwap"`
	} `yaml:"strategy"`

	Loop struct {
		PollIntervalSec          int `yaml:"poll_interval_sec"`
		MinSecondsBetweenOrders  int `yaml:"min_seconds_between_orders"`
		MaxCheckpointFailures    int `yaml:"max_checkpoint_failures"`
		RequestTimeoutSec        int `yaml:"request_timeout_sec"`
	} `yaml:"loop"`

	State struct {
		LivePath  string `yaml:"live_path"`
		DryPath   string `yaml:"dry_path"`
		JournalDB string `yaml:"journal_db"`
	} `yaml:"state"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	parsed parsedStrategy
}

type parsedStrategy struct {
	params       strategy.Params
	signalShares decimal.Decimal
	maxEntryVWAP decimal.Decimal
	maxHedgeVWAP decimal.Decimal
}

// LoadConfig reads and parses the configuration file, applies env
// overrides, and validates. Invalid config is fatal before the loop starts.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity and parses the decimal thresholds.
func (c *Config) Validate() error {
	if c.App.Mode != "dry" && c.App.Mode != "live" {
		return fmt.Errorf("mode must be \"dry\" or \"live\", got %q", c.App.Mode)
	}
	if !strings.HasPrefix(c.API.Gamma.URL, "http://") && !strings.HasPrefix(c.API.Gamma.URL, "https://") {
		return fmt.Errorf("invalid gamma URL: %s", c.API.Gamma.URL)
	}
	if !strings.HasPrefix(c.API.Clob.URL, "http://") && !strings.HasPrefix(c.API.Clob.URL, "https://") {
		return fmt.Errorf("invalid clob URL: %s", c.API.Clob.URL)
	}
	if len(c.Market.SlugPrefixes) == 0 {
		return fmt.Errorf("at least one market slug prefix is required")
	}
	if c.Loop.PollIntervalSec <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Strategy.MaxDCA < 0 {
		return fmt.Errorf("max_dca must be >= 0")
	}
	if c.State.LivePath == "" || c.State.DryPath == "" {
		return fmt.Errorf("both state paths are required")
	}
	if c.State.LivePath == c.State.DryPath {
		return fmt.Errorf("live and dry state paths must differ")
	}

	p := &c.parsed
	var err error
	if p.params.EntryTriggerVWAP, err = parsePositive("entry_trigger_vwap", c.Strategy.EntryTriggerVWAP); err != nil {
		return err
	}
	if p.params.DCAStepPct, err = parsePositive("dca_step_pct", c.Strategy.DCAStepPct); err != nil {
		return err
	}
	if p.params.DCAStepPct.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("dca_step_pct must be a fraction below 1, got %s", c.Strategy.DCAStepPct)
	}
	if p.params.ChunkStake, err = parsePositive("chunk_stake", c.Strategy.ChunkStake); err != nil {
		return err
	}
	if p.params.MaxStakePerEvent, err = parsePositive("max_stake_per_event", c.Strategy.MaxStakePerEvent); err != nil {
		return err
	}
	if p.params.HedgeThreshold, err = parsePositive("hedge_threshold", c.Strategy.HedgeThreshold); err != nil {
		return err
	}
	if p.signalShares, err = parsePositive("signal_shares", c.Strategy.SignalShares); err != nil {
		return err
	}
	if p.maxEntryVWAP, err = parsePositive("max_entry_vwap", c.Strategy.MaxEntryVWAP); err != nil {
		return err
	}
	if p.maxHedgeVWAP, err = parsePositive("max_hedge_vwap", c.Strategy.MaxHedgeVWAP); err != nil {
		return err
	}
	p.params.MaxDCA = c.Strategy.MaxDCA

	return nil
}

// StrategyParams returns the parsed rule thresholds.
func (c *Config) StrategyParams() strategy.Params {
	return c.parsed.params
}

// SignalShares is the share count used for trigger VWAPs.
func (c *Config) SignalShares() decimal.Decimal {
	return c.parsed.signalShares
}

// MaxEntryVWAP is the execution guard for entry and DCA orders.
func (c *Config) MaxEntryVWAP() decimal.Decimal {
	return c.parsed.maxEntryVWAP
}

// MaxHedgeVWAP is the execution guard for hedge orders.
func (c *Config) MaxHedgeVWAP() decimal.Decimal {
	return c.parsed.maxHedgeVWAP
}

// StatePath returns the state file path for the configured mode.
func (c *Config) StatePath() string {
	if c.DryRun() {
		return c.State.DryPath
	}
	return c.State.LivePath
}

// JournalDBPath returns the sqlite journal location.
func (c *Config) JournalDBPath() string {
	if c.State.JournalDB == "" {
		return "data/journal.db"
	}
	return c.State.JournalDB
}

// DryRun reports whether the execution sink is the simulator.
func (c *Config) DryRun() bool {
	return c.App.Mode != "live"
}

// PollInterval returns the cycle cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Loop.PollIntervalSec) * time.Second
}

// OrderThrottle returns the minimum spacing between orders.
func (c *Config) OrderThrottle() time.Duration {
	return time.Duration(c.Loop.MinSecondsBetweenOrders) * time.Second
}

// RequestTimeout bounds each outbound network call.
func (c *Config) RequestTimeout() time.Duration {
	if c.Loop.RequestTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Loop.RequestTimeoutSec) * time.Second
}

func parsePositive(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", field, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s must be positive, got %s", field, raw)
	}
	return d, nil
}

// overrideWithEnv applies environment variable overrides for secrets.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("UPDOWN_CLOB_API_KEY"); key != "" {
		cfg.API.Clob.APIKey = key
	}
	if secret := os.Getenv("UPDOWN_CLOB_SECRET"); secret != "" {
		cfg.API.Clob.Secret = secret
	}
	if pass := os.Getenv("UPDOWN_CLOB_PASSPHRASE"); pass != "" {
		cfg.API.Clob.Passphrase = pass
	}
	if funder := os.Getenv("UPDOWN_FUNDER_ADDRESS"); funder != "" {
		cfg.API.Clob.FunderAddress = funder
	}
	if mode := os.Getenv("UPDOWN_MODE"); mode != "" {
		cfg.App.Mode = mode
	}
}
