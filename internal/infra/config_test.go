package infra

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
app:
  name: updown-bot
  mode: dry
api:
  gamma:
    url: https://gamma-api.polymarket.com
  clob:
    url: https://clob.polymarket.com
    ws_url: wss://ws-subscriptions-clob.polymarket.com/ws/market
market:
  slug_prefixes:
    - btc-updown-15m-
    - btc-up-or-down-15m-
strategy:
  entry_trigger_vwap: "0.40"
  dca_step_pct: "0.10"
  max_dca: 3
  chunk_stake: "1.00"
  max_stake_per_event: "25.00"
  hedge_threshold: "0.97"
  signal_shares: "10"
  max_entry_vwap: "0.45"
  max_hedge_vwap: "0.90"
loop:
  poll_interval_sec: 2
  min_seconds_between_orders: 5
  max_checkpoint_failures: 3
  request_timeout_sec: 10
state:
  live_path: data/live_state.json
  dry_path: data/dry_state.json
logging:
  level: info
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config fixture: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	p := cfg.StrategyParams()
	if p.MaxDCA != 3 {
		t.Errorf("expected max_dca 3, got %d", p.MaxDCA)
	}
	if p.EntryTriggerVWAP.String() != "0.4" {
		t.Errorf("expected entry trigger 0.4, got %s", p.EntryTriggerVWAP)
	}
	if !cfg.DryRun() {
		t.Error("expected dry mode")
	}
	if cfg.StatePath() != "data/dry_state.json" {
		t.Errorf("expected dry state path, got %s", cfg.StatePath())
	}
}

func TestLoadConfig_RejectsBadMode(t *testing.T) {
	bad := strings.Replace(validYAML, "mode: dry", "mode: paper", 1)
	if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestLoadConfig_RejectsNonNumericThreshold(t *testing.T) {
	bad := strings.Replace(validYAML, `entry_trigger_vwap: "0.40"`, `entry_trigger_vwap: "cheap"`, 1)
	if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
		t.Fatal("expected error for non-numeric threshold")
	}
}

func TestLoadConfig_RejectsStepAboveOne(t *testing.T) {
	bad := strings.Replace(validYAML, `dca_step_pct: "0.10"`, `dca_step_pct: "10"`, 1)
	if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
		t.Fatal("expected error for step >= 1")
	}
}

func TestLoadConfig_RejectsSharedStatePath(t *testing.T) {
	bad := strings.Replace(validYAML, "dry_path: data/dry_state.json", "dry_path: data/live_state.json", 1)
	if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
		t.Fatal("expected error when dry and live paths collide")
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("UPDOWN_MODE", "live")
	t.Setenv("UPDOWN_CLOB_API_KEY", "k-from-env")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.DryRun() {
		t.Error("expected env override to live mode")
	}
	if cfg.API.Clob.APIKey != "k-from-env" {
		t.Errorf("expected api key from env, got %q", cfg.API.Clob.APIKey)
	}
	if cfg.StatePath() != "data/live_state.json" {
		t.Errorf("expected live state path, got %s", cfg.StatePath())
	}
}
