package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// GenesisAccount seeds a ledger balance at startup.
type GenesisAccount struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
}

// Config captures runtime configuration for the escrow node.
type Config struct {
	RPCAddress              string           `toml:"RPCAddress"`
	NetworkName             string           `toml:"NetworkName"`
	MultiSigThreshold       string           `toml:"MultiSigThreshold"`
	DefaultArbitratorFeePct uint8            `toml:"DefaultArbitratorFeePct"`
	EscrowTTLSeconds        int64            `toml:"EscrowTTLSeconds"`
	MilestoneAutoRelease    bool             `toml:"MilestoneAutoRelease"`
	PausedModules           []string         `toml:"PausedModules"`
	Accounts                []GenesisAccount `toml:"Accounts"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8645"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "escrowd-local"
	}
	if strings.TrimSpace(cfg.MultiSigThreshold) == "" {
		cfg.MultiSigThreshold = "1000000"
	}
	if cfg.EscrowTTLSeconds == 0 {
		cfg.EscrowTTLSeconds = 7 * 24 * 60 * 60
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
}

// Validate rejects configurations the engine would refuse at runtime.
func (c *Config) Validate() error {
	if c.DefaultArbitratorFeePct > 10 {
		return fmt.Errorf("config: DefaultArbitratorFeePct must be <= 10, got %d", c.DefaultArbitratorFeePct)
	}
	if c.EscrowTTLSeconds <= 0 {
		return fmt.Errorf("config: EscrowTTLSeconds must be positive, got %d", c.EscrowTTLSeconds)
	}
	if _, err := c.MultiSigThresholdInt(); err != nil {
		return err
	}
	for i, acc := range c.Accounts {
		if strings.TrimSpace(acc.Address) == "" {
			return fmt.Errorf("config: account %d missing address", i)
		}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(acc.Balance), 10)
		if !ok || balance.Sign() <= 0 {
			return fmt.Errorf("config: account %d has invalid balance %q", i, acc.Balance)
		}
	}
	return nil
}

// MultiSigThresholdInt parses the high-value gating threshold.
func (c *Config) MultiSigThresholdInt() (*big.Int, error) {
	trimmed := strings.TrimSpace(c.MultiSigThreshold)
	threshold, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || threshold.Sign() <= 0 {
		return nil, fmt.Errorf("config: invalid MultiSigThreshold %q", c.MultiSigThreshold)
	}
	return threshold, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{DefaultArbitratorFeePct: 2}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
