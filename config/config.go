package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the daemon settings. Engine parameters that are safe to tune
// per deployment (the dispute phase windows) can be overridden here; all other
// protocol constants are fixed in code.
type Config struct {
	Environment    string `toml:"Environment"`
	DataDir        string `toml:"DataDir"`
	MetricsAddress string `toml:"MetricsAddress"`
	DisputeToken   string `toml:"DisputeToken"`

	CommitWindowSeconds uint64 `toml:"CommitWindowSeconds"`
	RevealWindowSeconds uint64 `toml:"RevealWindowSeconds"`
	AppealWindowSeconds uint64 `toml:"AppealWindowSeconds"`
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

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		Environment:    "local",
		DataDir:        "./vault-data",
		MetricsAddress: ":9090",
		DisputeToken:   "USDC",
	}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./vault-data"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = ":9090"
	}
	if cfg.CommitWindowSeconds == 0 {
		cfg.CommitWindowSeconds = 86_400
	}
	if cfg.RevealWindowSeconds == 0 {
		cfg.RevealWindowSeconds = 86_400
	}
	if cfg.AppealWindowSeconds == 0 {
		cfg.AppealWindowSeconds = 86_400
	}
}

// Validate rejects configurations the engines cannot run with.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.DisputeToken) == "" {
		return fmt.Errorf("config: DisputeToken must be set")
	}
	if cfg.CommitWindowSeconds == 0 || cfg.RevealWindowSeconds == 0 || cfg.AppealWindowSeconds == 0 {
		return fmt.Errorf("config: phase windows must be positive")
	}
	return nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
