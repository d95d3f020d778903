package backend

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"

	"github.com/olivoil/onewordstory/internal/contract"
)

// Config is the static client configuration: a TOML file with environment
// overrides. It is loaded once at startup.
type Config struct {
	Provider ProviderConfig `toml:"provider"`
	Contract ContractConfig `toml:"contract"`
	General  GeneralConfig  `toml:"general"`
	Theme    ThemeConfig    `toml:"theme"`
}

// ProviderConfig locates the wallet provider.
type ProviderConfig struct {
	// URL is an http(s)://, ws(s):// endpoint or an IPC socket path.
	URL string `toml:"url" env:"STORY_PROVIDER_URL"`
	// ChainID restricts binding to one network; 0 accepts any.
	ChainID uint64 `toml:"chain_id" env:"STORY_CHAIN_ID"`
}

// ContractConfig identifies the deployed contract.
type ContractConfig struct {
	Address string `toml:"address" env:"STORY_CONTRACT_ADDRESS"`
	// ABI is a path to a build artifact or bare ABI; empty uses the embedded one.
	ABI string `toml:"abi" env:"STORY_CONTRACT_ABI"`
}

// GeneralConfig holds client behaviour settings.
type GeneralConfig struct {
	PollInterval time.Duration `toml:"poll_interval" env:"STORY_POLL_INTERVAL"`
	LogFile      string        `toml:"log_file" env:"STORY_LOG_FILE"`
	LogLevel     string        `toml:"log_level" env:"STORY_LOG_LEVEL"`
}

// ThemeConfig overrides UI colors with hex strings.
type ThemeConfig struct {
	Accent string `toml:"accent"`
	Green  string `toml:"green"`
	Red    string `toml:"red"`
	Yellow string `toml:"yellow"`
	Blue   string `toml:"blue"`
	Dim    string `toml:"dim"`
	Border string `toml:"border"`
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath(appName string) string {
	if p := os.Getenv("ONEWORDSTORY_CONFIG"); p != "" {
		return p
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, appName, "config.toml")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath(appName string) string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, _ := os.UserHomeDir()
		stateDir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateDir, appName, "tui.log")
}

// ReadConfigFile parses the TOML config at path.
func ReadConfigFile(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads the config file (a missing file is not an error), applies
// environment overrides and defaults, and validates the result.
func LoadConfig(path, appName string) (Config, error) {
	cfg, err := ReadConfigFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.General.PollInterval <= 0 {
		cfg.General.PollInterval = contract.DefaultPollInterval
	}
	if cfg.General.LogFile == "" {
		cfg.General.LogFile = DefaultLogPath(appName)
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	cfg.Contract.ABI = expandHome(cfg.Contract.ABI)
	cfg.General.LogFile = expandHome(cfg.General.LogFile)
	if !isRemote(cfg.Provider.URL) {
		cfg.Provider.URL = expandHome(cfg.Provider.URL)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be defaulted. A missing provider is
// not a config error; it surfaces at runtime as an unavailable wallet.
func (c Config) Validate() error {
	if c.Contract.Address == "" {
		return errors.New("contract address is not configured (set [contract] address or STORY_CONTRACT_ADDRESS)")
	}
	if !common.IsHexAddress(c.Contract.Address) {
		return fmt.Errorf("contract address %q is not a hex address", c.Contract.Address)
	}
	return nil
}

// ContractAddress returns the parsed contract address.
func (c Config) ContractAddress() common.Address {
	return common.HexToAddress(c.Contract.Address)
}
