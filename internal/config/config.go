package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all OS4 configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Buffer area and shell stack sizing
	Memory MemoryConfig `yaml:"memory"`

	// Key dispatch behavior
	Keyboard KeyboardConfig `yaml:"keyboard"`

	// Semi-merged argument entry
	Argument ArgumentConfig `yaml:"argument"`

	// Continuous memory persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// MemoryConfig sizes the simulated calculator memory.
type MemoryConfig struct {
	// Registers in the I/O buffer area (7 bytes each)
	Registers int `yaml:"registers"`

	// Upper bound on simultaneously stacked shells
	MaxShells int `yaml:"max_shells"`
}

// KeyboardConfig configures the key dispatcher.
type KeyboardConfig struct {
	// UserMode enables secondary assignments overlaying the key tables
	UserMode bool `yaml:"user_mode"`

	// HideTopKeyAssign suppresses top-row label auto assignment
	HideTopKeyAssign bool `yaml:"hide_top_key_assign"`

	// PartialKeyTimeout bounds partial key accumulation (Go duration string)
	PartialKeyTimeout string `yaml:"partial_key_timeout"`
}

// Dual argument precedence policies.
const (
	DualReject  = "reject"
	DualReplace = "replace"
)

// ArgumentConfig configures semi-merged argument entry.
type ArgumentConfig struct {
	// AllowEEX permits the exponent key inside numeric entry
	AllowEEX bool `yaml:"allow_eex"`

	// DualWhileSingle decides what a dual argument request does while a
	// single argument is in progress: reject or replace.
	DualWhileSingle string `yaml:"dual_while_single"`

	// MaxDigits is the per-field digit count that auto-commits
	MaxDigits int `yaml:"max_digits"`
}

// StoreConfig configures the SQLite snapshot store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
	Autosave     bool   `yaml:"autosave"`

	// Keep is how many snapshots survive pruning; 0 keeps all
	Keep int `yaml:"keep"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "OS4",
		Version: "0.1.0",

		Memory: MemoryConfig{
			Registers: 256,
			MaxShells: 16,
		},

		Keyboard: KeyboardConfig{
			UserMode:          true,
			HideTopKeyAssign:  false,
			PartialKeyTimeout: "3s",
		},

		Argument: ArgumentConfig{
			AllowEEX:        true,
			DualWhileSingle: DualReject,
			MaxDigits:       2,
		},

		Store: StoreConfig{
			DatabasePath: "data/os4.db",
			Autosave:     true,
			Keep:         20,
		},

		Logging: LoggingConfig{
			Level:     "info",
			DebugMode: false,
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("OS4_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if level := os.Getenv("OS4_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
		c.Logging.DebugMode = true
	}
	if regs := os.Getenv("OS4_REGISTERS"); regs != "" {
		if n, err := strconv.Atoi(regs); err == nil {
			c.Memory.Registers = n
		}
	}
}

// GetPartialKeyTimeout returns the partial key timeout as a duration.
func (c *Config) GetPartialKeyTimeout() time.Duration {
	d, err := time.ParseDuration(c.Keyboard.PartialKeyTimeout)
	if err != nil || d <= 0 {
		return 3 * time.Second
	}
	return d
}

// MaxRegisters is the largest buffer area the 8-bit buffer size field can
// describe when every buffer is at its maximum size.
const MaxRegisters = 15 * 255

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Memory.Registers < 8 || c.Memory.Registers > MaxRegisters {
		return fmt.Errorf("memory.registers must be between 8 and %d, got %d", MaxRegisters, c.Memory.Registers)
	}
	if c.Memory.MaxShells < 1 {
		return fmt.Errorf("memory.max_shells must be positive, got %d", c.Memory.MaxShells)
	}
	switch c.Argument.DualWhileSingle {
	case DualReject, DualReplace:
	default:
		return fmt.Errorf("invalid argument.dual_while_single: %q (valid: %s, %s)", c.Argument.DualWhileSingle, DualReject, DualReplace)
	}
	if c.Argument.MaxDigits < 1 || c.Argument.MaxDigits > 3 {
		return fmt.Errorf("argument.max_digits must be 1..3, got %d", c.Argument.MaxDigits)
	}
	if c.Store.Keep < 0 {
		return fmt.Errorf("store.keep must not be negative, got %d", c.Store.Keep)
	}
	if _, err := time.ParseDuration(c.Keyboard.PartialKeyTimeout); err != nil {
		return fmt.Errorf("invalid keyboard.partial_key_timeout: %w", err)
	}
	return nil
}
