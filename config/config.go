// Package config handles epoch.toml engine configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents an epoch.toml configuration.
type Config struct {
	Install Install `toml:"install"`
	Engine  Engine  `toml:"engine"`
	Compat  Compat  `toml:"compat"`

	// Dir is the directory containing the epoch.toml file (set at load time).
	Dir string `toml:"-"`
}

// Install locates the shipped game data.
type Install struct {
	Package    string `toml:"package"`
	Executable string `toml:"executable"` // cipher key source
	SaveDir    string `toml:"save-dir"`
}

// Engine tunes the simulation.
type Engine struct {
	TickHz         int `toml:"tick-hz"`
	CacheBudgetMB  int `toml:"cache-budget-mb"`
	CallStackDepth int `toml:"call-stack-depth"`
}

// Compat points at an optional profile of behavior overrides.
type Compat struct {
	Profile string `toml:"profile"`
}

// Defaults applied by Load when a field is absent.
const (
	DefaultTickHz         = 60
	DefaultCacheBudgetMB  = 64
	DefaultCallStackDepth = 16
)

// Load parses an epoch.toml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	c.Dir = filepath.Dir(abs)

	// Defaults
	if c.Engine.TickHz == 0 {
		c.Engine.TickHz = DefaultTickHz
	}
	if c.Engine.CacheBudgetMB == 0 {
		c.Engine.CacheBudgetMB = DefaultCacheBudgetMB
	}
	if c.Engine.CallStackDepth == 0 {
		c.Engine.CallStackDepth = DefaultCallStackDepth
	}

	return &c, nil
}

// Validate checks field ranges. Path targets are checked at open time,
// not here.
func (c *Config) Validate() error {
	if c.Install.Package == "" {
		return fmt.Errorf("install.package is required")
	}
	if c.Engine.TickHz < 1 || c.Engine.TickHz > 240 {
		return fmt.Errorf("engine.tick-hz %d out of range [1,240]", c.Engine.TickHz)
	}
	if c.Engine.CacheBudgetMB < 0 {
		return fmt.Errorf("engine.cache-budget-mb %d is negative", c.Engine.CacheBudgetMB)
	}
	if c.Engine.CallStackDepth < 1 || c.Engine.CallStackDepth > 64 {
		return fmt.Errorf("engine.call-stack-depth %d out of range [1,64]", c.Engine.CallStackDepth)
	}
	return nil
}

// resolve turns a configured path into an absolute one: tilde expands
// to the home directory, relative paths hang off the config file.
func (c *Config) resolve(p string) string {
	if p == "" {
		return ""
	}
	if p == "~" || len(p) > 1 && p[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// PackagePath is the resolved container location.
func (c *Config) PackagePath() string { return c.resolve(c.Install.Package) }

// ExecutablePath is the resolved cipher key source, empty when the
// package is unencrypted.
func (c *Config) ExecutablePath() string { return c.resolve(c.Install.Executable) }

// SaveDirPath is the resolved save directory, defaulting under the
// user home.
func (c *Config) SaveDirPath() string {
	if c.Install.SaveDir != "" {
		return c.resolve(c.Install.SaveDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(c.Dir, "saves")
	}
	return filepath.Join(home, ".local", "share", "epoch")
}

// ProfilePath is the resolved compat profile, empty when none is
// configured.
func (c *Config) ProfilePath() string { return c.resolve(c.Compat.Profile) }

// CacheBudget is the asset cache budget in bytes.
func (c *Config) CacheBudget() int64 { return int64(c.Engine.CacheBudgetMB) << 20 }
