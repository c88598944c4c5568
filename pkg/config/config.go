package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the complete alongc configuration
type Config struct {
	Build BuildConfig `toml:"build"`
	Emit  EmitConfig  `toml:"emit"`
	Log   LogConfig   `toml:"log"`
	Run   RunConfig   `toml:"run"`
	Watch WatchConfig `toml:"watch"`
}

// BuildConfig controls where a build reads and writes
type BuildConfig struct {
	Title         string `toml:"title"`
	SourceExt     string `toml:"source_ext"`
	ListingExt    string `toml:"listing_ext"`
	OutputExt     string `toml:"output_ext"`
	OutDir        string `toml:"out_dir"`
	Listing       *bool  `toml:"listing"`
	Symbols       bool   `toml:"symbols"`
	SymbolsSuffix string `toml:"symbols_suffix"`
}

// EmitConfig holds code generation settings
type EmitConfig struct {
	Includes []string `toml:"includes"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `toml:"level"`
}

// RunConfig holds virtual machine settings
type RunConfig struct {
	MaxSteps int `toml:"max_steps"`
	Memory   int `toml:"memory"`
}

// WatchConfig holds watch mode settings
type WatchConfig struct {
	Debounce Duration `toml:"debounce"`
}

// Duration wraps time.Duration for TOML parsing
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// EnvVar names the environment variable that points at a config file.
const EnvVar = "ALONGC_CONFIG"

// DefaultFile is the project-local config file name.
const DefaultFile = "alongc.toml"

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a TOML file
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config key %q in %s", undecoded[0].String(), path)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadDefault looks for a config file in the usual places and falls back to
// the built-in defaults when there is none. The path that was loaded is
// returned, or "" for the defaults.
func LoadDefault() (*Config, string, error) {
	var candidates []string
	if p := os.Getenv(EnvVar); p != "" {
		candidates = append(candidates, p)
	}
	candidates = append(candidates, DefaultFile)
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "alongc", "config.toml"))
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			cfg, err := Load(p)
			return cfg, p, err
		}
	}
	return Default(), "", nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	if c.Build.SourceExt == "" {
		c.Build.SourceExt = ".cmn"
	}
	if c.Build.ListingExt == "" {
		c.Build.ListingExt = ".ccmn"
	}
	if c.Build.OutputExt == "" {
		c.Build.OutputExt = ".asm"
	}
	if c.Build.SymbolsSuffix == "" {
		c.Build.SymbolsSuffix = ".symbols.yaml"
	}
	if c.Build.Listing == nil {
		on := true
		c.Build.Listing = &on
	}

	if c.Emit.Includes == nil {
		c.Emit.Includes = []string{"Along32.inc", "Macros_Along.inc"}
	}

	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}

	if c.Run.MaxSteps == 0 {
		c.Run.MaxSteps = 1_000_000
	}
	if c.Run.Memory == 0 {
		c.Run.Memory = 64 * 1024
	}

	if c.Watch.Debounce.Duration == 0 {
		c.Watch.Debounce.Duration = 500 * time.Millisecond
	}
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if c.Run.MaxSteps < 0 {
		return fmt.Errorf("run.max_steps must not be negative")
	}
	if c.Run.Memory < 0 {
		return fmt.Errorf("run.memory must not be negative")
	}
	if c.Watch.Debounce.Duration < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}

// ListingEnabled reports whether builds write a listing file.
func (c *Config) ListingEnabled() bool {
	return c.Build.Listing == nil || *c.Build.Listing
}
