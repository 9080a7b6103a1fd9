// Package config loads pkgtrace.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"pkgtrace/internal/trace"
)

// FileName is the configuration file searched for by Find.
const FileName = "pkgtrace.toml"

// Config is the decoded configuration with defaults applied.
type Config struct {
	Packaging PackagingConfig `toml:"packaging"`
	Trace     TraceConfig     `toml:"trace"`
	Log       LogConfig       `toml:"log"`
	Bench     BenchConfig     `toml:"bench"`
	Cache     CacheConfig     `toml:"cache"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `toml:"-"`
}

// PackagingConfig switches packaging data calculation.
type PackagingConfig struct {
	Enabled bool `toml:"enabled"`
}

// TraceConfig mirrors the --trace flags.
type TraceConfig struct {
	Level     string `toml:"level"`
	Mode      string `toml:"mode"`
	Output    string `toml:"output"`
	Format    string `toml:"format"`
	RingSize  int    `toml:"ring_size"`
	Heartbeat string `toml:"heartbeat"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
	Encoding    string `toml:"encoding"`
}

// BenchConfig configures the performance check.
type BenchConfig struct {
	Iterations int     `toml:"iterations"`
	Warmup     int     `toml:"warmup"`
	Slack      float64 `toml:"slack"`
}

// CacheConfig configures the on-disk resolution cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Packaging: PackagingConfig{Enabled: true},
		Trace: TraceConfig{
			Level:    "off",
			Mode:     "stream",
			Output:   "-",
			Format:   "auto",
			RingSize: 4096,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
		Bench: BenchConfig{
			Iterations: 1000,
			Warmup:     1000,
		},
		Cache: CacheConfig{Enabled: true},
	}
}

// Find looks for FileName in startDir and its parents.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover finds and loads the nearest configuration file, falling back to
// Default when there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Load decodes the file at path. Keys missing from the file keep their
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("cache", "dir") && strings.TrimSpace(cfg.Cache.Dir) == "" {
		return Config{}, fmt.Errorf("%s: [cache].dir must not be empty", path)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
		return fmt.Errorf("[trace].level: %w", err)
	}
	if _, err := trace.ParseMode(c.Trace.Mode); err != nil {
		return fmt.Errorf("[trace].mode: %w", err)
	}
	if _, err := trace.ParseFormat(c.Trace.Format); err != nil {
		return fmt.Errorf("[trace].format: %w", err)
	}
	if c.Trace.RingSize < 0 {
		return fmt.Errorf("[trace].ring_size must be >= 0, got %d", c.Trace.RingSize)
	}
	if _, err := c.HeartbeatInterval(); err != nil {
		return err
	}
	switch c.Log.Encoding {
	case "console", "json":
	default:
		return fmt.Errorf("[log].encoding must be console or json, got %q", c.Log.Encoding)
	}
	if c.Bench.Iterations <= 0 {
		return fmt.Errorf("[bench].iterations must be > 0, got %d", c.Bench.Iterations)
	}
	if c.Bench.Warmup < 0 {
		return fmt.Errorf("[bench].warmup must be >= 0, got %d", c.Bench.Warmup)
	}
	if c.Bench.Slack < 0 {
		return fmt.Errorf("[bench].slack must be >= 0, got %v", c.Bench.Slack)
	}
	return nil
}

// HeartbeatInterval parses [trace].heartbeat; empty means disabled.
func (c *Config) HeartbeatInterval() (time.Duration, error) {
	if strings.TrimSpace(c.Trace.Heartbeat) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Trace.Heartbeat)
	if err != nil {
		return 0, fmt.Errorf("[trace].heartbeat: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("[trace].heartbeat must be >= 0, got %s", d)
	}
	return d, nil
}

// TraceSettings converts the [trace] section into tracer configuration. The
// caller supplies the logger for the log mode.
func (c *Config) TraceSettings() (trace.Config, error) {
	level, err := trace.ParseLevel(c.Trace.Level)
	if err != nil {
		return trace.Config{}, err
	}
	mode, err := trace.ParseMode(c.Trace.Mode)
	if err != nil {
		return trace.Config{}, err
	}
	format, err := trace.ParseFormat(c.Trace.Format)
	if err != nil {
		return trace.Config{}, err
	}
	hb, err := c.HeartbeatInterval()
	if err != nil {
		return trace.Config{}, err
	}
	return trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: c.Trace.Output,
		RingSize:   c.Trace.RingSize,
		Heartbeat:  hb,
	}, nil
}
