// Package config loads symtrace.toml.
//
// The file is optional. It is looked up from the working directory upwards;
// every key it leaves out keeps its default, and command-line flags override
// whatever the file sets.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"symtrace/internal/telemetry"
)

// FileName is the name of the configuration file.
const FileName = "symtrace.toml"

// Config is the decoded configuration file.
type Config struct {
	Validate  ValidateConfig  `toml:"validate"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Synth     SynthConfig     `toml:"synth"`
}

// ValidateConfig holds defaults for `symtrace validate`.
type ValidateConfig struct {
	Jobs          int      `toml:"jobs"`
	FailFast      bool     `toml:"fail_fast"`
	MaxViolations int      `toml:"max_violations"`
	Format        string   `toml:"format"`
	UI            string   `toml:"ui"`
	Cache         bool     `toml:"cache"`
	CacheDir      string   `toml:"cache_dir"`
	Extensions    []string `toml:"extensions"`
	Root          string   `toml:"root"`
}

// TelemetryConfig holds the telemetry settings.
type TelemetryConfig struct {
	Level     string `toml:"level"`
	Mode      string `toml:"mode"`
	Output    string `toml:"output"`
	Format    string `toml:"format"`
	RingSize  int    `toml:"ring_size"`
	Heartbeat string `toml:"heartbeat"`
}

// SynthConfig holds defaults for `symtrace synth`.
type SynthConfig struct {
	Allocator string `toml:"allocator"`
	Steps     int    `toml:"steps"`
	Seed      uint64 `toml:"seed"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Validate: ValidateConfig{
			Format: "pretty",
			UI:     "auto",
			Cache:  true,
		},
		Telemetry: TelemetryConfig{
			Level:    "off",
			Mode:     "stream",
			Format:   "auto",
			RingSize: 4096,
		},
		Synth: SynthConfig{
			Allocator: "seq",
			Steps:     64,
		},
	}
}

// Find walks up from startDir to locate symtrace.toml.
func Find(startDir string) (path string, ok bool, err error) {
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

// Discover finds and loads the nearest symtrace.toml. Without one it returns
// the defaults and an empty path.
func Discover(startDir string) (Config, string, error) {
	path, ok, err := Find(startDir)
	if err != nil || !ok {
		return Default(), "", err
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// Load decodes path over the defaults and checks every value.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("validate", "jobs") && cfg.Validate.Jobs < 0 {
		return Config{}, fmt.Errorf("%s: [validate].jobs must not be negative", path)
	}
	if meta.IsDefined("synth", "steps") && cfg.Synth.Steps <= 0 {
		return Config{}, fmt.Errorf("%s: [synth].steps must be positive", path)
	}
	if err := cfg.Check(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Check validates the enumerated settings.
func (c Config) Check() error {
	switch c.Validate.Format {
	case "pretty", "json", "yaml", "short":
	default:
		return fmt.Errorf("[validate].format: unsupported value %q (expected pretty|json|yaml|short)", c.Validate.Format)
	}
	switch c.Validate.UI {
	case "auto", "on", "off":
	default:
		return fmt.Errorf("[validate].ui: unsupported value %q (expected auto|on|off)", c.Validate.UI)
	}
	if c.Validate.MaxViolations < 0 {
		return fmt.Errorf("[validate].max_violations must not be negative")
	}
	switch c.Synth.Allocator {
	case "seq", "uuid":
	default:
		return fmt.Errorf("[synth].allocator: unsupported value %q (expected seq|uuid)", c.Synth.Allocator)
	}
	if _, err := c.Telemetry.Tracer(); err != nil {
		return fmt.Errorf("[telemetry]: %w", err)
	}
	return nil
}

// Tracer converts the section into a telemetry configuration.
func (t TelemetryConfig) Tracer() (telemetry.Config, error) {
	level, err := telemetry.ParseLevel(t.Level)
	if err != nil {
		return telemetry.Config{}, err
	}
	mode, err := telemetry.ParseMode(t.Mode)
	if err != nil {
		return telemetry.Config{}, err
	}
	format, err := telemetry.ParseFormat(t.Format)
	if err != nil {
		return telemetry.Config{}, err
	}
	var heartbeat time.Duration
	if t.Heartbeat != "" {
		heartbeat, err = time.ParseDuration(t.Heartbeat)
		if err != nil {
			return telemetry.Config{}, fmt.Errorf("invalid heartbeat: %w", err)
		}
	}
	return telemetry.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: t.Output,
		RingSize:   t.RingSize,
		Heartbeat:  heartbeat,
	}, nil
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# symtrace configuration; every key is optional.\n\n")
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", FileName, err)
	}
	return buf.Bytes(), nil
}

// WriteDefault creates dir/symtrace.toml with the default settings. It refuses
// to overwrite an existing file unless force is set.
func WriteDefault(dir string, force bool) (string, error) {
	path := filepath.Join(dir, FileName)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("%s already exists", path)
		}
	}
	data, err := Encode(Default())
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
