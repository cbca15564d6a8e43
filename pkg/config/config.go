// Package config handles loading and saving cmap configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/cmap/config.yaml
//   - State:   ~/.local/state/cmap/ (saved mind-map state, maps.db)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/conceptmap/pkg/mindmap"
)

const appName = "cmap"

// LayoutSection holds layout spacing. Zero values fall back to the engine
// defaults.
type LayoutSection struct {
	Direction    string  `yaml:"direction,omitempty"` // LR or TB
	NodeWidth    float64 `yaml:"node_width,omitempty"`
	BaseHeight   float64 `yaml:"base_height,omitempty"`
	LineHeight   float64 `yaml:"line_height,omitempty"`
	CharsPerLine int     `yaml:"chars_per_line,omitempty"`
	NodeSep      float64 `yaml:"node_sep,omitempty"`
	RankSep      float64 `yaml:"rank_sep,omitempty"`
}

// StoreSection selects where mind-map state is persisted.
type StoreSection struct {
	Driver string `yaml:"driver,omitempty"` // sqlite or json
	Path   string `yaml:"path,omitempty"`   // database file or state directory
}

// LLMSection configures graph generation.
type LLMSection struct {
	Model       string  `yaml:"model,omitempty"`
	APIKeyEnv   string  `yaml:"api_key_env,omitempty"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Temperature float32 `yaml:"temperature,omitempty"`
}

// ExportSection holds export defaults.
type ExportSection struct {
	Format string `yaml:"format,omitempty"` // svg, png, json, dot, mermaid
	Preset string `yaml:"preset,omitempty"` // compact (default) or roomy
}

// Config is the top-level configuration for cmap.
type Config struct {
	Layout LayoutSection `yaml:"layout,omitempty"`
	Store  StoreSection  `yaml:"store,omitempty"`
	LLM    LLMSection    `yaml:"llm,omitempty"`
	Export ExportSection `yaml:"export,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Layout: LayoutSection{Direction: string(mindmap.DirectionLR)},
		Store:  StoreSection{Driver: "sqlite"},
		LLM: LLMSection{
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0.2,
		},
		Export: ExportSection{Format: "svg", Preset: "compact"},
	}
}

func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(append(append([]string{home}, fallback...), appName)...)
}

// ConfigDir returns the XDG config directory for cmap.
func ConfigDir() string { return xdgDir("XDG_CONFIG_HOME", ".config") }

// StateDir returns the XDG state directory for cmap.
func StateDir() string { return xdgDir("XDG_STATE_HOME", ".local", "state") }

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path. Values in the file override
// the defaults; a missing file yields DefaultConfig.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	cfg.Store.Path = expandHome(cfg.Store.Path)
	return cfg, nil
}

// Validate rejects values that cannot be used.
func (c Config) Validate() error {
	if c.Layout.Direction != "" {
		if _, err := mindmap.ParseDirection(c.Layout.Direction); err != nil {
			return fmt.Errorf("layout.direction: %w", err)
		}
	}
	switch strings.ToLower(c.Store.Driver) {
	case "", "sqlite", "json":
	default:
		return fmt.Errorf("store.driver: unknown driver %q (want sqlite or json)", c.Store.Driver)
	}
	switch strings.ToLower(c.Export.Preset) {
	case "", "compact", "roomy":
	default:
		return fmt.Errorf("export.preset: unknown preset %q (want compact or roomy)", c.Export.Preset)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature: %v out of range [0, 2]", c.LLM.Temperature)
	}
	return nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// roomyScale widens node and rank gaps for the roomy preset.
const roomyScale = 1.5

// LayoutConfig converts the layout section (and export preset) to engine
// configuration. Unset fields keep engine defaults.
func (c Config) LayoutConfig() mindmap.LayoutConfig {
	lc := mindmap.LayoutConfig{
		NodeWidth:    c.Layout.NodeWidth,
		BaseHeight:   c.Layout.BaseHeight,
		LineHeight:   c.Layout.LineHeight,
		CharsPerLine: c.Layout.CharsPerLine,
		NodeSep:      c.Layout.NodeSep,
		RankSep:      c.Layout.RankSep,
	}
	if dir, err := mindmap.ParseDirection(c.Layout.Direction); err == nil {
		lc.Direction = dir
	}
	if strings.EqualFold(c.Export.Preset, "roomy") {
		def := mindmap.DefaultLayoutConfig()
		if lc.NodeSep <= 0 {
			lc.NodeSep = def.NodeSep
		}
		if lc.RankSep <= 0 {
			lc.RankSep = def.RankSep
		}
		lc.NodeSep *= roomyScale
		lc.RankSep *= roomyScale
	}
	return mindmap.NewEngine(lc).Config()
}

// StorePath returns the configured store location, defaulting to
// <state dir>/maps.db for sqlite and <state dir>/maps for json.
func (c Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	dir := StateDir()
	if dir == "" {
		dir = "."
	}
	if strings.EqualFold(c.Store.Driver, "json") {
		return filepath.Join(dir, "maps")
	}
	return filepath.Join(dir, "maps.db")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
