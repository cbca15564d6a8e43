// Package hooks runs user commands around mind-map exports.
// Hooks are configured in .cmap/hooks.yaml and run before the outputs are
// written (pre-export) or after (post-export).
package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HookPhase says when a hook runs.
type HookPhase string

const (
	// PreExport runs before any output is written. Failure cancels the export.
	PreExport HookPhase = "pre-export"
	// PostExport runs after the outputs are written.
	PostExport HookPhase = "post-export"
)

// OnError policies.
const (
	OnErrorFail     = "fail"
	OnErrorContinue = "continue"
)

// Location of the hooks file relative to a project directory.
const (
	ConfigDir  = ".cmap"
	ConfigFile = "hooks.yaml"
)

// DefaultTimeout applies to hooks without a timeout.
const DefaultTimeout = 30 * time.Second

// Hook is one configured command.
type Hook struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command" json:"command"` // run with sh -c
	Timeout time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"` // values are ${VAR}-expanded
	OnError string            `yaml:"on_error,omitempty" json:"on_error,omitempty"`
}

// Config is the parsed hooks file.
type Config struct {
	Hooks HooksByPhase `yaml:"hooks" json:"hooks"`
}

// HooksByPhase groups hooks by phase, in run order.
type HooksByPhase struct {
	PreExport  []Hook `yaml:"pre-export,omitempty" json:"pre-export,omitempty"`
	PostExport []Hook `yaml:"post-export,omitempty" json:"post-export,omitempty"`
}

// For returns the hooks of phase; unknown phases have none.
func (c *Config) For(phase HookPhase) []Hook {
	if c == nil {
		return nil
	}
	switch phase {
	case PreExport:
		return c.Hooks.PreExport
	case PostExport:
		return c.Hooks.PostExport
	}
	return nil
}

// Empty reports whether no hook is configured.
func (c *Config) Empty() bool {
	return len(c.For(PreExport)) == 0 && len(c.For(PostExport)) == 0
}

// ExportContext describes an export to the hook commands.
type ExportContext struct {
	MapID     string
	Title     string
	Paths     []string // every output written in this run
	Formats   []string
	NodeCount int // visible nodes in the exported view
	Timestamp time.Time
}

// ToEnv converts the export context to CMAP_* environment variables.
// Multiple paths and formats are separated by the OS list separator.
func (c ExportContext) ToEnv() []string {
	sep := string(os.PathListSeparator)
	return []string{
		"CMAP_MAP_ID=" + c.MapID,
		"CMAP_TITLE=" + c.Title,
		"CMAP_EXPORT_PATHS=" + strings.Join(c.Paths, sep),
		"CMAP_EXPORT_FORMATS=" + strings.Join(c.Formats, sep),
		"CMAP_NODE_COUNT=" + strconv.Itoa(c.NodeCount),
		"CMAP_TIMESTAMP=" + c.Timestamp.Format(time.RFC3339),
	}
}

// Path returns the hooks file for projectDir.
func Path(projectDir string) string {
	return filepath.Join(projectDir, ConfigDir, ConfigFile)
}

// Load reads the hooks file under projectDir. A missing file yields an empty
// config. Hooks that cannot run are dropped and described in the returned
// warnings.
func Load(projectDir string) (*Config, []string, error) {
	path := Path(projectDir)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading hooks config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	var warnings []string
	cfg.Hooks.PreExport = normalize(cfg.Hooks.PreExport, PreExport, &warnings)
	cfg.Hooks.PostExport = normalize(cfg.Hooks.PostExport, PostExport, &warnings)
	return &cfg, warnings, nil
}

// normalize fills defaults per phase and drops hooks without a command.
func normalize(in []Hook, phase HookPhase, warnings *[]string) []Hook {
	defaultPolicy := OnErrorContinue
	if phase == PreExport {
		defaultPolicy = OnErrorFail
	}

	var out []Hook
	for i, h := range in {
		if strings.TrimSpace(h.Command) == "" {
			*warnings = append(*warnings, fmt.Sprintf("%s hook %d has empty command; skipping", phase, i+1))
			continue
		}
		if h.Name == "" {
			h.Name = fmt.Sprintf("%s-%d", phase, i+1)
		}
		if h.Timeout <= 0 {
			h.Timeout = DefaultTimeout
		}
		switch h.OnError {
		case "":
			h.OnError = defaultPolicy
		case OnErrorFail, OnErrorContinue:
		default:
			*warnings = append(*warnings, fmt.Sprintf("%s hook %q has unknown on_error %q; using %s", phase, h.Name, h.OnError, OnErrorFail))
			h.OnError = OnErrorFail
		}
		out = append(out, h)
	}
	return out
}

// parseTimeout accepts a Go duration ("5s", "1m30s") or bare seconds ("30", "0.5").
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: want a duration like 10s or a number of seconds", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// UnmarshalYAML decodes a hook, parsing its timeout with parseTimeout.
func (h *Hook) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name    string            `yaml:"name"`
		Command string            `yaml:"command"`
		Timeout string            `yaml:"timeout"`
		Env     map[string]string `yaml:"env"`
		OnError string            `yaml:"on_error"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	timeout, err := parseTimeout(raw.Timeout)
	if err != nil {
		return err
	}
	*h = Hook{
		Name:    raw.Name,
		Command: raw.Command,
		Timeout: timeout,
		Env:     raw.Env,
		OnError: strings.ToLower(strings.TrimSpace(raw.OnError)),
	}
	return nil
}
