// Package datasource detects, validates and loads concept graph files. A
// source is either a single graph file or a directory holding several, in
// which case the freshest valid file wins.
package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SourceType identifies the encoding of a graph file
type SourceType string

const (
	// SourceTypeJSON is a JSON graph document (.json)
	SourceTypeJSON SourceType = "json"
	// SourceTypeYAML is a YAML graph document (.yaml, .yml)
	SourceTypeYAML SourceType = "yaml"
)

// Priority values for source types (higher = preferred on equal mod time)
const (
	PriorityJSON = 100
	PriorityYAML = 80
)

// DataSource represents a potential concept graph file
type DataSource struct {
	// Type identifies the encoding
	Type SourceType `json:"type"`
	// Path is the path to the source file
	Path string `json:"path"`
	// Priority determines preference when timestamps are equal
	Priority int `json:"priority"`
	// ModTime is the last modification time of the source
	ModTime time.Time `json:"mod_time"`
	// Valid indicates whether the source passed validation
	Valid bool `json:"valid"`
	// ValidationError describes why validation failed (if Valid is false)
	ValidationError string `json:"validation_error,omitempty"`
	// NodeCount is the number of nodes in the source (set during validation)
	NodeCount int `json:"node_count"`
	// Size is the file size in bytes
	Size int64 `json:"size"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, nodes=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.NodeCount, status)
}

// DetectType infers the source type from a file extension.
func DetectType(path string) (SourceType, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return SourceTypeJSON, nil
	case ".yaml", ".yml":
		return SourceTypeYAML, nil
	default:
		return "", fmt.Errorf("unsupported graph file %q (want .json, .yaml or .yml)", path)
	}
}

func priorityOf(t SourceType) int {
	if t == SourceTypeJSON {
		return PriorityJSON
	}
	return PriorityYAML
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// Dir is the directory to scan
	Dir string
	// ValidateAfterDiscovery runs validation on each discovered source
	ValidateAfterDiscovery bool
	// IncludeInvalid includes sources that failed validation in results
	IncludeInvalid bool
	// Logger receives progress messages (optional)
	Logger func(msg string)
}

// DiscoverSources finds graph files in opts.Dir, freshest first.
func DiscoverSources(opts DiscoveryOptions) ([]DataSource, error) {
	if opts.Logger == nil {
		opts.Logger = func(string) {}
	}

	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph directory: %w", err)
	}

	var sources []DataSource
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") || strings.Contains(name, ".backup") || strings.HasSuffix(name, "~") {
			continue
		}
		typ, err := DetectType(name)
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(opts.Dir, name)
		sources = append(sources, DataSource{
			Type:     typ,
			Path:     path,
			Priority: priorityOf(typ),
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})
		opts.Logger(fmt.Sprintf("Found %s graph: %s (mod=%s)", typ, path, info.ModTime().Format(time.RFC3339)))
	}

	if opts.ValidateAfterDiscovery {
		for i := range sources {
			if err := ValidateSource(&sources[i]); err != nil {
				opts.Logger(fmt.Sprintf("Validation failed for %s: %v", sources[i].Path, err))
			}
		}
		if !opts.IncludeInvalid {
			valid := sources[:0]
			for _, s := range sources {
				if s.Valid {
					valid = append(valid, s)
				}
			}
			sources = valid
		}
	}

	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})

	opts.Logger(fmt.Sprintf("Discovered %d sources", len(sources)))
	return sources, nil
}

// ValidateSource loads the source and records whether it holds at least one
// node. The returned error mirrors ValidationError.
func ValidateSource(s *DataSource) error {
	g, err := LoadFromSource(*s)
	if err != nil {
		s.Valid = false
		s.ValidationError = err.Error()
		return err
	}
	s.NodeCount = len(g.Nodes)
	if s.NodeCount == 0 {
		s.Valid = false
		s.ValidationError = "no nodes"
		return fmt.Errorf("%s: no nodes", s.Path)
	}
	s.Valid = true
	s.ValidationError = ""
	return nil
}

// SelectBestSource returns the freshest valid source.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	var best *DataSource
	for i := range sources {
		s := &sources[i]
		if !s.Valid {
			continue
		}
		if best == nil || s.ModTime.After(best.ModTime) ||
			(s.ModTime.Equal(best.ModTime) && s.Priority > best.Priority) {
			best = s
		}
	}
	if best == nil {
		return DataSource{}, fmt.Errorf("no valid graph sources among %d candidates", len(sources))
	}
	return *best, nil
}
