package config

import (
	"fmt"

	"github.com/dshills/lsphost/internal/lsp"
)

// File is the on-disk configuration schema. Pointer fields distinguish
// "absent" from "false"; absent fields keep their defaults.
type File struct {
	LSP LSPSection `toml:"lsp" yaml:"lsp"`
}

// LSPSection configures the lifecycle manager.
type LSPSection struct {
	EnableProactiveStartup *bool          `toml:"enable_proactive_startup" yaml:"enable_proactive_startup"`
	HealthCheckInterval    Duration       `toml:"health_check_interval" yaml:"health_check_interval"`
	StartupTimeout         Duration       `toml:"startup_timeout" yaml:"startup_timeout"`
	MaxConcurrentStartups  int            `toml:"max_concurrent_startups" yaml:"max_concurrent_startups"`
	ProjectMarkers         MarkersSection `toml:"project_markers" yaml:"project_markers"`
}

// MarkersSection configures custom project detection.
type MarkersSection struct {
	EnableProjectMarkers  *bool             `toml:"enable_project_markers" yaml:"enable_project_markers"`
	EnableBuiltinFallback *bool             `toml:"enable_builtin_fallback" yaml:"enable_builtin_fallback"`
	DetectionTimeout      Duration          `toml:"detection_timeout" yaml:"detection_timeout"`
	Markers               map[string]Marker `toml:"markers" yaml:"markers"`
}

// Marker declares one custom project marker.
type Marker struct {
	Markers        []string `toml:"markers" yaml:"markers"`
	LanguageServer string   `toml:"language_server" yaml:"language_server"`
	RootStrategy   string   `toml:"root_strategy" yaml:"root_strategy"`
	Priority       *uint32  `toml:"priority" yaml:"priority"`
}

// Default returns a File mirroring the built-in defaults.
func Default() *File {
	return &File{}
}

// ManagerConfig converts the file into a validated manager configuration.
// Absent fields fall back to defaults; declared markers are validated and
// sanitized.
func (f *File) ManagerConfig() (lsp.ProjectLspConfig, error) {
	out := lsp.DefaultConfig()

	if f.LSP.EnableProactiveStartup != nil {
		out.EnableProactiveStartup = *f.LSP.EnableProactiveStartup
	}
	if f.LSP.HealthCheckInterval > 0 {
		out.HealthCheckInterval = f.LSP.HealthCheckInterval.Std()
	}
	if f.LSP.StartupTimeout > 0 {
		out.StartupTimeout = f.LSP.StartupTimeout.Std()
	}
	if f.LSP.MaxConcurrentStartups > 0 {
		out.MaxConcurrentStartups = f.LSP.MaxConcurrentStartups
	}

	markers := f.LSP.ProjectMarkers
	if markers.EnableProjectMarkers != nil {
		out.ProjectMarkers.EnableProjectMarkers = *markers.EnableProjectMarkers
	}
	if markers.EnableBuiltinFallback != nil {
		out.ProjectMarkers.EnableBuiltinFallback = *markers.EnableBuiltinFallback
	}
	if markers.DetectionTimeout > 0 {
		out.ProjectMarkers.DetectionTimeout = markers.DetectionTimeout.Std()
	}

	for name, marker := range markers.Markers {
		strategy, err := lsp.ParseRootStrategy(marker.RootStrategy)
		if err != nil {
			return lsp.ProjectLspConfig{}, fmt.Errorf("project marker %q: %w", name, err)
		}
		priority := lsp.DefaultMarkerPriority
		if marker.Priority != nil {
			priority = *marker.Priority
		}
		out.ProjectMarkers.Markers[name] = lsp.ProjectMarker{
			Markers:        marker.Markers,
			LanguageServer: marker.LanguageServer,
			RootStrategy:   strategy,
			Priority:       priority,
		}.Sanitized()
	}

	if err := out.ProjectMarkers.Validate(); err != nil {
		return lsp.ProjectLspConfig{}, err
	}
	return out, nil
}
