package lsp

import (
	"fmt"
	"strings"
	"time"
)

// Defaults for ProjectLspConfig.
const (
	DefaultHealthCheckInterval   = 30 * time.Second
	DefaultStartupTimeout        = 30 * time.Second
	DefaultMaxConcurrentStartups = 3
	DefaultDetectionTimeout      = 1 * time.Second

	// DefaultMarkerPriority applies when a marker omits its priority.
	DefaultMarkerPriority uint32 = 50
	// MaxMarkerPriority caps configured priorities.
	MaxMarkerPriority uint32 = 1000
)

// ProjectLspConfig configures the Manager.
type ProjectLspConfig struct {
	// EnableProactiveStartup requests servers immediately on detection
	// instead of waiting for the editor to ask for one lazily.
	EnableProactiveStartup bool

	// HealthCheckInterval is the period of the background health pass.
	HealthCheckInterval time.Duration

	// StartupTimeout bounds the wait for the host's StartServer response.
	StartupTimeout time.Duration

	// MaxConcurrentStartups limits how many StartServer calls may be in
	// flight at once.
	MaxConcurrentStartups int

	// ProjectMarkers configures custom project detection.
	ProjectMarkers ProjectMarkersConfig
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() ProjectLspConfig {
	return ProjectLspConfig{
		EnableProactiveStartup: true,
		HealthCheckInterval:    DefaultHealthCheckInterval,
		StartupTimeout:         DefaultStartupTimeout,
		MaxConcurrentStartups:  DefaultMaxConcurrentStartups,
		ProjectMarkers:         DefaultMarkersConfig(),
	}
}

// sanitized fills zero values with defaults.
func (c ProjectLspConfig) sanitized() ProjectLspConfig {
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = DefaultStartupTimeout
	}
	if c.MaxConcurrentStartups <= 0 {
		c.MaxConcurrentStartups = DefaultMaxConcurrentStartups
	}
	return c
}

// RootStrategy selects which ancestor directory wins when the same marker
// matches several ancestors of a workspace root.
type RootStrategy int

const (
	// RootClosest uses the marker closest to the workspace root.
	RootClosest RootStrategy = iota
	// RootFirst stops at the first matching marker in walk order.
	RootFirst
	// RootFurthest uses the marker furthest from the workspace root.
	RootFurthest
)

// String returns the strategy name.
func (s RootStrategy) String() string {
	switch s {
	case RootFirst:
		return "first"
	case RootFurthest:
		return "furthest"
	default:
		return "closest"
	}
}

// ParseRootStrategy parses a strategy name. Empty input yields the default.
func ParseRootStrategy(s string) (RootStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "closest":
		return RootClosest, nil
	case "first":
		return RootFirst, nil
	case "furthest":
		return RootFurthest, nil
	default:
		return RootClosest, fmt.Errorf("unknown root strategy %q", s)
	}
}

// ProjectMarker declares filename patterns that identify one project type and
// the language server that serves it.
type ProjectMarker struct {
	// Markers are filenames or glob patterns checked per directory.
	Markers []string

	// LanguageServer is the server to start for this project type.
	LanguageServer string

	// RootStrategy picks among multiple ancestor matches.
	RootStrategy RootStrategy

	// Priority orders competing markers; higher wins.
	Priority uint32
}

// Validate reports the first problem with the marker declaration.
func (m ProjectMarker) Validate() error {
	if len(m.Markers) == 0 {
		return fmt.Errorf("project marker must have at least one marker pattern")
	}
	for i, pattern := range m.Markers {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("marker pattern %d is empty", i)
		}
		if strings.ContainsAny(pattern, `/\`) {
			return fmt.Errorf("marker pattern %q cannot contain path separators, use glob patterns instead", pattern)
		}
	}
	if strings.TrimSpace(m.LanguageServer) == "" {
		return fmt.Errorf("language server name cannot be empty")
	}
	return nil
}

// Sanitized returns a copy of the marker with invalid values replaced.
func (m ProjectMarker) Sanitized() ProjectMarker {
	out := m
	out.Markers = make([]string, 0, len(m.Markers))
	for _, pattern := range m.Markers {
		if strings.TrimSpace(pattern) != "" {
			out.Markers = append(out.Markers, pattern)
		}
	}
	if len(out.Markers) == 0 {
		out.Markers = []string{".project"}
	}
	out.LanguageServer = strings.TrimSpace(m.LanguageServer)
	if out.LanguageServer == "" {
		out.LanguageServer = "unknown"
	}
	if out.Priority > MaxMarkerPriority {
		out.Priority = MaxMarkerPriority
	}
	return out
}

// ProjectMarkersConfig configures custom project detection. Read-only at
// detection time; owned by configuration loading.
type ProjectMarkersConfig struct {
	// EnableProjectMarkers turns custom marker detection on.
	EnableProjectMarkers bool

	// EnableBuiltinFallback allows the built-in pattern cascade when custom
	// markers are disabled or find nothing.
	EnableBuiltinFallback bool

	// DetectionTimeout bounds one detection's filesystem walk.
	DetectionTimeout time.Duration

	// Markers maps project names to their marker declarations.
	Markers map[string]ProjectMarker
}

// DefaultMarkersConfig returns the default marker configuration: custom
// markers off, builtin fallback on.
func DefaultMarkersConfig() ProjectMarkersConfig {
	return ProjectMarkersConfig{
		EnableProjectMarkers:  false,
		EnableBuiltinFallback: true,
		DetectionTimeout:      DefaultDetectionTimeout,
		Markers:               make(map[string]ProjectMarker),
	}
}

// Validate checks every declared marker.
func (c ProjectMarkersConfig) Validate() error {
	for name, marker := range c.Markers {
		if err := marker.Validate(); err != nil {
			return configError(fmt.Sprintf("project marker %q", name), err)
		}
	}
	return nil
}
