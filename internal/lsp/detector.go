package lsp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultMaxTraversalDepth bounds the ancestor walk during detection.
const DefaultMaxTraversalDepth = 10

// Detector resolves a workspace root to a project type and the language
// servers that should serve it. Custom markers are consulted first, then the
// built-in pattern cascade.
type Detector struct {
	markers  ProjectMarkersConfig
	maxDepth int
	log      *logrus.Entry
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithMaxTraversalDepth bounds the ancestor walk.
func WithMaxTraversalDepth(depth int) DetectorOption {
	return func(d *Detector) {
		if depth > 0 {
			d.maxDepth = depth
		}
	}
}

// WithDetectorLogger sets the detector's logger.
func WithDetectorLogger(log *logrus.Entry) DetectorOption {
	return func(d *Detector) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDetector creates a detector for the given marker configuration.
func NewDetector(markers ProjectMarkersConfig, opts ...DetectorOption) *Detector {
	d := &Detector{
		markers:  markers,
		maxDepth: DefaultMaxTraversalDepth,
		log:      discardEntry(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// markerMatch records one custom marker hit during the ancestor walk.
type markerMatch struct {
	projectName string
	marker      ProjectMarker
	pattern     string
	depth       int
	order       int
}

// AnalyzeProject inspects a workspace root and returns its project info.
// I/O failures during marker checks surface as ErrorProjectDetection and are
// not retried here.
func (d *Detector) AnalyzeProject(ctx context.Context, workspaceRoot string) (ProjectInfo, error) {
	if d.markers.DetectionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.markers.DetectionTimeout)
		defer cancel()
	}

	d.log.WithField("workspace_root", workspaceRoot).Debug("analyzing project structure")

	projectType, err := d.detectProjectType(ctx, workspaceRoot)
	if err != nil {
		return ProjectInfo{}, err
	}

	return ProjectInfo{
		WorkspaceRoot:   workspaceRoot,
		Type:            projectType,
		LanguageServers: d.languageServersFor(projectType),
		DetectedAt:      time.Now(),
	}, nil
}

// detectProjectType resolves the workspace's project type.
func (d *Detector) detectProjectType(ctx context.Context, workspaceRoot string) (ProjectType, error) {
	if d.markers.EnableProjectMarkers {
		match, err := d.detectWithCustomMarkers(ctx, workspaceRoot)
		if err != nil {
			return Unknown, err
		}
		if match != nil {
			projectType := mapCustomProjectName(match.projectName)
			d.log.WithFields(logrus.Fields{
				"project_name": match.projectName,
				"pattern":      match.pattern,
				"priority":     match.marker.Priority,
				"project_type": projectType.String(),
			}).Debug("custom marker selected")
			return projectType, nil
		}
	}

	if d.markers.EnableBuiltinFallback {
		return d.detectWithBuiltinPatterns(ctx, workspaceRoot)
	}

	return Unknown, nil
}

// detectWithCustomMarkers walks the ancestor chain collecting marker hits and
// picks the winner by priority. Ties fall to the project name that sorts
// first, then to the marker's root strategy across depths.
func (d *Detector) detectWithCustomMarkers(ctx context.Context, workspaceRoot string) (*markerMatch, error) {
	names := make([]string, 0, len(d.markers.Markers))
	for name := range d.markers.Markers {
		names = append(names, name)
	}
	sort.Strings(names)

	var matches []markerMatch
	for depth, dir := range ancestorChain(workspaceRoot, d.maxDepth) {
		if err := ctx.Err(); err != nil {
			return nil, detectionError("detection canceled", err)
		}
		for _, name := range names {
			marker := d.markers.Markers[name]
			for _, pattern := range marker.Markers {
				ok, err := matchMarker(dir, pattern)
				if err != nil {
					return nil, detectionError(fmt.Sprintf("checking marker %q in %s", pattern, dir), err)
				}
				if ok {
					matches = append(matches, markerMatch{
						projectName: name,
						marker:      marker,
						pattern:     pattern,
						depth:       depth,
						order:       len(matches),
					})
				}
			}
		}
	}

	if len(matches) == 0 {
		return nil, nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].marker.Priority > matches[j].marker.Priority
	})

	winner := matches[0]
	for _, m := range matches[1:] {
		if m.projectName != winner.projectName || m.marker.Priority != winner.marker.Priority {
			continue
		}
		switch winner.marker.RootStrategy {
		case RootFirst:
			if m.order < winner.order {
				winner = m
			}
		case RootFurthest:
			if m.depth > winner.depth {
				winner = m
			}
		default: // RootClosest
			if m.depth < winner.depth {
				winner = m
			}
		}
	}

	return &winner, nil
}

// detectWithBuiltinPatterns applies the built-in cascade per ancestor
// directory, nearest first.
func (d *Detector) detectWithBuiltinPatterns(ctx context.Context, workspaceRoot string) (ProjectType, error) {
	for _, dir := range ancestorChain(workspaceRoot, d.maxDepth) {
		if err := ctx.Err(); err != nil {
			return Unknown, detectionError("detection canceled", err)
		}
		projectType, err := builtinTypeIn(dir)
		if err != nil {
			return Unknown, err
		}
		if projectType.Kind != KindUnknown {
			return projectType, nil
		}
	}
	return Unknown, nil
}

// builtinTypeIn applies the fixed built-in priority cascade to one directory.
func builtinTypeIn(dir string) (ProjectType, error) {
	exists := func(name string) (bool, error) {
		_, err := os.Stat(filepath.Join(dir, name))
		if err == nil {
			return true, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, detectionError(fmt.Sprintf("checking %s in %s", name, dir), err)
	}

	if ok, err := exists("Cargo.toml"); err != nil || ok {
		return Rust, err
	}

	if ok, err := exists("package.json"); err != nil {
		return Unknown, err
	} else if ok {
		tsconfig, err := exists("tsconfig.json")
		if err != nil {
			return Unknown, err
		}
		if tsconfig {
			return TypeScript, nil
		}
		ts, err := hasTypeScriptSources(dir)
		if err != nil {
			return Unknown, err
		}
		if ts {
			return TypeScript, nil
		}
		return JavaScript, nil
	}

	for _, name := range []string{"pyproject.toml", "requirements.txt", "setup.py"} {
		if ok, err := exists(name); err != nil || ok {
			return Python, err
		}
	}

	if ok, err := exists("go.mod"); err != nil || ok {
		return Go, err
	}

	for _, name := range []string{"CMakeLists.txt", "Makefile"} {
		ok, err := exists(name)
		if err != nil {
			return Unknown, err
		}
		if ok {
			// Presence of src/ is a weak C++ signal.
			cpp, err := exists("src")
			if err != nil {
				return Unknown, err
			}
			if cpp {
				return Cpp, nil
			}
			return C, nil
		}
	}

	return Unknown, nil
}

// hasTypeScriptSources reports whether src/ holds any .ts or .tsx file.
func hasTypeScriptSources(dir string) (bool, error) {
	src := filepath.Join(dir, "src")
	entries, err := os.ReadDir(src)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, detectionError(fmt.Sprintf("reading %s", src), err)
	}
	for _, entry := range entries {
		switch filepath.Ext(entry.Name()) {
		case ".ts", ".tsx":
			return true, nil
		}
	}
	return false, nil
}

// matchMarker checks one directory for a literal filename or glob pattern.
func matchMarker(dir, pattern string) (bool, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		_, err := os.Stat(filepath.Join(dir, pattern))
		if err == nil {
			return true, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	for _, entry := range entries {
		ok, err := filepath.Match(pattern, entry.Name())
		if err != nil {
			return false, fmt.Errorf("bad marker pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ancestorChain returns root and its ancestors, nearest first, bounded by
// max directories.
func ancestorChain(root string, max int) []string {
	dirs := make([]string, 0, max)
	dir := filepath.Clean(root)
	for i := 0; i < max; i++ {
		dirs = append(dirs, dir)
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return dirs
}

// mapCustomProjectName infers a ProjectType from a configured project name
// using case-insensitive substring rules. Names that match nothing resolve
// to Unknown; such projects still benefit from their configured servers.
func mapCustomProjectName(name string) ProjectType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "rust"):
		return Rust
	case strings.Contains(lower, "typescript"), strings.Contains(lower, "ts"):
		return TypeScript
	case strings.Contains(lower, "javascript"), strings.Contains(lower, "js"), strings.Contains(lower, "node"):
		return JavaScript
	case strings.Contains(lower, "python"), strings.Contains(lower, "py"):
		return Python
	case strings.Contains(lower, "go"):
		return Go
	case strings.Contains(lower, "cpp"), strings.Contains(lower, "c++"):
		return Cpp
	case strings.Contains(lower, "c"):
		return C
	default:
		return Unknown
	}
}

// languageServersFor resolves the server list for a detected type: any
// configured marker server whose project name maps to the winning type,
// regardless of which detection path produced it, then the built-in table
// when no custom servers apply or fallback is enabled. Sorted and
// deduplicated.
func (d *Detector) languageServersFor(projectType ProjectType) []string {
	var servers []string

	for name, marker := range d.markers.Markers {
		if mapCustomProjectName(name).Kind == projectType.Kind && marker.LanguageServer != "" {
			servers = append(servers, marker.LanguageServer)
		}
	}

	if len(servers) == 0 || d.markers.EnableBuiltinFallback {
		servers = append(servers, BuiltinLanguageServers(projectType)...)
	}

	sort.Strings(servers)
	return dedupeSorted(servers)
}

// BuiltinLanguageServers returns the built-in server list for a project
// type. Mixed types union their members; Other and Unknown have none.
func BuiltinLanguageServers(projectType ProjectType) []string {
	switch projectType.Kind {
	case KindRust:
		return []string{"rust-analyzer"}
	case KindTypeScript, KindJavaScript:
		return []string{"typescript-language-server"}
	case KindPython:
		return []string{"pyright"}
	case KindGo:
		return []string{"gopls"}
	case KindC, KindCpp:
		return []string{"clangd"}
	case KindMixed:
		var servers []string
		for _, member := range projectType.Members {
			servers = append(servers, BuiltinLanguageServers(member)...)
		}
		sort.Strings(servers)
		return dedupeSorted(servers)
	default:
		return nil
	}
}

// dedupeSorted removes adjacent duplicates from a sorted slice in place.
func dedupeSorted(s []string) []string {
	out := s[:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}
