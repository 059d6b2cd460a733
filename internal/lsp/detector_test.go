package lsp

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDetectorBuiltinPatterns(t *testing.T) {
	tests := []struct {
		name        string
		files       []string
		dirs        []string
		wantKind    ProjectKind
		wantServers []string
	}{
		{
			name:        "cargo project",
			files:       []string{"Cargo.toml"},
			wantKind:    KindRust,
			wantServers: []string{"rust-analyzer"},
		},
		{
			name:        "package.json with tsconfig",
			files:       []string{"package.json", "tsconfig.json"},
			wantKind:    KindTypeScript,
			wantServers: []string{"typescript-language-server"},
		},
		{
			name:        "package.json with ts sources",
			files:       []string{"package.json", "src/index.ts"},
			wantKind:    KindTypeScript,
			wantServers: []string{"typescript-language-server"},
		},
		{
			name:        "package.json alone",
			files:       []string{"package.json"},
			wantKind:    KindJavaScript,
			wantServers: []string{"typescript-language-server"},
		},
		{
			name:        "pyproject",
			files:       []string{"pyproject.toml"},
			wantKind:    KindPython,
			wantServers: []string{"pyright"},
		},
		{
			name:        "requirements",
			files:       []string{"requirements.txt"},
			wantKind:    KindPython,
			wantServers: []string{"pyright"},
		},
		{
			name:        "go module",
			files:       []string{"go.mod"},
			wantKind:    KindGo,
			wantServers: []string{"gopls"},
		},
		{
			name:        "makefile with src",
			files:       []string{"Makefile"},
			dirs:        []string{"src"},
			wantKind:    KindCpp,
			wantServers: []string{"clangd"},
		},
		{
			name:        "makefile alone",
			files:       []string{"Makefile"},
			wantKind:    KindC,
			wantServers: []string{"clangd"},
		},
		{
			name:        "cargo beats package.json",
			files:       []string{"Cargo.toml", "package.json"},
			wantKind:    KindRust,
			wantServers: []string{"rust-analyzer"},
		},
		{
			name:        "empty directory",
			wantKind:    KindUnknown,
			wantServers: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for _, dir := range tt.dirs {
				if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
					t.Fatalf("mkdir: %v", err)
				}
			}
			for _, file := range tt.files {
				touch(t, filepath.Join(root, file))
			}

			d := NewDetector(DefaultMarkersConfig())
			info, err := d.AnalyzeProject(context.Background(), root)
			if err != nil {
				t.Fatalf("AnalyzeProject: %v", err)
			}

			if info.Type.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", info.Type.Kind, tt.wantKind)
			}
			if !reflect.DeepEqual(info.LanguageServers, tt.wantServers) {
				t.Errorf("servers = %v, want %v", info.LanguageServers, tt.wantServers)
			}
			if info.WorkspaceRoot != root {
				t.Errorf("workspace root = %q, want %q", info.WorkspaceRoot, root)
			}
			if info.DetectedAt.IsZero() {
				t.Error("DetectedAt not set")
			}
		})
	}
}

func TestDetectorBuiltinAncestorSearch(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "go.mod"))
	nested := filepath.Join(root, "internal", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	d := NewDetector(DefaultMarkersConfig())
	info, err := d.AnalyzeProject(context.Background(), nested)
	if err != nil {
		t.Fatalf("AnalyzeProject: %v", err)
	}
	if info.Type.Kind != KindGo {
		t.Errorf("kind = %s, want go", info.Type.Kind)
	}
}

func TestDetectorNearestAncestorWins(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Cargo.toml"))
	sub := filepath.Join(root, "web")
	touch(t, filepath.Join(sub, "package.json"))

	d := NewDetector(DefaultMarkersConfig())
	info, err := d.AnalyzeProject(context.Background(), sub)
	if err != nil {
		t.Fatalf("AnalyzeProject: %v", err)
	}
	if info.Type.Kind != KindJavaScript {
		t.Errorf("kind = %s, want javascript", info.Type.Kind)
	}
}

func TestDetectorCustomMarkers(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "flake.nix"))
	touch(t, filepath.Join(root, "go.mod"))

	markers := DefaultMarkersConfig()
	markers.EnableProjectMarkers = true
	markers.EnableBuiltinFallback = false
	markers.Markers = map[string]ProjectMarker{
		"nix": {
			Markers:        []string{"flake.nix"},
			LanguageServer: "nil",
			Priority:       100,
		},
	}

	d := NewDetector(markers)
	info, err := d.AnalyzeProject(context.Background(), root)
	if err != nil {
		t.Fatalf("AnalyzeProject: %v", err)
	}

	// "nix" matches no substring rule, so the type stays unknown while the
	// configured server still applies.
	if info.Type.Kind != KindUnknown {
		t.Errorf("kind = %s, want unknown", info.Type.Kind)
	}
	if !reflect.DeepEqual(info.LanguageServers, []string{"nil"}) {
		t.Errorf("servers = %v, want [nil]", info.LanguageServers)
	}
}

func TestDetectorCustomMarkerPriority(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "build.gradle"))
	touch(t, filepath.Join(root, "Cargo.toml"))

	markers := DefaultMarkersConfig()
	markers.EnableProjectMarkers = true
	markers.EnableBuiltinFallback = false
	markers.Markers = map[string]ProjectMarker{
		"my-rust": {
			Markers:        []string{"Cargo.toml"},
			LanguageServer: "rust-analyzer",
			Priority:       200,
		},
		"gradle": {
			Markers:        []string{"build.gradle"},
			LanguageServer: "jdtls",
			Priority:       100,
		},
	}

	d := NewDetector(markers)
	info, err := d.AnalyzeProject(context.Background(), root)
	if err != nil {
		t.Fatalf("AnalyzeProject: %v", err)
	}
	if info.Type.Kind != KindRust {
		t.Errorf("kind = %s, want rust", info.Type.Kind)
	}
	if !reflect.DeepEqual(info.LanguageServers, []string{"rust-analyzer"}) {
		t.Errorf("servers = %v, want [rust-analyzer]", info.LanguageServers)
	}
}

func TestDetectorCustomMarkerGlob(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "app.csproj"))

	markers := DefaultMarkersConfig()
	markers.EnableProjectMarkers = true
	markers.EnableBuiltinFallback = false
	markers.Markers = map[string]ProjectMarker{
		"dotnet": {
			Markers:        []string{"*.csproj"},
			LanguageServer: "omnisharp",
		},
	}

	d := NewDetector(markers)
	info, err := d.AnalyzeProject(context.Background(), root)
	if err != nil {
		t.Fatalf("AnalyzeProject: %v", err)
	}
	if !reflect.DeepEqual(info.LanguageServers, []string{"omnisharp"}) {
		t.Errorf("servers = %v, want [omnisharp]", info.LanguageServers)
	}
}

func TestDetectorCustomMarkerRootStrategy(t *testing.T) {
	tests := []struct {
		name     string
		strategy RootStrategy
		// wantOuter is true when the marker far from the workspace wins.
		wantOuter bool
	}{
		{name: "closest", strategy: RootClosest, wantOuter: false},
		{name: "furthest", strategy: RootFurthest, wantOuter: true},
		{name: "first", strategy: RootFirst, wantOuter: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outer := t.TempDir()
			inner := filepath.Join(outer, "member")
			touch(t, filepath.Join(outer, ".workspace"))
			touch(t, filepath.Join(inner, ".workspace"))

			markers := DefaultMarkersConfig()
			markers.EnableProjectMarkers = true
			markers.EnableBuiltinFallback = false
			markers.Markers = map[string]ProjectMarker{
				"ws": {
					Markers:        []string{".workspace"},
					LanguageServer: "srv",
					RootStrategy:   tt.strategy,
				},
			}

			d := NewDetector(markers)
			match, err := d.detectWithCustomMarkers(context.Background(), inner)
			if err != nil {
				t.Fatalf("detectWithCustomMarkers: %v", err)
			}
			if match == nil {
				t.Fatal("no match")
			}
			gotOuter := match.depth > 0
			if gotOuter != tt.wantOuter {
				t.Errorf("outer match = %v, want %v (depth %d)", gotOuter, tt.wantOuter, match.depth)
			}
		})
	}
}

func TestDetectorFallbackAfterCustomMiss(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "go.mod"))

	markers := DefaultMarkersConfig()
	markers.EnableProjectMarkers = true
	markers.EnableBuiltinFallback = true
	markers.Markers = map[string]ProjectMarker{
		"nix": {Markers: []string{"flake.nix"}, LanguageServer: "nil"},
	}

	d := NewDetector(markers)
	info, err := d.AnalyzeProject(context.Background(), root)
	if err != nil {
		t.Fatalf("AnalyzeProject: %v", err)
	}
	if info.Type.Kind != KindGo {
		t.Errorf("kind = %s, want go", info.Type.Kind)
	}
}

func TestDetectorCustomServersUnionOnBuiltinPath(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Cargo.toml"))

	// The custom marker never matches here; the builtin cascade resolves
	// the type. The configured server for that type still applies.
	markers := DefaultMarkersConfig()
	markers.EnableProjectMarkers = true
	markers.EnableBuiltinFallback = true
	markers.Markers = map[string]ProjectMarker{
		"my-rust": {
			Markers:        []string{"rust-toolchain.toml"},
			LanguageServer: "custom-ra",
		},
	}

	d := NewDetector(markers)
	info, err := d.AnalyzeProject(context.Background(), root)
	if err != nil {
		t.Fatalf("AnalyzeProject: %v", err)
	}
	if info.Type.Kind != KindRust {
		t.Fatalf("kind = %s, want rust", info.Type.Kind)
	}
	want := []string{"custom-ra", "rust-analyzer"}
	if !reflect.DeepEqual(info.LanguageServers, want) {
		t.Errorf("servers = %v, want %v", info.LanguageServers, want)
	}
}

func TestDetectorCanceledContext(t *testing.T) {
	markers := DefaultMarkersConfig()
	markers.DetectionTimeout = 0

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDetector(markers)
	_, err := d.AnalyzeProject(ctx, t.TempDir())
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if kind, ok := ErrorKindOf(err); !ok || kind != ErrorProjectDetection {
		t.Errorf("error kind = %v (%v), want project detection", kind, ok)
	}
}

func TestMapCustomProjectName(t *testing.T) {
	tests := []struct {
		name string
		want ProjectKind
	}{
		{"rust-workspace", KindRust},
		{"TypeScript", KindTypeScript},
		{"ts-app", KindTypeScript},
		{"javascript", KindJavaScript},
		{"node-service", KindJavaScript},
		{"python-lib", KindPython},
		{"pyservice", KindPython},
		{"go-module", KindGo},
		{"cpp-engine", KindCpp},
		{"c-kernel", KindC},
		{"nix", KindUnknown},
		{"zig", KindUnknown},
	}

	for _, tt := range tests {
		if got := mapCustomProjectName(tt.name); got.Kind != tt.want {
			t.Errorf("mapCustomProjectName(%q) = %s, want %s", tt.name, got.Kind, tt.want)
		}
	}
}

func TestBuiltinLanguageServersMixed(t *testing.T) {
	got := BuiltinLanguageServers(Mixed(Rust, TypeScript, JavaScript))
	want := []string{"rust-analyzer", "typescript-language-server"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("servers = %v, want %v", got, want)
	}

	if servers := BuiltinLanguageServers(Other("zig")); servers != nil {
		t.Errorf("Other servers = %v, want none", servers)
	}
}

func TestProjectTypeString(t *testing.T) {
	tests := []struct {
		pt   ProjectType
		want string
	}{
		{Rust, "rust"},
		{Unknown, "unknown"},
		{Mixed(Rust, TypeScript), "mixed(rust+typescript)"},
		{Other("Zig Build"), "other(Zig Build)"},
	}
	for _, tt := range tests {
		if got := tt.pt.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestProjectTypeLanguageID(t *testing.T) {
	tests := []struct {
		pt   ProjectType
		want string
	}{
		{Rust, "rust"},
		{TypeScript, "typescript"},
		{Cpp, "cpp"},
		{Unknown, "unknown"},
		{Mixed(Rust, Go), "unknown"},
		{Other("Zig Build"), "zig_build"},
	}
	for _, tt := range tests {
		if got := tt.pt.LanguageID(); got != tt.want {
			t.Errorf("LanguageID(%s) = %q, want %q", tt.pt, got, tt.want)
		}
	}
}

func TestDetectionTimeoutApplies(t *testing.T) {
	markers := DefaultMarkersConfig()
	markers.DetectionTimeout = time.Nanosecond
	markers.EnableProjectMarkers = true
	markers.Markers = map[string]ProjectMarker{
		"ws": {Markers: []string{".workspace"}, LanguageServer: "srv"},
	}

	d := NewDetector(markers)
	// The nanosecond deadline expires before the walk starts; detection
	// reports it instead of hanging.
	time.Sleep(time.Millisecond)
	_, err := d.AnalyzeProject(context.Background(), t.TempDir())
	if err == nil {
		t.Skip("walk finished before deadline fired")
	}
	if kind, ok := ErrorKindOf(err); !ok || kind != ErrorProjectDetection {
		t.Errorf("error kind = %v (%v), want project detection", kind, ok)
	}
}
