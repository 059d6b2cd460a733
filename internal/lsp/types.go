package lsp

import (
	"strings"
	"time"
)

// ServerID uniquely identifies a managed server within the process lifetime
// of the Manager. IDs are opaque to this package; the Bridge assigns them.
type ServerID string

// ProjectKind enumerates the project categories the detector can resolve.
type ProjectKind int

const (
	// KindUnknown means no recognizable project markers were found.
	KindUnknown ProjectKind = iota
	// KindRust is a Cargo-based Rust project.
	KindRust
	// KindTypeScript is a package.json project with TypeScript evidence.
	KindTypeScript
	// KindJavaScript is a package.json project without TypeScript evidence.
	KindJavaScript
	// KindPython is a pyproject/requirements/setup.py project.
	KindPython
	// KindGo is a go.mod project.
	KindGo
	// KindC is a Makefile/CMake project without C++ evidence.
	KindC
	// KindCpp is a Makefile/CMake project with C++ evidence.
	KindCpp
	// KindMixed aggregates several member types.
	KindMixed
	// KindOther is a free-form project type named by configuration.
	KindOther
)

// String returns a human-readable kind name.
func (k ProjectKind) String() string {
	switch k {
	case KindRust:
		return "rust"
	case KindTypeScript:
		return "typescript"
	case KindJavaScript:
		return "javascript"
	case KindPython:
		return "python"
	case KindGo:
		return "go"
	case KindC:
		return "c"
	case KindCpp:
		return "cpp"
	case KindMixed:
		return "mixed"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// ProjectType is a closed variant describing what kind of project a workspace
// is. Members is populated only for KindMixed, Name only for KindOther.
// Immutable once constructed.
type ProjectType struct {
	Kind    ProjectKind
	Members []ProjectType
	Name    string
}

// Convenience values for the plain project types.
var (
	Unknown    = ProjectType{Kind: KindUnknown}
	Rust       = ProjectType{Kind: KindRust}
	TypeScript = ProjectType{Kind: KindTypeScript}
	JavaScript = ProjectType{Kind: KindJavaScript}
	Python     = ProjectType{Kind: KindPython}
	Go         = ProjectType{Kind: KindGo}
	C          = ProjectType{Kind: KindC}
	Cpp        = ProjectType{Kind: KindCpp}
)

// Mixed builds a project type aggregating several members.
func Mixed(members ...ProjectType) ProjectType {
	return ProjectType{Kind: KindMixed, Members: members}
}

// Other builds a free-form project type. Other types have no built-in server
// mapping; their servers must come from marker configuration.
func Other(name string) ProjectType {
	return ProjectType{Kind: KindOther, Name: name}
}

// String returns a human-readable type name, e.g. "mixed(rust+typescript)".
func (t ProjectType) String() string {
	switch t.Kind {
	case KindMixed:
		names := make([]string, len(t.Members))
		for i, m := range t.Members {
			names[i] = m.String()
		}
		return "mixed(" + strings.Join(names, "+") + ")"
	case KindOther:
		return "other(" + t.Name + ")"
	default:
		return t.Kind.String()
	}
}

// LanguageID returns the canonical language id for the type. Each type has
// exactly one; Mixed and Unknown map to "unknown", Other derives its id from
// the configured name.
func (t ProjectType) LanguageID() string {
	switch t.Kind {
	case KindRust:
		return "rust"
	case KindTypeScript:
		return "typescript"
	case KindJavaScript:
		return "javascript"
	case KindPython:
		return "python"
	case KindGo:
		return "go"
	case KindC:
		return "c"
	case KindCpp:
		return "cpp"
	case KindOther:
		return strings.ReplaceAll(strings.ToLower(t.Name), " ", "_")
	default:
		return "unknown"
	}
}

// HealthStatus reports the liveness of a managed server.
type HealthStatus int

const (
	// HealthHealthy means the server is considered alive.
	HealthHealthy HealthStatus = iota
	// HealthUnresponsive means the server has not yet proven itself alive.
	HealthUnresponsive
)

// String returns a human-readable status name.
func (s HealthStatus) String() string {
	switch s {
	case HealthHealthy:
		return "healthy"
	case HealthUnresponsive:
		return "unresponsive"
	default:
		return "unknown"
	}
}

// ProjectInfo describes a detected project. Created by the Detector, owned by
// the Manager's project registry; one entry per workspace root, last
// detection wins.
type ProjectInfo struct {
	WorkspaceRoot   string
	Type            ProjectType
	LanguageServers []string
	DetectedAt      time.Time
}

// ManagedServer is a language server this package has recorded as started and
// is tracking. Created only after a successful StartServer round trip.
type ManagedServer struct {
	ServerID      ServerID
	ServerName    string
	LanguageID    string
	WorkspaceRoot string
	StartedAt     time.Time
	// LastHealthCheck is zero until the first health pass touches the server.
	LastHealthCheck time.Time
	HealthStatus    HealthStatus
}

// ServerStartResult is the Bridge's reply to a successful server start.
type ServerStartResult struct {
	ServerID   ServerID
	ServerName string
}
