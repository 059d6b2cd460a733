package lsp

// Lifecycle event topics, one per event type.
const (
	TopicProjectDetected         = "project.detected"
	TopicServerStartupRequested  = "server.startup.requested"
	TopicServerStartupCompleted  = "server.startup.completed"
	TopicHealthCheckCompleted    = "server.health.completed"
	TopicServerCleanupCompleted  = "server.cleanup.completed"
	TopicProjectCleanupRequested = "project.cleanup.requested"
)

// Event is a lifecycle event broadcast by the Manager. Events are immutable
// facts about what has happened; delivery is fan-out with no cross-subscriber
// ordering and no delivery guarantee.
type Event interface {
	// Topic identifies the event type.
	Topic() string
}

// ProjectDetected announces that a workspace root resolved to a project.
type ProjectDetected struct {
	WorkspaceRoot   string
	ProjectType     ProjectType
	LanguageServers []string
}

// Topic implements Event.
func (ProjectDetected) Topic() string { return TopicProjectDetected }

// ServerStartupRequested asks listeners to start one server for a workspace.
// Emitted once per resolved server during proactive startup.
type ServerStartupRequested struct {
	WorkspaceRoot string
	ServerName    string
	LanguageID    string
}

// Topic implements Event.
func (ServerStartupRequested) Topic() string { return TopicServerStartupRequested }

// StartupStatus reports how a server startup attempt ended.
type StartupStatus int

const (
	// StartupSuccess means the host started the server.
	StartupSuccess StartupStatus = iota
	// StartupFailed means the host reported an error.
	StartupFailed
	// StartupTimeout means no response arrived within the startup timeout.
	StartupTimeout
	// StartupConfigError means startup was impossible as configured.
	StartupConfigError
)

// String returns a human-readable status name.
func (s StartupStatus) String() string {
	switch s {
	case StartupSuccess:
		return "success"
	case StartupFailed:
		return "failed"
	case StartupTimeout:
		return "timeout"
	case StartupConfigError:
		return "config-error"
	default:
		return "unknown"
	}
}

// ServerStartupCompleted reports the outcome of a startup attempt. ServerID
// is set only on success; Error only on failure.
type ServerStartupCompleted struct {
	WorkspaceRoot string
	ServerName    string
	ServerID      ServerID
	Status        StartupStatus
	Error         string
}

// Topic implements Event.
func (ServerStartupCompleted) Topic() string { return TopicServerStartupCompleted }

// HealthCheckCompleted reports one server's status from a health pass.
type HealthCheckCompleted struct {
	WorkspaceRoot string
	ServerID      ServerID
	Status        HealthStatus
}

// Topic implements Event.
func (HealthCheckCompleted) Topic() string { return TopicHealthCheckCompleted }

// ServerCleanupCompleted announces that a managed server was released. This
// is a notification only; terminating the external process is the bridge's
// concern.
type ServerCleanupCompleted struct {
	WorkspaceRoot string
	ServerID      ServerID
}

// Topic implements Event.
func (ServerCleanupCompleted) Topic() string { return TopicServerCleanupCompleted }

// ProjectCleanupRequested announces that a workspace's servers are being
// released.
type ProjectCleanupRequested struct {
	WorkspaceRoot string
}

// Topic implements Event.
func (ProjectCleanupRequested) Topic() string { return TopicProjectCleanupRequested }
