package lsp

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// healthyAfter is the uptime after which a managed server counts as healthy.
// This is an age rule, not a protocol ping; see the health pass below.
const healthyAfter = 5 * time.Second

// Manager orchestrates project detection and server lifecycle for any number
// of workspaces. It owns a registry of detected projects and a registry of
// managed servers, broadcasts lifecycle events, and runs a background health
// pass over every managed server.
//
// The two registries are guarded by independent locks and are never locked
// together, so there is no cross-registry critical section.
type Manager struct {
	config ProjectLspConfig

	projectsMu sync.RWMutex
	projects   map[string]ProjectInfo

	serversMu sync.RWMutex
	servers   map[string][]ManagedServer

	events    *Broadcaster
	detector  *Detector
	lifecycle *Lifecycle

	// commands crosses server startup into host context. Nil until a host
	// attaches one; StartServer fails fast without it.
	commands   chan<- StartServerCommand
	startupSem chan struct{}

	healthCancel context.CancelFunc
	healthDone   chan struct{}
	running      atomic.Bool

	now func() time.Time
	log *logrus.Entry
}

// Option configures the manager.
type Option func(*Manager)

// WithLogger sets the manager's logger. The default discards everything.
func WithLogger(log *logrus.Entry) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithCommandChannel attaches the host's command channel for server startup.
func WithCommandChannel(commands chan<- StartServerCommand) Option {
	return func(m *Manager) {
		m.commands = commands
	}
}

// WithDetector replaces the default detector.
func WithDetector(d *Detector) Option {
	return func(m *Manager) {
		if d != nil {
			m.detector = d
		}
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a manager. Zero config fields fall back to defaults.
func New(config ProjectLspConfig, opts ...Option) *Manager {
	config = config.sanitized()

	m := &Manager{
		config:   config,
		projects: make(map[string]ProjectInfo),
		servers:  make(map[string][]ManagedServer),
		events:   NewBroadcaster(DefaultEventBuffer),
		now:      time.Now,
		log:      discardEntry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.detector == nil {
		m.detector = NewDetector(config.ProjectMarkers, WithDetectorLogger(m.log))
	}
	m.lifecycle = NewLifecycle(m.log)
	m.startupSem = make(chan struct{}, config.MaxConcurrentStartups)

	return m
}

// Config returns the manager's effective configuration.
func (m *Manager) Config() ProjectLspConfig {
	return m.config
}

// SetBridge attaches the process-control bridge used for server shutdown.
func (m *Manager) SetBridge(b Bridge) {
	m.lifecycle.SetBridge(b)
}

// Subscribe registers a new lifecycle event subscriber.
func (m *Manager) Subscribe() *Subscription {
	return m.events.Subscribe()
}

// Start launches the background health pass.
func (m *Manager) Start() error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrManagerAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.healthCancel = cancel
	m.healthDone = make(chan struct{})
	go m.healthLoop(ctx)

	m.log.WithField("health_check_interval", m.config.HealthCheckInterval).Info("project LSP manager started")
	return nil
}

// Stop cancels the health pass and announces cleanup for every managed
// server. Cleanup is notification plus a best-effort bridge stop; the server
// registry is NOT cleared, and Stop never fails for lack of a bridge.
func (m *Manager) Stop(ctx context.Context) error {
	if !m.running.CompareAndSwap(true, false) {
		return ErrManagerNotStarted
	}

	m.healthCancel()
	select {
	case <-m.healthDone:
	case <-ctx.Done():
	}

	m.serversMu.RLock()
	snapshot := make(map[string][]ManagedServer, len(m.servers))
	for root, list := range m.servers {
		snapshot[root] = append([]ManagedServer(nil), list...)
	}
	m.serversMu.RUnlock()

	for root, list := range snapshot {
		for _, server := range list {
			m.log.WithFields(logrus.Fields{
				"workspace_root": root,
				"server_id":      server.ServerID,
				"server_name":    server.ServerName,
			}).Info("cleaning up managed server")

			// Best effort; a missing bridge is a logged no-op.
			_ = m.lifecycle.StopServer(ctx, server.ServerID)

			m.events.Send(ServerCleanupCompleted{
				WorkspaceRoot: root,
				ServerID:      server.ServerID,
			})
		}
	}

	m.log.Info("project LSP manager stopped")
	return nil
}

// DetectProject analyzes a workspace root and registers the result. The
// project registry holds one entry per root; re-detection overwrites it.
// With proactive startup enabled, one ServerStartupRequested event is
// emitted per resolved server, unless the root is the filesystem root.
func (m *Manager) DetectProject(ctx context.Context, workspaceRoot string) error {
	info, err := m.detector.AnalyzeProject(ctx, workspaceRoot)
	if err != nil {
		return err
	}

	m.projectsMu.Lock()
	m.projects[workspaceRoot] = info
	m.projectsMu.Unlock()

	m.events.Send(ProjectDetected{
		WorkspaceRoot:   info.WorkspaceRoot,
		ProjectType:     info.Type,
		LanguageServers: append([]string(nil), info.LanguageServers...),
	})

	m.log.WithFields(logrus.Fields{
		"workspace_root":   workspaceRoot,
		"project_type":     info.Type.String(),
		"language_servers": info.LanguageServers,
	}).Info("project detected and registered")

	if m.config.EnableProactiveStartup {
		m.requestServerStartup(info)
	}

	return nil
}

// requestServerStartup emits one startup request per resolved server. The
// filesystem root is skipped: it shows up when the host starts without a
// real project directory, and starting servers there would be wrong.
func (m *Manager) requestServerStartup(info ProjectInfo) {
	if isFilesystemRoot(info.WorkspaceRoot) {
		m.log.WithField("workspace_root", info.WorkspaceRoot).
			Info("skipping server startup for filesystem root")
		return
	}

	languageID := info.Type.LanguageID()
	for _, serverName := range info.LanguageServers {
		m.events.Send(ServerStartupRequested{
			WorkspaceRoot: info.WorkspaceRoot,
			ServerName:    serverName,
			LanguageID:    languageID,
		})
		m.log.WithFields(logrus.Fields{
			"workspace_root": info.WorkspaceRoot,
			"server_name":    serverName,
			"language_id":    languageID,
		}).Info("server startup requested")
	}
}

// isFilesystemRoot reports whether path resolves to the filesystem root.
// Relative paths are made absolute first so "." is never mistaken for the
// root.
func isFilesystemRoot(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return abs == filepath.Dir(abs)
}

// StartServer asks the host to start one server and records the result. The
// call crosses into host context over the command channel and waits for the
// one-shot response, bounded by the configured startup timeout. On timeout
// the in-flight host operation is abandoned, not canceled. There is no
// retry; callers decide whether to try again.
func (m *Manager) StartServer(ctx context.Context, workspaceRoot, serverName, languageID string) (ManagedServer, error) {
	log := m.log.WithFields(logrus.Fields{
		"workspace_root": workspaceRoot,
		"server_name":    serverName,
		"language_id":    languageID,
	})

	if m.commands == nil {
		log.Error("no command channel available")
		return ManagedServer{}, startupError("Event bridge not initialized", nil)
	}

	// Concurrency limit on in-flight startups.
	select {
	case m.startupSem <- struct{}{}:
	case <-ctx.Done():
		return ManagedServer{}, startupError("waiting for startup slot", ctx.Err())
	}
	defer func() { <-m.startupSem }()

	cmd := newStartServerCommand(workspaceRoot, serverName, languageID)
	log = log.WithField("trace_id", cmd.TraceID)

	select {
	case m.commands <- cmd:
	default:
		log.Error("command channel full, dropping startup request")
		m.emitStartupCompleted(workspaceRoot, serverName, "", StartupFailed, "command channel full")
		return ManagedServer{}, startupError("command channel full", nil)
	}

	log.Info("server startup command dispatched")

	timer := time.NewTimer(m.config.StartupTimeout)
	defer timer.Stop()

	select {
	case resp := <-cmd.Response:
		if resp.Err != nil {
			log.WithError(resp.Err).Error("host failed to start server")
			m.emitStartupCompleted(workspaceRoot, serverName, "", StartupFailed, resp.Err.Error())
			return ManagedServer{}, startupError("host failed to start server", resp.Err)
		}

		server := ManagedServer{
			ServerID:      resp.Result.ServerID,
			ServerName:    serverName,
			LanguageID:    languageID,
			WorkspaceRoot: workspaceRoot,
			StartedAt:     m.now(),
			HealthStatus:  HealthHealthy,
		}

		m.serversMu.Lock()
		m.servers[workspaceRoot] = append(m.servers[workspaceRoot], server)
		m.serversMu.Unlock()

		log.WithField("server_id", server.ServerID).Info("server started via host")
		m.emitStartupCompleted(workspaceRoot, serverName, server.ServerID, StartupSuccess, "")
		return server, nil

	case <-timer.C:
		log.WithField("timeout", m.config.StartupTimeout).Error("server startup timed out")
		m.emitStartupCompleted(workspaceRoot, serverName, "", StartupTimeout, "startup timed out")
		return ManagedServer{}, startupError("server startup timed out after "+m.config.StartupTimeout.String(), nil)

	case <-ctx.Done():
		m.emitStartupCompleted(workspaceRoot, serverName, "", StartupFailed, ctx.Err().Error())
		return ManagedServer{}, startupError("waiting for host response", ctx.Err())
	}
}

func (m *Manager) emitStartupCompleted(workspaceRoot, serverName string, id ServerID, status StartupStatus, errMsg string) {
	m.events.Send(ServerStartupCompleted{
		WorkspaceRoot: workspaceRoot,
		ServerName:    serverName,
		ServerID:      id,
		Status:        status,
		Error:         errMsg,
	})
}

// CleanupProject releases every managed server for a workspace root: the
// servers leave the registry, the bridge is asked to stop each (best
// effort), and one ServerCleanupCompleted event is emitted per server. The
// project registry entry survives.
func (m *Manager) CleanupProject(ctx context.Context, workspaceRoot string) {
	m.events.Send(ProjectCleanupRequested{WorkspaceRoot: workspaceRoot})

	m.serversMu.Lock()
	list := m.servers[workspaceRoot]
	delete(m.servers, workspaceRoot)
	m.serversMu.Unlock()

	for _, server := range list {
		_ = m.lifecycle.StopServer(ctx, server.ServerID)
		m.events.Send(ServerCleanupCompleted{
			WorkspaceRoot: workspaceRoot,
			ServerID:      server.ServerID,
		})
		m.log.WithFields(logrus.Fields{
			"workspace_root": workspaceRoot,
			"server_id":      server.ServerID,
		}).Info("managed server released")
	}
}

// GetProjectInfo returns a copy of the registered project for a root.
func (m *Manager) GetProjectInfo(workspaceRoot string) (ProjectInfo, bool) {
	m.projectsMu.RLock()
	defer m.projectsMu.RUnlock()

	info, ok := m.projects[workspaceRoot]
	if !ok {
		return ProjectInfo{}, false
	}
	info.LanguageServers = append([]string(nil), info.LanguageServers...)
	return info, true
}

// GetManagedServers returns copies of the managed servers for a root.
func (m *Manager) GetManagedServers(workspaceRoot string) []ManagedServer {
	m.serversMu.RLock()
	defer m.serversMu.RUnlock()
	return append([]ManagedServer(nil), m.servers[workspaceRoot]...)
}

// healthLoop ticks until canceled, running one health pass per tick.
func (m *Manager) healthLoop(ctx context.Context) {
	defer close(m.healthDone)

	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runHealthPass()
		}
	}
}

// runHealthPass snapshots the server registry, reports every server's
// status, and records the pass on each registry entry.
//
// The status is an age rule: a server counts as healthy once it has been up
// longer than healthyAfter, and unresponsive before that. A protocol-level
// ping would be stronger; the age rule is kept deliberately so observable
// behavior matches the prior implementation.
func (m *Manager) runHealthPass() {
	now := m.now()

	m.serversMu.RLock()
	snapshot := make(map[string][]ManagedServer, len(m.servers))
	for root, list := range m.servers {
		snapshot[root] = append([]ManagedServer(nil), list...)
	}
	m.serversMu.RUnlock()

	statuses := make(map[ServerID]HealthStatus)
	for root, list := range snapshot {
		for _, server := range list {
			status := HealthUnresponsive
			if now.Sub(server.StartedAt) > healthyAfter {
				status = HealthHealthy
			}
			statuses[server.ServerID] = status

			m.events.Send(HealthCheckCompleted{
				WorkspaceRoot: root,
				ServerID:      server.ServerID,
				Status:        status,
			})
		}
	}

	m.serversMu.Lock()
	for root := range m.servers {
		list := m.servers[root]
		for i := range list {
			if status, ok := statuses[list[i].ServerID]; ok {
				list[i].HealthStatus = status
				list[i].LastHealthCheck = now
			}
		}
	}
	m.serversMu.Unlock()
}
