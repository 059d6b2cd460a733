package lsp

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Bridge is the external process-control collaborator. Implementations spawn
// or attach a real server process and speak its protocol; this package only
// asks for a server by name and receives an opaque handle back.
type Bridge interface {
	// StartServer starts or attaches the named server for a workspace and
	// returns its handle. Implementations should honor the context deadline.
	StartServer(ctx context.Context, workspaceRoot, serverName, languageID string) (ServerStartResult, error)

	// StopServer stops the server with the given id, best-effort.
	StopServer(ctx context.Context, id ServerID) error
}

// Lifecycle holds the optional Bridge handle. Server startup never goes
// through here (it crosses into host context over the command channel);
// stop-by-id does, and degrades to a logged no-op when no bridge is attached.
type Lifecycle struct {
	mu     sync.RWMutex
	bridge Bridge
	log    *logrus.Entry
}

// NewLifecycle creates a lifecycle adapter without a bridge attached.
func NewLifecycle(log *logrus.Entry) *Lifecycle {
	if log == nil {
		log = discardEntry()
	}
	return &Lifecycle{log: log}
}

// SetBridge attaches the process-control collaborator.
func (l *Lifecycle) SetBridge(b Bridge) {
	l.mu.Lock()
	l.bridge = b
	l.mu.Unlock()
	l.log.Debug("bridge attached to lifecycle adapter")
}

// HasBridge reports whether a bridge is attached.
func (l *Lifecycle) HasBridge() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bridge != nil
}

// StopServer stops a server through the bridge. Without a bridge the stop is
// simulated: logged and reported as success.
func (l *Lifecycle) StopServer(ctx context.Context, id ServerID) error {
	l.mu.RLock()
	bridge := l.bridge
	l.mu.RUnlock()

	if bridge == nil {
		l.log.WithField("server_id", id).Info("no bridge attached, server stop simulated")
		return nil
	}

	if err := bridge.StopServer(ctx, id); err != nil {
		l.log.WithField("server_id", id).WithError(err).Warn("bridge failed to stop server")
		return err
	}

	l.log.WithField("server_id", id).Debug("server stopped via bridge")
	return nil
}

// ServeCommands drains a command channel, turning each command into a bridge
// call and replying on the command's response channel. This is the host-side
// half of the startup protocol; run it in a goroutine owned by the host.
// Returns when ctx is done or the channel closes.
func ServeCommands(ctx context.Context, commands <-chan StartServerCommand, bridge Bridge, log *logrus.Entry) {
	if log == nil {
		log = discardEntry()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-commands:
			if !ok {
				return
			}

			cmdLog := log.WithFields(logrus.Fields{
				"workspace_root": cmd.WorkspaceRoot,
				"server_name":    cmd.ServerName,
				"language_id":    cmd.LanguageID,
				"trace_id":       cmd.TraceID,
			})
			cmdLog.Info("handling server startup command")

			result, err := bridge.StartServer(ctx, cmd.WorkspaceRoot, cmd.ServerName, cmd.LanguageID)
			if err != nil {
				cmdLog.WithError(err).Error("bridge failed to start server")
			} else {
				cmdLog.WithField("server_id", result.ServerID).Info("bridge started server")
			}
			cmd.Reply(result, err)
		}
	}
}

// discardEntry returns a logger entry that writes nowhere, so library use is
// silent unless a logger is injected.
func discardEntry() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
