// Package main is the lsphost entry point: a standalone host that detects
// projects, starts their language servers, and reports lifecycle events.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dshills/lsphost/internal/config"
	"github.com/dshills/lsphost/internal/lsp"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

const commandBuffer = 64

func main() {
	os.Exit(run())
}

type options struct {
	configPath string
	roots      []string
	watch      bool
	logLevel   string
}

func run() int {
	opts, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("lsphost %s (%s)\n", version, commit)
		return 0
	}

	log, err := newLogger(opts.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	file, err := config.Load(opts.configPath)
	if err != nil {
		log.WithError(err).Error("failed to load configuration")
		return 1
	}
	managerConfig, err := file.ManagerConfig()
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	commands := make(chan lsp.StartServerCommand, commandBuffer)
	manager := lsp.New(managerConfig,
		lsp.WithLogger(log.WithField("component", "manager")),
		lsp.WithCommandChannel(commands),
	)

	bridge := &execBridge{log: log.WithField("component", "bridge")}
	manager.SetBridge(bridge)

	if err := manager.Start(); err != nil {
		log.WithError(err).Error("failed to start manager")
		return 1
	}

	go lsp.ServeCommands(ctx, commands, bridge, log.WithField("component", "host"))

	sub := manager.Subscribe()
	go serveEvents(ctx, manager, sub, log.WithField("component", "events"))

	var watcher *lsp.MarkerWatcher
	if opts.watch {
		watcher, err = lsp.NewMarkerWatcher(func(root string) {
			if err := manager.DetectProject(ctx, root); err != nil {
				log.WithField("workspace_root", root).WithError(err).Warn("re-detection failed")
			}
		}, lsp.WithWatcherLogger(log.WithField("component", "watcher")))
		if err != nil {
			log.WithError(err).Error("failed to create marker watcher")
			return 1
		}
		defer watcher.Close()
	}

	for _, root := range opts.roots {
		if err := manager.DetectProject(ctx, root); err != nil {
			log.WithField("workspace_root", root).WithError(err).Warn("detection failed")
			continue
		}
		if watcher != nil {
			if err := watcher.Watch(root); err != nil {
				log.WithField("workspace_root", root).WithError(err).Warn("watch failed")
			}
		}
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := manager.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("manager stop failed")
		return 1
	}
	sub.Cancel()
	return 0
}

// serveEvents logs lifecycle events and turns startup requests into actual
// StartServer calls against the manager.
func serveEvents(ctx context.Context, manager *lsp.Manager, sub *lsp.Subscription, log *logrus.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			handleEvent(ctx, manager, ev, log)
		}
	}
}

func handleEvent(ctx context.Context, manager *lsp.Manager, ev lsp.Event, log *logrus.Entry) {
	switch e := ev.(type) {
	case lsp.ProjectDetected:
		log.WithFields(logrus.Fields{
			"workspace_root":   e.WorkspaceRoot,
			"project_type":     e.ProjectType.String(),
			"language_servers": e.LanguageServers,
		}).Info("project detected")

	case lsp.ServerStartupRequested:
		go func() {
			if _, err := manager.StartServer(ctx, e.WorkspaceRoot, e.ServerName, e.LanguageID); err != nil {
				log.WithFields(logrus.Fields{
					"workspace_root": e.WorkspaceRoot,
					"server_name":    e.ServerName,
				}).WithError(err).Warn("server startup failed")
			}
		}()

	case lsp.ServerStartupCompleted:
		log.WithFields(logrus.Fields{
			"workspace_root": e.WorkspaceRoot,
			"server_name":    e.ServerName,
			"server_id":      e.ServerID,
			"status":         e.Status.String(),
		}).Info("server startup completed")

	case lsp.HealthCheckCompleted:
		log.WithFields(logrus.Fields{
			"workspace_root": e.WorkspaceRoot,
			"server_id":      e.ServerID,
			"status":         e.Status.String(),
		}).Debug("health check completed")

	case lsp.ServerCleanupCompleted:
		log.WithFields(logrus.Fields{
			"workspace_root": e.WorkspaceRoot,
			"server_id":      e.ServerID,
		}).Info("server released")
	}
}

// execBridge is a minimal Bridge that verifies a server binary exists on
// PATH and hands back a synthetic handle. A real editor integration would
// spawn the process and speak the protocol; this host only manages
// lifecycle bookkeeping.
type execBridge struct {
	log *logrus.Entry
}

func (b *execBridge) StartServer(_ context.Context, workspaceRoot, serverName, languageID string) (lsp.ServerStartResult, error) {
	path, err := exec.LookPath(serverName)
	if err != nil {
		return lsp.ServerStartResult{}, fmt.Errorf("server %q not found on PATH: %w", serverName, err)
	}

	id := lsp.ServerID(serverName + "-" + uuid.New().String()[:8])
	b.log.WithFields(logrus.Fields{
		"workspace_root": workspaceRoot,
		"server_name":    serverName,
		"language_id":    languageID,
		"binary":         path,
		"server_id":      id,
	}).Info("server resolved")
	return lsp.ServerStartResult{ServerID: id, ServerName: serverName}, nil
}

func (b *execBridge) StopServer(_ context.Context, id lsp.ServerID) error {
	b.log.WithField("server_id", id).Info("server stop requested")
	return nil
}

func newLogger(level string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	log.SetLevel(parsed)
	return log, nil
}

func parseFlags() (options, bool) {
	var opts options
	var rootList string
	var showVersion bool

	flag.StringVar(&opts.configPath, "config", defaultConfigPath(), "Path to configuration file")
	flag.StringVar(&rootList, "root", "", "Comma-separated workspace roots to detect")
	flag.BoolVar(&opts.watch, "watch", false, "Re-detect projects when marker files change")
	flag.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	for _, root := range strings.Split(rootList, ",") {
		if root = strings.TrimSpace(root); root != "" {
			opts.roots = append(opts.roots, root)
		}
	}
	if len(opts.roots) == 0 && !showVersion {
		if cwd, err := os.Getwd(); err == nil {
			opts.roots = []string{cwd}
		}
	}

	return opts, showVersion
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "lsphost.toml"
	}
	return home + "/.config/lsphost/config.toml"
}
