// cmd/wagsupd/run.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/config"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/controller"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/events"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/logs"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/metrics"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/runtime"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/store"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/wallet"
	"github.com/waglayla/waglayla-supervisor/internal/output"
	"github.com/waglayla/waglayla-supervisor/internal/paths"
	"github.com/waglayla/waglayla-supervisor/internal/tui"
	"github.com/waglayla/waglayla-supervisor/internal/version"
)

const (
	shutdownTimeout = 45 * time.Second
	panelInterval   = 2 * time.Second
	consoleLines    = 1000
)

// publisherFunc adapts a function to events.Publisher.
type publisherFunc func(events.Event)

func (f publisherFunc) Publish(e events.Event) { f(e) }

func runSupervisor(cmd *cobra.Command, args []string) error {
	dir := appDir()
	if err := paths.EnsureDir(paths.LogsPath(dir)); err != nil {
		return fmt.Errorf("failed to create application directory: %w", err)
	}

	// One supervisor per application directory; storage remove checks it.
	pidFile, err := runtime.AcquirePIDFile(paths.PIDPath(dir))
	if err != nil {
		return err
	}
	defer pidFile.Release()

	// Load settings: defaults < file < env < flags
	loader := config.NewLoader(dir, flagSettingsPath)
	settings, err := loadSettings(cmd, loader)
	if err != nil {
		return err
	}

	interactive := !flagNoPanel && term.IsTerminal(int(os.Stdout.Fd()))
	var console io.Writer
	if !interactive || flagVerbose {
		console = os.Stderr
	}
	logger, logFile := newLogger(dir, settings.Developer.LogLevel, console)
	defer logFile.Close()
	slog.SetDefault(logger)
	loader.SetLogger(logger)

	logger.Info("starting supervisor",
		"version", version.UAComment(),
		"appdir", dir,
		"settings", loader.Path(),
		"node", settings.Node.Kind)

	settingsStore := config.NewStore(config.StoreConfig{
		Path:       loader.Path(),
		BridgePath: paths.BridgeConfigPath(dir),
		Logger:     logger,
	})
	defer func() {
		if err := settingsStore.Close(); err != nil {
			logger.Error("failed to store settings", "error", err)
		}
	}()
	if !settings.Initialized {
		settings.Initialized = true
		settingsStore.Request(settings)
	}

	// Child consoles are kept in memory and mirrored into rotating files.
	logFiles := runtime.NewLogFiles(paths.LogsPath(dir), runtime.DefaultLogConfig())
	defer logFiles.Close()
	daemonConsole, err := newConsole(logFiles, paths.DaemonLog)
	if err != nil {
		return err
	}
	bridgeConsole, err := newConsole(logFiles, paths.BridgeLog)
	if err != nil {
		return err
	}

	launcher, err := runtime.NewLauncher(runtime.DaemonConfig{
		Binary:    daemonBinary(settings.Developer.DaemonBinary),
		WorkDir:   dir,
		Collector: daemonConsole,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	bus := events.NewBus()
	sup := controller.NewSupervisor(controller.SupervisorConfig{Bus: bus, Logger: logger})
	controller.InstallDefault(sup)
	defer controller.UninstallDefault()

	var history store.History
	if settings.Features.EnableStatsHistory {
		h, err := store.NewBoltHistory(paths.HistoryPath(dir), settings.Features.StatsHistoryLimit)
		if err != nil {
			logger.Warn("stats history disabled", "error", err)
		} else {
			history = h
			defer h.Close()
		}
	}

	monitor := wallet.NewMonitor(wallet.MonitorConfig{
		Addresses: flagWatchAddress,
		Logger:    logger,
	})
	if len(flagWatchAddress) > 0 {
		monitor.Open(flagWatchAddress)
	}

	// The node service is the single writer of node state; every other
	// service reports into its inbox.
	var node *controller.NodeService
	toNode := publisherFunc(func(e events.Event) { node.Publish(e) })

	bridge := controller.NewBridgeService(controller.BridgeServiceConfig{
		AppDir:    dir,
		Settings:  settings.Bridge,
		Enabled:   settings.Node.EnableBridge,
		Collector: bridgeConsole,
		Bus:       toNode,
		Logger:    logger,
	})

	var storage *controller.StorageTracker
	var storageRoot controller.StorageRootTracker
	if settings.Features.EnableStorageTrack {
		storage = controller.NewStorageTracker(controller.StorageTrackerConfig{
			Guard:  func() error { return node.DataReleased() },
			Bus:    toNode,
			Logger: logger,
		})
		storageRoot = storage
	}

	node = controller.NewNodeService(controller.NodeServiceConfig{
		Settings:       settings,
		Launcher:       launcher,
		Wallet:         monitor,
		Peers:          sup,
		Bus:            bus,
		Metrics:        m,
		Bridge:         bridge,
		Storage:        storageRoot,
		DefaultDataDir: paths.DaemonDefaultDataDir(),
		ArgsOptions:    controller.DaemonArgsOptions{UAComment: version.UAComment()},
		Logger:         logger,
	})

	stats := controller.NewStatsService(controller.StatsServiceConfig{
		Enabled: func() bool { return node.Settings().Features.EnableStats },
		History: history,
		Bus:     toNode,
		Logger:  logger,
	})

	services := []controller.Service{node, stats, bridge}
	if storage != nil {
		services = append(services, storage)
	}
	for _, svc := range services {
		if err := sup.Register(svc); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sup.Start(ctx); err != nil {
		return err
	}

	if addr := settings.Developer.MetricsListen; addr != "" {
		srv := serveMetrics(addr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	printer := output.NewPrinter(os.Stdout, os.Stderr)
	printer.SetNoColor(flagNoColor)
	printer.SetVerbose(flagVerbose)
	if flagVerbose {
		go mirrorConsole(ctx, "node", daemonConsole.Subscribe(), printer)
		go mirrorConsole(ctx, "bridge", bridgeConsole.Subscribe(), printer)
	}

	loop := &eventLoop{
		bus:         bus,
		sup:         sup,
		node:        node,
		loader:      loader,
		cmd:         cmd,
		printer:     printer,
		interactive: interactive,
		logger:      logger,
	}
	return loop.run(ctx)
}

// loadSettings loads the settings document and applies the CLI overrides.
func loadSettings(cmd *cobra.Command, loader *config.Loader) (*config.Settings, error) {
	settings, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := applyFlagOverrides(cmd, settings); err != nil {
		return nil, err
	}
	if err := config.Validate(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// applyFlagOverrides applies CLI flags to settings (highest priority).
func applyFlagOverrides(cmd *cobra.Command, s *config.Settings) error {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		s.Developer.LogLevel = flagLogLevel
	}
	if flags.Changed("metrics-listen") {
		s.Developer.MetricsListen = flagMetricsListen
	}
	if flags.Changed("node") {
		kind, err := types.ParseNodeKind(flagNodeKind)
		if err != nil {
			return err
		}
		s.Node.Kind = kind
	}
	if flags.Changed("network") {
		switch n := types.Network(flagNetwork); n {
		case types.NetworkMainnet, types.NetworkTestnet:
			s.Node.Network = n
		default:
			return fmt.Errorf("unknown network %q (want mainnet or testnet)", flagNetwork)
		}
	}
	if flags.Changed("wrpc-url") {
		s.Node.Kind = types.NodeKindRemote
		s.Node.ConnectionKind = types.ConnectionCustom
		s.Node.WrpcURL = flagWrpcURL
	}
	return nil
}

func newConsole(files *runtime.LogFiles, name string) (*logs.LogCollector, error) {
	w, err := files.Writer(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	c := logs.NewLogCollector(logs.NewRingBuffer(consoleLines))
	c.SetSink(w)
	return c, nil
}

// mirrorConsole prints every line delivered to sub until ctx is done.
func mirrorConsole(ctx context.Context, name string, sub *logs.Subscription, printer *output.Printer) {
	defer sub.Close()
	for {
		e, err := sub.Recv(ctx)
		if err != nil {
			return
		}
		printer.Console(name, e)
	}
}

// daemonBinary picks the node executable: the configured path, the one in
// PATH, or the one next to this executable.
func daemonBinary(configured string) string {
	if configured != "" {
		return configured
	}
	name := paths.DaemonBinaryName()
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return name
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

// eventLoop prints bus events, redraws the status panel and turns signals
// into settings reloads and shutdown.
type eventLoop struct {
	bus         *events.Bus
	sup         *controller.Supervisor
	node        *controller.NodeService
	loader      *config.Loader
	cmd         *cobra.Command
	printer     *output.Printer
	interactive bool
	logger      *slog.Logger

	bridge    *events.BridgeStatus
	lastPanel string
}

func (l *eventLoop) run(ctx context.Context) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var panelTick <-chan time.Time
	if l.interactive {
		ticker := time.NewTicker(panelInterval)
		defer ticker.Stop()
		panelTick = ticker.C
	}

	shutdownErr := make(chan error, 1)
	done := ctx.Done()
	for {
		select {
		case <-done:
			done = nil
			l.logger.Info("shutdown requested")
			go func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				shutdownErr <- l.sup.Shutdown(shutdownCtx)
			}()
		case err := <-shutdownErr:
			// The bus is closed only after a clean shutdown.
			if err != nil {
				return err
			}
		case <-hup:
			l.reload()
		case <-panelTick:
			l.drawPanel()
		case <-l.bus.Ready():
			for {
				e, ok := l.bus.TryRecv()
				if !ok {
					break
				}
				if l.handle(e) {
					return nil
				}
			}
		}
	}
}

// handle prints e and reports whether the loop should exit.
func (l *eventLoop) handle(e events.Event) bool {
	if st, ok := e.(events.BridgeStatus); ok {
		l.bridge = &st
	}
	l.printer.Event(e)
	_, exit := e.(events.Exit)
	return exit
}

// reload re-reads the settings document and hands it to the node service.
func (l *eventLoop) reload() {
	s, err := loadSettings(l.cmd, l.loader)
	if err != nil {
		l.logger.Error("settings reload failed", "error", err)
		controller.NotifyError(err)
		return
	}
	l.logger.Info("settings reloaded", "path", l.loader.Path())
	l.node.ApplyNodeSettings(s)
}

func (l *eventLoop) drawPanel() {
	width := tui.DefaultPanelWidth
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && w < width {
		width = w
	}
	panel := tui.Panel{
		Kind:     l.node.NodeKind(),
		Snapshot: l.node.State().Snapshot(),
		Bridge:   l.bridge,
		Width:    width,
	}.Render()
	if panel == l.lastPanel {
		return
	}
	l.lastPanel = panel
	l.printer.Write(panel + "\n")
}
