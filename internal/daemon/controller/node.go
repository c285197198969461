// internal/daemon/controller/node.go
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/config"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/endpoint"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/events"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/metrics"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/rpc"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/runtime"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/subsidy"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/wallet"
)

// ErrNoLauncher is returned when an integrated daemon is requested without
// a launcher.
var ErrNoLauncher = errors.New("no daemon launcher configured")

// DefaultStopTimeout bounds the stop sequence run on terminate.
const DefaultStopTimeout = runtime.DaemonGracePeriod + 5*time.Second

// DaemonLauncher spawns the integrated node daemon.
type DaemonLauncher interface {
	Launch(ctx context.Context, args []string) (runtime.Daemon, error)
}

// EndpointResolver derives the RPC endpoint from node settings.
type EndpointResolver interface {
	Resolve(ctx context.Context, ns config.NodeSettings) (*endpoint.Endpoint, error)
}

// BridgeControl receives the hot bridge settings.
type BridgeControl interface {
	SetEnabled(enabled bool)
	Configure(settings config.BridgeSettings)
}

// StorageRootTracker follows the node data directory.
type StorageRootTracker interface {
	TrackStorageRoot(path string)
}

// NodeServiceConfig configures the Node Service.
type NodeServiceConfig struct {
	// Settings is the document the service starts from. Required.
	Settings *config.Settings
	Launcher DaemonLauncher
	Resolver EndpointResolver
	Factory  rpc.Factory
	// CheckEncoding reports whether Factory can serve an encoding. It runs
	// before a restart stops anything. Defaults to rpc.CheckEncoding.
	CheckEncoding func(types.Encoding) error
	// Wallet is optional; without it the connection is reported by the
	// RPC client itself.
	Wallet wallet.API
	// Peers receives the RPC lifecycle fan-out. Required.
	Peers RPCFanout
	// Bus receives every state event. Required.
	Bus     events.Publisher
	State   *types.NodeState
	Metrics *metrics.Metrics
	Bridge  BridgeControl
	Storage StorageRootTracker
	// DefaultDataDir is the daemon data directory when no custom one is set.
	DefaultDataDir string
	ConnectOptions *rpc.ConnectOptions
	ArgsOptions    DaemonArgsOptions
	StopTimeout    time.Duration
	Logger         *slog.Logger
}

// Inbox commands. They travel on the service's own queue next to the
// metric events published by the other services.
type (
	applySettings struct{ settings *config.Settings }
	restartNode   struct{ settings *config.Settings }
)

func (applySettings) Kind() string { return "apply-node-settings" }
func (restartNode) Kind() string   { return "restart-node" }

// NodeService owns the node kind state machine, the daemon child, the RPC
// client and the wallet binding. It is the only writer of NodeState.
type NodeService struct {
	*lifecycle

	cfg     NodeServiceConfig
	inbox   *events.Bus
	state   *types.NodeState
	logger  *slog.Logger
	connect rpc.ConnectOptions

	settingsMu sync.RWMutex
	current    *config.Settings

	// Owned by the Launch goroutine.
	daemon   runtime.Daemon
	client   rpc.Client
	attached bool
	restarts int
}

// NewNodeService creates the Node Service in the idle state.
func NewNodeService(cfg NodeServiceConfig) *NodeService {
	if cfg.Settings == nil {
		cfg.Settings = config.DefaultSettings()
	}
	if cfg.State == nil {
		cfg.State = types.NewNodeState()
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = endpoint.NewResolver(endpoint.Config{Logger: cfg.Logger})
	}
	if cfg.Factory == nil {
		cfg.Factory = rpc.NewFactory(rpc.FactoryConfig{Logger: cfg.Logger})
	}
	if cfg.CheckEncoding == nil {
		cfg.CheckEncoding = rpc.CheckEncoding
	}
	connect := rpc.DefaultConnectOptions()
	if cfg.ConnectOptions != nil {
		connect = *cfg.ConnectOptions
	}

	settings := *cfg.Settings
	return &NodeService{
		lifecycle: newLifecycle(),
		cfg:       cfg,
		inbox:     events.NewBus(),
		state:     cfg.State,
		logger:    cfg.Logger.With("service", "node"),
		connect:   connect,
		current:   &settings,
	}
}

func (n *NodeService) Name() string { return "node" }

// State returns the observable node state.
func (n *NodeService) State() *types.NodeState {
	return n.state
}

// Settings returns a copy of the settings the service currently follows.
func (n *NodeService) Settings() config.Settings {
	n.settingsMu.RLock()
	defer n.settingsMu.RUnlock()
	return *n.current
}

// NodeKind returns the active node kind.
func (n *NodeService) NodeKind() types.NodeKind {
	n.settingsMu.RLock()
	defer n.settingsMu.RUnlock()
	return n.current.Node.Kind
}

// DataReleased returns nil once no node can hold the data directory: the
// kind is disabled and the stop sequence has finished. Otherwise the error
// wraps ErrNodeRunning.
func (n *NodeService) DataReleased() error {
	if kind := n.NodeKind(); kind != types.NodeKindDisabled {
		return fmt.Errorf("%w (node kind %s)", ErrNodeRunning, kind)
	}
	switch st := n.state.State(); st {
	case types.NodeStateIdle, types.NodeStateDisabled:
		return nil
	default:
		return fmt.Errorf("%w (node %s)", ErrNodeRunning, st)
	}
}

func (n *NodeService) setCurrent(s *config.Settings) {
	cp := *s
	n.settingsMu.Lock()
	n.current = &cp
	n.settingsMu.Unlock()
}

// ApplyNodeSettings queues a settings change. Validation failures are
// reported through Notify and NodeState.Error.
func (n *NodeService) ApplyNodeSettings(s *config.Settings) {
	cp := *s
	n.inbox.Publish(applySettings{settings: &cp})
}

// Publish accepts metric events from the other services. They are applied
// to NodeState and forwarded to the bus from the service goroutine.
func (n *NodeService) Publish(e events.Event) {
	n.inbox.Publish(e)
}

// Restarts returns how many restart sequences have run.
func (n *NodeService) Restarts() int {
	n.settingsMu.RLock()
	defer n.settingsMu.RUnlock()
	return n.restarts
}

// Launch runs the state machine until terminated.
func (n *NodeService) Launch(ctx context.Context) error {
	defer n.finish()
	defer n.inbox.Close()

	initial := n.Settings()
	if n.cfg.Bridge != nil {
		n.cfg.Bridge.Configure(initial.Bridge)
		n.cfg.Bridge.SetEnabled(initial.Node.EnableBridge)
	}
	n.trackStorage(initial.Node)
	if initial.Node.Kind != types.NodeKindDisabled {
		n.inbox.Publish(restartNode{settings: &initial})
	}

	var walletEvents <-chan wallet.Event
	if n.cfg.Wallet != nil {
		walletEvents = n.cfg.Wallet.Events()
	}

	for {
		var daemonDone <-chan struct{}
		if n.daemon != nil {
			daemonDone = n.daemon.Done()
		}

		select {
		case <-n.terminate:
			n.shutdown()
			return nil
		case <-ctx.Done():
			n.shutdown()
			return nil
		case <-n.inbox.Ready():
			for {
				e, ok := n.inbox.TryRecv()
				if !ok {
					break
				}
				n.handle(ctx, e)
				if n.terminated() {
					break
				}
			}
		case ev := <-walletEvents:
			n.handleWallet(ctx, ev)
		case <-daemonDone:
			n.daemonCrashed(ctx)
		}
	}
}

func (n *NodeService) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.StopTimeout)
	defer cancel()

	n.logger.Info("node service terminating")
	n.stopAllServices(ctx)
	n.setState(types.NodeStateIdle)
}

func (n *NodeService) handle(ctx context.Context, e events.Event) {
	switch ev := e.(type) {
	case applySettings:
		n.applySettings(ev.settings)
	case restartNode:
		n.restart(ctx, ev.settings)
	default:
		n.applyMetric(ctx, e)
	}
}

// applySettings diffs s against the current settings. A restart-sensitive
// change is validated first and then queued as a restart; hot changes are
// adopted immediately.
func (n *NodeService) applySettings(s *config.Settings) {
	current := n.Settings()
	verdict := config.Diff(&current, s)
	if !verdict.Changed() {
		return
	}
	n.logger.Debug("settings changed", "fields", verdict.Fields, "restart", verdict.RestartRequired)

	if verdict.RestartRequired {
		if err := n.validateTarget(s.Node); err != nil {
			// The running node keeps its settings.
			n.surface(err)
			return
		}
	}

	n.setCurrent(s)
	if n.cfg.Bridge != nil {
		if verdict.BridgeChanged {
			n.cfg.Bridge.Configure(s.Bridge)
		}
		if verdict.BridgeToggled {
			n.cfg.Bridge.SetEnabled(s.Node.EnableBridge)
		}
	}

	if verdict.RestartRequired {
		n.inbox.Publish(restartNode{settings: s})
	}
}

// validateTarget rejects settings that cannot start before anything is
// stopped. The integrated daemon is always reached over the loopback
// endpoint, so only remote targets carry their own encoding.
func (n *NodeService) validateTarget(ns config.NodeSettings) error {
	switch ns.Kind {
	case types.NodeKindRemote:
		if ns.ConnectionKind != types.ConnectionPublicServerRandom {
			if _, err := endpoint.ParseURL(ns.WrpcURL, ns.WrpcEncoding); err != nil {
				return err
			}
		}
		if err := n.cfg.CheckEncoding(ns.WrpcEncoding); err != nil {
			return err
		}
	case types.NodeKindIntegratedDaemon:
		if err := config.ValidateDataDir(ns); err != nil {
			return err
		}
		if _, err := DaemonArgs(ns, DaemonArgsOptions{TotalMemory: func() uint64 { return 0 }}); err != nil {
			return err
		}
	}
	return nil
}

func (n *NodeService) restart(ctx context.Context, s *config.Settings) {
	n.settingsMu.Lock()
	n.restarts++
	n.settingsMu.Unlock()

	n.logger.Info("restarting node", "kind", s.Node.Kind)
	n.stopAllServices(ctx)
	if n.terminated() {
		return
	}
	n.trackStorage(s.Node)
	n.startAllServices(ctx, s.Node)
}

// stopAllServices tears down the running node: connection flag, RPC
// detach with preemptive disconnect, wallet, client and daemon. Errors are
// logged and never stop the sequence.
func (n *NodeService) stopAllServices(ctx context.Context) {
	if n.client == nil && n.daemon == nil && !n.attached {
		return
	}
	n.setState(types.NodeStateStopping)

	if n.state.SetDisconnected() {
		n.publish(events.NodeDisconnected{})
		if err := n.cfg.Peers.DisconnectRPC(ctx); err != nil {
			n.logger.Warn("rpc disconnect fan-out failed", "error", err)
		}
	}

	if n.attached {
		if err := n.cfg.Peers.DetachRPC(ctx, n.client, true); err != nil {
			n.logger.Warn("rpc detach failed", "error", err)
		}
		n.attached = false
	}

	if n.cfg.Wallet != nil {
		if err := n.cfg.Wallet.Stop(ctx); err != nil {
			n.logger.Warn("failed to stop wallet", "error", err)
		}
		n.drainWallet()
	}

	if n.client != nil {
		if err := n.client.Disconnect(ctx); err != nil {
			n.logger.Debug("rpc disconnect", "error", err)
		}
		n.client = nil
	}

	if n.daemon != nil {
		d := n.daemon
		n.daemon = nil
		n.logger.Info("stopping node daemon", "pid", d.PID())
		if err := d.Stop(ctx); err != nil {
			n.logger.Error("failed to stop node daemon", "pid", d.PID(), "error", err)
		}
	}
}

// drainWallet drops events the wallet emitted for the session just closed.
func (n *NodeService) drainWallet() {
	ch := n.cfg.Wallet.Events()
	for {
		select {
		case ev := <-ch:
			n.logger.Debug("dropping stale wallet event", "event", ev.Name())
		default:
			return
		}
	}
}

// startAllServices brings up the node for ns. Any failure returns the
// service to idle with the error surfaced.
func (n *NodeService) startAllServices(ctx context.Context, ns config.NodeSettings) {
	startedAt := time.Now()

	if ns.Kind == types.NodeKindDisabled {
		n.setState(types.NodeStateDisabled)
		return
	}

	runCtx, cancel := n.abortable(ctx)
	defer cancel()

	if ns.Kind == types.NodeKindIntegratedDaemon {
		n.setState(types.NodeStateStartingDaemon)

		if n.cfg.Launcher == nil {
			n.fail(ErrNoLauncher)
			return
		}
		args, err := DaemonArgs(ns, n.cfg.ArgsOptions)
		if err != nil {
			n.fail(err)
			return
		}
		d, err := n.cfg.Launcher.Launch(runCtx, args)
		if err != nil {
			n.fail(err)
			return
		}
		n.daemon = d

		if err := d.WaitReady(runCtx); err != nil {
			if n.terminated() || ctx.Err() != nil {
				n.logger.Info("start aborted while waiting for the daemon")
				return
			}
			n.fail(fmt.Errorf("%w: %v", runtime.ErrDaemonExited, err))
			return
		}
		n.logger.Info("node daemon ready", "pid", d.PID(), "elapsed", time.Since(startedAt).Round(time.Millisecond))
	}

	n.setState(types.NodeStateConnecting)

	ep, err := n.cfg.Resolver.Resolve(runCtx, ns)
	if err != nil {
		if n.terminated() || ctx.Err() != nil {
			return
		}
		n.fail(err)
		return
	}

	client, err := n.cfg.Factory(ep.URL, ep.Encoding)
	if err != nil {
		n.fail(err)
		return
	}
	n.client = client

	if n.cfg.Wallet != nil {
		if err := n.cfg.Wallet.Bind(client); err != nil {
			n.fail(fmt.Errorf("failed to bind wallet: %w", err))
			return
		}
		if err := n.cfg.Wallet.Start(ctx); err != nil {
			n.fail(fmt.Errorf("failed to start wallet: %w", err))
			return
		}
	}

	if err := n.cfg.Peers.AttachRPC(ctx, client); err != nil {
		n.logger.Warn("rpc attach reported errors", "error", err)
	}
	n.attached = true

	if err := client.Connect(ctx, n.connect); err != nil {
		n.fail(err)
		return
	}

	if n.cfg.Wallet == nil {
		go n.forwardClientStates(client)
	}

	n.logger.Info("node started",
		"kind", ns.Kind,
		"url", ep.URL,
		"elapsed", time.Since(startedAt).Round(time.Millisecond))
}

// forwardClientStates turns client transitions into wallet connection
// events when no wallet subsystem is present.
func (n *NodeService) forwardClientStates(client rpc.Client) {
	for st := range client.States() {
		var ev wallet.Event = wallet.Disconnect{}
		if st.State == rpc.StateConnected {
			ev = wallet.Connect{URL: st.URL, Network: n.Settings().Node.Network}
		}
		n.inbox.Publish(clientState{client: client, ev: ev})
	}
}

// clientState carries a forwarded transition together with its client so
// transitions of a replaced client are ignored.
type clientState struct {
	client rpc.Client
	ev     wallet.Event
}

func (clientState) Kind() string { return "client-state" }

// surface reports err to the user without changing state.
func (n *NodeService) surface(err error) {
	n.logger.Error("node settings rejected", "error", err)
	n.state.SetError(err.Error())
	n.publish(events.NewErrorNotify(err))
}

// fail reports err, tears down whatever started and returns to idle.
func (n *NodeService) fail(err error) {
	n.logger.Error("node start failed", "error", err)
	n.state.SetError(err.Error())
	n.publish(events.NewErrorNotify(err))

	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.StopTimeout)
	defer cancel()
	n.stopAllServices(ctx)
	n.setState(types.NodeStateIdle)
}

func (n *NodeService) daemonCrashed(ctx context.Context) {
	d := n.daemon
	err := fmt.Errorf("%w (pid %d)", runtime.ErrDaemonExited, d.PID())
	if derr := d.Err(); derr != nil {
		err = fmt.Errorf("%w: %v", err, derr)
	}
	n.logger.Error("node daemon exited unexpectedly", "pid", d.PID(), "error", d.Err())

	// The process is gone; stopAllServices only tears down the rest.
	n.daemon = nil
	n.stopAllServices(ctx)
	n.state.SetError(err.Error())
	n.publish(events.NewErrorNotify(err))
	n.setState(types.NodeStateIdle)
}

func (n *NodeService) handleWallet(ctx context.Context, ev wallet.Event) {
	n.publish(events.WalletEvent{Payload: ev})

	switch e := ev.(type) {
	case wallet.Connect:
		if !n.state.SetConnected(e.URL, e.Network) {
			n.logger.Debug("duplicate connect ignored", "url", e.URL)
			return
		}
		n.logger.Info("node connected", "url", e.URL, "network", e.Network)
		n.publish(events.NodeConnected{URL: e.URL, Network: e.Network})
		n.setState(types.NodeStateAttached)
		if err := n.cfg.Peers.ConnectRPC(ctx); err != nil {
			n.logger.Warn("rpc connect fan-out failed", "error", err)
		}

	case wallet.Disconnect:
		if !n.state.SetDisconnected() {
			return
		}
		n.logger.Info("node disconnected")
		n.publish(events.NodeDisconnected{})
		if n.State().State() == types.NodeStateAttached {
			n.setState(types.NodeStateConnecting)
		}
		if err := n.cfg.Peers.DisconnectRPC(ctx); err != nil {
			n.logger.Warn("rpc disconnect fan-out failed", "error", err)
		}

	case wallet.ServerStatus:
		n.state.SetServerStatus(e.ServerVersion, e.IsSynced)
		n.publish(events.ServerStatus{
			Synced:  e.IsSynced,
			Version: e.ServerVersion,
			URL:     e.URL,
			Network: e.Network,
		})

	case wallet.SyncState:
		n.state.SetSyncState(e.State)
		n.publish(events.SyncStateChanged{State: n.state.Snapshot().SyncState})

	case wallet.DaaScoreChange:
		n.state.SetDaaScore(e.Score)
		n.publish(events.DaaScoreChanged{Score: e.Score})

	case wallet.UtxoProcStart:
		if n.cfg.Wallet != nil && n.cfg.Wallet.IsOpen() {
			if err := n.cfg.Wallet.Reload(ctx, false); err != nil {
				n.logger.Warn("wallet reload failed", "error", err)
			}
		}

	case wallet.Balance:
		n.state.SetBalance(types.Balance{Mature: e.Mature, Pending: e.Pending})

	case wallet.Discovery:
		n.state.AddDiscoveredUTXOs(uint64(e.Count))

	case wallet.Maturity:
		n.notifyMaturity(e.Record)
	}
}

func (n *NodeService) notifyMaturity(r wallet.Record) {
	if r.IsChange {
		return
	}
	if r.IsCoinbase && !n.Settings().UserInterface.EnableCoinbaseNotifications {
		return
	}

	severity := types.SeveritySuccess
	msg := fmt.Sprintf("Received %s WALA", FormatSompi(r.Value))
	if r.IsCoinbase {
		severity = types.SeverityInfo
		msg = fmt.Sprintf("Mined %s WALA", FormatSompi(r.Value))
	}
	n.publish(events.NewNotify(msg, severity, events.NotifyShort))
}

// applyMetric mirrors an event from another service into NodeState and
// forwards it.
func (n *NodeService) applyMetric(ctx context.Context, e events.Event) {
	switch ev := e.(type) {
	case clientState:
		if ev.client != n.client {
			return
		}
		n.handleWallet(ctx, ev.ev)
		return
	case events.BlockRewardUpdate:
		n.state.SetBlockReward(ev.Sompi)
	case events.CoinSupplyUpdate:
		n.state.SetSupply(ev.Circulating, ev.Max)
	case events.HashrateUpdate:
		n.state.SetHashrate(ev.HashesPerSecond)
	case events.DifficultyUpdate:
		n.state.SetDifficulty(ev.Difficulty)
	case events.MempoolSize:
		n.state.SetMempoolSize(ev.Count)
	case events.PeerCount:
		n.state.SetPeerCount(ev.Count)
	case events.NetworkTPSUpdate:
		n.state.SetNetworkTPS(ev.TPS)
	case events.StorageUpdate:
		n.state.SetStorage(ev.Info)
	}
	n.publish(e)
}

func (n *NodeService) setState(st types.NodeServiceState) {
	if n.state.State() == st {
		return
	}
	n.logger.Debug("node state", "from", n.state.State(), "to", st)
	n.state.SetState(st)
	n.publish(events.NodeStateChanged{State: st})
}

func (n *NodeService) publish(e events.Event) {
	n.cfg.Metrics.Observe(e)
	n.cfg.Bus.Publish(e)
}

func (n *NodeService) trackStorage(ns config.NodeSettings) {
	if n.cfg.Storage == nil {
		return
	}
	dir := n.cfg.DefaultDataDir
	if ns.DataDirEnable && strings.TrimSpace(ns.DataDir) != "" {
		dir = strings.TrimSpace(ns.DataDir)
	}
	n.cfg.Storage.TrackStorageRoot(dir)
}

// FormatSompi renders an amount in sompi as coins with up to eight
// decimals, trailing zeros trimmed.
func FormatSompi(v uint64) string {
	whole := v / subsidy.SompiPerCoin
	frac := v % subsidy.SompiPerCoin
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	return strings.TrimRight(fmt.Sprintf("%d.%08d", whole, frac), "0")
}
