package wallet

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/rpc"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

// Monitor defaults.
const (
	DefaultPollInterval     = 2 * time.Second
	DefaultCoinbaseMaturity = 1000
	DefaultUserMaturity     = 100
	eventBuffer             = 256
)

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	PollInterval time.Duration
	// Addresses are watched once the wallet is opened.
	Addresses []string
	// Maturity depths in DAA score units.
	CoinbaseMaturity uint64
	UserMaturity     uint64
	Logger           *slog.Logger
}

// Monitor is an RPC-only wallet: it derives connection, sync and server
// status from the bound client and, while open, tracks the UTXOs of a set
// of watch addresses.
type Monitor struct {
	cfg    MonitorConfig
	logger *slog.Logger
	events chan Event

	mu        sync.Mutex
	client    rpc.Client
	addresses []string
	open      bool
	cancel    context.CancelFunc
	done      chan struct{}
	reloadCh  chan struct{}
}

type trackedUtxo struct {
	entry  rpc.UtxoEntry
	mature bool
}

// NewMonitor creates a stopped, closed Monitor.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.CoinbaseMaturity == 0 {
		cfg.CoinbaseMaturity = DefaultCoinbaseMaturity
	}
	if cfg.UserMaturity == 0 {
		cfg.UserMaturity = DefaultUserMaturity
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		cfg:       cfg,
		logger:    logger.With("component", "wallet"),
		events:    make(chan Event, eventBuffer),
		addresses: cfg.Addresses,
		reloadCh:  make(chan struct{}, 1),
	}
}

var _ API = (*Monitor)(nil)

func (m *Monitor) Events() <-chan Event {
	return m.events
}

func (m *Monitor) Bind(client rpc.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return ErrRunning
	}
	m.client = client
	return nil
}

// Open starts watching addresses. An empty list keeps the configured ones.
func (m *Monitor) Open(addresses []string) {
	m.mu.Lock()
	if len(addresses) > 0 {
		m.addresses = addresses
	}
	m.open = true
	m.mu.Unlock()
	m.requestReload()
}

// Close stops watching addresses.
func (m *Monitor) Close() {
	m.mu.Lock()
	m.open = false
	m.mu.Unlock()
}

func (m *Monitor) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *Monitor) Reload(_ context.Context, reactivate bool) error {
	m.logger.Debug("wallet reload requested", "reactivate", reactivate)
	m.requestReload()
	return nil
}

func (m *Monitor) requestReload() {
	select {
	case m.reloadCh <- struct{}{}:
	default:
	}
}

func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return ErrNotBound
	}
	if m.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(runCtx, m.client, m.done)

	m.logger.Debug("wallet started", "url", m.client.URL())
	return nil
}

func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// session is the per-connection view of the node.
type session struct {
	connected bool
	url       string
	status    ServerStatus
	sync      types.SyncState
	daa       uint64
	utxoProc  bool
	utxos     map[rpc.Outpoint]*trackedUtxo
	scanned   bool
	balance   Balance
}

func (m *Monitor) run(ctx context.Context, client rpc.Client, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	s := &session{}
	states := client.States()

	for {
		select {
		case <-ctx.Done():
			if s.connected {
				m.closeSession(ctx, s)
			}
			return

		case ev, ok := <-states:
			if !ok {
				return
			}
			switch ev.State {
			case rpc.StateConnected:
				if s.connected {
					continue
				}
				s = &session{connected: true, url: ev.URL}
				m.openSession(ctx, client, s)
			case rpc.StateDisconnected:
				if s.connected {
					m.closeSession(ctx, s)
					s = &session{}
				}
			}

		case <-ticker.C:
			if s.connected {
				m.poll(ctx, client, s)
			}

		case <-m.reloadCh:
			if s.connected && s.utxoProc {
				s.utxos = nil
				s.scanned = false
				m.scanUtxos(ctx, client, s)
			}
		}
	}
}

func (m *Monitor) openSession(ctx context.Context, client rpc.Client, s *session) {
	network := types.NetworkMainnet
	info, err := rpc.GetServerInfo(ctx, client)
	if err != nil {
		m.logger.Warn("getServerInfo failed after connect", "error", err)
	} else {
		network = types.ParseNetworkID(info.NetworkID)
	}

	m.emit(ctx, Connect{URL: s.url, Network: network})
	if info != nil {
		m.applyServerInfo(ctx, client, s, info)
	}
}

func (m *Monitor) closeSession(ctx context.Context, s *session) {
	if s.utxoProc {
		m.emit(ctx, UtxoProcStop{})
	}
	m.emit(ctx, Disconnect{})
}

func (m *Monitor) poll(ctx context.Context, client rpc.Client, s *session) {
	info, err := rpc.GetServerInfo(ctx, client)
	if err != nil {
		m.logger.Debug("getServerInfo failed", "error", err)
		return
	}
	m.applyServerInfo(ctx, client, s, info)
}

func (m *Monitor) applyServerInfo(ctx context.Context, client rpc.Client, s *session, info *rpc.ServerInfo) {
	status := ServerStatus{
		IsSynced:      info.IsSynced,
		ServerVersion: info.ServerVersion,
		URL:           s.url,
		Network:       types.ParseNetworkID(info.NetworkID),
	}
	if status != s.status {
		s.status = status
		m.emit(ctx, status)
	}

	if info.VirtualDaa != s.daa {
		s.daa = info.VirtualDaa
		m.emit(ctx, DaaScoreChange{Score: info.VirtualDaa})
	}

	state := types.SyncState{Phase: types.SyncSynced}
	if !info.IsSynced {
		state = m.syncProgress(ctx, client)
	}
	if state != s.sync {
		s.sync = state
		m.emit(ctx, SyncState{State: state})
	}

	if info.IsSynced && !s.utxoProc {
		s.utxoProc = true
		m.emit(ctx, UtxoProcStart{})
	}

	if s.utxoProc {
		m.scanUtxos(ctx, client, s)
	}
}

// syncProgress estimates the sync phase from header and block counts.
func (m *Monitor) syncProgress(ctx context.Context, client rpc.Client) types.SyncState {
	dag, err := rpc.GetBlockDagInfo(ctx, client)
	if err != nil {
		m.logger.Debug("getBlockDagInfo failed", "error", err)
		return types.SyncState{Phase: types.SyncUnknown}
	}
	if dag.HeaderCount == 0 {
		return types.SyncState{Phase: types.SyncProof}
	}
	if dag.BlockCount < dag.HeaderCount {
		progress := float64(dag.BlockCount) / float64(dag.HeaderCount) * 100
		return types.SyncState{Phase: types.SyncBlocks, Progress: float64(int(progress*100)) / 100}
	}
	return types.SyncState{Phase: types.SyncHeaders}
}

func (m *Monitor) scanUtxos(ctx context.Context, client rpc.Client, s *session) {
	m.mu.Lock()
	open := m.open
	addresses := append([]string(nil), m.addresses...)
	m.mu.Unlock()

	if !open || len(addresses) == 0 {
		return
	}

	entries, err := rpc.GetUtxosByAddresses(ctx, client, addresses)
	if err != nil {
		m.logger.Debug("getUtxosByAddresses failed", "error", err)
		return
	}

	if s.utxos == nil {
		s.utxos = make(map[rpc.Outpoint]*trackedUtxo)
	}

	seen := make(map[rpc.Outpoint]bool, len(entries))
	discovered := 0
	for _, e := range entries {
		seen[e.Outpoint] = true
		if _, ok := s.utxos[e.Outpoint]; ok {
			continue
		}
		// Outputs already mature at the first scan are history, not news.
		s.utxos[e.Outpoint] = &trackedUtxo{
			entry:  e.UtxoEntry,
			mature: !s.scanned && m.isMature(e.UtxoEntry, s.daa),
		}
		discovered++
	}
	for op := range s.utxos {
		if !seen[op] {
			delete(s.utxos, op)
		}
	}

	if discovered > 0 {
		m.emit(ctx, Discovery{Count: discovered})
	}

	var balance Balance
	for op, u := range s.utxos {
		if !u.mature && m.isMature(u.entry, s.daa) {
			u.mature = true
			m.emit(ctx, Maturity{Record: Record{
				ID:         op.TransactionID,
				Value:      u.entry.Amount,
				DaaScore:   u.entry.BlockDaaScore,
				IsCoinbase: u.entry.IsCoinbase,
			}})
		}
		if u.mature {
			balance.Mature += u.entry.Amount
		} else {
			balance.Pending += u.entry.Amount
		}
	}

	if !s.scanned || balance != s.balance {
		s.balance = balance
		m.emit(ctx, balance)
	}
	s.scanned = true
}

func (m *Monitor) isMature(e rpc.UtxoEntry, daa uint64) bool {
	depth := m.cfg.UserMaturity
	if e.IsCoinbase {
		depth = m.cfg.CoinbaseMaturity
	}
	return daa >= e.BlockDaaScore+depth
}

func (m *Monitor) emit(ctx context.Context, ev Event) {
	select {
	case m.events <- ev:
	case <-ctx.Done():
		// Teardown events still go out if there is room.
		select {
		case m.events <- ev:
		default:
			m.logger.Warn("dropping wallet event during shutdown", "event", ev.Name())
		}
	}
}
