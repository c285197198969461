package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/config"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/endpoint"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/events"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/rpc"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/runtime"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/wallet"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder keeps the calls made on every fake in one ordered log.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(call string) int {
	n := 0
	for _, c := range r.list() {
		if c == call {
			n++
		}
	}
	return n
}

// index returns the position of the first occurrence of call, or -1.
func (r *recorder) index(call string) int {
	for i, c := range r.list() {
		if c == call {
			return i
		}
	}
	return -1
}

// filter returns the calls that are one of names, in order.
func (r *recorder) filter(names ...string) []string {
	var out []string
	for _, c := range r.list() {
		for _, n := range names {
			if c == n {
				out = append(out, c)
			}
		}
	}
	return out
}

type fakeDaemon struct {
	pid       int
	rec       *recorder
	ready     chan struct{}
	done      chan struct{}
	once      sync.Once
	err       error
	stopDelay time.Duration
}

func (d *fakeDaemon) PID() int              { return d.pid }
func (d *fakeDaemon) Done() <-chan struct{} { return d.done }
func (d *fakeDaemon) Err() error            { return d.err }

func (d *fakeDaemon) WaitReady(ctx context.Context) error {
	select {
	case <-d.ready:
		return nil
	case <-d.done:
		return runtime.ErrProcessExited
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *fakeDaemon) Stop(context.Context) error {
	if d.stopDelay > 0 {
		time.Sleep(d.stopDelay)
	}
	d.rec.add("daemon-stop")
	d.exit(nil)
	return nil
}

func (d *fakeDaemon) exit(err error) {
	d.once.Do(func() {
		d.err = err
		close(d.done)
	})
}

type fakeLauncher struct {
	rec       *recorder
	autoReady bool
	err       error
	stopDelay time.Duration

	mu      sync.Mutex
	args    [][]string
	daemons []*fakeDaemon
}

func (l *fakeLauncher) Launch(_ context.Context, args []string) (runtime.Daemon, error) {
	l.rec.add("daemon-launch")
	if l.err != nil {
		return nil, l.err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	d := &fakeDaemon{
		pid:       1000 + len(l.daemons),
		rec:       l.rec,
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
		stopDelay: l.stopDelay,
	}
	if l.autoReady {
		close(d.ready)
	}
	l.args = append(l.args, args)
	l.daemons = append(l.daemons, d)
	return d, nil
}

func (l *fakeLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.daemons)
}

func (l *fakeLauncher) last() *fakeDaemon {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.daemons) == 0 {
		return nil
	}
	return l.daemons[len(l.daemons)-1]
}

func (l *fakeLauncher) lastArgs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.args) == 0 {
		return nil
	}
	return l.args[len(l.args)-1]
}

// fakeClient answers calls from a response table.
type fakeClient struct {
	url  string
	enc  types.Encoding
	kind rpc.Kind
	rec  *recorder

	connected atomic.Bool
	states    chan rpc.StateEvent
	closeOnce sync.Once

	mu        sync.Mutex
	responses map[string]any
	failing   map[string]bool
}

func newFakeClient(url string, enc types.Encoding, rec *recorder) *fakeClient {
	return &fakeClient{
		url:       url,
		enc:       enc,
		kind:      rpc.KindWrpc,
		rec:       rec,
		states:    make(chan rpc.StateEvent, 8),
		responses: map[string]any{},
		failing:   map[string]bool{},
	}
}

func (c *fakeClient) Kind() rpc.Kind                { return c.kind }
func (c *fakeClient) URL() string                   { return c.url }
func (c *fakeClient) Encoding() types.Encoding      { return c.enc }
func (c *fakeClient) IsConnected() bool             { return c.connected.Load() }
func (c *fakeClient) States() <-chan rpc.StateEvent { return c.states }

func (c *fakeClient) Connect(context.Context, rpc.ConnectOptions) error {
	if c.rec != nil {
		c.rec.add("client-connect")
	}
	c.connected.Store(true)
	c.emit(rpc.StateConnected)
	return nil
}

func (c *fakeClient) Disconnect(context.Context) error {
	if c.rec != nil {
		c.rec.add("client-disconnect")
	}
	if c.connected.Swap(false) {
		c.emit(rpc.StateDisconnected)
	}
	c.closeOnce.Do(func() { close(c.states) })
	return nil
}

func (c *fakeClient) emit(st rpc.State) {
	select {
	case c.states <- rpc.StateEvent{State: st, URL: c.url}:
	default:
	}
}

func (c *fakeClient) set(method string, v any) {
	c.mu.Lock()
	c.responses[method] = v
	c.mu.Unlock()
}

func (c *fakeClient) fail(method string) {
	c.mu.Lock()
	c.failing[method] = true
	c.mu.Unlock()
}

func (c *fakeClient) Call(_ context.Context, method string, _, result any) error {
	c.mu.Lock()
	v, ok := c.responses[method]
	failing := c.failing[method]
	c.mu.Unlock()

	if failing || !ok {
		return &rpc.RPCError{Method: method, Message: "unavailable"}
	}
	if result == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

type fakeFactory struct {
	rec *recorder

	mu      sync.Mutex
	clients []*fakeClient
}

func (f *fakeFactory) create(url string, enc types.Encoding) (rpc.Client, error) {
	f.rec.add("client-create")
	c := newFakeClient(url, enc, f.rec)
	f.mu.Lock()
	f.clients = append(f.clients, c)
	f.mu.Unlock()
	return c, nil
}

func (f *fakeFactory) last() *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clients) == 0 {
		return nil
	}
	return f.clients[len(f.clients)-1]
}

// fakeWallet reports Connect as soon as it starts and Disconnect when it
// stops, like a wallet whose node answers immediately.
type fakeWallet struct {
	rec     *recorder
	network types.Network
	events  chan wallet.Event

	mu      sync.Mutex
	client  rpc.Client
	running bool
	open    bool
	reloads int
}

func newFakeWallet(rec *recorder) *fakeWallet {
	return &fakeWallet{
		rec:     rec,
		network: types.NetworkMainnet,
		events:  make(chan wallet.Event, 64),
	}
}

func (w *fakeWallet) Bind(client rpc.Client) error {
	w.rec.add("wallet-bind")
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return wallet.ErrRunning
	}
	w.client = client
	return nil
}

func (w *fakeWallet) Start(context.Context) error {
	w.rec.add("wallet-start")
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client == nil {
		return wallet.ErrNotBound
	}
	w.running = true
	w.events <- wallet.Connect{URL: w.client.URL(), Network: w.network}
	return nil
}

func (w *fakeWallet) Stop(context.Context) error {
	w.rec.add("wallet-stop")
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		w.running = false
		w.events <- wallet.Disconnect{}
	}
	return nil
}

func (w *fakeWallet) Events() <-chan wallet.Event { return w.events }

func (w *fakeWallet) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

func (w *fakeWallet) setOpen(open bool) {
	w.mu.Lock()
	w.open = open
	w.mu.Unlock()
}

func (w *fakeWallet) Reload(context.Context, bool) error {
	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()
	return nil
}

func (w *fakeWallet) reloadCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// fakePeer records the RPC hooks it receives.
type fakePeer struct {
	*lifecycle
	name        string
	rec         *recorder
	attachDelay time.Duration
}

func newFakePeer(name string, rec *recorder) *fakePeer {
	return &fakePeer{lifecycle: newLifecycle(), name: name, rec: rec}
}

func (p *fakePeer) Name() string { return p.name }

func (p *fakePeer) Launch(ctx context.Context) error {
	defer p.finish()
	select {
	case <-p.terminate:
	case <-ctx.Done():
	}
	return nil
}

func (p *fakePeer) RPCAttach(context.Context, rpc.Client) error {
	if p.attachDelay > 0 {
		time.Sleep(p.attachDelay)
	}
	p.rec.add("attach:%s", p.name)
	return nil
}

func (p *fakePeer) RPCDetach(context.Context) error {
	p.rec.add("detach:%s", p.name)
	return nil
}

func (p *fakePeer) RPCConnect(context.Context) error {
	p.rec.add("connect:%s", p.name)
	return nil
}

func (p *fakePeer) RPCDisconnect(context.Context) error {
	p.rec.add("disconnect:%s", p.name)
	return nil
}

type recordingBridge struct {
	mu       sync.Mutex
	enabled  []bool
	settings []config.BridgeSettings
}

func (b *recordingBridge) SetEnabled(enabled bool) {
	b.mu.Lock()
	b.enabled = append(b.enabled, enabled)
	b.mu.Unlock()
}

func (b *recordingBridge) Configure(s config.BridgeSettings) {
	b.mu.Lock()
	b.settings = append(b.settings, s)
	b.mu.Unlock()
}

func (b *recordingBridge) toggles() []bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bool(nil), b.enabled...)
}

func (b *recordingBridge) last() config.BridgeSettings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settings[len(b.settings)-1]
}

type recordingStorage struct {
	mu    sync.Mutex
	roots []string
}

func (s *recordingStorage) TrackStorageRoot(path string) {
	s.mu.Lock()
	s.roots = append(s.roots, path)
	s.mu.Unlock()
}

func (s *recordingStorage) paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.roots...)
}

// harness wires a supervisor with a Node Service over fakes, a recording
// peer and a fast Stats Service.
type harness struct {
	t        *testing.T
	bus      *events.Bus
	sup      *Supervisor
	node     *NodeService
	stats    *StatsService
	peer     *fakePeer
	rec      *recorder
	launcher *fakeLauncher
	factory  *fakeFactory
	wallet   *fakeWallet
	seen     []events.Event
}

type harnessOption func(*NodeServiceConfig)

func newHarness(t *testing.T, settings *config.Settings, opts ...harnessOption) *harness {
	t.Helper()

	rec := &recorder{}
	bus := events.NewBus()
	h := &harness{
		t:        t,
		bus:      bus,
		rec:      rec,
		launcher: &fakeLauncher{rec: rec, autoReady: true},
		factory:  &fakeFactory{rec: rec},
		wallet:   newFakeWallet(rec),
		peer:     newFakePeer("peer", rec),
	}
	h.sup = NewSupervisor(SupervisorConfig{Bus: bus, Logger: testLogger()})

	cfg := NodeServiceConfig{
		Settings: settings,
		Launcher: h.launcher,
		Resolver: endpoint.NewResolver(endpoint.Config{Logger: testLogger()}),
		Factory:  h.factory.create,
		Wallet:   h.wallet,
		Peers:    h.sup,
		Bus:      bus,
		// The fake factory serves every encoding.
		CheckEncoding: func(types.Encoding) error { return nil },
		ArgsOptions: DaemonArgsOptions{
			UAComment:   "wagsup-test",
			TotalMemory: func() uint64 { return 32 << 30 },
		},
		StopTimeout: 5 * time.Second,
		Logger:      testLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.node = NewNodeService(cfg)
	h.stats = NewStatsService(StatsServiceConfig{
		Interval: 10 * time.Millisecond,
		Bus:      h.node,
		Logger:   testLogger(),
	})

	require.NoError(t, h.sup.Register(h.node))
	require.NoError(t, h.sup.Register(h.stats))
	require.NoError(t, h.sup.Register(h.peer))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.sup.Start(ctx))
	t.Cleanup(func() {
		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		_ = h.sup.Shutdown(sctx)
		cancel()
	})
	return h
}

// apply sends a modified copy of the node's current settings.
func (h *harness) apply(mutate func(s *config.Settings)) {
	s := h.node.Settings()
	mutate(&s)
	h.node.ApplyNodeSettings(&s)
}

// waitEvent receives bus events until match returns true and returns the
// matching event. Every received event is kept in h.seen.
func (h *harness) waitEvent(what string, match func(events.Event) bool) events.Event {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		e, err := h.bus.Recv(ctx)
		if err != nil {
			h.t.Fatalf("waiting for %s: %v (seen %s)", what, err, h.kinds())
			return nil
		}
		h.seen = append(h.seen, e)
		if match(e) {
			return e
		}
	}
}

func (h *harness) kinds() string {
	var out []string
	for _, e := range h.seen {
		out = append(out, e.Kind())
	}
	return strings.Join(out, ",")
}

func isKind(kind string) func(events.Event) bool {
	return func(e events.Event) bool { return e.Kind() == kind }
}

func isState(st types.NodeServiceState) func(events.Event) bool {
	return func(e events.Event) bool {
		ev, ok := e.(events.NodeStateChanged)
		return ok && ev.State == st
	}
}

// fixedResolver points every enabled node kind at one JSON endpoint.
type fixedResolver struct{ url string }

func (r fixedResolver) Resolve(_ context.Context, ns config.NodeSettings) (*endpoint.Endpoint, error) {
	if ns.Kind == types.NodeKindDisabled {
		return nil, nil
	}
	return &endpoint.Endpoint{URL: r.url, Encoding: types.EncodingJSON}, nil
}

// newRefusingNode serves a websocket endpoint that answers every wRPC
// request with an error. It returns the ws:// URL.
func newRefusingNode(t *testing.T) string {
	t.Helper()
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req struct {
				ID uint64 `json:"id"`
			}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := map[string]any{"id": req.ID, "error": map[string]string{"message": "unavailable"}}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func integratedSettings(t *testing.T) *config.Settings {
	s := config.DefaultSettings()
	s.Node.Kind = types.NodeKindIntegratedDaemon
	s.Node.DataDirEnable = true
	s.Node.DataDir = t.TempDir() + "/data"
	s.Node.EnableGrpc = false
	s.Node.EnableWrpcBorsh = true
	return s
}
