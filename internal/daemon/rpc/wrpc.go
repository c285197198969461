package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

// Client defaults.
const (
	DefaultCallTimeout      = 30 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

// WrpcConfig configures a WrpcClient.
type WrpcConfig struct {
	URL              string
	CallTimeout      time.Duration
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// WrpcClient is a wRPC client using JSON frames over a websocket. Requests
// carry an id that the node echoes in the response; frames without an id
// are notifications and are ignored.
type WrpcClient struct {
	url         string
	callTimeout time.Duration
	dialer      *websocket.Dialer
	logger      *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	pending   map[uint64]chan wrpcFrame
	started   bool
	closed    bool
	stopCh    chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	writeMu   sync.Mutex
	nextID    atomic.Uint64
	connected atomic.Bool
	states    chan StateEvent
}

type wrpcRequest struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

type wrpcFrame struct {
	ID     *uint64         `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Error  *wrpcError      `json:"error,omitempty"`
}

type wrpcError struct {
	Message string `json:"message"`
}

// NewWrpcClient creates a client. No connection is made until Connect.
func NewWrpcClient(cfg WrpcConfig) *WrpcClient {
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &WrpcClient{
		url:         cfg.URL,
		callTimeout: cfg.CallTimeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger:  logger.With("component", "wrpc", "url", cfg.URL),
		pending: make(map[uint64]chan wrpcFrame),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
		states:  make(chan StateEvent, 16),
	}
}

var _ Client = (*WrpcClient)(nil)

func (c *WrpcClient) Kind() Kind               { return KindWrpc }
func (c *WrpcClient) URL() string              { return c.url }
func (c *WrpcClient) Encoding() types.Encoding { return types.EncodingJSON }
func (c *WrpcClient) IsConnected() bool        { return c.connected.Load() }

// States is closed once Disconnect has stopped the connection loop.
func (c *WrpcClient) States() <-chan StateEvent {
	return c.states
}

// Connect starts the connection loop. With opts.Block it returns once the
// first connection is up, or with the dial error under StrategyFallback.
func (c *WrpcClient) Connect(ctx context.Context, opts ConnectOptions) error {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.wg.Add(1)
	c.mu.Unlock()

	var first chan error
	if opts.Block {
		first = make(chan error, 1)
	}

	go c.run(opts, first)

	if first == nil {
		return nil
	}
	select {
	case err := <-first:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run dials, serves the connection until it drops, and redials under
// StrategyRetry until Disconnect.
func (c *WrpcClient) run(opts ConnectOptions, first chan error) {
	defer c.wg.Done()

	report := func(err error) {
		if first != nil {
			first <- err
			first = nil
		}
	}

	for {
		conn, err := c.dial()
		if err != nil {
			c.logger.Debug("wRPC dial failed", "error", err)
			if opts.Strategy != StrategyRetry {
				report(err)
				return
			}
			if !c.sleep(opts.RetryInterval) {
				return
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.connected.Store(true)
		c.logger.Info("wRPC connected")
		c.emit(StateEvent{State: StateConnected, URL: c.url})
		report(nil)

		err = c.readLoop(conn)

		c.connected.Store(false)
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.failPending(err)
		c.logger.Info("wRPC disconnected", "error", err)
		c.emit(StateEvent{State: StateDisconnected, URL: c.url})

		if opts.Strategy != StrategyRetry {
			return
		}
		if !c.sleep(opts.RetryInterval) {
			return
		}
	}
}

func (c *WrpcClient) dial() (*websocket.Conn, error) {
	conn, resp, err := c.dialer.Dial(c.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, &ConnectionError{Endpoint: c.url, Message: err.Error()}
	}
	return conn, nil
}

// sleep waits d and reports false if the client was disconnected meanwhile.
func (c *WrpcClient) sleep(d time.Duration) bool {
	select {
	case <-c.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

func (c *WrpcClient) emit(ev StateEvent) {
	select {
	case c.states <- ev:
	case <-c.stopCh:
	}
}

func (c *WrpcClient) readLoop(conn *websocket.Conn) error {
	for {
		var frame wrpcFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		if frame.ID == nil {
			c.logger.Debug("ignoring notification", "method", frame.Method)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[*frame.ID]
		delete(c.pending, *frame.ID)
		c.mu.Unlock()

		if ok {
			ch <- frame
		}
	}
}

func (c *WrpcClient) failPending(err error) {
	msg := "connection closed"
	if err != nil {
		msg = err.Error()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- wrpcFrame{ID: &id, Error: &wrpcError{Message: msg}}
		delete(c.pending, id)
	}
}

// Call sends a request and waits for its response.
func (c *WrpcClient) Call(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	conn := c.conn
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	id := c.nextID.Add(1)
	ch := make(chan wrpcFrame, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := conn.WriteJSON(wrpcRequest{ID: id, Method: method, Params: params})
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return &RPCError{Method: method, Message: err.Error()}
	}

	timer := time.NewTimer(c.callTimeout)
	defer timer.Stop()

	select {
	case frame := <-ch:
		if frame.Error != nil {
			return &RPCError{Method: method, Message: frame.Error.Message}
		}
		if result == nil || len(frame.Params) == 0 {
			return nil
		}
		if err := json.Unmarshal(frame.Params, result); err != nil {
			return &RPCError{Method: method, Message: fmt.Sprintf("decode response: %v", err)}
		}
		return nil
	case <-timer.C:
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return &TimeoutError{Method: method, Duration: c.callTimeout.String()}
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	}
}

// Disconnect closes the connection, stops the reconnect loop and closes
// the States channel once the loop has exited.
func (c *WrpcClient) Disconnect(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		conn := c.conn
		c.mu.Unlock()

		close(c.stopCh)
		if conn != nil {
			c.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			c.writeMu.Unlock()
			conn.Close()
		}

		// No run loop can start after closed is set, so the wait is final.
		go func() {
			c.wg.Wait()
			close(c.states)
			close(c.stopped)
		}()
	})

	select {
	case <-c.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
