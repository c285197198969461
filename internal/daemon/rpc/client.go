// Package rpc defines the node RPC capability interface used by every
// service, the typed node calls, and the bundled wRPC transport.
package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

// Kind identifies a transport implementation.
type Kind string

const (
	KindWrpc Kind = "wrpc"
)

// Strategy selects the reconnect behaviour.
type Strategy int

const (
	// StrategyFallback tries once and reports failure.
	StrategyFallback Strategy = iota
	// StrategyRetry keeps reconnecting at RetryInterval until Disconnect.
	StrategyRetry
)

// DefaultRetryInterval is the reconnect interval of StrategyRetry.
const DefaultRetryInterval = 3000 * time.Millisecond

// ConnectOptions control Connect.
type ConnectOptions struct {
	Strategy      Strategy
	RetryInterval time.Duration
	// Block makes Connect wait for the first connection.
	Block bool
}

// DefaultConnectOptions returns the supervisor policy: retry every 3000 ms
// without blocking.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		Strategy:      StrategyRetry,
		RetryInterval: DefaultRetryInterval,
		Block:         false,
	}
}

// State is a connection state transition.
type State int

const (
	StateDisconnected State = iota
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// StateEvent reports a transition of the client connection.
type StateEvent struct {
	State State
	URL   string
}

// Client is the capability interface services share. Implementations are
// safe for concurrent use.
type Client interface {
	Kind() Kind
	URL() string
	Encoding() types.Encoding

	// Connect starts connecting according to opts.
	Connect(ctx context.Context, opts ConnectOptions) error
	// Disconnect closes the connection and stops reconnecting. The client
	// cannot be reused.
	Disconnect(ctx context.Context) error
	IsConnected() bool
	// States delivers connection transitions to a single consumer.
	States() <-chan StateEvent

	// Call invokes method with params and decodes the answer into result.
	Call(ctx context.Context, method string, params, result any) error
}

// Factory creates a client for a resolved endpoint.
type Factory func(url string, encoding types.Encoding) (Client, error)

// FactoryConfig configures NewFactory.
type FactoryConfig struct {
	CallTimeout      time.Duration
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// NewFactory returns the transport selection for the bundled clients. JSON
// endpoints get a wRPC client; Borsh needs a codec this build does not ship.
func NewFactory(cfg FactoryConfig) Factory {
	return func(url string, encoding types.Encoding) (Client, error) {
		if err := CheckEncoding(encoding); err != nil {
			return nil, err
		}
		return NewWrpcClient(WrpcConfig{
			URL:              url,
			CallTimeout:      cfg.CallTimeout,
			HandshakeTimeout: cfg.HandshakeTimeout,
			Logger:           cfg.Logger,
		}), nil
	}
}

// CheckEncoding reports whether the bundled factory can create a client
// for encoding. Failures wrap ErrUnsupportedEncoding.
func CheckEncoding(encoding types.Encoding) error {
	if encoding == types.EncodingJSON {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedEncoding, encoding)
}
