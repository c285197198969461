package rpc

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Call while the client has no connection.
	ErrNotConnected = errors.New("rpc client is not connected")
	// ErrClientClosed is returned after Disconnect.
	ErrClientClosed = errors.New("rpc client is closed")
	// ErrUnsupportedEncoding is returned by the factory for an encoding
	// without a registered codec.
	ErrUnsupportedEncoding = errors.New("unsupported wRPC encoding")
)

// RPCError is returned when the node answers a call with an error.
type RPCError struct {
	Method  string
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC %s failed: %s", e.Method, e.Message)
}

// ConnectionError is returned when a connection attempt fails.
type ConnectionError struct {
	Endpoint string
	Message  string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %s", e.Endpoint, e.Message)
}

// IsConnectionError reports whether err is a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// TimeoutError is returned when a call gets no answer in time.
type TimeoutError struct {
	Method   string
	Duration string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Method, e.Duration)
}
