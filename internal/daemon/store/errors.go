package store

import "errors"

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("history store closed")
)
