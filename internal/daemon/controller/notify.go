package controller

import (
	"sync"
	"time"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/events"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

var (
	defaultMu  sync.RWMutex
	defaultSup *Supervisor
)

// InstallDefault makes s reachable through Notify. Installing a second
// supervisor is a programming error and panics.
func InstallDefault(s *Supervisor) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultSup != nil && defaultSup != s {
		panic("controller: a supervisor is already installed")
	}
	defaultSup = s
}

// UninstallDefault clears the installed supervisor.
func UninstallDefault() {
	defaultMu.Lock()
	defaultSup = nil
	defaultMu.Unlock()
}

// Default returns the installed supervisor, or nil.
func Default() *Supervisor {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultSup
}

// Notify publishes a notification through the installed supervisor. It
// reports false when none is installed.
func Notify(message string, severity types.Severity, duration time.Duration) bool {
	s := Default()
	if s == nil {
		return false
	}
	s.Notify(events.NewNotify(message, severity, duration))
	return true
}

// NotifyError publishes err as an error notification.
func NotifyError(err error) bool {
	s := Default()
	if s == nil {
		return false
	}
	s.Notify(events.NewErrorNotify(err))
	return true
}
