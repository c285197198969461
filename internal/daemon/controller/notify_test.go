package controller

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/events"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

func TestNotifyWithoutSupervisor(t *testing.T) {
	UninstallDefault()
	assert.Nil(t, Default())
	assert.False(t, Notify("hello", types.SeverityInfo, events.NotifyShort))
	assert.False(t, NotifyError(errors.New("boom")))
}

func TestNotifyThroughInstalledSupervisor(t *testing.T) {
	sup, bus := newTestSupervisor(t, nil)
	InstallDefault(sup)
	t.Cleanup(UninstallDefault)

	// Installing the same supervisor again is harmless.
	InstallDefault(sup)
	assert.Same(t, sup, Default())

	require.True(t, Notify("Synced", types.SeveritySuccess, events.NotifyShort))
	boom := errors.New("boom")
	require.True(t, NotifyError(boom))

	evs := bus.Drain()
	require.Len(t, evs, 2)

	first := evs[0].(events.Notify)
	assert.Equal(t, "Synced", first.Message)
	assert.Equal(t, types.SeveritySuccess, first.Severity)
	assert.Equal(t, events.NotifyShort, first.Duration)
	assert.NotEmpty(t, first.ID)

	second := evs[1].(events.Notify)
	assert.Equal(t, types.SeverityError, second.Severity)
	assert.ErrorIs(t, second.Err, boom)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestInstallDefaultTwicePanics(t *testing.T) {
	first, _ := newTestSupervisor(t, nil)
	second, _ := newTestSupervisor(t, nil)
	InstallDefault(first)
	t.Cleanup(UninstallDefault)

	assert.Panics(t, func() { InstallDefault(second) })
	assert.Same(t, first, Default())
}
