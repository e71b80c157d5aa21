package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	photoprogress "github.com/aman-oss/photoidx/internal/progress"
)

func TestWatchModelAppliesStatusAndDetectsTerminal(t *testing.T) {
	m := newWatchModel(t.TempDir(), true)

	m.applyStatus(photoprogress.Status{
		Kind: photoprogress.KindIndexing, State: photoprogress.StateRunning,
		UpdatedTotal: 10, InsertTotal: 0,
	})
	assert.True(t, m.found)
	assert.False(t, terminal(m.status.State))

	m.applyStatus(photoprogress.Status{
		Kind: photoprogress.KindIndexing, State: photoprogress.StateComplete,
		UpdatedDone: 10, UpdatedTotal: 10,
	})
	assert.True(t, terminal(m.status.State))
}

func TestWatchModelComputesSpeedFromDelta(t *testing.T) {
	m := newWatchModel(t.TempDir(), true)
	m.lastSample = time.Now().Add(-time.Second)
	m.applyStatus(photoprogress.Status{State: photoprogress.StateRunning, InsertDone: 50, InsertTotal: 100})
	assert.Greater(t, m.speed, 0.0)
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, terminal(photoprogress.StateComplete))
	assert.True(t, terminal(photoprogress.StateError))
	assert.True(t, terminal(photoprogress.StateCancelled))
	assert.False(t, terminal(photoprogress.StateRunning))
	assert.False(t, terminal(photoprogress.StatePaused))
}
