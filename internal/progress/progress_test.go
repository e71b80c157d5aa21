package progress_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/progress"
)

func TestNewReporterWritesRunningStatus(t *testing.T) {
	dir := t.TempDir()
	r, err := progress.NewReporter(dir, progress.KindIndexing, 10)
	require.NoError(t, err)

	status, err := progress.ReadStatus(dir)
	require.NoError(t, err)
	assert.Equal(t, progress.StateRunning, status.State)
	assert.Equal(t, 10, status.Target)

	require.NoError(t, r.Update(1, 2, 5, 3, 5))
	status, err = progress.ReadStatus(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Existing)
	assert.Equal(t, 2, status.UpdatedDone)
}

func TestFinishMarksComplete(t *testing.T) {
	dir := t.TempDir()
	r, err := progress.NewReporter(dir, progress.KindOCR, 5)
	require.NoError(t, err)
	require.NoError(t, r.Finish())

	status, err := progress.ReadStatus(dir)
	require.NoError(t, err)
	assert.Equal(t, progress.StateComplete, status.State)
	assert.NotZero(t, status.End)
}

func TestFailRecordsErrorMessage(t *testing.T) {
	dir := t.TempDir()
	r, err := progress.NewReporter(dir, progress.KindFaces, 1)
	require.NoError(t, err)
	require.NoError(t, r.Fail("model unavailable"))

	status, err := progress.ReadStatus(dir)
	require.NoError(t, err)
	assert.Equal(t, progress.StateError, status.State)
	assert.Equal(t, "model unavailable", status.Error)
}

func TestCheckPauseTogglesStateWithControlFile(t *testing.T) {
	dir := t.TempDir()
	r, err := progress.NewReporter(dir, progress.KindIndexing, 1)
	require.NoError(t, err)

	require.NoError(t, progress.WriteControl(dir, progress.Control{Pause: true}))

	done := make(chan struct{})
	go func() {
		_ = r.CheckPause()
		close(done)
	}()

	// Give CheckPause a moment to observe pause=true and write state=paused.
	time.Sleep(20 * time.Millisecond)
	status, err := progress.ReadStatus(dir)
	require.NoError(t, err)
	assert.Equal(t, progress.StatePaused, status.State)

	require.NoError(t, progress.WriteControl(dir, progress.Control{Pause: false}))
	<-done

	status, err = progress.ReadStatus(dir)
	require.NoError(t, err)
	assert.Equal(t, progress.StateRunning, status.State)
}

func TestCheckPauseNoopWhenControlFileMissing(t *testing.T) {
	dir := t.TempDir()
	r, err := progress.NewReporter(dir, progress.KindIndexing, 1)
	require.NoError(t, err)
	assert.NoError(t, r.CheckPause())
}

func TestCancelPreservesPartialCounts(t *testing.T) {
	dir := t.TempDir()
	r, err := progress.NewReporter(dir, progress.KindIndexing, 10)
	require.NoError(t, err)
	require.NoError(t, r.Update(0, 3, 10, 2, 10))
	require.NoError(t, r.Cancel())

	status, err := progress.ReadStatus(dir)
	require.NoError(t, err)
	assert.Equal(t, progress.StateCancelled, status.State)
	assert.Equal(t, 3, status.UpdatedDone)
}
