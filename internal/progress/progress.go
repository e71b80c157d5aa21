// Package progress implements the StatusFile/ControlFile convention (spec
// §4.8): atomic JSON progress reporting and cooperative pause/cancel for
// long-running jobs (indexing, OCR, captions, metadata, faces). Grounded on
// the teacher's internal/async/status.go in-process snapshot pattern,
// generalized to durable, atomically-written files so a caller (CLI, MCP
// tool) can observe progress from a separate process.
package progress

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State is the lifecycle state of a job (spec §4.8).
type State string

const (
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateComplete  State = "complete"
	StateError     State = "error"
	StateCancelled State = "cancelled"
)

// Kind names the job whose status a StatusFile describes.
type Kind string

const (
	KindIndexing Kind = "indexing"
	KindOCR      Kind = "ocr"
	KindCaptions Kind = "captions"
	KindMetadata Kind = "metadata"
	KindFaces    Kind = "faces"
)

const (
	statusFileName  = "index_status.json"
	controlFileName = "index_control.json"
)

// Status is the durable snapshot written to index_status.json.
type Status struct {
	Kind          Kind   `json:"kind"`
	State         State  `json:"state"`
	Start         int64  `json:"start"`
	End           int64  `json:"end,omitempty"`
	Target        int    `json:"target"`
	Existing      int    `json:"existing"`
	UpdatedDone   int    `json:"updated_done"`
	UpdatedTotal  int    `json:"updated_total"`
	InsertDone    int    `json:"insert_done"`
	InsertTotal   int    `json:"insert_total"`
	Error         string `json:"error,omitempty"`
}

// Control is the durable pause signal polled from index_control.json.
type Control struct {
	Pause bool `json:"pause"`
}

// Reporter owns the atomic status write and the control-file poll loop for
// one running job. Callers create one per job kind, update it as batches
// complete, and call Finish/Fail/Cancel when the job ends.
type Reporter struct {
	mu     sync.Mutex
	dir    string
	status Status
}

// NewReporter starts a Reporter for kind in dir, writing an initial
// "running" status.
func NewReporter(dir string, kind Kind, target int) (*Reporter, error) {
	r := &Reporter{
		dir: dir,
		status: Status{
			Kind:   kind,
			State:  StateRunning,
			Start:  nowUnix(),
			Target: target,
		},
	}
	if err := r.write(); err != nil {
		return nil, err
	}
	return r, nil
}

// Update overwrites the mutable progress counters and persists them.
func (r *Reporter) Update(existing, updatedDone, updatedTotal, insertDone, insertTotal int) error {
	r.mu.Lock()
	r.status.Existing = existing
	r.status.UpdatedDone = updatedDone
	r.status.UpdatedTotal = updatedTotal
	r.status.InsertDone = insertDone
	r.status.InsertTotal = insertTotal
	r.mu.Unlock()
	return r.write()
}

// Finish marks the job complete.
func (r *Reporter) Finish() error {
	r.mu.Lock()
	r.status.State = StateComplete
	r.status.End = nowUnix()
	r.mu.Unlock()
	return r.write()
}

// Fail marks the job errored with message.
func (r *Reporter) Fail(message string) error {
	r.mu.Lock()
	r.status.State = StateError
	r.status.Error = message
	r.status.End = nowUnix()
	r.mu.Unlock()
	return r.write()
}

// Cancel marks the job cancelled, leaving whatever partial counts were
// already recorded (spec §4.8: partial progress persisted remains valid).
func (r *Reporter) Cancel() error {
	r.mu.Lock()
	r.status.State = StateCancelled
	r.status.End = nowUnix()
	r.mu.Unlock()
	return r.write()
}

// CheckPause blocks on the control file between batches: if pause=true it
// writes state=paused, sleeps with exponential backoff up to 500ms, and
// rechecks; it returns once pause=false again, restoring state=running.
// Callers should call this between every batch (spec §5 suspension points).
func (r *Reporter) CheckPause() error {
	backoff := 10 * time.Millisecond
	const maxBackoff = 500 * time.Millisecond

	paused := false
	for {
		ctrl, err := ReadControl(r.dir)
		if err != nil {
			return nil // missing/corrupt control file means "not paused"
		}
		if !ctrl.Pause {
			if paused {
				r.mu.Lock()
				r.status.State = StateRunning
				r.mu.Unlock()
				if err := r.write(); err != nil {
					return err
				}
			}
			return nil
		}

		if !paused {
			paused = true
			r.mu.Lock()
			r.status.State = StatePaused
			r.mu.Unlock()
			if err := r.write(); err != nil {
				return err
			}
		}

		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (r *Reporter) write() error {
	r.mu.Lock()
	status := r.status
	r.mu.Unlock()
	return WriteStatus(r.dir, status)
}

// WriteStatus atomically writes status to dir/index_status.json.
func WriteStatus(dir string, status Status) error {
	return writeAtomicJSON(filepath.Join(dir, statusFileName), status)
}

// ReadStatus reads dir/index_status.json.
func ReadStatus(dir string) (Status, error) {
	var s Status
	err := readJSON(filepath.Join(dir, statusFileName), &s)
	return s, err
}

// WriteControl atomically writes a pause control to dir/index_control.json.
func WriteControl(dir string, ctrl Control) error {
	return writeAtomicJSON(filepath.Join(dir, controlFileName), ctrl)
}

// ReadControl reads dir/index_control.json. A missing file means "not
// paused".
func ReadControl(dir string) (Control, error) {
	var c Control
	err := readJSON(filepath.Join(dir, controlFileName), &c)
	return c, err
}

func writeAtomicJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func nowUnix() int64 { return time.Now().Unix() }
