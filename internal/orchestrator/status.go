package orchestrator

import (
	"sync"
	"time"
)

// Stage is one step of the per-commit pipeline state machine from §4.9:
// queued -> fetching -> detecting -> parsing -> scoring -> generating ->
// drifting -> storing -> delivering -> done, plus failed(stage, reason).
type Stage string

const (
	StageQueued     Stage = "queued"
	StageFetching   Stage = "fetching"
	StageDetecting  Stage = "detecting"
	StageParsing    Stage = "parsing"
	StageScoring    Stage = "scoring"
	StageGenerating Stage = "generating"
	StageDrifting   Stage = "drifting"
	StageStoring    Stage = "storing"
	StageDelivering Stage = "delivering"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// RunStatus is the latest known state of a pipeline run for one
// (project_id, commit_id) key.
type RunStatus struct {
	Stage       Stage
	FailReason  string
	Warnings    []string
	UpdatedAt   time.Time
}

// StatusTracker holds the in-memory status of every tracked pipeline key,
// exposed to the admin/status API surface. Status is best-effort and does
// not survive a restart — the durable record of a completed run is the
// DocumentVersion row written by the Artifact Store.
type StatusTracker struct {
	mu       sync.RWMutex
	statuses map[string]RunStatus
}

// NewStatusTracker returns an empty StatusTracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{statuses: make(map[string]RunStatus)}
}

// Set records stage as the current state for key.
func (t *StatusTracker) Set(key string, stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses[key] = RunStatus{Stage: stage, UpdatedAt: time.Now(), Warnings: t.statuses[key].Warnings}
}

// Warn appends a warning to key's status without changing its stage.
func (t *StatusTracker) Warn(key, warning string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.statuses[key]
	s.Warnings = append(s.Warnings, warning)
	s.UpdatedAt = time.Now()
	t.statuses[key] = s
}

// Fail marks key as failed at the given stage with reason.
func (t *StatusTracker) Fail(key string, stage Stage, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.statuses[key]
	t.statuses[key] = RunStatus{Stage: StageFailed, FailReason: string(stage) + ": " + reason, Warnings: s.Warnings, UpdatedAt: time.Now()}
}

// Get returns the current status for key, or false if unknown.
func (t *StatusTracker) Get(key string) (RunStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.statuses[key]
	return s, ok
}
