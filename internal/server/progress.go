package server

import (
	"sync"

	"sysync/internal/sysync"
)

// Backup lifecycle states as exposed by the progress endpoint.
const (
	StatusStarting   = "starting"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ProgressState is one application's current backup progress.
type ProgressState struct {
	Progress float64 `json:"progress"`
	Status   string  `json:"status"`
}

// ProgressRegistry tracks per-application backup progress for the progress
// endpoint. Entries are keyed by application name only: a second backup of
// the same application overwrites the first one's entry (last writer wins),
// so concurrent triggers for one application produce a single merged view.
type ProgressRegistry struct {
	mu     sync.RWMutex
	states map[string]ProgressState
}

func NewProgressRegistry() *ProgressRegistry {
	return &ProgressRegistry{states: make(map[string]ProgressState)}
}

// Start registers a new run at zero progress and returns the reporter the
// backup pipeline should use.
func (p *ProgressRegistry) Start(appName string) sysync.Reporter {
	p.set(appName, ProgressState{Progress: 0, Status: StatusStarting})
	return sysync.ReporterFunc(func(percent float64) {
		p.set(appName, ProgressState{Progress: percent, Status: StatusInProgress})
	})
}

// Finish records the terminal state of a run.
func (p *ProgressRegistry) Finish(appName string, err error) {
	if err != nil {
		p.set(appName, ProgressState{Progress: 0, Status: StatusFailed})
		return
	}
	p.set(appName, ProgressState{Progress: 100, Status: StatusCompleted})
}

// Get returns the current state for an application.
func (p *ProgressRegistry) Get(appName string) (ProgressState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st, ok := p.states[appName]
	return st, ok
}

func (p *ProgressRegistry) set(appName string, st ProgressState) {
	p.mu.Lock()
	p.states[appName] = st
	p.mu.Unlock()
}
