package testutil

import "sync"

// RecordingReporter captures every reported progress value in order.
// Safe for concurrent use.
type RecordingReporter struct {
	mu      sync.Mutex
	reports []float64
}

func NewRecordingReporter() *RecordingReporter {
	return &RecordingReporter{}
}

func (r *RecordingReporter) Report(percent float64) {
	r.mu.Lock()
	r.reports = append(r.reports, percent)
	r.mu.Unlock()
}

// Reports returns a copy of the captured values.
func (r *RecordingReporter) Reports() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.reports))
	copy(out, r.reports)
	return out
}

// Last returns the most recent value, or -1 when nothing was reported.
func (r *RecordingReporter) Last() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.reports) == 0 {
		return -1
	}
	return r.reports[len(r.reports)-1]
}
