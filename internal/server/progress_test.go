package server

import (
	"errors"
	"testing"
)

func TestProgressRegistry_Lifecycle(t *testing.T) {
	t.Parallel()

	p := NewProgressRegistry()

	if _, ok := p.Get("editor"); ok {
		t.Error("empty registry returned a state")
	}

	rep := p.Start("editor")
	st, ok := p.Get("editor")
	if !ok || st.Status != StatusStarting || st.Progress != 0 {
		t.Errorf("after Start: %+v", st)
	}

	rep.Report(42.5)
	st, _ = p.Get("editor")
	if st.Status != StatusInProgress || st.Progress != 42.5 {
		t.Errorf("after Report: %+v", st)
	}

	p.Finish("editor", nil)
	st, _ = p.Get("editor")
	if st.Status != StatusCompleted || st.Progress != 100 {
		t.Errorf("after Finish: %+v", st)
	}
}

func TestProgressRegistry_Failure(t *testing.T) {
	t.Parallel()

	p := NewProgressRegistry()
	p.Start("editor")
	p.Finish("editor", errors.New("boom"))

	st, _ := p.Get("editor")
	if st.Status != StatusFailed {
		t.Errorf("Status = %q, want %q", st.Status, StatusFailed)
	}
}

func TestProgressRegistry_LastWriterWins(t *testing.T) {
	t.Parallel()

	p := NewProgressRegistry()
	first := p.Start("editor")
	first.Report(90)

	// A second trigger for the same application takes over the entry.
	p.Start("editor")
	st, _ := p.Get("editor")
	if st.Status != StatusStarting || st.Progress != 0 {
		t.Errorf("second Start did not take over: %+v", st)
	}

	// Late reports from the first run still land; the entry stays merged.
	first.Report(95)
	st, _ = p.Get("editor")
	if st.Progress != 95 {
		t.Errorf("late report dropped: %+v", st)
	}
}
