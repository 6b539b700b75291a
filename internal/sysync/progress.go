package sysync

// Reporter observes the progress of a long-running operation. Implementations
// receive monotonically non-decreasing percentages in the range 0-100.
//
// A Reporter is passed explicitly into each backup or restore call; the engine
// holds no ambient progress state. The trigger layer owns any mapping from
// application name to reporter, which makes concurrent backups of the same
// application an explicit last-writer-wins choice at that layer.
type Reporter interface {
	Report(percent float64)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(percent float64)

func (f ReporterFunc) Report(percent float64) { f(percent) }

// NopReporter discards all progress reports.
type NopReporter struct{}

func (NopReporter) Report(float64) {}
