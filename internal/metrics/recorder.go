package metrics

import "time"

// ResultLabel enumerates builder result categories for counters.
type ResultLabel string

const (
	ResultSuccess       ResultLabel = "success"
	ResultFailed        ResultLabel = "failed"
	ResultTimeout       ResultLabel = "timeout"
	ResultMissingOutput ResultLabel = "missing_output"
	ResultSkipped       ResultLabel = "skipped"
)

// Build pass outcomes.
const (
	OutcomeDone       = "done"
	OutcomeFailed     = "failed"
	OutcomeIncomplete = "incomplete"
)

// Recorder defines observability hooks for builder and build-pass metrics.
// All methods must be safe for nil receivers when using the NoopRecorder
// (allowing optional injection).
type Recorder interface {
	IncProcessSpawn(builder string)
	ObserveProcessDuration(builder string, d time.Duration)
	IncBuilderResult(builder string, result ResultLabel)
	SetProcessesInFlight(n int)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string) // outcome: done|failed|incomplete
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncProcessSpawn(string)                        {}
func (NoopRecorder) ObserveProcessDuration(string, time.Duration) {}
func (NoopRecorder) IncBuilderResult(string, ResultLabel)          {}
func (NoopRecorder) SetProcessesInFlight(int)                      {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)            {}
func (NoopRecorder) IncBuildOutcome(string)                        {}
