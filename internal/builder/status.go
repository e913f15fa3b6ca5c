package builder

// Status is the derived state of a builder. It is recomputed on every poll.
type Status int

const (
	StatusInactive Status = iota
	StatusMissingParameters
	StatusReady
	StatusBuilding
	StatusMissingOutput
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusMissingParameters:
		return "missing (parameters)"
	case StatusReady:
		return "ready"
	case StatusBuilding:
		return "building"
	case StatusMissingOutput:
		return "missing (outfilepath)"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

// Missing reports whether the status is one of the missing states.
func (s Status) Missing() bool {
	return s == StatusMissingParameters || s == StatusMissingOutput
}

// Active reports whether more work can happen: ready or building.
func (s Status) Active() bool {
	return s == StatusReady || s == StatusBuilding
}

// ProcessState is the lifecycle of the process owned by a leaf builder:
// NotStarted, Running or Exited.
type ProcessState interface {
	processState()
}

// NotStarted means no process has been spawned.
type NotStarted struct{}

// Running holds the handle of a spawned process.
type Running struct {
	Handle *Process
}

// Exited records the exit code of a finished process whose result has been
// consumed by a status poll.
type Exited struct {
	Code int
}

func (NotStarted) processState() {}
func (Running) processState()    {}
func (Exited) processState()     {}
