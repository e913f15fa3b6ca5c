package builder

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"git.home.luguber.info/inful/dmbuild/internal/logfields"
	"git.home.luguber.info/inful/dmbuild/internal/metrics"
)

// Result describes a finished process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
	TimedOut bool
	Duration time.Duration
}

// Process is the handle of a process started by a Runner. It never blocks:
// Done reports completion and Result is valid once Done is true.
type Process struct {
	Argv   []string
	done   chan struct{}
	result Result
}

// Done reports whether the process has exited.
func (p *Process) Done() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome of a finished process.
func (p *Process) Result() Result {
	<-p.done
	return p.result
}

// finished returns an already completed handle for work done in-process.
func finished(argv []string, err error) *Process {
	p := &Process{Argv: argv, done: make(chan struct{})}
	if err != nil {
		p.result = Result{ExitCode: 1, Err: err, Stderr: err.Error()}
	}
	close(p.done)
	return p
}

// Runner starts external processes with bounded concurrency. A start that
// cannot get a slot is refused rather than queued, so callers stay ready and
// retry on their next poll.
type Runner struct {
	sem      *semaphore.Weighted
	timeout  time.Duration
	interval time.Duration
	metrics  metrics.Recorder
	logger   *slog.Logger

	inFlight atomic.Int64
	spawned  atomic.Int64
	notify   chan struct{}
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeout kills processes that run longer than d. Zero disables it.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// WithPollInterval sets the longest Wait between polls.
func WithPollInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithRunnerMetrics sets the metrics recorder.
func WithRunnerMetrics(m metrics.Recorder) RunnerOption {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a Runner allowing maxJobs concurrent processes. A
// non-positive maxJobs uses the number of CPUs.
func NewRunner(maxJobs int, opts ...RunnerOption) *Runner {
	if maxJobs <= 0 {
		maxJobs = runtime.NumCPU()
	}
	r := &Runner{
		sem:      semaphore.NewWeighted(int64(maxJobs)),
		interval: 50 * time.Millisecond,
		metrics:  metrics.NoopRecorder{},
		logger:   slog.Default(),
		notify:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start spawns argv on behalf of builder. It returns false without starting
// anything when every slot is taken.
func (r *Runner) Start(ctx context.Context, builder string, argv []string) (*Process, bool) {
	if !r.sem.TryAcquire(1) {
		return nil, false
	}
	p := &Process{Argv: argv, done: make(chan struct{})}
	r.spawned.Add(1)
	r.metrics.IncProcessSpawn(builder)
	r.metrics.SetProcessesInFlight(int(r.inFlight.Add(1)))
	r.logger.Debug("Spawning process", logfields.Builder(builder), logfields.Command(argv))

	go func() {
		defer func() {
			r.metrics.SetProcessesInFlight(int(r.inFlight.Add(-1)))
			r.sem.Release(1)
			close(p.done)
			select {
			case r.notify <- struct{}{}:
			default:
			}
		}()
		p.result = r.run(ctx, argv)
		r.metrics.ObserveProcessDuration(builder, p.result.Duration)
	}()
	return p, true
}

func (r *Runner) run(ctx context.Context, argv []string) Result {
	pctx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	// #nosec G204 -- argv comes from registered builder actions
	cmd := exec.CommandContext(pctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err == nil {
		return res
	}
	res.Err = err
	res.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		res.ExitCode = exitErr.ExitCode()
	}
	if errors.Is(pctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
	}
	return res
}

// Wait blocks until a process exits, the poll interval elapses, or ctx is
// done. Only drivers that loop to completion call it.
func (r *Runner) Wait(ctx context.Context) error {
	t := time.NewTimer(r.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.notify:
	case <-t.C:
	}
	return nil
}

// Spawned returns the number of processes started so far.
func (r *Runner) Spawned() int64 { return r.spawned.Load() }

// InFlight returns the number of processes currently running.
func (r *Runner) InFlight() int64 { return r.inFlight.Load() }
