package builder

import (
	"context"
	"path/filepath"

	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
	"git.home.luguber.info/inful/dmbuild/internal/metrics"
	"git.home.luguber.info/inful/dmbuild/internal/paths"
)

// Leaf is a builder that performs a single conversion, either by spawning
// the external tool named in its class action or by running the class
// work function in-process.
type Leaf struct {
	core
	state ProcessState
	argv  []string

	hooks        []ParamHook
	hooksApplied bool

	tolerateMissing bool
	scanned         bool
}

// NewLeaf creates a leaf builder of class c.
func NewLeaf(env *Env, c *Class, opts Options) (*Leaf, error) {
	l := &Leaf{
		core:            newCore(env, c, opts),
		state:           NotStarted{},
		hooks:           opts.Hooks,
		tolerateMissing: opts.TolerateMissing,
	}
	if c.Init != nil {
		if err := c.Init(l, opts); err != nil {
			return nil, err
		}
	}
	if !c.ScanAtBuild {
		if err := l.scan(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// AddParamHook registers a hook whose parameters are added before the
// builder first runs.
func (l *Leaf) AddParamHook(h ParamHook) {
	l.hooks = append(l.hooks, h)
}

// State returns the process lifecycle state.
func (l *Leaf) State() ProcessState { return l.state }

// Env returns the builder environment.
func (l *Leaf) Env() *Env { return l.env }

func (l *Leaf) scan() error {
	if l.env.Scanner == nil {
		return nil
	}
	deps, err := l.env.Scanner.Scan(Files(l.params), l.searchPaths, l.tolerateMissing)
	if err != nil {
		return err
	}
	for _, d := range deps {
		l.AddParameters(FileParam(d))
	}
	l.scanned = true
	return nil
}

// prepare applies late parameter hooks and deferred scanning. It runs at
// the start of Build so the decision hash sees the final parameters.
func (l *Leaf) prepare() error {
	if !l.hooksApplied {
		for _, h := range l.hooks {
			l.AddParameters(h()...)
		}
		l.hooksApplied = true
	}
	if l.class.ScanAtBuild && !l.scanned && !l.missingParameters() {
		return l.scan()
	}
	return nil
}

// BuildNeeded consults the decider for this builder's output. Parameters
// that prepare would add are included without being recorded.
func (l *Leaf) BuildNeeded() (bool, error) {
	pending, err := l.pendingParams()
	if err != nil {
		return true, err
	}
	return l.decide(l.class.Action, false, pending...)
}

func (l *Leaf) pendingParams() ([]Param, error) {
	var pending []Param
	if !l.hooksApplied {
		for _, h := range l.hooks {
			pending = append(pending, h()...)
		}
	}
	if l.class.ScanAtBuild && !l.scanned && l.env.Scanner != nil && !l.missingParameters() {
		deps, err := l.env.Scanner.Scan(Files(l.params), l.searchPaths, l.tolerateMissing)
		if err != nil {
			return nil, err
		}
		for _, d := range deps {
			pending = append(pending, FileParam(d))
		}
	}
	return pending, nil
}

// Status derives the builder state without starting any work. The only
// transition it makes is consuming the result of a process that exited 0
// with its output present, which resets the decision exactly once.
func (l *Leaf) Status() (Status, error) {
	if !l.env.Registry.Active(l.class) {
		return StatusInactive, nil
	}
	if l.missingParameters() {
		return StatusMissingParameters, nil
	}

	switch st := l.state.(type) {
	case Exited:
		if st.Code == 0 {
			return StatusDone, nil
		}
		return StatusMissingOutput, l.processError(Result{ExitCode: st.Code})
	case Running:
		if !st.Handle.Done() {
			return StatusBuilding, nil
		}
		return l.finish(st.Handle.Result())
	default:
		needed, err := l.BuildNeeded()
		if err != nil {
			return StatusReady, err
		}
		if !needed {
			return StatusDone, nil
		}
		return StatusReady, nil
	}
}

func (l *Leaf) finish(res Result) (Status, error) {
	rec := l.env.recorder()
	if res.ExitCode != 0 || res.Err != nil {
		code := res.ExitCode
		if code == 0 {
			code = 1
		}
		l.state = Exited{Code: code}
		if res.TimedOut {
			rec.IncBuilderResult(l.Name(), metrics.ResultTimeout)
		} else {
			rec.IncBuilderResult(l.Name(), metrics.ResultFailed)
		}
		return StatusMissingOutput, l.processError(res)
	}

	out, err := l.Outfile()
	if err != nil {
		return StatusMissingOutput, err
	}
	if !out.Exists() {
		l.env.logger().Error("Process exited without producing its output",
			logfields.Builder(l.Name()), logfields.Outfile(out.String()), logfields.Command(l.argv))
		return StatusMissingOutput, nil
	}

	if _, err := l.decide(l.class.Action, true); err != nil {
		return StatusReady, err
	}
	l.state = Exited{Code: 0}
	rec.IncBuilderResult(l.Name(), metrics.ResultSuccess)
	return StatusDone, nil
}

func (l *Leaf) processError(res Result) error {
	msg := "external tool failed"
	if res.TimedOut {
		msg = "external tool timed out"
	}
	b := derrors.ProcessError(msg, l.argv, res.ExitCode, res.Stdout, res.Stderr).
		WithContext(logfields.KeyBuilder, l.Name())
	if res.Err != nil {
		b = b.WithCause(res.Err)
	}
	if l.outfileSet {
		b = b.WithContext(logfields.KeyOutfile, l.outfile.String())
	}
	return b.Build()
}

// Build starts the builder if it is ready. With complete it keeps polling
// until the builder reaches a terminal state.
func (l *Leaf) Build(ctx context.Context, complete bool) (Status, error) {
	if err := l.prepare(); err != nil {
		return StatusMissingParameters, err
	}
	for {
		st, err := l.Status()
		if err != nil || !st.Active() {
			return st, err
		}
		if err := l.spawn(ctx); err != nil {
			return st, err
		}
		st, err = l.Status()
		if err != nil || !st.Active() || !complete {
			return st, err
		}
		if err := l.env.Runner.Wait(ctx); err != nil {
			return st, err
		}
	}
}

// spawn starts the work once. It is a no-op when a process already exists
// or when the runner has no free slot.
func (l *Leaf) spawn(ctx context.Context) error {
	if _, ok := l.state.(NotStarted); !ok {
		return nil
	}
	if _, err := l.Outfile(); err != nil {
		return err
	}

	if l.class.Work != nil {
		l.argv = []string{l.class.Action}
		l.state = Running{Handle: finished(l.argv, l.class.Work(ctx, l))}
		return nil
	}

	argv, err := FormatAction(l.class.Action, l.attr)
	if err != nil {
		return err
	}
	l.argv = argv
	handle, ok := l.env.Runner.Start(ctx, l.Name(), argv)
	if !ok {
		return nil
	}
	l.state = Running{Handle: handle}
	return nil
}

// Command returns the formatted command line of an external tool builder.
func (l *Leaf) Command() ([]string, error) {
	return FormatAction(l.class.Action, l.attr)
}

// attr resolves action placeholders.
func (l *Leaf) attr(name string) ([]string, bool) {
	if fn, ok := l.class.Attrs[name]; ok {
		return fn(l), true
	}
	switch name {
	case "infilepaths":
		var out []string
		for _, f := range Files(l.params) {
			out = append(out, f.String())
		}
		return out, true
	case "infilepath":
		if files := Files(l.params); len(files) > 0 {
			return []string{files[0].String()}, true
		}
		return nil, true
	case "outfilepath", "outdir", "outjob":
		out, err := l.Outfile()
		if err != nil {
			return nil, true
		}
		switch name {
		case "outdir":
			return []string{filepath.Dir(out.String())}, true
		case "outjob":
			return []string{paths.ReplaceExt(filepath.Base(out.String()), "")}, true
		}
		return []string{out.String()}, true
	case "target":
		return []string{l.target}, true
	}
	if v, ok := l.GetParameter(name); ok {
		return []string{v}, true
	}
	return nil, false
}
