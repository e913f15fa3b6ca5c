package builder

import (
	"context"
	"slices"

	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
)

// Sequential runs its sub-builders strictly in order: a stage is never
// polled or started before every earlier stage is done, because its input
// files may not exist yet.
type Sequential struct {
	core
	subs  []Builder
	reset bool
}

// Stage names one pipeline step and the extra parameters it receives in
// addition to the previous stage's output.
type Stage struct {
	Class  string
	Params []Param
	// OutExt overrides the stage class output extension.
	OutExt string
}

// NewPipeline builds a Sequential of class c from stages. The first stage
// receives the pipeline options; every later stage receives the previous
// stage's output as its input. A trailing copy writes the last real
// stage's output to the pipeline's own output path.
func NewPipeline(env *Env, c *Class, opts Options, stages ...Stage) (*Sequential, error) {
	if len(stages) == 0 {
		return nil, derrors.InternalError("pipeline needs at least one stage").
			WithContext(logfields.KeyBuilder, c.Name).
			Build()
	}
	s := &Sequential{core: newCore(env, c, opts)}
	s.decisionSuffix = compositeSuffix(c)

	var prev Builder
	for i, stage := range stages {
		sc, err := env.Registry.Class(stage.Class)
		if err != nil {
			return nil, err
		}
		stageOpts := Options{
			Target:          opts.Target,
			UseCache:        true,
			Origin:          opts.Origin,
			SearchPaths:     opts.SearchPaths,
			TolerateMissing: opts.TolerateMissing,
			OutExt:          stage.OutExt,
		}
		if i == 0 {
			stageOpts.Params = append(slices.Clone(opts.Params), stage.Params...)
			stageOpts.Renderer = opts.Renderer
			stageOpts.Hooks = opts.Hooks
		} else {
			out, err := prev.Outfile()
			if err != nil {
				return nil, err
			}
			stageOpts.Params = append([]Param{FileParam(out.ToSource())}, stage.Params...)
		}
		sub, err := env.Instantiate(sc, stageOpts)
		if err != nil {
			return nil, err
		}
		if prev != nil && !extCompatible(prev.OutExt(), sub.InExt()) {
			return nil, stageMismatch(c, prev, sub)
		}
		s.subs = append(s.subs, sub)
		prev = sub
	}

	if !extCompatible(s.inExt, s.subs[0].InExt()) || !extCompatible(s.outExt, prev.OutExt()) {
		return nil, derrors.BuildError("pipeline stages do not match the pipeline formats").
			WithContext(logfields.KeyBuilder, c.Name).
			WithContext(logfields.KeyInExt, s.subs[0].InExt()).
			WithContext(logfields.KeyOutExt, prev.OutExt()).
			Build()
	}

	// Pipelines without file inputs take their parameters, and hence their
	// output name, from the first stage.
	s.AddParameters(s.subs[0].Parameters()...)

	last, err := prev.Outfile()
	if err != nil {
		return nil, err
	}
	cp, err := env.New(CopyClass, Options{Params: []Param{FileParam(last.ToSource())}, Target: opts.Target})
	if err != nil {
		return nil, err
	}
	out, err := s.Outfile()
	if err != nil {
		return nil, err
	}
	cp.SetOutfile(out)
	s.subs = append(s.subs, cp)
	return s, nil
}

// NewChain builds a Sequential of class c over already wired sub-builders.
// No copy is appended; the last sub-builder writes the chain's output.
func NewChain(env *Env, c *Class, opts Options, subs ...Builder) *Sequential {
	s := &Sequential{core: newCore(env, c, opts), subs: subs}
	s.decisionSuffix = compositeSuffix(c)
	return s
}

func compositeSuffix(c *Class) string { return "#" + c.Name }

func extCompatible(a, b string) bool {
	return a == b || a == AnyExt || b == AnyExt
}

func stageMismatch(c *Class, prev, next Builder) error {
	return derrors.BuildError("pipeline stage formats do not connect").
		WithContext(logfields.KeyBuilder, c.Name).
		WithContext("stage", prev.Name()+" -> "+next.Name()).
		WithContext(logfields.KeyOutExt, prev.OutExt()).
		WithContext(logfields.KeyInExt, next.InExt()).
		Build()
}

// Append adds a sub-builder at the end of the chain.
func (s *Sequential) Append(b Builder) { s.subs = append(s.subs, b) }

// Subbuilders returns the stages in order.
func (s *Sequential) Subbuilders() []Builder { return slices.Clone(s.subs) }

// BuildNeeded reports whether the chain's own output is stale.
func (s *Sequential) BuildNeeded() (bool, error) {
	return s.decide(s.class.Action, false)
}

// Status is the status of the first sub-builder that is not done. Once all
// are done and the output exists, the decision is reset and done reported.
func (s *Sequential) Status() (Status, error) {
	if !s.env.Registry.Active(s.class) {
		return StatusInactive, nil
	}
	for _, sub := range s.subs {
		st, err := sub.Status()
		if err != nil {
			return st, err
		}
		if st != StatusDone {
			return st, nil
		}
	}
	out, err := s.Outfile()
	if err != nil {
		return StatusMissingParameters, err
	}
	if !out.Exists() {
		return StatusBuilding, nil
	}
	if len(s.params) > 0 && !s.reset {
		if _, err := s.decide(s.class.Action, true); err != nil {
			return StatusReady, err
		}
		s.reset = true
	}
	return StatusDone, nil
}

// Build advances the first unfinished stage. Stages that finish during the
// call hand over to the next one immediately.
func (s *Sequential) Build(ctx context.Context, complete bool) (Status, error) {
	for {
		st, err := s.Status()
		if err != nil || !st.Active() {
			return st, err
		}
		if st, err := s.step(ctx); err != nil {
			return st, err
		}
		st, err = s.Status()
		if err != nil || !st.Active() || !complete {
			return st, err
		}
		if err := s.env.Runner.Wait(ctx); err != nil {
			return st, err
		}
	}
}

func (s *Sequential) step(ctx context.Context) (Status, error) {
	for _, sub := range s.subs {
		st, err := sub.Status()
		if err != nil {
			return st, err
		}
		if st == StatusDone {
			continue
		}
		if !st.Active() {
			return st, nil
		}
		st, err = sub.Build(ctx, false)
		if err != nil || st != StatusDone {
			return st, err
		}
	}
	return StatusDone, nil
}
