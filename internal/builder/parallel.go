package builder

import (
	"context"
	"slices"

	"git.home.luguber.info/inful/dmbuild/internal/paths"
)

// Parallel runs sub-builders with no ordering between them. Every ready
// sub-builder is started in the same pass.
type Parallel struct {
	core
	subs      []Builder
	byOutfile map[string]Builder
}

// NewParallel creates an empty Parallel of class c.
func NewParallel(env *Env, c *Class, opts Options, subs ...Builder) *Parallel {
	p := &Parallel{core: newCore(env, c, opts), byOutfile: make(map[string]Builder)}
	for _, b := range subs {
		p.Add(b)
	}
	return p
}

// Add appends a sub-builder. A builder writing an output that is already
// claimed is not added and the existing one is returned.
func (p *Parallel) Add(b Builder) Builder {
	if out, err := b.Outfile(); err == nil {
		if existing, ok := p.byOutfile[out.String()]; ok {
			return existing
		}
		p.byOutfile[out.String()] = b
	}
	p.subs = append(p.subs, b)
	return b
}

// AddBuild creates a builder converting the first file parameter to outExt
// (or to a format target accepts, when outExt is empty or not convertible)
// and adds it.
func (p *Parallel) AddBuild(inExt, outExt, target string, opts Options) (Builder, error) {
	if inExt == "" {
		if files := Files(opts.Params); len(files) > 0 {
			inExt = files[0].Ext()
		}
	}
	b, err := p.env.NewFor(inExt, outExt, target, opts)
	if err != nil {
		return nil, err
	}
	return p.Add(b), nil
}

// Subbuilders returns the sub-builders.
func (p *Parallel) Subbuilders() []Builder { return slices.Clone(p.subs) }

// Outfile is not defined for a parallel group; it returns the zero path.
func (p *Parallel) Outfile() (paths.TargetPath, error) {
	if p.outfileSet {
		return p.outfile, nil
	}
	return paths.TargetPath{}, nil
}

// Outfiles returns the outputs of all sub-builders.
func (p *Parallel) Outfiles() []paths.TargetPath {
	var out []paths.TargetPath
	for _, b := range p.subs {
		if o, err := b.Outfile(); err == nil && !o.IsZero() {
			out = append(out, o)
		}
	}
	return out
}

// BuildNeeded reports whether any sub-builder needs a build.
func (p *Parallel) BuildNeeded() (bool, error) {
	for _, b := range p.subs {
		needed, err := b.BuildNeeded()
		if err != nil || needed {
			return needed, err
		}
	}
	return false, nil
}

// Status aggregates by precedence: inactive, missing, building, all done,
// else ready. An empty group is done.
func (p *Parallel) Status() (Status, error) {
	if !p.env.Registry.Active(p.class) {
		return StatusInactive, nil
	}
	var missing Status
	inactive, hasMissing, building, allDone := false, false, false, true
	for _, b := range p.subs {
		st, err := b.Status()
		if err != nil {
			return st, err
		}
		switch {
		case st == StatusInactive:
			inactive = true
		case st.Missing():
			if !hasMissing {
				missing, hasMissing = st, true
			}
		case st == StatusBuilding:
			building = true
		}
		if st != StatusDone {
			allDone = false
		}
	}
	switch {
	case inactive:
		return StatusInactive, nil
	case hasMissing:
		return missing, nil
	case building:
		return StatusBuilding, nil
	case allDone:
		return StatusDone, nil
	default:
		return StatusReady, nil
	}
}

// Build starts every ready sub-builder without waiting on the others.
func (p *Parallel) Build(ctx context.Context, complete bool) (Status, error) {
	for {
		st, err := p.Status()
		if err != nil || !st.Active() {
			return st, err
		}
		for _, b := range p.subs {
			sst, err := b.Status()
			if err != nil {
				return sst, err
			}
			if !sst.Active() {
				continue
			}
			if bst, err := b.Build(ctx, false); err != nil {
				return bst, err
			}
		}
		st, err = p.Status()
		if err != nil || !st.Active() || !complete {
			return st, err
		}
		if err := p.env.Runner.Wait(ctx); err != nil {
			return st, err
		}
	}
}
