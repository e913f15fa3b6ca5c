package builder

import (
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/dmbuild/internal/decider"
	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
	"git.home.luguber.info/inful/dmbuild/internal/paths"
)

// core holds the state shared by leaf and composite builders.
type core struct {
	env    *Env
	class  *Class
	inExt  string
	outExt string
	params []Param

	outfile    paths.TargetPath
	outfileSet bool

	target      string
	useCache    bool
	useMedia    bool
	origin      paths.SourcePath
	searchPaths []string

	// decisionSuffix is appended to the output path to form the decision
	// key of composites, which share their output with their last step.
	decisionSuffix string
}

func newCore(env *Env, c *Class, opts Options) core {
	co := core{
		env:         env,
		class:       c,
		inExt:       c.InExt,
		outExt:      c.OutExt,
		target:      opts.Target,
		useCache:    opts.UseCache,
		useMedia:    opts.UseMedia,
		origin:      opts.Origin,
		searchPaths: opts.SearchPaths,
	}
	if opts.OutExt != "" {
		co.outExt = normExt(opts.OutExt)
	}
	co.params = appendUnique(nil, opts.Params...)
	if !opts.Outfile.IsZero() {
		co.SetOutfile(opts.Outfile)
	}
	return co
}

func (c *core) Name() string   { return c.class.Name }
func (c *core) InExt() string  { return c.inExt }
func (c *core) OutExt() string { return c.outExt }

// Class returns the builder's class.
func (c *core) Class() *Class { return c.class }

func (c *core) Parameters() []Param { return slices.Clone(c.params) }

// AddParameters appends parameters that are not already present.
func (c *core) AddParameters(params ...Param) {
	c.params = appendUnique(c.params, params...)
}

// GetParameter returns the value of the named parameter.
func (c *core) GetParameter(name string) (string, bool) {
	for _, p := range c.params {
		if n, ok := p.(Named); ok && n.Name == name {
			return n.Value, true
		}
	}
	return "", false
}

func (c *core) SetOutfile(p paths.TargetPath) {
	c.outfile = p
	c.outfileSet = true
	if err := p.MkdirParent(); err != nil {
		c.env.logger().Warn("Failed to create output directory", logfields.Outfile(p.String()), logfields.Error(err))
	}
}

func (c *core) Outfile() (paths.TargetPath, error) {
	if c.outfileSet {
		return c.outfile, nil
	}
	p, err := c.deriveOutfile()
	if err != nil {
		return paths.TargetPath{}, err
	}
	c.SetOutfile(p)
	return p, nil
}

// deriveOutfile places the output under the target tree, or the cache when
// useCache is set. File parameters lend their subpath; outputs without any
// are named by a truncated hash of their text parameters.
func (c *core) deriveOutfile() (paths.TargetPath, error) {
	if len(c.params) == 0 {
		return paths.TargetPath{}, derrors.BuildError("cannot derive output path without parameters").
			WithContext(logfields.KeyBuilder, c.Name()).
			Build()
	}

	var sub string
	values := c.valueDigest()
	files := Files(c.params)
	switch {
	case len(files) > 0:
		sub = files[0].Subpath
		if values != "" {
			ext := filepath.Ext(sub)
			sub = strings.TrimSuffix(sub, ext) + "_" + values + ext
		}
	case !c.origin.IsZero():
		sub = paths.ReplaceExt(c.origin.Subpath, "") + "_" + values
	default:
		sub = values
	}

	if c.outExt != AnyExt {
		sub = paths.ReplaceExt(sub, c.outExt)
	}
	if c.class.Suffix != "" {
		ext := filepath.Ext(sub)
		sub = strings.TrimSuffix(sub, ext) + c.class.Suffix + ext
	}
	if c.useMedia && c.env.MediaDir != "" && !strings.HasPrefix(sub, c.env.MediaDir+string(filepath.Separator)) {
		sub = filepath.Join(c.env.MediaDir, sub)
	}

	root := c.env.TargetRoot
	if c.useCache {
		root = c.env.CachePath()
	}
	return paths.TargetPath{Root: root, Target: c.target, Subpath: sub}, nil
}

// valueDigest hashes the text and named parameters, or returns "" when
// there are none.
func (c *core) valueDigest() string {
	var parts []string
	for _, p := range c.params {
		switch v := p.(type) {
		case Text:
			parts = append(parts, string(v))
		case Named:
			parts = append(parts, v.Name+"="+v.Value)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	slices.Sort(parts)
	return decider.ShortHash(decider.HashText(strings.Join(parts, "\x00")), c.env.hashLength())
}

// missingParameters reports whether there are no parameters or a file
// parameter does not exist.
func (c *core) missingParameters() bool {
	if len(c.params) == 0 {
		return true
	}
	for _, f := range Files(c.params) {
		if !f.Exists() {
			return true
		}
	}
	return false
}

func (c *core) decide(action string, reset bool, pending ...Param) (bool, error) {
	out, err := c.Outfile()
	if err != nil {
		return true, err
	}
	params := c.params
	if len(pending) > 0 {
		params = appendUnique(slices.Clone(c.params), pending...)
	}
	return c.env.Decider.BuildNeededAs(out.String()+c.decisionSuffix, decisionInputs(params), action, out.String(), reset)
}
