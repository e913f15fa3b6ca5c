package builder

import (
	"log/slog"
	"os/exec"
	"slices"
	"sort"
	"strings"
	"sync"

	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
)

type extPair struct {
	in  string
	out string
}

// Registry is the explicit table of builder classes for one environment.
// Class activity and the format-pair table are computed once and reused;
// installed executables are assumed not to change during a run.
type Registry struct {
	mu       sync.Mutex
	classes  []*Class
	byName   map[string]*Class
	active   map[string]bool
	table    map[extPair]*Class
	tracked  map[string][]string
	lookPath func(string) (string, error)
	logger   *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLookPath replaces exec.LookPath for executable discovery.
func WithLookPath(fn func(string) (string, error)) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.lookPath = fn
		}
	}
}

// WithTrackedDeps sets, per target extension, the ordered formats a target
// accepts natively.
func WithTrackedDeps(tracked map[string][]string) RegistryOption {
	return func(r *Registry) {
		for target, exts := range tracked {
			r.tracked[normExt(target)] = slices.Clone(exts)
		}
	}
}

// WithRegistryLogger sets the logger used for class warnings.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// DefaultTrackedDeps lists the formats each target can reference directly.
func DefaultTrackedDeps() map[string][]string {
	return map[string][]string{
		".html":  {".css", ".svg", ".png"},
		".xhtml": {".css", ".svg", ".png"},
		".tex":   {".pdf", ".png"},
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byName:   make(map[string]*Class),
		active:   make(map[string]bool),
		tracked:  make(map[string][]string),
		lookPath: exec.LookPath,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds classes to the registry. Class names must be unique.
func (r *Registry) Register(classes ...*Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range classes {
		if c == nil || c.Name == "" {
			return derrors.ValidationError("builder class needs a name").Build()
		}
		if _, dup := r.byName[c.Name]; dup {
			return derrors.ValidationError("builder class registered twice").
				WithContext(logfields.KeyBuilder, c.Name).
				Build()
		}
		if c.Action == "" && c.Work == nil && c.New == nil {
			return derrors.ValidationError("builder class has no action").
				WithContext(logfields.KeyBuilder, c.Name).
				Build()
		}
		r.classes = append(r.classes, c)
		r.byName[c.Name] = c
	}
	r.table = nil
	return nil
}

// Class returns the class registered under name.
func (r *Registry) Class(name string) (*Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byName[name]
	if !ok {
		return nil, derrors.BuildError("unknown builder class").
			WithContext(logfields.KeyBuilder, name).
			Build()
	}
	return c, nil
}

// Classes returns all registered classes sorted by name.
func (r *Registry) Classes() []*Class {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Clone(r.classes)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TrackedDeps returns the formats target accepts natively.
func (r *Registry) TrackedDeps(target string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.tracked[normExt(target)])
}

// Active reports whether class c is usable. The answer is computed once per
// class: it needs a priority, a required_execs declaration and every
// required executable on PATH. Each failed check logs a warning.
func (r *Registry) Active(c *Class) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeLocked(c)
}

func (r *Registry) activeLocked(c *Class) bool {
	if v, ok := r.active[c.Name]; ok {
		return v
	}
	active := true
	if c.Priority <= 0 {
		r.logger.Warn("Builder class has no priority; disabling it", logfields.Builder(c.Name))
		active = false
	}
	if c.RequiredExecs == nil {
		r.logger.Warn("Builder class does not declare required executables; disabling it", logfields.Builder(c.Name))
		active = false
	}
	for _, name := range c.RequiredExecs {
		if _, err := r.lookPath(name); err != nil {
			r.logger.Warn("Required executable not found; disabling builder class",
				logfields.Builder(c.Name), logfields.Exec(name))
			active = false
		}
	}
	r.active[c.Name] = active
	return active
}

func (r *Registry) tableLocked() map[extPair]*Class {
	if r.table != nil {
		return r.table
	}
	table := make(map[extPair]*Class)
	for _, c := range r.classes {
		if !c.Available || !r.activeLocked(c) {
			continue
		}
		key := extPair{in: normExt(c.InExt), out: normExt(c.OutExt)}
		if cur, ok := table[key]; !ok || c.Priority > cur.Priority {
			table[key] = c
		}
	}
	r.table = table
	return table
}

// Find returns the highest-priority active class converting inExt to
// outExt. When no exact pair exists and a target is given, a format the
// target accepts natively is copied as-is, otherwise the target's accepted
// formats are tried in order. Nothing found is a build error.
func (r *Registry) Find(inExt, outExt, target string) (*Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, out := normExt(inExt), normExt(outExt)
	table := r.tableLocked()
	if out != "" {
		if c, ok := table[extPair{in: in, out: out}]; ok {
			return c, nil
		}
		if in == out {
			if c, ok := table[extPair{in: AnyExt, out: AnyExt}]; ok {
				return c, nil
			}
		}
	}

	if target != "" {
		tracked := r.tracked[normExt(target)]
		if slices.Contains(tracked, in) {
			if c, ok := table[extPair{in: AnyExt, out: AnyExt}]; ok {
				return c, nil
			}
		}
		for _, ext := range tracked {
			if c, ok := table[extPair{in: in, out: ext}]; ok {
				return c, nil
			}
		}
	}

	return nil, derrors.BuildError("no builder found for conversion").
		WithContext(logfields.KeyInExt, inExt).
		WithContext(logfields.KeyOutExt, outExt).
		WithContext(logfields.KeyTarget, target).
		Build()
}

// normExt lower-cases an extension and ensures a leading dot.
func normExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}
