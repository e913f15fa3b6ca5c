package environment

import (
	"log/slog"

	"git.home.luguber.info/inful/dmbuild/internal/builder"
	"git.home.luguber.info/inful/dmbuild/internal/config"
	"git.home.luguber.info/inful/dmbuild/internal/decider"
	"git.home.luguber.info/inful/dmbuild/internal/metrics"
)

type options struct {
	cfg        *config.Config
	targetRoot string
	logger     *slog.Logger
	recorder   metrics.Recorder
	lookPath   func(string) (string, error)
	classes    []*builder.Class
	store      decider.Store
}

// Option configures an Environment.
type Option func(*options)

// WithConfig sets the configuration. The default is config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.cfg = cfg
		}
	}
}

// WithTargetRoot overrides the directory outputs are written to.
func WithTargetRoot(dir string) Option {
	return func(o *options) { o.targetRoot = dir }
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithLookPath replaces executable discovery.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(o *options) { o.lookPath = fn }
}

// WithClasses registers additional builder classes.
func WithClasses(classes ...*builder.Class) Option {
	return func(o *options) { o.classes = append(o.classes, classes...) }
}

// WithDeciderStore shares store between environments instead of opening
// one per environment. The caller closes it.
func WithDeciderStore(store decider.Store) Option {
	return func(o *options) { o.store = store }
}

func newOptions(opts []Option) *options {
	o := &options{cfg: config.Default(), logger: slog.Default(), recorder: metrics.NoopRecorder{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
