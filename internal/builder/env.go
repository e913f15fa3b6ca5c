package builder

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/dmbuild/internal/decider"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
	"git.home.luguber.info/inful/dmbuild/internal/metrics"
	"git.home.luguber.info/inful/dmbuild/internal/scanner"
)

// Env carries the shared state every builder of one environment uses.
type Env struct {
	ProjectRoot string
	TargetRoot  string
	// CacheDir is the name of the hidden directory for intermediates.
	CacheDir   string
	MediaDir   string
	HashLength int

	Decider  *decider.Decider
	Scanner  *scanner.Scanner
	Registry *Registry
	Runner   *Runner
	Metrics  metrics.Recorder
	Logger   *slog.Logger

	cacheOnce sync.Once
}

// CachePath returns the cache directory, creating it on first use.
func (e *Env) CachePath() string {
	name := e.CacheDir
	if name == "" {
		name = ".cache"
	}
	p := filepath.Join(e.TargetRoot, name)
	e.cacheOnce.Do(func() {
		if err := os.MkdirAll(p, 0o750); err != nil {
			e.logger().Warn("Failed to create cache directory", logfields.Path(p), logfields.Error(err))
		}
	})
	return p
}

// Log returns the environment logger.
func (e *Env) Log() *slog.Logger { return e.logger() }

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Env) recorder() metrics.Recorder {
	if e.Metrics == nil {
		return metrics.NoopRecorder{}
	}
	return e.Metrics
}

func (e *Env) hashLength() int {
	if e.HashLength <= 0 {
		return 12
	}
	return e.HashLength
}

// New constructs a builder of the named class.
func (e *Env) New(className string, opts Options) (Builder, error) {
	c, err := e.Registry.Class(className)
	if err != nil {
		return nil, err
	}
	return e.Instantiate(c, opts)
}

// NewFor constructs a builder for the best active class converting inExt
// to outExt, falling back to the formats tracked for target.
func (e *Env) NewFor(inExt, outExt, target string, opts Options) (Builder, error) {
	c, err := e.Registry.Find(inExt, outExt, target)
	if err != nil {
		return nil, err
	}
	return e.Instantiate(c, opts)
}

// Instantiate constructs a builder of class c.
func (e *Env) Instantiate(c *Class, opts Options) (Builder, error) {
	if c.New != nil {
		return c.New(e, c, opts)
	}
	return NewLeaf(e, c, opts)
}
