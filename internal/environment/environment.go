// Package environment owns the per-project build state: the roots, the
// builder registry, the decider and the root builder of a document tree.
package environment

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/dmbuild/internal/builder"
	"git.home.luguber.info/inful/dmbuild/internal/config"
	"git.home.luguber.info/inful/dmbuild/internal/decider"
	"git.home.luguber.info/inful/dmbuild/internal/document"
	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
	"git.home.luguber.info/inful/dmbuild/internal/metrics"
	"git.home.luguber.info/inful/dmbuild/internal/paths"
	"git.home.luguber.info/inful/dmbuild/internal/scanner"
	"git.home.luguber.info/inful/dmbuild/internal/targets"
)

// Environment builds one root document and everything it includes.
type Environment struct {
	Root *document.Document
	Env  *builder.Env

	cfg      *config.Config
	recorder metrics.Recorder
	logger   *slog.Logger
	factory  *targets.Factory
	root     *builder.Parallel
	ownStore bool
}

// CreateEnvironments discovers the root documents below rootPath and
// creates one Environment for each.
func CreateEnvironments(rootPath string, opts ...Option) ([]*Environment, error) {
	o := newOptions(opts)
	files, err := Discover(rootPath, o.cfg.MarkupExtension)
	if err != nil {
		return nil, err
	}
	envs := make([]*Environment, 0, len(files))
	for _, f := range files {
		e, err := New(f, opts...)
		if err != nil {
			for _, prev := range envs {
				_ = prev.Close()
			}
			return nil, err
		}
		envs = append(envs, e)
	}
	return envs, nil
}

// New creates the Environment of the root document srcFile.
func New(srcFile string, opts ...Option) (*Environment, error) {
	o := newOptions(opts)
	cfg := o.cfg

	abs, err := filepath.Abs(srcFile)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "resolve document path").
			WithContext(logfields.KeyDocument, srcFile).
			Build()
	}
	projectRoot, targetRoot := ResolveRoots(filepath.Dir(abs))
	if o.targetRoot != "" {
		targetRoot = o.targetRoot
	}

	reg, err := NewRegistry(cfg, projectRoot, opts...)
	if err != nil {
		return nil, err
	}
	env := &builder.Env{
		ProjectRoot: projectRoot,
		TargetRoot:  targetRoot,
		CacheDir:    cfg.CacheDir,
		MediaDir:    cfg.MediaDir,
		HashLength:  cfg.HashLength,
		Scanner:     scanner.New(scanner.WithLogger(o.logger)),
		Registry:    reg,
		Runner: builder.NewRunner(cfg.MaxJobs,
			builder.WithTimeout(cfg.Timeout),
			builder.WithPollInterval(cfg.PollInterval),
			builder.WithRunnerMetrics(o.recorder),
			builder.WithRunnerLogger(o.logger)),
		Metrics: o.recorder,
		Logger:  o.logger,
	}
	store := o.store
	if store == nil {
		if store, err = newStore(cfg, env.CachePath()); err != nil {
			return nil, err
		}
	}
	env.Decider = decider.New(store, decider.WithLogger(o.logger))

	root, err := document.Load(projectRoot, abs, document.Settings{
		MarkupExt:      cfg.MarkupExtension,
		DefaultTargets: cfg.Targets,
		TemplatesDir:   projectPath(projectRoot, cfg.TemplatesDir),
	})
	if err != nil {
		if o.store == nil {
			_ = env.Decider.Close()
		}
		return nil, err
	}

	o.logger.Debug("Created environment",
		logfields.Document(abs), logfields.Root(projectRoot), logfields.Path(targetRoot))
	return &Environment{
		Root:     root,
		Env:      env,
		cfg:      cfg,
		recorder: o.recorder,
		logger:   o.logger,
		factory:  targets.NewFactory(env),
		ownStore: o.store == nil,
	}, nil
}

// NewRegistry returns the builder classes of a project: the built-in
// ones, the target builders and those declared in the builders file.
func NewRegistry(cfg *config.Config, projectRoot string, opts ...Option) (*builder.Registry, error) {
	o := newOptions(opts)
	reg, err := newRegistry(cfg, projectRoot, o.logger, o.lookPath)
	if err != nil {
		return nil, err
	}
	if err := reg.Register(o.classes...); err != nil {
		return nil, err
	}
	return reg, nil
}

func newRegistry(cfg *config.Config, projectRoot string, logger *slog.Logger, lookPath func(string) (string, error)) (*builder.Registry, error) {
	regOpts := []builder.RegistryOption{
		builder.WithTrackedDeps(cfg.TrackedDeps),
		builder.WithRegistryLogger(logger),
	}
	if lookPath != nil {
		regOpts = append(regOpts, builder.WithLookPath(lookPath))
	}
	reg := builder.NewRegistry(regOpts...)
	if err := builder.RegisterBuiltins(reg); err != nil {
		return nil, err
	}
	if err := targets.RegisterClasses(reg, cfg.MarkupExtension); err != nil {
		return nil, err
	}
	if p := projectPath(projectRoot, cfg.BuildersFile); p != "" && paths.Exists(p) {
		classes, err := builder.LoadHCL(p, projectRoot)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(classes...); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func newStore(cfg *config.Config, cachePath string) (decider.Store, error) {
	if cfg.Decider.Store != config.DeciderSQLite {
		return decider.NewMemoryStore(), nil
	}
	p := cfg.DeciderPath(cachePath)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "create decider directory").
			WithContext(logfields.KeyPath, p).
			Build()
	}
	return decider.NewSQLiteStore(p)
}

// projectPath resolves a configured path against the project root.
func projectPath(projectRoot, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(projectRoot, p)
}

// CreateRootBuilder returns the parallel builder over every target builder
// of the root document and its subdocuments. It is created once.
func (e *Environment) CreateRootBuilder() (*builder.Parallel, error) {
	if e.root != nil {
		return e.root, nil
	}
	b, err := e.Env.New(builder.ParallelClass, builder.Options{})
	if err != nil {
		return nil, err
	}
	root, ok := b.(*builder.Parallel)
	if !ok {
		return nil, derrors.InternalError("parallel class built a non-parallel builder").Build()
	}
	for i, doc := range e.Root.Tree() {
		ts, err := e.factory.ForDocument(doc, i == 0)
		if err != nil {
			return nil, err
		}
		for _, t := range ts {
			root.Add(t)
		}
	}
	e.root = root
	return root, nil
}

// Build drives the root builder. With complete it returns once the build
// reached a terminal state, which is an error unless it is done.
func (e *Environment) Build(ctx context.Context, complete bool) (builder.Status, error) {
	root, err := e.CreateRootBuilder()
	if err != nil {
		return builder.StatusMissingParameters, err
	}
	start := time.Now()
	st, err := root.Build(ctx, complete)
	if !complete && err == nil {
		return st, nil
	}

	e.recorder.ObserveBuildDuration(time.Since(start))
	doc := e.Root.SrcFilepath().String()
	if err != nil {
		e.recorder.IncBuildOutcome(metrics.OutcomeFailed)
		e.logger.Error("Build failed", logfields.Document(doc), logfields.Status(st.String()), logfields.Error(err))
		return st, err
	}
	if st != builder.StatusDone {
		e.recorder.IncBuildOutcome(metrics.OutcomeIncomplete)
		return st, derrors.BuildError("build finished without completing").
			WithContext(logfields.KeyDocument, doc).
			WithContext(logfields.KeyStatus, st.String()).
			Build()
	}
	e.recorder.IncBuildOutcome(metrics.OutcomeDone)
	e.logger.Info("Build complete", logfields.Document(doc),
		slog.Int64("spawned", e.Env.Runner.Spawned()),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	return st, nil
}

// BuildNeeded reports whether any target builder is out of date.
func (e *Environment) BuildNeeded() (bool, error) {
	root, err := e.CreateRootBuilder()
	if err != nil {
		return true, err
	}
	return root.BuildNeeded()
}

// Builders returns every builder of the graph, depth first.
func (e *Environment) Builders() ([]builder.Builder, error) {
	root, err := e.CreateRootBuilder()
	if err != nil {
		return nil, err
	}
	var out []builder.Builder
	builder.Walk(root, func(b builder.Builder) { out = append(out, b) })
	return out, nil
}

// Config returns the configuration the environment was created with.
func (e *Environment) Config() *config.Config { return e.cfg }

// Close releases the decision store unless it is shared.
func (e *Environment) Close() error {
	if !e.ownStore {
		return nil
	}
	return e.Env.Decider.Close()
}
