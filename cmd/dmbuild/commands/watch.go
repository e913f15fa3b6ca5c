package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/dmbuild/internal/config"
	"git.home.luguber.info/inful/dmbuild/internal/decider"
	"git.home.luguber.info/inful/dmbuild/internal/environment"
	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
	"git.home.luguber.info/inful/dmbuild/internal/metrics"
	"git.home.luguber.info/inful/dmbuild/internal/targets"
)

const rebuildDebounce = 300 * time.Millisecond

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Path        string `arg:"" optional:"" default:"." help:"Project directory or root document"`
	Output      string `short:"o" help:"Target root for outputs (default: next to the sources)"`
	MetricsAddr string `name:"metrics-addr" help:"Serve Prometheus metrics on this address (e.g. :9090)"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g, w.Path)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prom.NewRegistry()
	if w.MetricsAddr != "" {
		srv := &http.Server{Addr: w.MetricsAddr, Handler: metricsMux(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				g.logger().Warn("Metrics server stopped", logfields.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	wt := &watcher{
		path:   w.Path,
		output: w.Output,
		cfg:    cfg,
		logger: g.logger(),
		store:  decider.NewMemoryStore(),
		opts:   envOptions(g, cfg, w.Output, environment.WithRecorder(metrics.NewPrometheusRecorder(reg))),
	}
	return wt.run(ctx)
}

func metricsMux(reg *prom.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	return mux
}

// watcher rebuilds the project whenever a source below it changes. The
// decision store is shared by every pass so unchanged outputs are kept.
type watcher struct {
	path   string
	output string
	cfg    *config.Config
	logger *slog.Logger
	store  decider.Store
	opts   []environment.Option

	ignore []string
}

func (w *watcher) run(ctx context.Context) error {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "resolve project path").Build()
	}
	dir := abs
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		dir = filepath.Dir(abs)
	}
	w.ignore = w.ignoredDirs(dir)

	w.rebuild(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryInternal, "create file watcher").Build()
	}
	defer func() { _ = fw.Close() }()
	w.addDirs(fw, dir)

	rebuildReq, trigger := debouncer(rebuildDebounce)
	w.logger.Info("Watching for changes", logfields.Path(dir))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping watch")
			return nil
		case <-rebuildReq:
			w.rebuild(ctx)
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.ignored(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					w.addDirs(fw, ev.Name)
				}
			}
			w.logger.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			trigger()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// rebuild runs one pass. Failures are logged and the watch continues.
func (w *watcher) rebuild(ctx context.Context) {
	opts := append(append([]environment.Option{}, w.opts...), environment.WithDeciderStore(w.store))
	if err := runBuild(ctx, w.path, nil, opts...); err != nil && ctx.Err() == nil {
		w.logger.Warn("Rebuild failed", logfields.Error(err))
	}
}

// ignoredDirs are the directories whose changes are produced by the build
// itself: the cache and one directory per output format.
func (w *watcher) ignoredDirs(dir string) []string {
	_, targetRoot := environment.ResolveRoots(dir)
	if w.output != "" {
		targetRoot, _ = filepath.Abs(w.output)
	}
	out := []string{filepath.Join(targetRoot, w.cfg.CacheDir)}
	for _, ext := range targets.Formats() {
		out = append(out, filepath.Join(targetRoot, strings.TrimPrefix(ext, ".")))
	}
	return out
}

func (w *watcher) ignored(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") {
		return true
	}
	for _, d := range w.ignore {
		if path == d || strings.HasPrefix(path, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *watcher) addDirs(fw *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			w.logger.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

// debouncer coalesces bursts of triggers into one request after delay.
func debouncer(delay time.Duration) (<-chan struct{}, func()) {
	var mu sync.Mutex
	var timer *time.Timer
	req := make(chan struct{}, 1)
	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(delay, func() {
			select {
			case req <- struct{}{}:
			default:
			}
		})
	}
	return req, trigger
}
