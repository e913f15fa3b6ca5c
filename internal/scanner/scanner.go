// Package scanner discovers implicit build dependencies by inspecting the
// content of files that are already available.
package scanner

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
	"git.home.luguber.info/inful/dmbuild/internal/paths"
)

// ScanFunc extracts raw file references from file content.
type ScanFunc func(content []byte) ([]string, error)

// Scanner resolves references found in files to existing source paths.
type Scanner struct {
	funcs  map[string]ScanFunc
	logger *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the scanner logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithScanFunc registers fn for each extension.
func WithScanFunc(fn ScanFunc, exts ...string) Option {
	return func(s *Scanner) { s.Register(fn, exts...) }
}

// New creates a Scanner with the HTML-family scanner registered.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		funcs:  make(map[string]ScanFunc),
		logger: slog.Default(),
	}
	s.Register(ScanHTML, HTMLExtensions...)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register installs fn for the given file extensions.
func (s *Scanner) Register(fn ScanFunc, exts ...string) {
	for _, ext := range exts {
		s.funcs[strings.ToLower(ext)] = fn
	}
}

// Handles reports whether a scan function exists for ext.
func (s *Scanner) Handles(ext string) bool {
	_, ok := s.funcs[strings.ToLower(ext)]
	return ok
}

// Scan inspects each parameter file with a registered scan function and
// returns the dependencies it references. Each reference is resolved against
// the referencing file's directory, then the file's root, then searchPaths.
// An unresolved reference is a not-found error unless tolerateMissing is set.
func (s *Scanner) Scan(files []paths.SourcePath, searchPaths []string, tolerateMissing bool) ([]paths.SourcePath, error) {
	var found []paths.SourcePath
	seen := make(map[string]struct{})
	for _, f := range files {
		fn, ok := s.funcs[strings.ToLower(f.Ext())]
		if !ok || !isFile(f.String()) {
			continue
		}
		content, err := os.ReadFile(f.String())
		if err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "read file for scanning").
				WithContext(logfields.KeyPath, f.String()).
				Build()
		}
		refs, err := fn(content)
		if err != nil {
			s.logger.Warn("Scan incomplete", logfields.Path(f.String()), logfields.Error(err))
		}
		for _, ref := range refs {
			dep, ok := resolve(f, ref, searchPaths)
			if !ok {
				if tolerateMissing {
					s.logger.Debug("Skipping unresolved reference",
						logfields.Path(f.String()), slog.String("reference", ref))
					continue
				}
				return nil, derrors.NotFoundError("dependency referenced by file not found").
					WithContext(logfields.KeyPath, f.String()).
					WithContext("reference", ref).
					WithContext("candidates", candidates(f, ref, searchPaths)).
					Build()
			}
			if _, dup := seen[dep.String()]; dup {
				continue
			}
			seen[dep.String()] = struct{}{}
			found = append(found, dep)
		}
	}
	return found, nil
}

func resolve(f paths.SourcePath, ref string, searchPaths []string) (paths.SourcePath, bool) {
	for _, p := range candidatePaths(f, ref, searchPaths) {
		if isFile(p.String()) {
			return p, true
		}
	}
	return paths.SourcePath{}, false
}

func candidatePaths(f paths.SourcePath, ref string, searchPaths []string) []paths.SourcePath {
	stub := filepath.Clean(strings.TrimLeft(filepath.FromSlash(ref), string(filepath.Separator)))
	tries := []paths.SourcePath{
		{Root: f.Root, Subpath: filepath.Join(filepath.Dir(f.Subpath), stub)},
		{Root: f.Root, Subpath: stub},
	}
	for _, sp := range searchPaths {
		tries = append(tries, paths.SourcePath{Root: sp, Subpath: stub})
	}
	return tries
}

func candidates(f paths.SourcePath, ref string, searchPaths []string) []string {
	tries := candidatePaths(f, ref, searchPaths)
	out := make([]string, len(tries))
	for i, p := range tries {
		out[i] = p.String()
	}
	return out
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
