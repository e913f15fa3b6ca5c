// Package decider answers whether an output needs to be (re)built by
// comparing a content hash of its inputs and action against the hash
// recorded when the output was last built.
package decider

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
	"git.home.luguber.info/inful/dmbuild/internal/paths"
)

// Input is one hashed build input: either a file or a literal string.
type Input struct {
	Path   string
	Text   string
	IsText bool
}

// FileInput returns an Input hashing the contents of the file at path.
func FileInput(path string) Input { return Input{Path: path} }

// TextInput returns an Input hashing a literal string.
func TextInput(text string) Input { return Input{Text: text, IsText: true} }

type fileStamp struct {
	size     int64
	modTime  time.Time
	hashedAt time.Time
	sum      uint64
}

// racyWindow covers coarse file system timestamps: a file modified this
// close to the moment it was hashed is always hashed again.
const racyWindow = time.Second

// Decider compares freshly computed input hashes against recorded decisions.
type Decider struct {
	store  Store
	logger *slog.Logger

	mu    sync.Mutex
	files map[string]fileStamp
}

// Option configures a Decider.
type Option func(*Decider)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decider) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Decider backed by store. A nil store uses a MemoryStore.
func New(store Store, opts ...Option) *Decider {
	if store == nil {
		store = NewMemoryStore()
	}
	d := &Decider{
		store:  store,
		logger: slog.Default(),
		files:  make(map[string]fileStamp),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// errMissingInput marks an input file that does not exist yet.
var errMissingInput = errors.New("input missing")

// Hash computes the combined decision hash over inputs and action. Input
// order does not affect the result.
func (d *Decider) Hash(inputs []Input, action string) (string, error) {
	sums := make([]string, 0, len(inputs))
	for _, in := range inputs {
		var sum uint64
		if in.IsText {
			sum = HashText(in.Text)
		} else {
			s, err := d.hashFile(in.Path)
			if err != nil {
				return "", err
			}
			sum = s
		}
		sums = append(sums, ShortHash(sum, 0))
	}
	sort.Strings(sums)

	h := xxhash.New()
	for _, s := range sums {
		_, _ = h.WriteString(s)
		_, _ = h.WriteString("\n")
	}
	_, _ = h.WriteString(action)
	return ShortHash(h.Sum64(), 0), nil
}

// BuildNeeded reports whether output must be (re)built from inputs with
// the given action. It returns false only when the recorded hash equals
// the fresh one and output exists. With reset the fresh hash is recorded
// as the new baseline and false is returned.
func (d *Decider) BuildNeeded(inputs []Input, action, output string, reset bool) (bool, error) {
	return d.BuildNeededAs(output, inputs, action, output, reset)
}

// BuildNeededAs is BuildNeeded with the decision recorded under key instead
// of the output path. Builders sharing an output, such as a chain and its
// last step, each keep their own record.
func (d *Decider) BuildNeededAs(key string, inputs []Input, action, output string, reset bool) (bool, error) {
	hash, err := d.Hash(inputs, action)
	if errors.Is(err, errMissingInput) {
		return true, nil
	}
	if err != nil {
		return true, derrors.WrapError(err, derrors.CategoryDecider, "hash build inputs").
			WithContext(logfields.KeyOutfile, output).
			Build()
	}

	if reset {
		if err := d.store.Put(key, hash); err != nil {
			return false, derrors.WrapError(err, derrors.CategoryDecider, "record decision").
				WithContext(logfields.KeyOutfile, output).
				Build()
		}
		d.logger.Debug("Decision recorded", logfields.Outfile(output))
		return false, nil
	}

	stored, ok, err := d.store.Get(key)
	if err != nil {
		return true, derrors.WrapError(err, derrors.CategoryDecider, "read decision").
			WithContext(logfields.KeyOutfile, output).
			Build()
	}
	if !ok || stored != hash {
		return true, nil
	}
	return !paths.Exists(output), nil
}

// Forget drops the recorded decision for output.
func (d *Decider) Forget(output string) error {
	return d.store.Delete(output)
}

// Close releases the underlying store.
func (d *Decider) Close() error {
	return d.store.Close()
}

// hashFile hashes a file, reusing the previous result while size and
// modification time are unchanged.
func (d *Decider) hashFile(path string) (uint64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, errMissingInput
	}
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	stamp, ok := d.files[path]
	d.mu.Unlock()
	if ok && stamp.size == info.Size() && stamp.modTime.Equal(info.ModTime()) &&
		stamp.hashedAt.Sub(info.ModTime()) > racyWindow {
		return stamp.sum, nil
	}

	hashedAt := time.Now()
	sum, err := HashFile(path)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	d.files[path] = fileStamp{size: info.Size(), modTime: info.ModTime(), hashedAt: hashedAt, sum: sum}
	d.mu.Unlock()
	return sum, nil
}
