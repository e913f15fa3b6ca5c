package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dmbuild/internal/decider"
	"git.home.luguber.info/inful/dmbuild/internal/paths"
	"git.home.luguber.info/inful/dmbuild/internal/scanner"
)

func lookAll(name string) (string, error) { return "/usr/bin/" + name, nil }

func lookExcept(missing ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, m := range missing {
			if m == name {
				return "", errors.New("executable file not found in $PATH")
			}
		}
		return lookAll(name)
	}
}

// newTestEnv returns an environment rooted in a temp dir with the builtin
// classes plus extra registered.
func newTestEnv(t *testing.T, lookPath func(string) (string, error), extra ...*Class) *Env {
	t.Helper()
	root := t.TempDir()
	reg := NewRegistry(WithLookPath(lookPath), WithTrackedDeps(DefaultTrackedDeps()))
	require.NoError(t, RegisterBuiltins(reg))
	require.NoError(t, reg.Register(extra...))
	return &Env{
		ProjectRoot: root,
		TargetRoot:  root,
		MediaDir:    "media",
		Decider:     decider.New(nil),
		Scanner:     scanner.New(),
		Registry:    reg,
		Runner:      NewRunner(2, WithTimeout(5*time.Second), WithPollInterval(10*time.Millisecond)),
	}
}

func writeSource(t *testing.T, env *Env, sub, content string) paths.SourcePath {
	t.Helper()
	p := paths.SourcePath{Root: env.ProjectRoot, Subpath: sub}
	require.NoError(t, os.MkdirAll(filepath.Dir(p.String()), 0o750))
	require.NoError(t, os.WriteFile(p.String(), []byte(content), 0o600))
	return p
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func upperWork(_ context.Context, l *Leaf) error {
	in := Files(l.Parameters())[0]
	data, err := os.ReadFile(in.String())
	if err != nil {
		return err
	}
	out, err := l.Outfile()
	if err != nil {
		return err
	}
	return os.WriteFile(out.String(), []byte(strings.ToUpper(string(data))), 0o600)
}

// Fake classes exercising in-process work and real processes.
var (
	upperClass = &Class{
		Name: "Upper", InExt: ".txt", OutExt: ".mid",
		Priority: 10, RequiredExecs: []string{}, Available: true,
		Action: "upper", Work: upperWork,
	}
	cpClass = &Class{
		Name: "Cp", InExt: ".mid", OutExt: ".fin",
		Priority: 10, RequiredExecs: []string{"cp"}, Available: true,
		Action: "cp {builder.infilepath} {builder.outfilepath}",
	}
	upperCopyClass = &Class{
		Name: "UpperCopy", InExt: ".txt", OutExt: ".fin",
		Priority: 10, RequiredExecs: []string{}, Available: true,
		Action: "upper-copy",
		New: func(env *Env, c *Class, opts Options) (Builder, error) {
			return NewPipeline(env, c, opts, Stage{Class: "Upper"}, Stage{Class: "Cp"})
		},
	}
)

func fakeClasses() []*Class {
	// Copies keep tests independent of each other.
	out := []*Class{}
	for _, c := range []*Class{upperClass, cpClass, upperCopyClass} {
		cc := *c
		out = append(out, &cc)
	}
	return out
}
