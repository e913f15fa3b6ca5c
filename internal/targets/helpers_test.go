package targets_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dmbuild/internal/builder"
	"git.home.luguber.info/inful/dmbuild/internal/decider"
	"git.home.luguber.info/inful/dmbuild/internal/document"
	"git.home.luguber.info/inful/dmbuild/internal/scanner"
	"git.home.luguber.info/inful/dmbuild/internal/targets"
)

func lookAll(name string) (string, error) { return "/usr/bin/" + name, nil }

func lookExcept(missing string) func(string) (string, error) {
	return func(name string) (string, error) {
		if name == missing {
			return "", errors.New("executable file not found in $PATH")
		}
		return lookAll(name)
	}
}

// fakeTex2pdf stands in for a TeX engine by copying the tex source.
func fakeTex2pdf() *builder.Class {
	return &builder.Class{
		Name: "FakeTex2pdf", InExt: ".tex", OutExt: ".pdf",
		Priority: 9999, RequiredExecs: []string{"cp"}, Available: true,
		Action: "cp {builder.infilepath} {builder.outfilepath}",
	}
}

func newEnv(t *testing.T, lookPath func(string) (string, error), extra ...*builder.Class) *builder.Env {
	t.Helper()
	root := t.TempDir()
	reg := builder.NewRegistry(builder.WithLookPath(lookPath), builder.WithTrackedDeps(builder.DefaultTrackedDeps()))
	require.NoError(t, builder.RegisterBuiltins(reg))
	require.NoError(t, targets.RegisterClasses(reg, ".dm"))
	require.NoError(t, reg.Register(extra...))
	return &builder.Env{
		ProjectRoot: root,
		TargetRoot:  root,
		MediaDir:    "media",
		Decider:     decider.New(nil),
		Scanner:     scanner.New(),
		Registry:    reg,
		Runner:      builder.NewRunner(2, builder.WithTimeout(5*time.Second), builder.WithPollInterval(10*time.Millisecond)),
	}
}

func write(t *testing.T, env *builder.Env, sub, content string) {
	t.Helper()
	p := filepath.Join(env.ProjectRoot, sub)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

func load(t *testing.T, env *builder.Env, file string) *document.Document {
	t.Helper()
	doc, err := document.Load(env.ProjectRoot, file, document.Settings{
		MarkupExt:      ".dm",
		DefaultTargets: []string{".html"},
		TemplatesDir:   filepath.Join(env.ProjectRoot, "templates"),
	})
	require.NoError(t, err)
	return doc
}

// filesWithExt lists files below dir, relative to it, ending in ext.
func filesWithExt(t *testing.T, dir, ext string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(p) == ext {
			rel, _ := filepath.Rel(dir, p)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	return out
}
