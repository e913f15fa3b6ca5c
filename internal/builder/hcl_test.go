package builder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
)

func writeHCL(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "builders.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadHCL(t *testing.T) {
	t.Setenv("DMBUILD_TEST_DPI", "150")
	path := writeHCL(t, `
builder "Svg2png" {
  in             = ".svg"
  out            = "png"
  action         = "rsvg-convert -d ${env.DMBUILD_TEST_DPI} -o {builder.outfilepath} {builder.infilepath}"
  priority       = 2000
  required_execs = ["rsvg-convert"]
}

builder "Dot2svg" {
  in     = ".dot"
  out    = ".svg"
  action = "dot -Tsvg -o {builder.outfilepath} {builder.infilepath}"
}

builder "Local" {
  in             = ".x"
  out            = ".y"
  action         = "${project_root}/bin/convert {builder.infilepath} {builder.outfilepath}"
  priority       = 1
  required_execs = []
  suffix         = "_local"
  available      = false
}
`)

	classes, err := LoadHCL(path, "/work/book")
	require.NoError(t, err)
	require.Len(t, classes, 3)

	svg := classes[0]
	require.Equal(t, "Svg2png", svg.Name)
	require.Equal(t, ".png", svg.OutExt)
	require.Equal(t, 2000, svg.Priority)
	require.Equal(t, []string{"rsvg-convert"}, svg.RequiredExecs)
	require.Equal(t, "rsvg-convert -d 150 -o {builder.outfilepath} {builder.infilepath}", svg.Action)
	require.True(t, svg.Available)

	dot := classes[1]
	require.Zero(t, dot.Priority)
	require.Nil(t, dot.RequiredExecs)

	local := classes[2]
	require.Equal(t, "/work/book/bin/convert {builder.infilepath} {builder.outfilepath}", local.Action)
	require.Equal(t, []string{}, local.RequiredExecs)
	require.Equal(t, "_local", local.Suffix)
	require.False(t, local.Available)

	reg := NewRegistry(WithLookPath(lookAll))
	require.NoError(t, reg.Register(classes...))
	require.True(t, reg.Active(svg))
	require.False(t, reg.Active(dot), "undeclared priority and executables disable a class")
	c, err := reg.Find(".svg", ".png", "")
	require.NoError(t, err)
	require.Same(t, svg, c)
}

func TestLoadHCLPipeline(t *testing.T) {
	path := writeHCL(t, `
builder "Shout" {
  in             = ".txt"
  out            = ".fin"
  stages         = ["Upper", "Cp"]
  priority       = 50
  required_execs = []
}
`)
	classes, err := LoadHCL(path, "")
	require.NoError(t, err)
	require.Len(t, classes, 1)
	require.NotNil(t, classes[0].New)

	env := newTestEnv(t, lookAll, append(fakeClasses(), classes...)...)
	in := writeSource(t, env, "a.txt", "x")
	b, err := env.NewFor(".txt", ".fin", "", Options{Params: []Param{FileParam(in)}})
	require.NoError(t, err)
	require.Equal(t, "Shout", b.Name())
}

func TestLoadHCLErrors(t *testing.T) {
	_, err := LoadHCL(writeHCL(t, `builder "Broken" {`), "")
	require.True(t, derrors.HasCategory(err, derrors.CategoryConfig))

	_, err = LoadHCL(writeHCL(t, `builder "NoAction" {
  in  = ".a"
  out = ".b"
}`), "")
	require.True(t, derrors.HasCategory(err, derrors.CategoryConfig))

	_, err = LoadHCL(filepath.Join(t.TempDir(), "missing.hcl"), "")
	require.Error(t, err)
}
