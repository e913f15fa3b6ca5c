package builder

import (
	"testing"

	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
)

func TestFindPicksHighestPriority(t *testing.T) {
	reg := NewRegistry(WithLookPath(lookExcept("missing-tool")))
	require.NoError(t, reg.Register(
		&Class{Name: "Low", InExt: ".a", OutExt: ".b", Priority: 10, RequiredExecs: []string{}, Available: true, Action: "low"},
		&Class{Name: "High", InExt: ".a", OutExt: ".b", Priority: 30, RequiredExecs: []string{}, Available: true, Action: "high"},
		&Class{Name: "Mid", InExt: ".a", OutExt: ".b", Priority: 20, RequiredExecs: []string{}, Available: true, Action: "mid"},
		&Class{Name: "Broken", InExt: ".a", OutExt: ".b", Priority: 99, RequiredExecs: []string{"missing-tool"}, Available: true, Action: "broken"},
		&Class{Name: "Hidden", InExt: ".a", OutExt: ".b", Priority: 98, RequiredExecs: []string{}, Action: "hidden"},
	))

	c, err := reg.Find(".a", ".b", "")
	require.NoError(t, err)
	require.Equal(t, "High", c.Name)

	c, err = reg.Find("A", "B", "")
	require.NoError(t, err)
	require.Equal(t, "High", c.Name, "extensions are normalized")
}

func TestActiveRequiresDeclarations(t *testing.T) {
	reg := NewRegistry(WithLookPath(lookAll))
	noPriority := &Class{Name: "NoPriority", InExt: ".a", OutExt: ".b", RequiredExecs: []string{}, Action: "x"}
	noExecs := &Class{Name: "NoExecs", InExt: ".a", OutExt: ".b", Priority: 1, Action: "x"}
	ok := &Class{Name: "Ok", InExt: ".a", OutExt: ".b", Priority: 1, RequiredExecs: []string{}, Action: "x"}
	require.NoError(t, reg.Register(noPriority, noExecs, ok))

	require.False(t, reg.Active(noPriority))
	require.False(t, reg.Active(noExecs))
	require.True(t, reg.Active(ok))
}

func TestActiveIsMemoized(t *testing.T) {
	calls := 0
	reg := NewRegistry(WithLookPath(func(name string) (string, error) {
		calls++
		return lookAll(name)
	}))
	c := &Class{Name: "Tool", InExt: ".a", OutExt: ".b", Priority: 1, RequiredExecs: []string{"tool"}, Action: "tool"}
	require.NoError(t, reg.Register(c))

	for range 3 {
		require.True(t, reg.Active(c))
	}
	require.Equal(t, 1, calls)
}

func TestFindMissingExecutableIsBuildError(t *testing.T) {
	reg := NewRegistry(WithLookPath(lookExcept("pdflatex")))
	require.NoError(t, RegisterBuiltins(reg))

	_, err := reg.Find(".tex", ".pdf", "")
	require.Error(t, err)
	require.True(t, derrors.IsBuildError(err))
}

func TestFindTrackedFallback(t *testing.T) {
	reg := NewRegistry(WithLookPath(lookAll), WithTrackedDeps(DefaultTrackedDeps()))
	require.NoError(t, RegisterBuiltins(reg))

	c, err := reg.Find(".svg", "", ".html")
	require.NoError(t, err)
	require.Equal(t, CopyClass, c.Name, "natively accepted formats are copied")

	c, err = reg.Find(".css", ".css", "")
	require.NoError(t, err)
	require.Equal(t, CopyClass, c.Name)

	c, err = reg.Find(".tif", "", ".html")
	require.NoError(t, err)
	require.Equal(t, "Tif2png", c.Name, "first convertible tracked format wins")

	c, err = reg.Find(".asy", "", ".html")
	require.NoError(t, err)
	require.Equal(t, "Asy2svg", c.Name)

	_, err = reg.Find(".xyz", "", ".html")
	require.True(t, derrors.IsBuildError(err))
}

func TestRegisterValidation(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Class{Name: "A", Action: "a"}))
	require.Error(t, reg.Register(&Class{Name: "A", Action: "a"}))
	require.Error(t, reg.Register(&Class{Action: "a"}))
	require.Error(t, reg.Register(&Class{Name: "NoAction"}))

	_, err := reg.Class("Nope")
	require.True(t, derrors.IsBuildError(err))
}
