package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	require.Equal(t, Version, String())

	v, c, b := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = v, c, b })
	Version, GitCommit, BuildTime = "v1.2.0", "abc123", "2026-01-02"
	require.Equal(t, "v1.2.0 (abc123, built 2026-01-02)", String())
}
