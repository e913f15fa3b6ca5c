package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverridesAndExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DMBUILD_TEST_JOBS", "3")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DMBUILD_TEST_MEDIA=assets\nDMBUILD_TEST_JOBS=9\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("DMBUILD_TEST_MEDIA") })

	path := filepath.Join(dir, DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(`
markup_extension: DMD
targets: [html, PDF]
media_dir: ${DMBUILD_TEST_MEDIA}
max_jobs: ${DMBUILD_TEST_JOBS}
timeout: 0s
decider:
  store: SQLite
tracked_deps:
  html: [css]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ".dmd", cfg.MarkupExtension)
	require.Equal(t, []string{".html", ".pdf"}, cfg.Targets)
	require.Equal(t, "assets", cfg.MediaDir)
	require.Equal(t, 3, cfg.MaxJobs, "process environment wins over .env")
	require.Zero(t, cfg.Timeout)
	require.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	require.Equal(t, DeciderSQLite, cfg.Decider.Store)
	require.Equal(t, []string{".css"}, cfg.TrackedDeps[".html"])
	require.Equal(t, []string{".pdf", ".png"}, cfg.TrackedDeps[".tex"])
	require.Equal(t, filepath.Join("/p/.cache", "decider.db"), cfg.DeciderPath("/p/.cache"))
}

func TestNormalizeTrackedDepsUserSpellingWins(t *testing.T) {
	// Map iteration order varies between runs, so repeat.
	for range 50 {
		cfg := Default()
		cfg.TrackedDeps["HTML"] = []string{"css"}
		cfg.TrackedDeps["tex"] = []string{"PDF"}
		normalize(cfg)
		require.Equal(t, []string{".css"}, cfg.TrackedDeps[".html"])
		require.Equal(t, []string{".pdf"}, cfg.TrackedDeps[".tex"])
		require.Equal(t, []string{".css", ".svg", ".png"}, cfg.TrackedDeps[".xhtml"])
		require.Len(t, cfg.TrackedDeps, 3)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"hash_length":   "hash_length: 40\n",
		"decider.store": "decider: {store: redis}\n",
		"max_jobs":      "max_jobs: -1\n",
		"poll_interval": "poll_interval: 0s\n",
		"targets":       "targets: []\n",
	}
	for field, content := range cases {
		t.Run(field, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultFileName)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := Load(path)
			require.True(t, derrors.HasCategory(err, derrors.CategoryValidation), "%v", err)
			ce, ok := derrors.AsClassified(err)
			require.True(t, ok)
			got, _ := ce.Context().GetString("field")
			require.Equal(t, field, got)
		})
	}
}

func TestLoadParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("targets: [\n"), 0o600))
	_, err := Load(path)
	require.True(t, derrors.HasCategory(err, derrors.CategoryConfig))
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	require.True(t, derrors.HasCategory(Init(path, false), derrors.CategoryValidation))
	require.NoError(t, Init(path, true))
}

func TestNormalizeLogLevel(t *testing.T) {
	require.Equal(t, LogLevelWarn, NormalizeLogLevel(" WARNING "))
	require.Equal(t, LogLevelInfo, NormalizeLogLevel("chatty"))
}
