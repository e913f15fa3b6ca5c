package config

import (
	"sort"
	"strings"

	"git.home.luguber.info/inful/dmbuild/internal/foundation/normalization"
)

// DeciderStore names a decision record backend.
type DeciderStore string

const (
	DeciderMemory DeciderStore = "memory"
	DeciderSQLite DeciderStore = "sqlite"
)

var deciderStoreNormalizer = normalization.NewNormalizer(map[string]DeciderStore{
	"memory":  DeciderMemory,
	"sqlite":  DeciderSQLite,
	"sqlite3": DeciderSQLite,
}, "")

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewNormalizer(map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, LogLevelInfo)

// NormalizeLogLevel maps raw to a known level, defaulting to info.
func NormalizeLogLevel(raw string) LogLevel {
	return logLevelNormalizer.Normalize(raw)
}

// normalize canonicalizes extensions and enumerations in place. Unknown
// decider stores are left for Validate to report.
func normalize(c *Config) {
	c.MarkupExtension = normExt(c.MarkupExtension)
	for i, t := range c.Targets {
		c.Targets[i] = normExt(t)
	}
	if s, ok := deciderStoreNormalizer.Lookup(string(c.Decider.Store)); ok {
		c.Decider.Store = s
	}
	// Defaults are spelled canonically, so canonical keys go first and any
	// user spelling of the same target (html, HTML) overrides them.
	keys := make([]string, 0, len(c.TrackedDeps))
	for target := range c.TrackedDeps {
		keys = append(keys, target)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := keys[i] == normExt(keys[i]), keys[j] == normExt(keys[j])
		if ci != cj {
			return ci
		}
		return keys[i] < keys[j]
	})
	tracked := make(map[string][]string, len(keys))
	for _, target := range keys {
		exts := c.TrackedDeps[target]
		out := make([]string, 0, len(exts))
		for _, e := range exts {
			out = append(out, normExt(e))
		}
		tracked[normExt(target)] = out
	}
	c.TrackedDeps = tracked
	c.LogLevel = string(NormalizeLogLevel(c.LogLevel))
}

func normExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
