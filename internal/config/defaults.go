package config

import (
	"time"
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		MarkupExtension: ".dm",
		Targets:         []string{".html"},
		CacheDir:        ".cache",
		MediaDir:        "media",
		Timeout:         5 * time.Minute,
		PollInterval:    50 * time.Millisecond,
		HashLength:      12,
		Decider:         DeciderConfig{Store: DeciderMemory},
		TrackedDeps: map[string][]string{
			".html":  {".css", ".svg", ".png"},
			".xhtml": {".css", ".svg", ".png"},
			".tex":   {".pdf", ".png"},
		},
		BuildersFile: "builders.hcl",
		TemplatesDir: "templates",
		LogLevel:     string(LogLevelInfo),
	}
}
