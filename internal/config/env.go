package config

import (
	"log/slog"
	"path/filepath"

	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/dmbuild/internal/logfields"
)

// loadEnvFiles loads .env and .env.local from dir. Variables already set
// in the process environment win.
func loadEnvFiles(dir string) {
	for _, name := range []string{".env", ".env.local"} {
		p := filepath.Join(dir, name)
		if err := godotenv.Load(p); err == nil {
			slog.Debug("Loaded environment file", logfields.Path(p))
		}
	}
}
