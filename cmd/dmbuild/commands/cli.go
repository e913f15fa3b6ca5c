// Package commands implements the dmbuild command line.
package commands

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/dmbuild/internal/config"
	"git.home.luguber.info/inful/dmbuild/internal/environment"
)

// Global carries state shared by every command.
type Global struct {
	Logger *slog.Logger
}

// CLI is the command line grammar.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path, relative to the project directory" default:"dmbuild.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build    BuildCmd    `cmd:"" help:"Build every document below a directory"`
	Watch    WatchCmd    `cmd:"" help:"Build, then rebuild whenever sources change"`
	Init     InitCmd     `cmd:"" help:"Create a configuration file and a sample document"`
	Builders BuildersCmd `cmd:"" help:"List builder classes and whether they are usable"`
}

// AfterApply sets up logging once flags are parsed.
func (c *CLI) AfterApply(g *Global) error {
	g.setLogger(parseLogLevel(c.Verbose, ""))
	return nil
}

func (g *Global) setLogger(level slog.Level) {
	g.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(g.Logger)
}

// parseLogLevel honors --verbose first, then DMBUILD_LOG_LEVEL, then the
// configured level.
func parseLogLevel(verbose bool, configured string) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	raw := os.Getenv("DMBUILD_LOG_LEVEL")
	if raw == "" {
		raw = configured
	}
	switch config.NormalizeLogLevel(raw) {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig reads the configuration of the project at path. A relative
// configuration path is looked up in the project directory.
func (c *CLI) loadConfig(g *Global, path string) (*config.Config, error) {
	cfgPath := c.Config
	if !filepath.IsAbs(cfgPath) {
		dir := path
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			dir = filepath.Dir(path)
		}
		cfgPath = filepath.Join(dir, cfgPath)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	g.setLogger(parseLogLevel(c.Verbose, cfg.LogLevel))
	return cfg, nil
}

// envOptions are the environment options every command shares.
func envOptions(g *Global, cfg *config.Config, out string, extra ...environment.Option) []environment.Option {
	opts := []environment.Option{environment.WithConfig(cfg), environment.WithLogger(g.logger())}
	if out != "" {
		opts = append(opts, environment.WithTargetRoot(out))
	}
	return append(opts, extra...)
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}
