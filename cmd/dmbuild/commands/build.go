package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/dmbuild/internal/builder"
	"git.home.luguber.info/inful/dmbuild/internal/environment"
	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
	"git.home.luguber.info/inful/dmbuild/internal/metrics"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Path        string `arg:"" optional:"" default:"." help:"Project directory or root document"`
	Output      string `short:"o" help:"Target root for outputs (default: next to the sources)"`
	Progress    bool   `short:"p" help:"Print builder progress while building"`
	MetricsFile string `name:"metrics-file" help:"Write Prometheus metrics to this textfile after the build"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g, b.Path)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)
	var progress io.Writer
	if b.Progress {
		progress = os.Stdout
	}

	err = runBuild(ctx, b.Path, progress, envOptions(g, cfg, b.Output, environment.WithRecorder(recorder))...)
	if b.MetricsFile != "" {
		if werr := metrics.WriteTextfile(reg, b.MetricsFile); werr != nil {
			g.logger().Warn("Failed to write metrics file", logfields.Path(b.MetricsFile), logfields.Error(werr))
		}
	}
	return err
}

// runBuild builds every environment below path to completion. With
// progress, the status of the builders is printed after every poll.
func runBuild(ctx context.Context, path string, progress io.Writer, opts ...environment.Option) error {
	envs, err := environment.CreateEnvironments(path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		for _, e := range envs {
			_ = e.Close()
		}
	}()
	if len(envs) == 0 {
		return derrors.NotFoundError("no documents found").WithContext(logfields.KeyPath, path).Build()
	}

	for _, e := range envs {
		if progress != nil {
			if err := pollWithProgress(ctx, e, progress); err != nil {
				return err
			}
		}
		if _, err := e.Build(ctx, true); err != nil {
			return err
		}
	}
	return nil
}

func pollWithProgress(ctx context.Context, e *environment.Environment, w io.Writer) error {
	fmt.Fprintf(w, "%s\n", e.Root.SrcFilepath().String())
	for {
		st, err := e.Build(ctx, false)
		if err != nil {
			return err
		}
		bs, err := e.Builders()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s\n", summarize(bs))
		if !st.Active() {
			return nil
		}
		if err := e.Env.Runner.Wait(ctx); err != nil {
			return err
		}
	}
}

// summarize counts the statuses of the leaf builders in bs.
func summarize(bs []builder.Builder) string {
	counts := make(map[builder.Status]int)
	total := 0
	for _, b := range bs {
		if _, ok := b.(builder.Composite); ok {
			continue
		}
		st, _ := b.Status()
		counts[st]++
		total++
	}
	parts := []string{fmt.Sprintf("%d/%d done", counts[builder.StatusDone], total)}
	for _, st := range []builder.Status{builder.StatusBuilding, builder.StatusReady, builder.StatusMissingParameters, builder.StatusMissingOutput, builder.StatusInactive} {
		if n := counts[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, st))
		}
	}
	return strings.Join(parts, ", ")
}
