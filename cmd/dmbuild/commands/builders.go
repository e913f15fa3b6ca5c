package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"git.home.luguber.info/inful/dmbuild/internal/builder"
	"git.home.luguber.info/inful/dmbuild/internal/environment"
	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
)

// BuildersCmd implements the 'builders' command.
type BuildersCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Project directory"`
}

func (b *BuildersCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g, b.Path)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(b.Path)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "resolve project path").Build()
	}
	projectRoot, _ := environment.ResolveRoots(abs)
	reg, err := environment.NewRegistry(cfg, projectRoot, environment.WithLogger(g.logger()))
	if err != nil {
		return err
	}
	return listClasses(os.Stdout, reg)
}

// listClasses prints one row per registered class, sorted by name.
func listClasses(w io.Writer, reg *builder.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tIN\tOUT\tPRIORITY\tACTIVE\tAVAILABLE\tACTION")
	for _, c := range reg.Classes() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%t\t%s\n",
			c.Name, dash(c.InExt), dash(c.OutExt), strconv.Itoa(c.Priority),
			reg.Active(c), c.Available, dash(c.Action))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
