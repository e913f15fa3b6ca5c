package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/dmbuild/internal/config"
	"git.home.luguber.info/inful/dmbuild/internal/document"
	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/frontmatter"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Dir   string `arg:"" optional:"" default:"." help:"Project directory"`
	Force bool   `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	cfgPath := root.Config
	if !filepath.IsAbs(cfgPath) {
		cfgPath = filepath.Join(i.Dir, cfgPath)
	}
	return RunInit(os.Stdout, i.Dir, cfgPath, i.Force)
}

// RunInit writes a default configuration to cfgPath and, when dir has no
// root document yet, a sample one.
func RunInit(w io.Writer, dir, cfgPath string, force bool) error {
	fmt.Fprintln(w, "Initializing dmbuild project")
	fmt.Fprintf(w, "Writing configuration to %s\n", cfgPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "create project directory").
			WithContext(logfields.KeyPath, dir).
			Build()
	}
	if err := config.Init(cfgPath, force); err != nil {
		fmt.Fprintln(w, "Initialization failed")
		return err
	}

	sample := filepath.Join(dir, "index"+config.Default().MarkupExtension)
	if _, err := os.Stat(sample); os.IsNotExist(err) {
		data, err := sampleDocument()
		if err != nil {
			return err
		}
		if err := os.WriteFile(sample, data, 0o600); err != nil {
			return derrors.WrapError(err, derrors.CategoryFileSystem, "write sample document").
				WithContext(logfields.KeyPath, sample).
				Build()
		}
		fmt.Fprintf(w, "Wrote sample document %s\n", sample)
	}
	fmt.Fprintln(w, "initialized successfully")
	return nil
}

func sampleDocument() ([]byte, error) {
	body := []byte("This is the first paragraph.\n\nBuild it with `dmbuild build`.\n")
	data, err := frontmatter.Compose(document.Header{
		Title:   "Untitled",
		Targets: []string{".html", ".txt"},
	}, body)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryInternal, "compose sample document").Build()
	}
	return data, nil
}
