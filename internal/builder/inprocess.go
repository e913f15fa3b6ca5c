package builder

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
)

func copyWork(_ context.Context, l *Leaf) error {
	files := Files(l.params)
	if len(files) == 0 {
		return derrors.BuildError("copy needs a file parameter").Build()
	}
	out, err := l.Outfile()
	if err != nil {
		return err
	}
	src, dst := files[0].String(), out.String()
	if src == dst {
		return nil
	}
	l.env.logger().Debug("Copying file", logfields.Path(src), logfields.Outfile(dst))
	return copyFile(src, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- build inputs are project files
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp) // #nosec G304 -- output path derived by the builder
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// saveTextWork writes the first text parameter to the output file.
func saveTextWork(_ context.Context, l *Leaf) error {
	texts := Texts(l.params)
	if len(texts) == 0 {
		return derrors.BuildError("builder expects a text parameter to save").
			WithContext(logfields.KeyBuilder, l.Name()).
			Build()
	}
	out, err := l.Outfile()
	if err != nil {
		return err
	}
	l.env.logger().Debug("Saving text", logfields.Builder(l.Name()), logfields.Outfile(out.String()))
	return os.WriteFile(out.String(), []byte(texts[0]), 0o600)
}

func requireOutExt(l *Leaf, _ Options) error {
	if l.outExt == "" {
		return derrors.BuildError("builder needs an output extension").
			WithContext(logfields.KeyBuilder, l.Name()).
			Build()
	}
	return nil
}

// renderInit renders the document text for the output extension and adds
// it, with the files it depends on, to the parameters.
func renderInit(l *Leaf, opts Options) error {
	if err := requireOutExt(l, opts); err != nil {
		return err
	}
	if opts.Renderer == nil {
		return derrors.BuildError("render builder needs a renderer").Build()
	}
	r, err := opts.Renderer(l.outExt)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryBuild, "render document").
			WithContext(logfields.KeyOutExt, l.outExt).
			Build()
	}
	for _, d := range r.Deps {
		l.AddParameters(FileParam(d))
	}
	l.AddParameters(Text(r.Text))
	return nil
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

func markdownWork(_ context.Context, l *Leaf) error {
	files := Files(l.params)
	if len(files) == 0 {
		return derrors.BuildError("markdown conversion needs a file parameter").Build()
	}
	src, err := os.ReadFile(files[0].String())
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return err
	}
	out, err := l.Outfile()
	if err != nil {
		return err
	}
	return os.WriteFile(out.String(), buf.Bytes(), 0o600)
}
