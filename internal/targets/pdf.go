package targets

import (
	"git.home.luguber.info/inful/dmbuild/internal/builder"
)

// assemblePdf chains the document's tex target into the best tex to pdf
// conversion, run in the cache, and a copy to the pdf output. Dependencies
// are added to the tex target.
func assemblePdf(f *Factory, t *Target, c *builder.Class, opts builder.Options) error {
	tex, err := f.Target(t.ctx, ".tex")
	if err != nil {
		return err
	}
	t.addBuild = tex.AddBuild
	t.render = tex.RenderBuilder()

	texOut, err := tex.Outfile()
	if err != nil {
		return err
	}
	conv, err := f.env.NewFor(".tex", ".pdf", "", builder.Options{
		Params:      []builder.Param{builder.FileParam(texOut.ToSource())},
		Target:      opts.Target,
		UseCache:    true,
		Origin:      opts.Origin,
		SearchPaths: opts.SearchPaths,
	})
	if err != nil {
		return err
	}
	convOut, err := conv.Outfile()
	if err != nil {
		return err
	}

	t.Sequential = builder.NewChain(f.env, c, opts, tex, conv)
	out, err := t.Outfile()
	if err != nil {
		return err
	}
	cp, err := f.copyTo(convOut.ToSource(), out)
	if err != nil {
		return err
	}
	t.Append(cp)
	return nil
}
