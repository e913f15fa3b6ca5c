package targets

import (
	"slices"

	"git.home.luguber.info/inful/dmbuild/internal/builder"
	"git.home.luguber.info/inful/dmbuild/internal/paths"
)

// assembleRendered builds the html, xhtml, tex and txt targets: a
// dependency group, the render step writing the target output directly,
// and, with copyAssets, copies of the stylesheets and images the render
// step read so they sit beside the output.
func assembleRendered(copyAssets bool) assembleFunc {
	return func(f *Factory, t *Target, c *builder.Class, opts builder.Options) error {
		deps, err := f.newParallel(opts.Target)
		if err != nil {
			return err
		}
		t.deps = deps
		t.addBuild = func(src paths.SourcePath, params ...builder.Param) (builder.Builder, error) {
			return f.addDep(t, src, params...)
		}

		t.Sequential = builder.NewChain(f.env, c, opts)
		out, err := t.Outfile()
		if err != nil {
			return err
		}

		renderOpts := builder.Options{
			Outfile:     out,
			Target:      opts.Target,
			UseCache:    opts.UseCache,
			OutExt:      t.ext,
			Origin:      opts.Origin,
			SearchPaths: opts.SearchPaths,
			Renderer: func(ext string) (builder.Rendered, error) {
				return t.ctx.Render(ext, t)
			},
		}
		if lp, ok := t.ctx.(LateParams); ok {
			renderOpts.Hooks = []builder.ParamHook{lp.LateParams}
		}
		render, err := f.env.New(builder.RenderClass, renderOpts)
		if err != nil {
			return err
		}
		t.render = render

		t.Append(deps)
		t.Append(render)
		if !copyAssets {
			return nil
		}
		assets, err := f.assetCopies(t, render, out)
		if err != nil {
			return err
		}
		t.Append(assets)
		return nil
	}
}

// addDep converts src into a format t accepts and places it in the media
// directory of t's output tree.
func (f *Factory) addDep(t *Target, src paths.SourcePath, params ...builder.Param) (builder.Builder, error) {
	opts := builder.Options{
		Params:          append([]builder.Param{builder.FileParam(src)}, params...),
		Target:          dirName(t.ext),
		UseCache:        !t.requested,
		UseMedia:        true,
		Origin:          t.ctx.SrcFilepath(),
		SearchPaths:     t.ctx.Paths(),
		TolerateMissing: true,
	}
	return t.deps.AddBuild(src.Ext(), "", t.ext, opts)
}

func (f *Factory) assetCopies(t *Target, render builder.Builder, out paths.TargetPath) (*builder.Parallel, error) {
	assets, err := f.newParallel(out.Target)
	if err != nil {
		return nil, err
	}
	tracked := f.env.Registry.TrackedDeps(t.ext)
	for _, p := range builder.Files(render.Parameters()) {
		if !slices.Contains(tracked, p.Ext()) {
			continue
		}
		dst := paths.TargetPath{Root: out.Root, Target: out.Target, Subpath: p.Subpath}
		if dst.String() == p.String() {
			continue
		}
		cp, err := f.copyTo(p, dst)
		if err != nil {
			return nil, err
		}
		assets.Add(cp)
	}
	return assets, nil
}
