package targets

import (
	"bytes"
	"path/filepath"
	"slices"
	"text/template"

	"git.home.luguber.info/inful/dmbuild/internal/builder"
	"git.home.luguber.info/inful/dmbuild/internal/paths"
)

const tocName = "toc.xhtml"

var tocTemplate = template.Must(template.New("toc").Funcs(template.FuncMap{"xml": xmlEscape}).Parse(
	`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>{{ xml .Title }}</title></head>
<body>
<nav epub:type="toc" id="toc">
<h1>{{ xml .Title }}</h1>
<ol>
{{- range .Entries }}
<li><a href="{{ xml .Href }}">{{ xml .Title }}</a></li>
{{- end }}
</ol>
</nav>
</body>
</html>
`))

type tocEntry struct {
	Title string
	Href  string
}

// assembleEpub chains the xhtml targets of every document in the tree, a
// generated table of contents when none was produced, the archiver and a
// copy to the epub output.
func assembleEpub(f *Factory, t *Target, c *builder.Class, opts builder.Options) error {
	docs := []Context{t.ctx}
	if tree, ok := t.ctx.(Tree); ok {
		docs = tree.Documents()
	}

	var subs []builder.Builder
	var files []paths.SourcePath
	var entries []tocEntry
	tracked := f.env.Registry.TrackedDeps(".xhtml")
	addFile := func(p paths.SourcePath) {
		if !slices.Contains(files, p) {
			files = append(files, p)
		}
	}
	for _, doc := range docs {
		x, err := f.Target(doc, ".xhtml")
		if err != nil {
			return err
		}
		subs = append(subs, x)
		out, err := x.Outfile()
		if err != nil {
			return err
		}
		addFile(out.ToSource())
		entries = append(entries, tocEntry{Title: titleOf(doc), Href: filepath.ToSlash(out.Subpath)})
		for _, dep := range x.Deps().Outfiles() {
			if slices.Contains(tracked, dep.Ext()) {
				addFile(dep.ToSource())
			}
		}
	}
	t.addBuild = func(src paths.SourcePath, params ...builder.Param) (builder.Builder, error) {
		root, err := f.Target(t.ctx, ".xhtml")
		if err != nil {
			return nil, err
		}
		return root.AddBuild(src, params...)
	}

	if !slices.ContainsFunc(files, func(p paths.SourcePath) bool { return p.Subpath == tocName }) {
		toc, err := f.tocBuilder(titleOf(t.ctx), entries)
		if err != nil {
			return err
		}
		subs = append(subs, toc)
		tocOut, err := toc.Outfile()
		if err != nil {
			return err
		}
		files = append([]paths.SourcePath{tocOut.ToSource()}, files...)
	}

	params := make([]builder.Param, 0, len(files)+1)
	for _, p := range files {
		params = append(params, builder.FileParam(p))
	}
	params = append(params, builder.Named{Name: "title", Value: titleOf(t.ctx)})
	archive, err := f.env.New(Xhtml2EpubClass, builder.Options{
		Params:          params,
		Outfile:         paths.TargetPath{Root: f.env.CachePath(), Target: opts.Target, Subpath: paths.ReplaceExt(opts.Origin.Subpath, ".epub")},
		Target:          opts.Target,
		UseCache:        true,
		Origin:          opts.Origin,
		TolerateMissing: true,
	})
	if err != nil {
		return err
	}
	subs = append(subs, archive)

	t.Sequential = builder.NewChain(f.env, c, opts, subs...)
	out, err := t.Outfile()
	if err != nil {
		return err
	}
	archiveOut, err := archive.Outfile()
	if err != nil {
		return err
	}
	cp, err := f.copyTo(archiveOut.ToSource(), out)
	if err != nil {
		return err
	}
	t.Append(cp)
	return nil
}

func (f *Factory) tocBuilder(title string, entries []tocEntry) (builder.Builder, error) {
	var buf bytes.Buffer
	if err := tocTemplate.Execute(&buf, struct {
		Title   string
		Entries []tocEntry
	}{title, entries}); err != nil {
		return nil, err
	}
	return f.env.New(builder.SaveTextClass, builder.Options{
		Params:   []builder.Param{builder.Text(buf.String())},
		Outfile:  paths.TargetPath{Root: f.env.CachePath(), Target: dirName(".xhtml"), Subpath: tocName},
		Target:   dirName(".xhtml"),
		UseCache: true,
		OutExt:   ".xhtml",
	})
}

func titleOf(ctx Context) string {
	if t, ok := ctx.(Titled); ok && t.Title() != "" {
		return t.Title()
	}
	return paths.ReplaceExt(filepath.Base(ctx.SrcFilepath().Subpath), "")
}
