package document

import (
	"bytes"
	"embed"
	"html"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"git.home.luguber.info/inful/dmbuild/internal/builder"
	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
	"git.home.luguber.info/inful/dmbuild/internal/paths"
	"git.home.luguber.info/inful/dmbuild/internal/targets"
)

//go:embed templates/*
var defaultTemplates embed.FS

// Link is a rendered reference to another artifact.
type Link struct {
	Title string
	URL   string
}

// Asset is a dependency embedded in the rendered text.
type Asset struct {
	Name string
	URL  string
}

type renderData struct {
	Title      string
	Date       string
	Paragraphs []string
	Assets     []Asset
	Subdocs    []Link
}

// Render produces the document text for outExt. Every header asset is
// registered with deps and referenced by the path of its converted output.
func (d *Document) Render(outExt string, deps targets.Deps) (builder.Rendered, error) {
	out, err := deps.Outfile()
	if err != nil {
		return builder.Rendered{}, err
	}

	data := renderData{Title: escape(outExt, d.Title()), Date: d.header.Date}
	for _, para := range paragraphs(d.body) {
		data.Paragraphs = append(data.Paragraphs, escape(outExt, para))
	}
	for _, name := range d.header.Assets {
		src := paths.SourcePath{Root: d.src.Root, Subpath: filepath.Join(filepath.Dir(d.src.Subpath), name)}
		b, err := deps.AddBuild(src)
		if err != nil {
			return builder.Rendered{}, err
		}
		bo, err := b.Outfile()
		if err != nil {
			return builder.Rendered{}, err
		}
		data.Assets = append(data.Assets, Asset{Name: escape(outExt, name), URL: reference(outExt, out, bo.String())})
	}
	for _, sub := range d.subdocs {
		rel, err := filepath.Rel(filepath.Dir(d.src.Subpath), paths.ReplaceExt(sub.src.Subpath, outExt))
		if err != nil {
			return builder.Rendered{}, err
		}
		data.Subdocs = append(data.Subdocs, Link{Title: escape(outExt, sub.Title()), URL: filepath.ToSlash(rel)})
	}

	tmpl, dep, err := d.template(outExt)
	if err != nil {
		return builder.Rendered{}, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return builder.Rendered{}, derrors.WrapError(err, derrors.CategoryBuild, "render document template").
			WithContext(logfields.KeyDocument, d.src.String()).
			WithContext(logfields.KeyOutExt, outExt).
			Build()
	}

	r := builder.Rendered{Text: buf.String()}
	if !dep.IsZero() {
		r.Deps = append(r.Deps, dep)
	}
	return r, nil
}

// template returns the project template for outExt, or the built-in one.
// A project template is also returned as a dependency.
func (d *Document) template(outExt string) (*template.Template, paths.SourcePath, error) {
	name := d.header.Template
	if name == "" {
		name = "default"
	}
	if dir := d.settings.TemplatesDir; dir != "" {
		dep := paths.SourcePath{Root: dir, Subpath: name + outExt}
		if content, err := os.ReadFile(dep.String()); err == nil { // #nosec G304 -- project template
			t, err := parseTemplate(dep.Subpath, string(content))
			return t, dep, err
		}
	}

	content, err := defaultTemplates.ReadFile("templates/default" + outExt)
	if err != nil {
		return nil, paths.SourcePath{}, derrors.NotFoundError("no template for target format").
			WithContext(logfields.KeyDocument, d.src.String()).
			WithContext(logfields.KeyOutExt, outExt).
			Build()
	}
	t, err := parseTemplate("default"+outExt, string(content))
	return t, paths.SourcePath{}, err
}

func parseTemplate(name, content string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(content)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryValidation, "parse template").
			WithContext("template", name).
			Build()
	}
	return t, nil
}

// reference returns how a rendered file of format outExt refers to dep.
// TeX tools run outside the output directory and get absolute paths.
func reference(outExt string, out paths.TargetPath, dep string) string {
	if outExt == ".tex" {
		return filepath.ToSlash(dep)
	}
	rel, err := filepath.Rel(filepath.Dir(out.String()), dep)
	if err != nil {
		return filepath.ToSlash(dep)
	}
	return filepath.ToSlash(rel)
}

func paragraphs(body string) []string {
	var out []string
	for _, block := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if p := strings.Join(strings.Fields(block), " "); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var texEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`, `%`, `\%`, `$`, `\$`, `#`, `\#`, `_`, `\_`,
	`{`, `\{`, `}`, `\}`, `~`, `\textasciitilde{}`, `^`, `\textasciicircum{}`,
)

func escape(outExt, s string) string {
	switch outExt {
	case ".html", ".xhtml":
		return html.EscapeString(s)
	case ".tex":
		return texEscaper.Replace(s)
	default:
		return s
	}
}
