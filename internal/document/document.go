// Package document loads markup documents and renders their text for each
// target format. It stands in for the markup processor: a document is a
// YAML header followed by paragraphs separated by blank lines.
package document

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/dmbuild/internal/builder"
	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/frontmatter"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
	"git.home.luguber.info/inful/dmbuild/internal/paths"
	"git.home.luguber.info/inful/dmbuild/internal/targets"
)

// Header is the YAML header of a document.
type Header struct {
	Title    string   `yaml:"title"`
	Date     string   `yaml:"date,omitempty"`
	Targets  []string `yaml:"targets,omitempty"`
	Include  []string `yaml:"include,omitempty"`
	Template string   `yaml:"template,omitempty"`
	Assets   []string `yaml:"assets,omitempty"`
}

// Settings are the project-wide options documents are loaded with.
type Settings struct {
	MarkupExt      string
	DefaultTargets []string
	// TemplatesDir is an absolute directory holding project templates
	// named <template><ext>. Empty disables project templates.
	TemplatesDir string
}

// Document is one loaded markup file and its included subdocuments.
type Document struct {
	src      paths.SourcePath
	header   Header
	body     string
	settings Settings
	parent   *Document
	subdocs  []*Document
}

// Load reads the document at file, relative to projectRoot, and every
// document it includes.
func Load(projectRoot, file string, s Settings) (*Document, error) {
	return load(paths.NewSource(projectRoot, file), s, nil, map[string]bool{})
}

func load(src paths.SourcePath, s Settings, parent *Document, loading map[string]bool) (*Document, error) {
	key := src.String()
	if loading[key] {
		return nil, derrors.ValidationError("document includes itself").
			WithContext(logfields.KeyDocument, key).
			Build()
	}
	loading[key] = true
	defer delete(loading, key)

	content, err := os.ReadFile(key) // #nosec G304 -- documents are project files
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryNotFound, "read document").
			WithContext(logfields.KeyDocument, key).
			Build()
	}
	raw, body, _, err := frontmatter.Split(content)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryValidation, "split document header").
			WithContext(logfields.KeyDocument, key).
			Build()
	}
	d := &Document{src: src, body: string(body), settings: s, parent: parent}
	if err := frontmatter.Decode(raw, &d.header); err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryValidation, "parse document header").
			WithContext(logfields.KeyDocument, key).
			Build()
	}

	for _, inc := range d.header.Include {
		sub := paths.SourcePath{Root: src.Root, Subpath: filepath.Join(filepath.Dir(src.Subpath), inc)}
		if filepath.Ext(sub.Subpath) == "" {
			sub.Subpath += s.MarkupExt
		}
		child, err := load(sub, s, d, loading)
		if err != nil {
			return nil, err
		}
		d.subdocs = append(d.subdocs, child)
	}
	return d, nil
}

// SrcFilepath returns the markup file.
func (d *Document) SrcFilepath() paths.SourcePath { return d.src }

// Header returns the parsed header.
func (d *Document) Header() Header { return d.header }

// Title returns the header title, or the file stem.
func (d *Document) Title() string {
	if d.header.Title != "" {
		return d.header.Title
	}
	return paths.ReplaceExt(filepath.Base(d.src.Subpath), "")
}

// Targets returns the requested output extensions. Subdocuments without
// their own list inherit their parent's.
func (d *Document) Targets() []string {
	switch {
	case len(d.header.Targets) > 0:
		out := make([]string, 0, len(d.header.Targets))
		for _, t := range d.header.Targets {
			t = strings.ToLower(strings.TrimSpace(t))
			if !strings.HasPrefix(t, ".") {
				t = "." + t
			}
			if !slices.Contains(out, t) {
				out = append(out, t)
			}
		}
		return out
	case d.parent != nil:
		return d.parent.Targets()
	default:
		return slices.Clone(d.settings.DefaultTargets)
	}
}

// Paths returns the directories searched for implicit dependencies.
func (d *Document) Paths() []string {
	out := []string{filepath.Dir(d.src.String()), d.src.Root}
	if d.settings.TemplatesDir != "" {
		out = append(out, d.settings.TemplatesDir)
	}
	return out
}

// Subdocuments returns the directly included documents.
func (d *Document) Subdocuments() []*Document { return slices.Clone(d.subdocs) }

// Documents returns the document and all its subdocuments, depth first.
func (d *Document) Documents() []targets.Context {
	out := []targets.Context{d}
	for _, sub := range d.subdocs {
		out = append(out, sub.Documents()...)
	}
	return out
}

// Tree returns the document and all its subdocuments, depth first.
func (d *Document) Tree() []*Document {
	out := []*Document{d}
	for _, sub := range d.subdocs {
		out = append(out, sub.Tree()...)
	}
	return out
}

// LateParams makes the render step depend on the subdocument sources whose
// titles the document links to.
func (d *Document) LateParams() []builder.Param {
	var out []builder.Param
	for _, sub := range d.subdocs {
		out = append(out, builder.FileParam(sub.src))
	}
	return out
}
