// Package targets assembles the per-document builders that produce one
// complete output format each: html, xhtml, tex, txt, pdf and epub.
package targets

import (
	"strings"

	"git.home.luguber.info/inful/dmbuild/internal/builder"
	"git.home.luguber.info/inful/dmbuild/internal/paths"
)

// Context is the document collaborator a target builder is bound to.
type Context interface {
	// SrcFilepath is the markup file of the document.
	SrcFilepath() paths.SourcePath
	// Targets lists the requested output extensions, e.g. ".html".
	Targets() []string
	// Paths is the search list for implicit dependencies.
	Paths() []string
	// Render produces the document text for outExt. Dependencies met while
	// rendering, such as embedded images, are registered with deps.
	Render(outExt string, deps Deps) (builder.Rendered, error)
}

// LateParams is implemented by contexts that contribute parameters right
// before the render step runs, e.g. files cross-references depend on.
type LateParams interface {
	LateParams() []builder.Param
}

// Tree is implemented by contexts owning subdocuments. Documents returns
// the document itself followed by all subdocuments, depth first.
type Tree interface {
	Documents() []Context
}

// Titled is implemented by contexts with a document title.
type Titled interface {
	Title() string
}

// Deps registers dependencies discovered while rendering.
type Deps interface {
	// AddBuild adds a build converting src into a format the target can
	// reference and returns the builder producing it.
	AddBuild(src paths.SourcePath, params ...builder.Param) (builder.Builder, error)
	// Outfile is the path the target writes.
	Outfile() (paths.TargetPath, error)
}

// Target is the builder for one output format of one document.
type Target struct {
	*builder.Sequential

	ext       string
	ctx       Context
	requested bool
	deps      *builder.Parallel
	render    builder.Builder
	addBuild  func(src paths.SourcePath, params ...builder.Param) (builder.Builder, error)
}

// Ext returns the output extension.
func (t *Target) Ext() string { return t.ext }

// Context returns the document the target is bound to.
func (t *Target) Context() Context { return t.ctx }

// Requested reports whether the document asked for this format. Targets
// that only feed other targets write to the cache.
func (t *Target) Requested() bool { return t.requested }

// Deps returns the dependency group, or nil for targets that delegate it.
func (t *Target) Deps() *builder.Parallel { return t.deps }

// RenderBuilder returns the render step, or nil for targets without one.
func (t *Target) RenderBuilder() builder.Builder { return t.render }

// AddBuild adds a dependency build at runtime.
func (t *Target) AddBuild(src paths.SourcePath, params ...builder.Param) (builder.Builder, error) {
	return t.addBuild(src, params...)
}

// dirName is the output sub-directory of a format: ".html" -> "html".
func dirName(ext string) string {
	return strings.TrimPrefix(ext, ".")
}

// BuildNeeded reports whether any step of the target, or the target's own
// output, is out of date.
func (t *Target) BuildNeeded() (bool, error) {
	for _, sub := range t.Subbuilders() {
		needed, err := sub.BuildNeeded()
		if err != nil || needed {
			return needed, err
		}
	}
	return t.Sequential.BuildNeeded()
}
