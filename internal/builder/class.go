package builder

import (
	"context"

	"git.home.luguber.info/inful/dmbuild/internal/paths"
)

// AnyExt is the wildcard extension of the universal copy class.
const AnyExt = ".*"

// Constructor creates a builder of a class.
type Constructor func(env *Env, c *Class, opts Options) (Builder, error)

// WorkFunc performs a leaf builder's work in-process instead of spawning
// an external tool.
type WorkFunc func(ctx context.Context, l *Leaf) error

// InitFunc runs once when a leaf builder is created.
type InitFunc func(l *Leaf, opts Options) error

// AttrFunc supplies the tokens for a class-specific action placeholder.
type AttrFunc func(l *Leaf) []string

// Class describes one kind of builder: the format pair it converts, how it
// ranks against other classes for that pair, which executables it needs
// and how it is constructed.
type Class struct {
	Name   string
	InExt  string
	OutExt string

	// Priority breaks ties between classes for the same format pair. Zero
	// means the class never declared one and is therefore inactive.
	Priority int
	// RequiredExecs lists executables that must be on PATH. Nil means the
	// class never declared them and is therefore inactive; an empty slice
	// declares that none are needed.
	RequiredExecs []string
	// Available classes take part in format-pair lookup. Unavailable
	// classes are only constructed by name, e.g. as pipeline stages.
	Available bool

	// Action is the command template for external tools. For in-process
	// classes it is a fixed label folded into the decision hash.
	Action string
	// Suffix is appended to the output file stem, e.g. "_crop".
	Suffix string
	Attrs  map[string]AttrFunc
	Work   WorkFunc
	Init   InitFunc
	// ScanAtBuild defers dependency scanning from construction until the
	// builder first runs, for inputs produced by earlier stages.
	ScanAtBuild bool

	New Constructor
}

// RenderFunc renders a document's text for the given target extension.
type RenderFunc func(outExt string) (Rendered, error)

// Rendered is the output of a RenderFunc: the target source text and the
// files it was produced from.
type Rendered struct {
	Text string
	Deps []paths.SourcePath
}

// ParamHook returns parameters added just before a builder runs.
type ParamHook func() []Param

// Options parameterize a builder instance.
type Options struct {
	Params []Param
	// Outfile, when set, is used instead of a derived output path.
	Outfile paths.TargetPath
	// Target is the logical output sub-directory, e.g. "html".
	Target   string
	UseCache bool
	UseMedia bool
	// OutExt overrides the class output extension for classes with a
	// dynamic one (render, save).
	OutExt string
	// Origin is the document that caused the build. It names outputs that
	// have no file parameters.
	Origin      paths.SourcePath
	SearchPaths []string
	// TolerateMissing skips scanned references that cannot be resolved.
	TolerateMissing bool
	Renderer        RenderFunc
	Hooks           []ParamHook
}
