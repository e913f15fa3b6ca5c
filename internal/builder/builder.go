// Package builder implements the build graph: leaf builders that run one
// conversion, sequential and parallel composites, the registry of builder
// classes and the runner that spawns external tools.
//
// Builders are driven by polling. Status is recomputed on every call and
// never starts work; Build starts whatever is ready and returns without
// waiting unless asked to run to completion.
package builder

import (
	"context"

	"git.home.luguber.info/inful/dmbuild/internal/paths"
)

// Builder is one unit of work in the build graph.
type Builder interface {
	Name() string
	InExt() string
	OutExt() string
	Parameters() []Param
	AddParameters(params ...Param)
	// Outfile returns the output path, deriving and memoizing it on first
	// use. Its parent directory exists once Outfile returns.
	Outfile() (paths.TargetPath, error)
	SetOutfile(p paths.TargetPath)
	Status() (Status, error)
	Build(ctx context.Context, complete bool) (Status, error)
	BuildNeeded() (bool, error)
}

// Composite is a builder made of sub-builders.
type Composite interface {
	Builder
	Subbuilders() []Builder
}

// Walk calls fn for b and, depth first, every sub-builder below it.
func Walk(b Builder, fn func(Builder)) {
	fn(b)
	if c, ok := b.(Composite); ok {
		for _, sub := range c.Subbuilders() {
			Walk(sub, fn)
		}
	}
}
