package builder

import (
	"git.home.luguber.info/inful/dmbuild/internal/decider"
	"git.home.luguber.info/inful/dmbuild/internal/paths"
)

// Param is one builder input: a File, a Text or a Named value.
type Param interface {
	param()
}

// File is a filesystem input.
type File struct {
	paths.SourcePath
}

// Text is a literal string input, e.g. rendered content.
type Text string

// Named is a (name, value) input, e.g. ("crop", "10").
type Named struct {
	Name  string
	Value string
}

func (File) param()  {}
func (Text) param()  {}
func (Named) param() {}

// FileParam wraps a source path as a parameter.
func FileParam(p paths.SourcePath) File { return File{SourcePath: p} }

func appendUnique(params []Param, add ...Param) []Param {
	for _, p := range add {
		if p == nil {
			continue
		}
		dup := false
		for _, existing := range params {
			if existing == p {
				dup = true
				break
			}
		}
		if !dup {
			params = append(params, p)
		}
	}
	return params
}

// Files returns the file parameters in order.
func Files(params []Param) []paths.SourcePath {
	var out []paths.SourcePath
	for _, p := range params {
		if f, ok := p.(File); ok {
			out = append(out, f.SourcePath)
		}
	}
	return out
}

// Texts returns the text parameters in order.
func Texts(params []Param) []string {
	var out []string
	for _, p := range params {
		if t, ok := p.(Text); ok {
			out = append(out, string(t))
		}
	}
	return out
}

func decisionInputs(params []Param) []decider.Input {
	inputs := make([]decider.Input, 0, len(params))
	for _, p := range params {
		switch v := p.(type) {
		case File:
			inputs = append(inputs, decider.FileInput(v.String()))
		case Text:
			inputs = append(inputs, decider.TextInput(string(v)))
		case Named:
			inputs = append(inputs, decider.TextInput(v.Name+"="+v.Value))
		}
	}
	return inputs
}
