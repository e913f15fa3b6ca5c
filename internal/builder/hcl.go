package builder

import (
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
)

// hclBuildersFile is the top-level structure of a builders.hcl file.
type hclBuildersFile struct {
	Builders []*hclBuilder `hcl:"builder,block"`
}

// hclBuilder declares one builder class. Priority and required_execs are
// optional in the syntax but a class missing either stays inactive.
type hclBuilder struct {
	Name          string    `hcl:"name,label"`
	In            string    `hcl:"in"`
	Out           string    `hcl:"out"`
	Action        *string   `hcl:"action,optional"`
	Stages        []string  `hcl:"stages,optional"`
	Priority      *int      `hcl:"priority,optional"`
	RequiredExecs *[]string `hcl:"required_execs,optional"`
	Suffix        string    `hcl:"suffix,optional"`
	Available     *bool     `hcl:"available,optional"`
}

// LoadHCL reads builder class declarations from path. Expressions may refer
// to env.<NAME> for environment variables and project_root.
//
//	builder "Svg2png" {
//	  in             = ".svg"
//	  out            = ".png"
//	  action         = "rsvg-convert -f png -o {builder.outfilepath} {builder.infilepath}"
//	  priority       = 2000
//	  required_execs = ["rsvg-convert"]
//	}
func LoadHCL(path, projectRoot string) ([]*Class, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, derrors.WrapError(diags, derrors.CategoryConfig, "parse builders file").
			WithContext(logfields.KeyPath, path).
			Build()
	}

	var parsed hclBuildersFile
	diags = gohcl.DecodeBody(file.Body, evalContext(projectRoot), &parsed)
	if diags.HasErrors() {
		return nil, derrors.WrapError(diags, derrors.CategoryConfig, "decode builders file").
			WithContext(logfields.KeyPath, path).
			Build()
	}

	classes := make([]*Class, 0, len(parsed.Builders))
	for _, hb := range parsed.Builders {
		c, err := hb.class()
		if err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryConfig, "invalid builder declaration").
				WithContext(logfields.KeyPath, path).
				WithContext(logfields.KeyBuilder, hb.Name).
				Build()
		}
		classes = append(classes, c)
	}
	return classes, nil
}

func (hb *hclBuilder) class() (*Class, error) {
	c := &Class{
		Name:      hb.Name,
		InExt:     normExt(hb.In),
		OutExt:    normExt(hb.Out),
		Suffix:    hb.Suffix,
		Available: true,
	}
	if hb.Priority != nil {
		c.Priority = *hb.Priority
	}
	if hb.RequiredExecs != nil {
		c.RequiredExecs = append([]string{}, *hb.RequiredExecs...)
	}
	if hb.Available != nil {
		c.Available = *hb.Available
	}

	switch {
	case len(hb.Stages) > 0:
		stages := make([]Stage, len(hb.Stages))
		for i, name := range hb.Stages {
			stages[i] = Stage{Class: name}
		}
		c.Action = "pipeline " + strings.Join(hb.Stages, " ")
		c.New = func(env *Env, c *Class, opts Options) (Builder, error) {
			return NewPipeline(env, c, opts, stages...)
		}
	case hb.Action != nil && strings.TrimSpace(*hb.Action) != "":
		c.Action = *hb.Action
	default:
		return nil, derrors.ValidationError("builder needs an action or stages").Build()
	}
	return c, nil
}

func evalContext(projectRoot string) *hcl.EvalContext {
	envVars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			envVars[k] = cty.StringVal(v)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env":          cty.ObjectVal(envVars),
			"project_root": cty.StringVal(projectRoot),
		},
	}
}
