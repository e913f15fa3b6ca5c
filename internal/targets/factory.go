package targets

import (
	"slices"
	"strings"

	"git.home.luguber.info/inful/dmbuild/internal/builder"
	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
	"git.home.luguber.info/inful/dmbuild/internal/paths"
)

// Class names of the target builders.
const (
	HtmlClass       = "HtmlBuilder"
	XHtmlClass      = "XHtmlBuilder"
	TexClass        = "TexBuilder"
	TxtClass        = "TxtBuilder"
	PdfClass        = "PdfBuilder"
	EpubClass       = "EpubBuilder"
	Xhtml2EpubClass = "Xhtml2Epub"
)

type assembleFunc func(f *Factory, t *Target, c *builder.Class, opts builder.Options) error

type kind struct {
	class    string
	onlyRoot bool
	assemble assembleFunc
}

// kinds is filled in init: the assemble funcs reach back into it through
// Factory.Target.
var kinds map[string]kind

func init() {
	kinds = map[string]kind{
		".html":  {class: HtmlClass, assemble: assembleRendered(true)},
		".xhtml": {class: XHtmlClass, assemble: assembleRendered(true)},
		".tex":   {class: TexClass, assemble: assembleRendered(false)},
		".txt":   {class: TxtClass, assemble: assembleRendered(false)},
		".pdf":   {class: PdfClass, assemble: assemblePdf},
		".epub":  {class: EpubClass, onlyRoot: true, assemble: assembleEpub},
	}
}

// Formats returns the output extensions a target builder exists for.
func Formats() []string {
	out := make([]string, 0, len(kinds))
	for ext := range kinds {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

// RegisterClasses registers the target builder classes for documents with
// markupExt, and the epub archiver.
func RegisterClasses(r *builder.Registry, markupExt string) error {
	none := []string{}
	var classes []*builder.Class
	for ext, k := range kinds {
		classes = append(classes, &builder.Class{
			Name: k.class, InExt: markupExt, OutExt: ext,
			Priority: 1000, RequiredExecs: none,
			Action: strings.ToLower(k.class),
		})
	}
	classes = append(classes, &builder.Class{
		Name: Xhtml2EpubClass, InExt: ".xhtml", OutExt: ".epub",
		Priority: 1000, RequiredExecs: none, Available: true,
		Action: "xhtml2epub", Work: xhtml2epubWork, ScanAtBuild: true,
	})
	return r.Register(classes...)
}

// Factory creates target builders and keeps one per document and format,
// so formats that feed others (tex for pdf, xhtml for epub) are shared.
type Factory struct {
	env     *builder.Env
	targets map[string]map[string]*Target
}

// NewFactory creates a Factory for env.
func NewFactory(env *builder.Env) *Factory {
	return &Factory{env: env, targets: make(map[string]map[string]*Target)}
}

// ForDocument returns the target builders for every format ctx requests.
// Formats limited to the root document are skipped unless root is set.
func (f *Factory) ForDocument(ctx Context, root bool) ([]*Target, error) {
	var out []*Target
	for _, ext := range ctx.Targets() {
		ext = normExt(ext)
		k, ok := kinds[ext]
		if !ok {
			return nil, unsupported(ctx, ext)
		}
		if k.onlyRoot && !root {
			continue
		}
		t, err := f.Target(ctx, ext)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Target returns the target builder of ctx for ext, creating it if needed.
func (f *Factory) Target(ctx Context, ext string) (*Target, error) {
	ext = normExt(ext)
	key := ctx.SrcFilepath().String()
	if t, ok := f.targets[key][ext]; ok {
		return t, nil
	}

	k, ok := kinds[ext]
	if !ok {
		return nil, unsupported(ctx, ext)
	}
	c, err := f.env.Registry.Class(k.class)
	if err != nil {
		return nil, err
	}

	src := ctx.SrcFilepath()
	requested := slices.ContainsFunc(ctx.Targets(), func(e string) bool { return normExt(e) == ext })
	opts := builder.Options{
		Params:      []builder.Param{builder.FileParam(src)},
		Target:      dirName(ext),
		UseCache:    !requested,
		Origin:      src,
		SearchPaths: ctx.Paths(),
	}
	t := &Target{ext: ext, ctx: ctx, requested: requested}
	if err := k.assemble(f, t, c, opts); err != nil {
		return nil, err
	}

	if f.targets[key] == nil {
		f.targets[key] = make(map[string]*Target)
	}
	f.targets[key][ext] = t
	f.env.Log().Debug("Created target builder",
		logfields.Builder(c.Name), logfields.Document(src.String()), logfields.Target(ext))
	return t, nil
}

func unsupported(ctx Context, ext string) error {
	return derrors.BuildError("unsupported target format").
		WithContext(logfields.KeyTarget, ext).
		WithContext(logfields.KeyDocument, ctx.SrcFilepath().String()).
		Build()
}

func normExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func (f *Factory) newParallel(target string) (*builder.Parallel, error) {
	b, err := f.env.New(builder.ParallelClass, builder.Options{Target: target})
	if err != nil {
		return nil, err
	}
	p, ok := b.(*builder.Parallel)
	if !ok {
		return nil, derrors.InternalError("parallel class built a non-parallel builder").Build()
	}
	return p, nil
}

// copyTo creates a copy of src written exactly to dst.
func (f *Factory) copyTo(src paths.SourcePath, dst paths.TargetPath) (builder.Builder, error) {
	return f.env.New(builder.CopyClass, builder.Options{
		Params:  []builder.Param{builder.FileParam(src)},
		Outfile: dst,
		Target:  dst.Target,
	})
}
