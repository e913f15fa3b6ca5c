package builder

// Names of the classes other packages construct directly.
const (
	CopyClass     = "Copy"
	SaveTextClass = "SaveText"
	RenderClass   = "Render"
	ParallelClass = "Parallel"
	PdfRenderCls  = "PdfRender"
	SvgRenderCls  = "SvgRender"
)

// RegisterBuiltins registers the standard builder classes.
func RegisterBuiltins(r *Registry) error {
	return r.Register(BuiltinClasses()...)
}

// BuiltinClasses returns fresh definitions of the standard builder classes.
func BuiltinClasses() []*Class {
	none := []string{}
	return []*Class{
		{
			Name: CopyClass, InExt: AnyExt, OutExt: AnyExt,
			Priority: 1000, RequiredExecs: none, Available: true,
			Action: "copy", Work: copyWork,
		},
		{
			Name: SaveTextClass, InExt: ".save",
			Priority: 1000, RequiredExecs: none, Available: true,
			Action: "save", Work: saveTextWork, Init: requireOutExt,
		},
		{
			Name: RenderClass, InExt: ".render",
			Priority: 1000, RequiredExecs: none, Available: true,
			Action: "render", Work: saveTextWork, Init: renderInit,
		},
		{
			Name: "Markdown", InExt: ".md", OutExt: ".html",
			Priority: 1000, RequiredExecs: none, Available: true,
			Action: "markdown", Work: markdownWork,
		},
		{
			Name: ParallelClass, InExt: AnyExt, OutExt: AnyExt,
			Priority: 1000, RequiredExecs: none,
			New: func(env *Env, c *Class, opts Options) (Builder, error) {
				return NewParallel(env, c, opts), nil
			},
		},
		{
			Name: "Pdflatex", InExt: ".tex", OutExt: ".pdf",
			Priority: 1000, RequiredExecs: []string{"pdflatex"}, Available: true,
			Action: "pdflatex -interaction=nonstopmode -halt-on-error " +
				"-output-directory={builder.outdir} -jobname={builder.outjob} {builder.infilepath}",
		},
		{
			Name: "Latexmk", InExt: ".tex", OutExt: ".pdf",
			Priority: 5000, RequiredExecs: []string{"latexmk"},
			Action: "latexmk -pdf -interaction=nonstopmode -halt-on-error " +
				"-output-directory={builder.outdir} -jobname={builder.outjob} {builder.infilepath}",
		},
		{
			Name: "Pdf2svg", InExt: ".pdf", OutExt: ".svg",
			Priority: 1000, RequiredExecs: []string{"pdf2svg"},
			Action: "pdf2svg {builder.infilepath} {builder.outfilepath} {builder.page}",
			Attrs: map[string]AttrFunc{
				"page": namedOr("page", "1"),
			},
		},
		{
			Name: "PdfCrop", InExt: ".pdf", OutExt: ".pdf", Suffix: "_crop",
			Priority: 1000, RequiredExecs: []string{"pdfcrop"},
			Action: "pdfcrop --margins {builder.margins} {builder.infilepath} {builder.outfilepath}",
			Attrs: map[string]AttrFunc{
				"margins": namedOr("crop", "0"),
			},
		},
		{
			Name: "ScaleSvg", InExt: ".svg", OutExt: ".svg", Suffix: "_scale",
			Priority: 1000, RequiredExecs: []string{"rsvg-convert"},
			Action: "rsvg-convert -f svg -z {builder.scale} -o {builder.outfilepath} {builder.infilepath}",
			Attrs: map[string]AttrFunc{
				"scale": namedOr("scale", "1"),
			},
		},
		{
			Name: "Tif2png", InExt: ".tif", OutExt: ".png",
			Priority: 10000, RequiredExecs: []string{"convert"}, Available: true,
			Action: "convert {builder.infilepath} {builder.outfilepath}",
		},
		{
			Name: "Tiff2png", InExt: ".tiff", OutExt: ".png",
			Priority: 10000, RequiredExecs: []string{"convert"}, Available: true,
			Action: "convert {builder.infilepath} {builder.outfilepath}",
		},
		{
			Name: "Asy2pdf", InExt: ".asy", OutExt: ".pdf",
			Priority: 1000, RequiredExecs: []string{"asy"}, Available: true,
			Action: "asy -f pdf -o {builder.outfilepath} {builder.infilepath}",
		},
		{
			Name: "Pdf2SvgCropScale", InExt: ".pdf", OutExt: ".svg",
			Priority: 1000, RequiredExecs: none, Available: true,
			Action: "pdf2svg_crop_scale", New: newPdf2SvgCropScale,
		},
		{
			Name: "Asy2svg", InExt: ".asy", OutExt: ".svg",
			Priority: 1000, RequiredExecs: none, Available: true,
			Action: "asy2svg", New: newAsy2svg,
		},
		{
			Name: PdfRenderCls, InExt: ".render", OutExt: ".pdf",
			Priority: 1000, RequiredExecs: none, Available: true,
			Action: "pdf_render", New: newPdfRender,
		},
		{
			Name: SvgRenderCls, InExt: ".render", OutExt: ".svg",
			Priority: 1000, RequiredExecs: none, Available: true,
			Action: "svg_render", New: newSvgRender,
		},
	}
}

func namedOr(name, def string) AttrFunc {
	return func(l *Leaf) []string {
		if v, ok := l.GetParameter(name); ok {
			return []string{v}
		}
		return []string{def}
	}
}

func namedParam(params []Param, name string) (Named, bool) {
	for _, p := range params {
		if n, ok := p.(Named); ok && n.Name == name {
			return n, true
		}
	}
	return Named{}, false
}

func newPdf2SvgCropScale(env *Env, c *Class, opts Options) (Builder, error) {
	var stages []Stage
	if crop, ok := namedParam(opts.Params, "crop"); ok {
		stages = append(stages, Stage{Class: "PdfCrop", Params: []Param{crop}})
	}
	pdf2svg := Stage{Class: "Pdf2svg"}
	if page, ok := namedParam(opts.Params, "page"); ok {
		pdf2svg.Params = []Param{page}
	}
	stages = append(stages, pdf2svg)
	if scale, ok := namedParam(opts.Params, "scale"); ok {
		stages = append(stages, Stage{Class: "ScaleSvg", Params: []Param{scale}})
	}
	return NewPipeline(env, c, opts, stages...)
}

func newAsy2svg(env *Env, c *Class, opts Options) (Builder, error) {
	return NewPipeline(env, c, opts, Stage{Class: "Asy2pdf"}, Stage{Class: "Pdf2SvgCropScale"})
}

func newPdfRender(env *Env, c *Class, opts Options) (Builder, error) {
	tex2pdf, err := env.Registry.Find(".tex", ".pdf", "")
	if err != nil {
		return nil, err
	}
	return NewPipeline(env, c, opts,
		Stage{Class: RenderClass, OutExt: ".tex"},
		Stage{Class: tex2pdf.Name},
	)
}

func newSvgRender(env *Env, c *Class, opts Options) (Builder, error) {
	pdf2svg, err := env.Registry.Find(".pdf", ".svg", "")
	if err != nil {
		return nil, err
	}
	return NewPipeline(env, c, opts,
		Stage{Class: PdfRenderCls},
		Stage{Class: pdf2svg.Name},
	)
}
