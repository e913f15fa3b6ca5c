package targets_test

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dmbuild/internal/builder"
	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/targets"
)

func TestHtmlTarget(t *testing.T) {
	env := newEnv(t, lookAll)
	write(t, env, "templates/site.html", `<html><head><link rel="stylesheet" href="css/site.css"></head><body>{{ .Title }}{{ range .Assets }}<img src="{{ .URL }}">{{ end }}</body></html>`)
	write(t, env, "templates/css/site.css", "body { color: black; }\n")
	write(t, env, "fig/plot.svg", "<svg/>")
	write(t, env, "book.dm", "---\ntitle: Book\ntargets: [html]\ntemplate: site\nassets: [fig/plot.svg]\ninclude: [ch/one]\n---\nHello.\n")
	write(t, env, "ch/one.dm", "---\ntitle: One\n---\nChapter.\n")

	f := targets.NewFactory(env)
	ts, err := f.ForDocument(load(t, env, "book.dm"), true)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	html := ts[0]
	require.True(t, html.Requested())

	st, err := html.Build(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, builder.StatusDone, st)

	root := env.TargetRoot
	require.Equal(t, []string{"book.html"}, filesWithExt(t, filepath.Join(root, "html"), ".html"))
	require.Empty(t, filesWithExt(t, env.CachePath(), ".html"))
	require.FileExists(t, filepath.Join(root, "html", "css", "site.css"))
	require.FileExists(t, filepath.Join(root, "html", "media", "fig", "plot.svg"))

	content, err := os.ReadFile(filepath.Join(root, "html", "book.html"))
	require.NoError(t, err)
	require.Contains(t, string(content), `<img src="media/fig/plot.svg">`)

	needed, err := html.BuildNeeded()
	require.NoError(t, err)
	require.False(t, needed)
}

func TestPdfTargetKeepsIntermediatesInCache(t *testing.T) {
	env := newEnv(t, lookAll, fakeTex2pdf())
	write(t, env, "fig/plot.png", "png")
	write(t, env, "paper.dm", "---\ntitle: Paper\ntargets: [pdf]\nassets: [fig/plot.png]\n---\nBody text.\n")

	f := targets.NewFactory(env)
	ts, err := f.ForDocument(load(t, env, "paper.dm"), true)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	pdf := ts[0]
	require.NotNil(t, pdf.RenderBuilder(), "pdf shares the tex render step")

	st, err := pdf.Build(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, builder.StatusDone, st)
	require.EqualValues(t, 1, env.Runner.Spawned())

	root := env.TargetRoot
	require.Equal(t, []string{"paper.pdf"}, filesWithExt(t, filepath.Join(root, "pdf"), ".pdf"))
	require.NoDirExists(t, filepath.Join(root, "tex"))
	require.Equal(t, []string{"paper.tex"}, filesWithExt(t, filepath.Join(env.CachePath(), "tex"), ".tex"))
	require.FileExists(t, filepath.Join(env.CachePath(), "tex", "media", "fig", "plot.png"))

	content, err := os.ReadFile(filepath.Join(root, "pdf", "paper.pdf"))
	require.NoError(t, err)
	require.Contains(t, string(content), `\title{Paper}`)
	require.Contains(t, string(content), filepath.ToSlash(filepath.Join(env.CachePath(), "tex", "media", "fig", "plot.png")))

	// A second assembly over the same decider finds nothing to do.
	again, err := targets.NewFactory(env).ForDocument(load(t, env, "paper.dm"), true)
	require.NoError(t, err)
	needed, err := again[0].BuildNeeded()
	require.NoError(t, err)
	require.False(t, needed)
	st, err = again[0].Build(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, builder.StatusDone, st)
	require.EqualValues(t, 1, env.Runner.Spawned())
}

func TestPdfTargetWithoutEngine(t *testing.T) {
	env := newEnv(t, lookExcept("pdflatex"))
	write(t, env, "paper.dm", "---\ntargets: [pdf]\n---\nx\n")

	_, err := targets.NewFactory(env).ForDocument(load(t, env, "paper.dm"), true)
	require.Error(t, err)
	require.True(t, derrors.IsBuildError(err))
}

func TestEpubTarget(t *testing.T) {
	env := newEnv(t, lookAll)
	write(t, env, "book.dm", "---\ntitle: The Book\ntargets: [epub]\ninclude: [ch/one]\n---\nOpening.\n")
	write(t, env, "ch/one.dm", "---\ntitle: One\n---\nChapter.\n")
	doc := load(t, env, "book.dm")

	f := targets.NewFactory(env)
	sub, err := f.ForDocument(doc.Subdocuments()[0], false)
	require.NoError(t, err)
	require.Empty(t, sub, "epub is built for the root document only")

	ts, err := f.ForDocument(doc, true)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	st, err := ts[0].Build(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, builder.StatusDone, st)

	root := env.TargetRoot
	require.NoDirExists(t, filepath.Join(root, "xhtml"))
	zr, err := zip.OpenReader(filepath.Join(root, "epub", "book.epub"))
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()

	require.Equal(t, "mimetype", zr.File[0].Name)
	require.Equal(t, zip.Store, zr.File[0].Method)
	require.Equal(t, "application/epub+zip", readZip(t, zr.File[0]))

	byName := map[string]*zip.File{}
	for _, zf := range zr.File {
		byName[zf.Name] = zf
	}
	for _, name := range []string{"META-INF/container.xml", "xhtml/content.opf", "xhtml/toc.xhtml", "xhtml/book.xhtml", "xhtml/ch/one.xhtml"} {
		require.Contains(t, byName, name)
	}
	opf := readZip(t, byName["xhtml/content.opf"])
	require.Contains(t, opf, "<dc:title>The Book</dc:title>")
	require.Less(t, strings.Index(opf, `idref="toc"`), strings.Index(opf, "<itemref idref=\"book-xhtml\""))
	require.Contains(t, readZip(t, byName["xhtml/toc.xhtml"]), `<a href="ch/one.xhtml">One</a>`)
}

func TestForDocumentFormats(t *testing.T) {
	env := newEnv(t, lookAll)
	write(t, env, "notes.dm", "---\ntitle: Notes\ntargets: [TXT]\n---\nFirst.\n\nSecond.\n")
	write(t, env, "odd.dm", "---\ntargets: [docx]\n---\n")
	f := targets.NewFactory(env)

	ts, err := f.ForDocument(load(t, env, "notes.dm"), true)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	require.Equal(t, ".txt", ts[0].Ext())

	again, err := f.Target(load(t, env, "notes.dm"), "txt")
	require.NoError(t, err)
	require.Same(t, ts[0], again)

	st, err := ts[0].Build(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, builder.StatusDone, st)
	content, err := os.ReadFile(filepath.Join(env.TargetRoot, "txt", "notes.txt"))
	require.NoError(t, err)
	require.Equal(t, "Notes\n\nFirst.\n\nSecond.\n", string(content))

	_, err = f.ForDocument(load(t, env, "odd.dm"), true)
	require.True(t, derrors.IsBuildError(err))

	require.Equal(t, []string{".epub", ".html", ".pdf", ".tex", ".txt", ".xhtml"}, targets.Formats())
}

func readZip(t *testing.T, zf *zip.File) string {
	t.Helper()
	rc, err := zf.Open()
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}
