package targets

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/dmbuild/internal/builder"
	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
	"git.home.luguber.info/inful/dmbuild/internal/paths"
)

// packageDir is the directory inside the archive holding the content.
const packageDir = "xhtml"

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="` + packageDir + `/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

var opfTemplate = template.Must(template.New("opf").Funcs(template.FuncMap{"xml": xmlEscape}).Parse(
	`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="uid">urn:uuid:{{ .UUID }}</dc:identifier>
    <dc:title>{{ xml .Title }}</dc:title>
    <dc:language>{{ .Language }}</dc:language>
    <meta property="dcterms:modified">{{ .Modified }}</meta>
  </metadata>
  <manifest>
{{- range .Items }}
    <item id="{{ .ID }}" href="{{ xml .Href }}" media-type="{{ .MediaType }}"{{ if .Nav }} properties="nav"{{ end }}/>
{{- end }}
  </manifest>
  <spine>
{{- range .Items }}{{ if eq .MediaType "application/xhtml+xml" }}
    <itemref idref="{{ .ID }}"/>
{{- end }}{{ end }}
  </spine>
</package>
`))

var mediaTypes = map[string]string{
	".xhtml": "application/xhtml+xml",
	".css":   "text/css",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
}

type epubItem struct {
	ID        string
	Href      string
	MediaType string
	Nav       bool
	src       string
}

type opfData struct {
	UUID     string
	Title    string
	Language string
	Modified string
	Items    []epubItem
}

// xhtml2epubWork archives the xhtml files and their resources into an
// epub 3 container. The table of contents comes first in reading order.
func xhtml2epubWork(_ context.Context, l *builder.Leaf) error {
	out, err := l.Outfile()
	if err != nil {
		return err
	}
	items, err := epubItems(builder.Files(l.Parameters()))
	if err != nil {
		return err
	}
	title, _ := l.GetParameter("title")
	lang, ok := l.GetParameter("language")
	if !ok {
		lang = "en"
	}
	data := opfData{
		UUID:     strings.ToUpper(uuid.NewSHA1(uuid.NameSpaceURL, []byte(out.String())).String()),
		Title:    title,
		Language: lang,
		Modified: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		Items:    items,
	}
	l.Env().Log().Debug("Writing epub archive", logfields.Outfile(out.String()), logfields.Builder(l.Name()))
	return writeEpub(out.String(), data)
}

func epubItems(files []paths.SourcePath) ([]epubItem, error) {
	var toc *epubItem
	var items []epubItem
	used := make(map[string]int)
	for _, f := range files {
		ext := strings.ToLower(f.Ext())
		mt, ok := mediaTypes[ext]
		if !ok {
			continue
		}
		href := path.Clean(filepath.ToSlash(f.Subpath))
		item := epubItem{Href: href, MediaType: mt, src: f.String()}
		if path.Base(href) == tocName {
			item.ID, item.Nav = "toc", true
			toc = &item
			continue
		}
		item.ID = uniqueID(slugify(href), used)
		items = append(items, item)
	}
	if toc == nil {
		return nil, derrors.BuildError("epub requires a " + tocName + " file").Build()
	}
	return append([]epubItem{*toc}, items...), nil
}

func writeEpub(dst string, data opfData) (err error) {
	tmp := dst + ".tmp"
	f, err := os.Create(tmp) // #nosec G304 -- output path derived by the builder
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	zw := zip.NewWriter(f)
	// The mimetype entry must come first and be stored uncompressed.
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		_ = f.Close()
		return err
	}
	if _, err = io.WriteString(w, "application/epub+zip"); err != nil {
		_ = f.Close()
		return err
	}
	if err = addBytes(zw, "META-INF/container.xml", []byte(containerXML)); err != nil {
		_ = f.Close()
		return err
	}

	var opf bytes.Buffer
	if err = opfTemplate.Execute(&opf, data); err != nil {
		_ = f.Close()
		return err
	}
	if err = addBytes(zw, packageDir+"/content.opf", opf.Bytes()); err != nil {
		_ = f.Close()
		return err
	}
	for _, item := range data.Items {
		if err = addFile(zw, packageDir+"/"+item.Href, item.src); err != nil {
			_ = f.Close()
			return err
		}
	}

	if err = zw.Close(); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

func addBytes(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func addFile(zw *zip.Writer, name, src string) error {
	in, err := os.Open(src) // #nosec G304 -- archive members are build outputs
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "open epub member").
			WithContext(logfields.KeyPath, src).
			Build()
	}
	defer func() { _ = in.Close() }()
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}

var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// slugify turns a subpath into an xml id: diacritics removed, lower case,
// runs of other characters collapsed to '-'.
func slugify(s string) string {
	plain, _, err := transform.String(stripMarks, s)
	if err != nil {
		plain = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(plain) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	id := strings.TrimRight(b.String(), "-")
	if id == "" || (id[0] >= '0' && id[0] <= '9') {
		id = "id-" + id
	}
	return id
}

func uniqueID(id string, used map[string]int) string {
	n := used[id]
	used[id] = n + 1
	if n == 0 {
		return id
	}
	return id + "-" + strconv.Itoa(n+1)
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
