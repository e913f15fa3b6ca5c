package scanner

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// HTMLExtensions are the file extensions handled by ScanHTML.
var HTMLExtensions = []string{".html", ".htm", ".xhtml"}

// templateHref matches link targets still wrapped in a template filter,
// e.g. href="{{ "/media/css/default.css" | rewrite_path }}".
var templateHref = regexp.MustCompile(`href\s*=\s*["']?\s*\{\{\s*["']([^"']+)["']`)

// ScanHTML extracts the href values of <link> tags. Protocol-qualified
// references are skipped.
func ScanHTML(content []byte) ([]string, error) {
	var refs []string
	z := html.NewTokenizer(bytes.NewReader(content))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return refs, nil
			}
			return refs, z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			raw := string(z.Raw())
			name, hasAttr := z.TagName()
			if string(name) != "link" {
				continue
			}
			if m := templateHref.FindStringSubmatch(raw); m != nil {
				refs = appendRef(refs, m[1])
				continue
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "href" {
					refs = appendRef(refs, string(val))
				}
			}
		}
	}
}

func appendRef(refs []string, ref string) []string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.Contains(ref, "://") {
		return refs
	}
	return append(refs, ref)
}
