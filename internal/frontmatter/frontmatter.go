// Package frontmatter splits the YAML header from markup documents and
// writes documents with one.
//
// A header is delimited by lines holding only "---" at the very start of
// the file. Both LF and CRLF line endings are accepted.
package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// ErrMissingClosingDelimiter indicates the document opens a header but
// never closes it.
var ErrMissingClosingDelimiter = errors.New("header start delimiter found but closing delimiter is missing")

// Split separates the header from the body. When content has no header,
// had is false and body is the whole input.
func Split(content []byte) (header, body []byte, had bool, err error) {
	first, rest, ok := cutLine(content)
	if !ok || string(first) != delimiter {
		return nil, content, false, nil
	}

	start := len(content) - len(rest)
	for pos := start; pos < len(content); {
		line, next, _ := cutLine(content[pos:])
		end := len(content) - len(next)
		if string(line) == delimiter {
			return content[start:pos], content[end:], true, nil
		}
		pos = end
	}
	return nil, nil, false, ErrMissingClosingDelimiter
}

// cutLine returns the first line of b without its line ending, the
// remainder after it, and whether a line ending was found.
func cutLine(b []byte) (line, rest []byte, ok bool) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return b, nil, false
	}
	return bytes.TrimSuffix(b[:i], []byte("\r")), b[i+1:], true
}

// Decode parses a header into out. An empty header leaves out unchanged.
func Decode(header []byte, out any) error {
	if len(bytes.TrimSpace(header)) == 0 {
		return nil
	}
	return yaml.Unmarshal(header, out)
}

// Compose renders header as YAML and places it above body.
func Compose(header any, body []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(header); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	buf.WriteString(delimiter + "\n")
	buf.Write(body)
	return buf.Bytes(), nil
}
