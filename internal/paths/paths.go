// Package paths provides the two path forms used by the build graph.
//
// A SourcePath names a file a builder reads; a TargetPath names a file a
// builder writes. One stage's output becomes the next stage's input only
// through TargetPath.ToSource.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// SourcePath is a file in a source tree: Root/Subpath.
type SourcePath struct {
	Root    string
	Subpath string
}

// NewSource splits an absolute or relative file path into a SourcePath
// rooted at root. Paths outside root keep their directory as the root.
func NewSource(root, file string) SourcePath {
	if !filepath.IsAbs(file) {
		return SourcePath{Root: filepath.Clean(root), Subpath: filepath.Clean(file)}
	}
	if rel, err := filepath.Rel(root, file); err == nil && !outside(rel) {
		return SourcePath{Root: filepath.Clean(root), Subpath: rel}
	}
	return SourcePath{Root: filepath.Dir(file), Subpath: filepath.Base(file)}
}

// outside reports whether a relative path climbs out of its base.
func outside(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (p SourcePath) String() string { return filepath.Join(p.Root, p.Subpath) }

// Ext returns the file extension including the leading dot.
func (p SourcePath) Ext() string { return filepath.Ext(p.Subpath) }

// IsZero reports whether the path is unset.
func (p SourcePath) IsZero() bool { return p.Root == "" && p.Subpath == "" }

// Exists reports whether the path names an existing regular file or directory.
func (p SourcePath) Exists() bool { return Exists(p.String()) }

// TargetPath is an output file: Root/Target/Subpath. Target is the logical
// sub-directory for one output format, e.g. "html".
type TargetPath struct {
	Root    string
	Target  string
	Subpath string
}

func (p TargetPath) String() string { return filepath.Join(p.Root, p.Target, p.Subpath) }

// Ext returns the file extension including the leading dot.
func (p TargetPath) Ext() string { return filepath.Ext(p.Subpath) }

// IsZero reports whether the path is unset.
func (p TargetPath) IsZero() bool { return p.Root == "" && p.Target == "" && p.Subpath == "" }

// Exists reports whether the output file exists.
func (p TargetPath) Exists() bool { return Exists(p.String()) }

// WithExt returns a copy whose subpath extension is replaced by ext.
func (p TargetPath) WithExt(ext string) TargetPath {
	p.Subpath = ReplaceExt(p.Subpath, ext)
	return p
}

// WithSuffix returns a copy whose subpath gets suffix inserted before the extension.
func (p TargetPath) WithSuffix(suffix string) TargetPath {
	ext := filepath.Ext(p.Subpath)
	p.Subpath = strings.TrimSuffix(p.Subpath, ext) + suffix + ext
	return p
}

// MkdirParent ensures the parent directory of the output exists.
func (p TargetPath) MkdirParent() error {
	return os.MkdirAll(filepath.Dir(p.String()), 0o750)
}

// ToSource converts an output location into the input form consumed by
// the next pipeline stage. The source root is Root/Target and the subpath
// is unchanged, so ToSource().String() == String() always holds.
func (p TargetPath) ToSource() SourcePath {
	return SourcePath{Root: filepath.Join(p.Root, p.Target), Subpath: p.Subpath}
}

// ReplaceExt swaps the extension of name for ext.
func ReplaceExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}

// Exists reports whether a file system entry exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
