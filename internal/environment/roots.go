package environment

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
)

// SourceDirName is the conventional source sub-directory of a project.
const SourceDirName = "src"

// ResolveRoots returns the project and target roots for a source directory.
// Sources kept in a "src" directory write their outputs next to it.
func ResolveRoots(srcDir string) (projectRoot, targetRoot string) {
	projectRoot = filepath.Clean(srcDir)
	if filepath.Base(projectRoot) == SourceDirName {
		return projectRoot, filepath.Dir(projectRoot)
	}
	return projectRoot, projectRoot
}

// Discover returns the root documents below rootPath: the markup files in
// every topmost directory containing any. Markup files in directories
// nested under such a directory are subdocuments, not roots. Hidden
// directories are skipped. A rootPath naming a file is its own root.
func Discover(rootPath, markupExt string) ([]string, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryNotFound, "project path not found").
			WithContext(logfields.KeyPath, rootPath).
			Build()
	}
	if !info.IsDir() {
		return []string{filepath.Clean(rootPath)}, nil
	}

	var dirs []string
	err = filepath.WalkDir(rootPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != rootPath && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(p), markupExt) {
			return nil
		}
		dir := filepath.Dir(p)
		if !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
		return nil
	})
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "scan project directory").
			WithContext(logfields.KeyPath, rootPath).
			Build()
	}

	var roots []string
	for _, dir := range topmost(dirs) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "read project directory").
				WithContext(logfields.KeyPath, dir).
				Build()
		}
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), markupExt) {
				roots = append(roots, filepath.Join(dir, e.Name()))
			}
		}
	}
	return roots, nil
}

// topmost drops every directory nested under another one in dirs.
func topmost(dirs []string) []string {
	slices.Sort(dirs)
	var out []string
	for _, d := range dirs {
		nested := slices.ContainsFunc(out, func(parent string) bool {
			rel, err := filepath.Rel(parent, d)
			return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
		})
		if !nested {
			out = append(out, d)
		}
	}
	return out
}
