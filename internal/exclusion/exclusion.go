package exclusion

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ShouldExcludeFile reports whether a file is skipped before extraction:
// its extension (dot included) is listed verbatim in excludeExtensions, or
// any of excludeNames occurs in name. Comparison is case sensitive.
func ShouldExcludeFile(name string, excludeExtensions, excludeNames []string) bool {
	ext := filepath.Ext(name)
	if ext != "" {
		for _, e := range excludeExtensions {
			if e == ext {
				return true
			}
		}
	}
	for _, n := range excludeNames {
		if n != "" && strings.Contains(name, n) {
			return true
		}
	}
	return false
}

// ShouldExcludeFolder reports whether a whole directory subtree is pruned.
func ShouldExcludeFolder(name string, excludeNames []string) bool {
	for _, n := range excludeNames {
		if n != "" && strings.Contains(name, n) {
			return true
		}
	}
	return false
}

// Filter bundles the exclusion lists of one profile.
type Filter struct {
	Extensions []string
	Names      []string
}

// NewFilter merges the profile lists. Entries of patterns are also
// compared as extensions, so ".env" in exclude_patterns keeps working.
func NewFilter(extensions, patterns []string) Filter {
	exts := make([]string, 0, len(extensions)+len(patterns))
	exts = append(exts, extensions...)
	exts = append(exts, patterns...)
	return Filter{Extensions: exts, Names: patterns}
}

// File applies ShouldExcludeFile.
func (f Filter) File(name string) bool {
	return ShouldExcludeFile(name, f.Extensions, f.Names)
}

// Folder applies ShouldExcludeFolder.
func (f Filter) Folder(name string) bool {
	return ShouldExcludeFolder(name, f.Names)
}

// Walk visits every accepted regular file below root, top-down. Excluded
// directories are pruned before they are entered; excluded files are never
// handed to fn. Unreadable entries are logged and skipped. A non-nil error
// from fn stops the walk and is returned (fs.SkipAll stops silently).
func Walk(root string, filter Filter, log logrus.FieldLogger, fn func(path string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.WithError(err).WithField("path", path).Debug("Error accessing path")
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && filter.Folder(d.Name()) {
				log.WithField("path", path).Debug("Excluding folder")
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if filter.File(d.Name()) {
			log.WithField("path", path).Debug("Excluding file")
			return nil
		}
		return fn(path)
	})
}
