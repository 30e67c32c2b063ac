// Package filesystem lists the files under an input's units, sections and
// templates directories.
package filesystem

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultIgnoreDirs are directories never descended into.
var DefaultIgnoreDirs = []string{".git", ".svn", ".hg", "node_modules", ".idea", ".vscode"}

// WalkOptions configures directory traversal behavior
type WalkOptions struct {
	IgnoreDirs     []string // Directories to skip (default: DefaultIgnoreDirs)
	IgnorePatterns []string // File patterns to skip (e.g. "*.swp")
	Extensions     []string // Only visit files with these extensions, empty means all
	IncludeHidden  bool     // Include hidden files/dirs (default: false)
}

// Walk traverses rootPath in lexical order and calls visitor for every
// regular file that survives the options. Directories are not reported.
func Walk(rootPath string, opts WalkOptions, visitor func(path string, d fs.DirEntry) error) error {
	ignoreDirs := opts.IgnoreDirs
	if len(ignoreDirs) == 0 {
		ignoreDirs = DefaultIgnoreDirs
	}

	return filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == rootPath {
			return nil
		}

		if !opts.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			for _, ignore := range ignoreDirs {
				if d.Name() == ignore {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		for _, pattern := range opts.IgnorePatterns {
			if matched, _ := filepath.Match(pattern, d.Name()); matched {
				return nil
			}
		}
		if len(opts.Extensions) > 0 && !hasExtension(d.Name(), opts.Extensions) {
			return nil
		}

		return visitor(path, d)
	})
}

// ListFiles returns the slash-separated paths, relative to rootPath, of the
// files Walk would visit, sorted.
func ListFiles(rootPath string, opts WalkOptions) ([]string, error) {
	var files []string
	err := Walk(rootPath, opts, func(path string, _ fs.DirEntry) error {
		rel, err := filepath.Rel(rootPath, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// DirExists reports whether path names an existing directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range exts {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}
