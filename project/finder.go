// Package project discovers deployable files in a project tree.
//
// Selection is expressed as include/exclude glob sets with ** support,
// matching against paths relative to the project root. All results are
// slash-separated relative paths in sorted order for deterministic runs.
package project

import (
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultFilePattern selects every MicroPython source file in the tree.
const DefaultFilePattern = "**/*.py"

// FileSet selects project-relative paths via include and exclude globs.
type FileSet struct {
	Include []string
	Exclude []string
}

// Find returns the relative paths under root selected by the set.
// Directories are never returned; a pattern matching a directory selects
// nothing by itself.
func (s FileSet) Find(root string) ([]string, error) {
	fsys := os.DirFS(root)

	seen := make(map[string]struct{})
	for _, pattern := range s.Include {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			info, err := fs.Stat(fsys, m)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", m, err)
			}
			if !info.Mode().IsRegular() {
				continue
			}
			seen[m] = struct{}{}
		}
	}

	var selected []string
	for m := range seen {
		excluded, err := s.matchesExclude(m)
		if err != nil {
			return nil, err
		}
		if !excluded {
			selected = append(selected, m)
		}
	}

	sort.Strings(selected)
	return selected, nil
}

func (s FileSet) matchesExclude(rel string) (bool, error) {
	for _, pattern := range s.Exclude {
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Project holds the two discovery sets a deploy run consumes: files to
// copy into the staged image and scripts to cross-compile. The sets may
// overlap; a compiled script must first have been copied.
type Project struct {
	Files   FileSet
	Scripts FileSet
}

// FindFiles returns the relative paths to copy into the staged image.
func (p Project) FindFiles(root string) ([]string, error) {
	return p.Files.Find(root)
}

// FindScripts returns the relative paths to cross-compile in the image.
func (p Project) FindScripts(root string) ([]string, error) {
	return p.Scripts.Find(root)
}
