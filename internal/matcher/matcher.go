// Package matcher resolves glob patterns against a workspace tree, the way
// the plugin inference engine discovers project marker files
// (package.json, go.mod, pom.xml, Dockerfile, ...).
package matcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultExcludedDirs are always skipped during traversal; a caller may
// extend them with further directory names.
var DefaultExcludedDirs = []string{".git", "node_modules", "target", "build", "dist"}

// Match walks root looking for regular files whose path relative to root
// matches pattern (a doublestar-less glob per filepath.Match semantics
// extended to support "**" as "match across any number of path segments").
// Excluded directory names are skipped entirely, I/O errors on individual
// directories are swallowed (and reported via onWalkError if non-nil), and
// the walk never follows symlinks outside the workspace root.
func Match(root, pattern string, excludedDirs []string, onWalkError func(path string, err error)) ([]string, error) {
	excluded := make(map[string]bool, len(DefaultExcludedDirs)+len(excludedDirs))
	for _, d := range DefaultExcludedDirs {
		excluded[d] = true
	}
	for _, d := range excludedDirs {
		excluded[d] = true
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("matcher: resolve workspace root: %w", err)
	}

	var matches []string

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if onWalkError != nil {
				onWalkError(path, err)
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && excluded[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		ok, matchErr := matchGlob(pattern, rel)
		if matchErr != nil {
			return matchErr
		}
		if ok {
			matches = append(matches, rel)
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return matches, nil
}

// matchGlob supports "**" segments (match zero or more path components) in
// addition to filepath.Match's single-segment wildcards.
func matchGlob(pattern, name string) (bool, error) {
	patternSegs := splitPath(pattern)
	nameSegs := splitPath(name)
	return matchSegments(patternSegs, nameSegs)
}

func splitPath(p string) []string {
	return filepathSplitSlash(p)
}

func filepathSplitSlash(p string) []string {
	var segs []string
	for _, s := range filepathSplit(p) {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func filepathSplit(p string) []string {
	return splitOn(p, '/')
}

func splitOn(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func matchSegments(pattern, name []string) (bool, error) {
	if len(pattern) == 0 {
		return len(name) == 0, nil
	}

	head := pattern[0]
	if head == "**" {
		if len(pattern) == 1 {
			return true, nil
		}
		for i := 0; i <= len(name); i++ {
			ok, err := matchSegments(pattern[1:], name[i:])
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}

	if len(name) == 0 {
		return false, nil
	}

	ok, err := filepath.Match(head, name[0])
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	return matchSegments(pattern[1:], name[1:])
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
