package filesystem

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/custodia-labs/scholar/internal/core/domain"
)

// DefaultExcludes skips hidden files and directories.
var DefaultExcludes = []string{".*", "**/.*", "**/.*/**"}

// Scanner lists loadable files under a root directory.
type Scanner struct {
	includes []string
	excludes []string
	supports func(path string) bool
}

// NewScanner creates a scanner. supports reports whether a loader exists
// for a path; nil accepts every file. No includes means every file.
func NewScanner(supports func(path string) bool, includes, excludes []string) *Scanner {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	if excludes == nil {
		excludes = DefaultExcludes
	}
	if supports == nil {
		supports = func(string) bool { return true }
	}
	return &Scanner{includes: includes, excludes: excludes, supports: supports}
}

// Scan returns the absolute paths of loadable files under root, sorted.
// A root that is a regular file is returned alone when it is loadable.
func (s *Scanner) Scan(root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, root)
		}
		return nil, fmt.Errorf("root path error: %w", err)
	}

	if !info.IsDir() {
		if !s.supports(root) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, root)
		}
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if s.excludedDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && s.matchRel(rel) && s.supports(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

// Match reports whether path under root passes the patterns and has a loader.
func (s *Scanner) Match(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return s.matchRel(filepath.ToSlash(rel)) && s.supports(path)
}

func (s *Scanner) matchRel(rel string) bool {
	return s.included(rel) && !s.excluded(rel)
}

func (s *Scanner) included(rel string) bool {
	return matchAny(s.includes, rel)
}

func (s *Scanner) excluded(rel string) bool {
	return matchAny(s.excludes, rel)
}

func (s *Scanner) excludedDir(rel string) bool {
	return s.excluded(rel) || s.excluded(rel+"/")
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, rel)
		if err == nil && matched {
			return true
		}
	}
	return false
}
