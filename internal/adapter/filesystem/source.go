// Package filesystem lists catchment files in a data directory.
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Source lists regular files in Dir whose base name matches Pattern.
type Source struct {
	Dir     string
	Pattern string
}

// NewSource creates a Source, validating the glob pattern.
func NewSource(dir, pattern string) (*Source, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("file pattern %q: %w", pattern, err)
	}
	return &Source{Dir: dir, Pattern: pattern}, nil
}

// List returns matching file names relative to Dir, sorted. Subdirectories are not descended.
func (s *Source) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var out []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		ok, err := filepath.Match(s.Pattern, e.Name())
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", e.Name(), err)
		}
		if ok {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Stat returns file info for a path relative to Dir.
func (s *Source) Stat(relPath string) (os.FileInfo, error) {
	return os.Stat(filepath.Join(s.Dir, relPath))
}
