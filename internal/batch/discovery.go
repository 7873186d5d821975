package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Options controls file discovery.
type Options struct {
	// Recursive descends into subdirectories of directory arguments.
	Recursive bool
	// IncludePatterns and ExcludePatterns are filepath.Match globs applied
	// to base names. Excludes win over includes.
	IncludePatterns []string
	ExcludePatterns []string
	// Extensions keeps only files with one of these extensions, compared
	// case-insensitively with or without a leading dot. Empty keeps all.
	Extensions []string
}

// Discover expands files and directories in args into a list of files.
// Explicit file arguments are kept in argument order; directory contents
// are listed in lexical order.
func Discover(args []string, opts Options) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			found, err := discoverInDirectory(arg, opts)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
		} else if opts.matches(arg) {
			files = append(files, arg)
		}
	}

	return files, nil
}

func discoverInDirectory(dir string, opts Options) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !opts.Recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && opts.matches(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	return files, nil
}

func (o Options) matches(path string) bool {
	if !MatchesExtension(path, o.Extensions) {
		return false
	}
	if matchesAnyPattern(path, o.ExcludePatterns) {
		return false
	}
	if len(o.IncludePatterns) == 0 {
		return true
	}
	return matchesAnyPattern(path, o.IncludePatterns)
}

// MatchesExtension reports whether path has one of exts. An empty list
// matches every path.
func MatchesExtension(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := normalizeExt(filepath.Ext(path))
	return slices.ContainsFunc(exts, func(e string) bool {
		return normalizeExt(e) == ext
	})
}

func normalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
