package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// defaultIncludes match every file type the extractors understand.
var defaultIncludes = []string{"**/*.{txt,text,log,md,markdown,csv,tsv,xlsx,xls,pdf}"}

var defaultExcludes = []string{"**/.git/**", "**/node_modules/**", "**/.ragstream/**"}

// fileFilter selects files by doublestar patterns relative to a root.
type fileFilter struct {
	includes []string
	excludes []string
}

func newFileFilter(includes, excludes []string) *fileFilter {
	if len(includes) == 0 {
		includes = defaultIncludes
	}
	return &fileFilter{
		includes: includes,
		excludes: append(slices.Clone(defaultExcludes), excludes...),
	}
}

func (f *fileFilter) match(rel string) bool {
	rel = filepath.ToSlash(rel)
	return matchAny(f.includes, rel) && !matchAny(f.excludes, rel)
}

func (f *fileFilter) skipDir(rel string) bool {
	return matchAny(f.excludes, filepath.ToSlash(rel)+"/")
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if matched, err := doublestar.Match(pattern, path); err == nil && matched {
			return true
		}
	}
	return false
}

// sourceFile is a file to ingest together with its path relative to the
// directory or pattern it was found under.
type sourceFile struct {
	Path string
	Rel  string
}

// collectFiles expands args into files. An argument may name a file, a
// directory (walked recursively through the filter) or a doublestar glob.
func collectFiles(args []string, filter *fileFilter) ([]sourceFile, error) {
	var out []sourceFile
	seen := make(map[string]struct{})
	add := func(path, rel string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, sourceFile{Path: path, Rel: filepath.ToSlash(rel)})
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		switch {
		case err == nil && info.IsDir():
			if err := walkDir(arg, filter, add); err != nil {
				return nil, err
			}
		case err == nil:
			add(arg, filepath.Base(arg))
		default:
			matches, gerr := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
			if gerr != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", arg, gerr)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no files match %q", arg)
			}
			base, _ := doublestar.SplitPattern(filepath.ToSlash(arg))
			for _, m := range matches {
				rel, rerr := filepath.Rel(filepath.FromSlash(base), m)
				if rerr != nil {
					rel = filepath.Base(m)
				}
				add(m, rel)
			}
		}
	}
	return out, nil
}

func walkDir(root string, filter *fileFilter, add func(path, rel string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel != "." && filter.skipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if filter.match(rel) {
			add(path, rel)
		}
		return nil
	})
}
