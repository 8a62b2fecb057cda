package pipeline

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Transport stream extensions accepted for conversion (lowercase, with
// leading dot).
var sourceExtensions = map[string]bool{
	".ts":   true,
	".m2ts": true,
	".mts":  true,
}

// IsSource reports whether path looks like a convertible transport
// stream recording. Hidden files and in-progress temp candidates are
// never sources.
func IsSource(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if strings.HasSuffix(base, ".tmp") {
		return false
	}
	return sourceExtensions[strings.ToLower(filepath.Ext(base))]
}

// Discover walks inputDir, collects transport stream files, and returns
// the paths sorted lexicographically for deterministic processing order.
// When inputDir is a single file it is returned as-is (the extension
// check is skipped so an explicitly named file is always accepted).
func Discover(inputDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != inputDir {
				return filepath.SkipDir
			}
			return nil
		}
		if path == inputDir || IsSource(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
