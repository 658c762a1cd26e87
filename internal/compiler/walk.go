package compiler

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	declarationPattern = regexp.MustCompile(`(?i)\.d\.ts$`)
	testFilePattern    = regexp.MustCompile(`(?i)\.(test|spec|e2e)\.m?(j|t)sx?$`)
)

// Skip reports whether a file name is excluded from compilation: dotfiles, type
// declarations and test files.
func Skip(name string) bool {
	return strings.HasPrefix(name, ".") ||
		declarationPattern.MatchString(name) ||
		testFilePattern.MatchString(name)
}

// Walk returns the sorted list of compilable files under srcDir. Scripts are always included;
// other files are included when handles reports a plugin for them. Hidden directories are
// not descended into.
func Walk(srcDir string, handles func(path string) bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != srcDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if Skip(d.Name()) {
			return nil
		}
		if IsScript(p) || (handles != nil && handles(p)) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
