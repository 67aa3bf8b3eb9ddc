// Package source resolves the HTML pages a run audits.
//
// An input is a single file path, a glob pattern, or an http(s) URL.
// Patterns support single-level (*) and recursive (**) wildcards:
//
//   - "input_ui.html" → ["input_ui.html"]
//   - "site/*.html" → ["site/about.html", "site/login.html"]
//   - "site/**/*.html" → every HTML page under site/
//   - "https://example.com/signup" → the page at that URL
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Input is one resolved page.
type Input struct {
	// Path is the file path or URL as it should be opened.
	Path string

	// Name is the path relative to the pattern's static base, using forward
	// slashes. For a plain file path it is the base name; for a URL it is a
	// slug of the host and path.
	Name string
}

// Resolve expands pattern to the files it names, sorted by path.
// A plain path must exist and be a regular file; a pattern must match at
// least one file. A URL resolves to itself and is only checked when fetched.
func Resolve(pattern string) ([]Input, error) {
	if IsURL(pattern) {
		return []Input{{Path: pattern, Name: urlName(pattern)}}, nil
	}

	if !ContainsGlob(pattern) {
		info, err := os.Stat(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("input is a directory: %s", pattern)
		}
		return []Input{{Path: pattern, Name: filepath.Base(pattern)}}, nil
	}

	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files match pattern: %s", pattern)
	}
	sort.Strings(matches)

	base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))

	inputs := make([]Input, 0, len(matches))
	for _, match := range matches {
		inputs = append(inputs, Input{Path: match, Name: relativeName(base, match)})
	}
	return inputs, nil
}

// ContainsGlob checks if a pattern contains glob characters.
func ContainsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// ReportPath names the report for in when several pages are audited into
// the directory dir: the page's relative name with its extension replaced
// by ".report" plus ext.
func ReportPath(dir string, in Input, ext string) string {
	name := strings.TrimSuffix(in.Name, filepath.Ext(in.Name))
	return filepath.Join(dir, filepath.FromSlash(name)+".report"+ext)
}

func relativeName(base, match string) string {
	slashed := filepath.ToSlash(match)
	if base == "." || base == "" {
		return strings.TrimPrefix(slashed, "./")
	}
	rel := strings.TrimPrefix(slashed, base)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return filepath.Base(match)
	}
	return rel
}
