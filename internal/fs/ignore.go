package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"filestore/internal/filestore"
)

// defaultIgnorePatterns are always applied regardless of config or the ignore
// file. A root-level ignore file left by an older layout is never archived.
var defaultIgnorePatterns = []string{"/" + filestore.IgnoreFileName}

type patternKind int

const (
	matchBase   patternKind = iota // "*.log": the file's base name
	matchPath                      // "shared/*.md", "/x.txt": the whole path from the root
	matchParent                    // "drafts/": any directory above the file
)

type ignorePattern struct {
	glob string
	kind patternKind
}

// IgnoreMatcher hides storage paths from directory archives.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped. A pattern ending in
// '/' names a directory; one containing another '/' is anchored at the
// storage root; anything else matches base names.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		p := ignorePattern{glob: raw, kind: matchBase}
		switch {
		case strings.HasSuffix(raw, "/"):
			p.glob = strings.Trim(raw, "/")
			p.kind = matchParent
			if strings.Contains(p.glob, "/") || p.glob == "" {
				// Nested directory patterns are anchored paths of their own.
				p.glob += "/*"
				p.kind = matchPath
			}
		case strings.Contains(raw, "/"):
			p.glob = strings.TrimPrefix(raw, "/")
			p.kind = matchPath
		}
		if _, err := path.Match(p.glob, ""); err != nil {
			continue
		}
		patterns = append(patterns, p)
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether storagePath should be hidden. Both "/"-rooted and
// root-relative paths are accepted.
func (m *IgnoreMatcher) Match(storagePath string) bool {
	rel := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(storagePath)), "/")
	if rel == "" || len(m.patterns) == 0 {
		return false
	}

	base := path.Base(rel)
	parents := strings.Split(path.Dir(rel), "/")

	for _, p := range m.patterns {
		switch p.kind {
		case matchBase:
			if ok, _ := path.Match(p.glob, base); ok {
				return true
			}
		case matchPath:
			if ok, _ := path.Match(p.glob, rel); ok {
				return true
			}
		case matchParent:
			for _, dir := range parents {
				if ok, _ := path.Match(p.glob, dir); ok && dir != "." {
					return true
				}
			}
		}
	}
	return false
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}

// LoadIgnoreMatcher builds the matcher from the default patterns, the
// configured ones and those in ignoreFile. An empty ignoreFile is skipped.
// The file must sit outside the storage root so uploads cannot change it.
func LoadIgnoreMatcher(ignoreFile string, configured []string) (*IgnoreMatcher, error) {
	var fromFile []string
	if ignoreFile != "" {
		var err error
		if fromFile, err = ParseIgnoreFile(ignoreFile); err != nil {
			return nil, err
		}
	}

	patterns := make([]string, 0, len(defaultIgnorePatterns)+len(configured)+len(fromFile))
	patterns = append(patterns, defaultIgnorePatterns...)
	patterns = append(patterns, configured...)
	patterns = append(patterns, fromFile...)
	return NewIgnoreMatcher(patterns), nil
}
