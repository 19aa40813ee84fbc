package storage

import (
	"path/filepath"
	"strings"
)

// DefaultExtensions are the batch file extensions listed by default.
var DefaultExtensions = []string{".csv", ".txt", ".xyz"}

// ResultSuffix marks result files written next to batch files. They are
// never listed as batch files.
const ResultSuffix = ".out.csv"

// Filter selects batch files by extension, case-insensitively.
type Filter struct {
	extensions []string
}

// NewFilter creates a filter for the given extensions. Without extensions
// DefaultExtensions are used.
func NewFilter(extensions ...string) Filter {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	f := Filter{extensions: make([]string, 0, len(extensions))}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.extensions = append(f.extensions, ext)
	}
	return f
}

// Match reports whether name is a batch file.
func (f Filter) Match(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ResultSuffix) {
		return false
	}
	ext := filepath.Ext(lower)
	for _, e := range f.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Extensions returns the matched extensions.
func (f Filter) Extensions() []string {
	return append([]string(nil), f.extensions...)
}
