// Package packages maps visited file paths to the installed package
// directories they belong to.
package packages

import (
	"path/filepath"
	"sort"
	"strings"
)

const (
	// DefaultModuleStore is the directory name holding installed packages.
	DefaultModuleStore = "node_modules"
	// DefaultScopePrefix marks a scope directory whose package name spans two segments.
	DefaultScopePrefix = "@"
)

// Normalizer derives package identities from file paths.
type Normalizer struct {
	ModuleStore string
	ScopePrefix string
}

// New returns a Normalizer using the given marker and scope prefix. Empty
// values fall back to the defaults.
func New(moduleStore, scopePrefix string) *Normalizer {
	if moduleStore == "" {
		moduleStore = DefaultModuleStore
	}
	if scopePrefix == "" {
		scopePrefix = DefaultScopePrefix
	}
	return &Normalizer{ModuleStore: moduleStore, ScopePrefix: scopePrefix}
}

// Identity returns the package directory for path: everything up to and
// including the segment after the last module-store segment, plus one more
// segment for scoped names. The second result is false for paths outside any
// module store, which all belong to the same unknown bucket.
func (n *Normalizer) Identity(path string) (string, bool) {
	segs := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")

	marker := -1
	for i := len(segs) - 2; i >= 0; i-- {
		if segs[i] == n.ModuleStore {
			marker = i
			break
		}
	}
	if marker < 0 {
		return "", false
	}

	end := marker + 2
	if strings.HasPrefix(segs[marker+1], n.ScopePrefix) && end < len(segs) {
		end++
	}
	return filepath.FromSlash(strings.Join(segs[:end], "/")), true
}

// Identities returns the sorted, distinct package identities for paths,
// excluding the unknown bucket.
func (n *Normalizer) Identities(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if id, ok := n.Identity(p); ok {
			seen[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of distinct package identities in paths.
func (n *Normalizer) Count(paths []string) int {
	return len(n.Identities(paths))
}

// Identity normalizes path with the default marker and scope prefix.
func Identity(path string) (string, bool) {
	return New("", "").Identity(path)
}

// Count counts distinct packages with the default marker and scope prefix.
func Count(paths []string) int {
	return New("", "").Count(paths)
}
