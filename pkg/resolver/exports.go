package resolver

import (
	"sort"
	"strings"
)

// resolveExports maps a package subpath ("." or "./x") through an exports
// field. The returned target is relative to the package directory.
func resolveExports(exports any, subpath string, conditions []string) (string, bool) {
	m, ok := exports.(map[string]any)
	if !ok || !hasSubpathKeys(m) {
		// String, array and bare condition maps are sugar for {".": exports}.
		if subpath != "." {
			return "", false
		}
		return resolveTarget(exports, "", conditions, false)
	}
	return matchSubpath(m, subpath, conditions, false)
}

// resolveImports maps a #specifier through an imports field. Targets may be
// relative paths or bare package specifiers.
func resolveImports(imports any, specifier string, conditions []string) (string, bool) {
	m, ok := imports.(map[string]any)
	if !ok {
		return "", false
	}
	return matchSubpath(m, specifier, conditions, true)
}

func hasSubpathKeys(m map[string]any) bool {
	for k := range m {
		if strings.HasPrefix(k, ".") {
			return true
		}
	}
	return false
}

// matchSubpath finds the key for subpath: an exact key first, then the most
// specific "*" pattern, then the longest legacy folder mapping ending in "/".
func matchSubpath(m map[string]any, subpath string, conditions []string, allowBare bool) (string, bool) {
	if target, ok := m[subpath]; ok && !strings.Contains(subpath, "*") {
		return resolveTarget(target, "", conditions, allowBare)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return patternKeyLess(keys[i], keys[j]) })

	for _, key := range keys {
		prefix, suffix, isPattern := strings.Cut(key, "*")
		switch {
		case isPattern:
			if strings.Contains(suffix, "*") {
				continue
			}
			if len(subpath) < len(key) || !strings.HasPrefix(subpath, prefix) || !strings.HasSuffix(subpath, suffix) {
				continue
			}
			star := subpath[len(prefix) : len(subpath)-len(suffix)]
			return resolveTarget(m[key], star, conditions, allowBare)

		case strings.HasSuffix(key, "/") && strings.HasPrefix(subpath, key):
			target, ok := resolveTarget(m[key], "", conditions, allowBare)
			if !ok || !strings.HasSuffix(target, "/") {
				return "", false
			}
			return target + subpath[len(key):], true
		}
	}
	return "", false
}

// patternKeyLess orders keys so the longest prefix before "*" comes first,
// then the longest key. Keys without "*" sort after patterns.
func patternKeyLess(a, b string) bool {
	ai, bi := strings.Index(a, "*"), strings.Index(b, "*")
	switch {
	case ai >= 0 && bi < 0:
		return true
	case ai < 0 && bi >= 0:
		return false
	}

	abase, bbase := len(a), len(b)
	if ai >= 0 {
		abase, bbase = ai+1, bi+1
	}
	if abase != bbase {
		return abase > bbase
	}
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a < b
}

// resolveTarget evaluates one exports/imports value. Condition maps are
// matched in the order of conditions; "default" always matches last. A null
// target blocks the subpath.
func resolveTarget(target any, star string, conditions []string, allowBare bool) (string, bool) {
	switch t := target.(type) {
	case string:
		if !strings.HasPrefix(t, "./") {
			if !allowBare || strings.HasPrefix(t, "../") || strings.HasPrefix(t, "/") {
				return "", false
			}
		}
		if star != "" {
			t = strings.ReplaceAll(t, "*", star)
		}
		return t, true

	case []any:
		for _, alt := range t {
			if resolved, ok := resolveTarget(alt, star, conditions, allowBare); ok {
				return resolved, true
			}
		}
		return "", false

	case map[string]any:
		for _, cond := range conditions {
			if v, ok := t[cond]; ok {
				if resolved, ok := resolveTarget(v, star, conditions, allowBare); ok {
					return resolved, true
				}
			}
		}
		if v, ok := t["default"]; ok {
			return resolveTarget(v, star, conditions, allowBare)
		}
		return "", false
	}

	return "", false
}
