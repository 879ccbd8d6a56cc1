// Package resolver maps module specifiers to files using Node.js-style
// resolution: core modules, relative paths, package.json "imports",
// and packages installed in ancestor module-store directories with their
// "exports" maps and main fields.
package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Kind is the kind of reference a specifier appears in.
type Kind int

const (
	// KindESM is an import declaration or dynamic import.
	KindESM Kind = iota
	// KindCommonJS is a require call.
	KindCommonJS
)

func (k Kind) String() string {
	if k == KindCommonJS {
		return "commonjs"
	}
	return "esm"
}

// Status is the outcome of a resolution.
type Status int

const (
	Unresolved Status = iota
	ResolvedFile
	Builtin
)

func (s Status) String() string {
	switch s {
	case ResolvedFile:
		return "file"
	case Builtin:
		return "builtin"
	default:
		return "unresolved"
	}
}

// Resolution is the result of resolving one specifier. Path is set for
// ResolvedFile and Name for Builtin.
type Resolution struct {
	Status Status
	Path   string
	Name   string
}

func (r Resolution) String() string {
	switch r.Status {
	case ResolvedFile:
		return r.Path
	case Builtin:
		return "builtin:" + r.Name
	default:
		return "unresolved"
	}
}

// Options configures a Resolver.
type Options struct {
	// Conditions are matched against exports/imports condition maps in order.
	// "default" always matches after these.
	Conditions []string
	// MainFields are the package.json fields consulted for a package's entry
	// point when it has no exports, in priority order.
	MainFields []string
	// Extensions are tried, in order, for extensionless paths and index files.
	Extensions []string
	// ModuleStore is the directory name searched for installed packages.
	ModuleStore string
	// CacheSize bounds the number of cached package.json lookups.
	CacheSize int
	// PreserveSymlinks keeps resolved paths as found instead of
	// canonicalizing them.
	PreserveSymlinks bool
}

// DefaultOptions returns the options used for ESM-oriented resolution.
func DefaultOptions() Options {
	return Options{
		Conditions:  []string{"import", "module", "node", "default"},
		MainFields:  []string{"module", "main"},
		Extensions:  []string{".js", ".mjs", ".cjs", ".jsx", ".ts", ".mts", ".cts", ".tsx", ".json", ".node"},
		ModuleStore: "node_modules",
		CacheSize:   4096,
	}
}

// Resolver resolves specifiers. It is safe for concurrent use.
type Resolver struct {
	opts      Options
	manifests *lru.Cache[string, *packageJSON]
}

// New creates a Resolver. Zero-valued options fall back to DefaultOptions.
func New(opts Options) (*Resolver, error) {
	def := DefaultOptions()
	if len(opts.Conditions) == 0 {
		opts.Conditions = def.Conditions
	}
	if len(opts.MainFields) == 0 {
		opts.MainFields = def.MainFields
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = def.Extensions
	}
	if opts.ModuleStore == "" {
		opts.ModuleStore = def.ModuleStore
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = def.CacheSize
	}

	cache, err := lru.New[string, *packageJSON](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating manifest cache: %w", err)
	}
	return &Resolver{opts: opts, manifests: cache}, nil
}

// Resolve resolves specifier as referenced from the file at from.
func (r *Resolver) Resolve(specifier, from string, kind Kind) Resolution {
	if specifier == "" {
		return Resolution{}
	}
	if name, ok := builtinName(specifier); ok {
		return Resolution{Status: Builtin, Name: name}
	}
	if isURL(specifier) {
		return Resolution{}
	}

	dir := filepath.Dir(from)
	conditions := r.conditions(kind)

	var (
		path string
		ok   bool
	)
	switch {
	case isRelative(specifier) || filepath.IsAbs(specifier):
		target := specifier
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, specifier)
		}
		path, ok = r.loadFileOrDirectory(target)
	case strings.HasPrefix(specifier, "#"):
		return r.resolvePackageImport(specifier, dir, kind, conditions)
	default:
		path, ok = r.resolvePackage(specifier, dir, conditions)
	}

	if !ok {
		return Resolution{}
	}
	return Resolution{Status: ResolvedFile, Path: r.canonical(path)}
}

// conditions returns the condition list for kind. CommonJS references match
// "require" where ESM references match "import".
func (r *Resolver) conditions(kind Kind) []string {
	if kind != KindCommonJS {
		return r.opts.Conditions
	}
	out := make([]string, 0, len(r.opts.Conditions))
	for _, c := range r.opts.Conditions {
		if c == "import" {
			c = "require"
		}
		out = append(out, c)
	}
	return out
}

func (r *Resolver) canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if r.opts.PreserveSymlinks {
		return abs
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}

func (r *Resolver) resolvePackageImport(specifier, dir string, kind Kind, conditions []string) Resolution {
	pkg := r.packageScope(dir)
	if pkg == nil || pkg.imports == nil {
		return Resolution{}
	}

	target, ok := resolveImports(pkg.imports, specifier, conditions)
	if !ok {
		return Resolution{}
	}
	if strings.HasPrefix(target, "./") {
		path, ok := r.loadFileOrDirectory(filepath.Join(pkg.dir, filepath.FromSlash(target)))
		if !ok {
			return Resolution{}
		}
		return Resolution{Status: ResolvedFile, Path: r.canonical(path)}
	}

	if strings.HasPrefix(target, "#") {
		return Resolution{}
	}
	// Bare targets are resolved as packages from the scope's own directory.
	return r.Resolve(target, filepath.Join(pkg.dir, "package.json"), kind)
}

// resolvePackage looks name up in every ancestor module store, nearest first.
func (r *Resolver) resolvePackage(specifier, dir string, conditions []string) (string, bool) {
	name, subpath, ok := splitPackageSpecifier(specifier)
	if !ok {
		return "", false
	}

	// A package may import itself by name through its own exports.
	if scope := r.packageScope(dir); scope != nil && scope.name == name && scope.exports != nil {
		if target, ok := resolveExports(scope.exports, subpath, conditions); ok {
			return r.loadFileOrDirectory(filepath.Join(scope.dir, filepath.FromSlash(target)))
		}
	}

	for cur := dir; ; {
		if filepath.Base(cur) != r.opts.ModuleStore {
			pkgDir := filepath.Join(cur, r.opts.ModuleStore, filepath.FromSlash(name))
			if isDir(pkgDir) {
				path, found, final := r.loadPackage(pkgDir, subpath, conditions)
				if found || final {
					return path, found
				}
			}
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return "", false
		}
		cur = parent
	}
}

// loadPackage resolves subpath inside an installed package. final reports
// that the package's exports field decided the outcome, so the search must
// not continue in outer module stores.
func (r *Resolver) loadPackage(pkgDir, subpath string, conditions []string) (path string, found, final bool) {
	pkg := r.manifest(pkgDir)
	if pkg != nil && pkg.exports != nil {
		target, ok := resolveExports(pkg.exports, subpath, conditions)
		if !ok {
			return "", false, true
		}
		path, ok = r.loadFileOrDirectory(filepath.Join(pkgDir, filepath.FromSlash(target)))
		return path, ok, true
	}

	if subpath == "." {
		path, found = r.loadDirectory(pkgDir)
		return path, found, false
	}
	path, found = r.loadFileOrDirectory(filepath.Join(pkgDir, filepath.FromSlash(subpath)))
	return path, found, false
}

func (r *Resolver) loadFileOrDirectory(path string) (string, bool) {
	if p, ok := r.loadFile(path); ok {
		return p, true
	}
	if isDir(path) {
		return r.loadDirectory(path)
	}
	return "", false
}

func (r *Resolver) loadFile(path string) (string, bool) {
	if isFile(path) {
		return path, true
	}
	for _, ext := range r.opts.Extensions {
		if isFile(path + ext) {
			return path + ext, true
		}
	}
	return "", false
}

func (r *Resolver) loadDirectory(dir string) (string, bool) {
	if pkg := r.manifest(dir); pkg != nil {
		for _, field := range r.opts.MainFields {
			main := pkg.stringField(field)
			if main == "" {
				continue
			}
			target := filepath.Join(dir, filepath.FromSlash(main))
			if p, ok := r.loadFile(target); ok {
				return p, true
			}
			if isDir(target) {
				if p, ok := r.loadIndex(target); ok {
					return p, true
				}
			}
		}
	}
	return r.loadIndex(dir)
}

func (r *Resolver) loadIndex(dir string) (string, bool) {
	for _, ext := range r.opts.Extensions {
		p := filepath.Join(dir, "index"+ext)
		if isFile(p) {
			return p, true
		}
	}
	return "", false
}

// splitPackageSpecifier splits "name/sub/path" or "@scope/name/sub" into the
// package name and a "./"-prefixed subpath ("." for the package root).
func splitPackageSpecifier(specifier string) (name, subpath string, ok bool) {
	parts := strings.Split(specifier, "/")
	n := 1
	if strings.HasPrefix(specifier, "@") {
		n = 2
	}
	if len(parts) < n || slices.Contains(parts[:n], "") {
		return "", "", false
	}

	name = strings.Join(parts[:n], "/")
	if strings.HasPrefix(name, ".") || strings.ContainsAny(name, `\%`) {
		return "", "", false
	}

	subpath = "."
	if rest := parts[n:]; len(rest) > 0 {
		subpath = "./" + strings.Join(rest, "/")
	}
	return name, subpath, true
}

func isRelative(specifier string) bool {
	return specifier == "." || specifier == ".." ||
		strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

// isURL reports whether specifier has a URL scheme such as http: or data:.
func isURL(specifier string) bool {
	scheme, _, ok := strings.Cut(specifier, ":")
	if !ok || len(scheme) < 2 {
		// A single letter is a Windows drive, not a scheme.
		return false
	}
	for i := 0; i < len(scheme); i++ {
		c := scheme[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.') {
			return false
		}
	}
	return true
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
