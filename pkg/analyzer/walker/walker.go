// Package walker traverses a dependency graph from a set of root package
// names, classifying every reachable file exactly once.
package walker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/panbanda/esmaudit/internal/fileproc"
	"github.com/panbanda/esmaudit/pkg/analyzer/modsys"
	"github.com/panbanda/esmaudit/pkg/analyzer/packages"
	"github.com/panbanda/esmaudit/pkg/parser"
	"github.com/panbanda/esmaudit/pkg/resolver"
	"github.com/panbanda/esmaudit/pkg/stats"
)

// Resolver maps a specifier referenced from a file to its target.
type Resolver interface {
	Resolve(specifier, from string, kind resolver.Kind) resolver.Resolution
}

// DefaultSkipPackages are root dependency names whose manifests are known
// to be unusable for this analysis.
var DefaultSkipPackages = []string{
	"@types/*",
	"@octokit/openapi-types",
	"@graphql-typed-document-node/core",
	"csstype",
	"@tokenizer/token",
}

// DefaultSkipExtensions are file extensions that are never classified.
// Files without an extension are always skipped.
var DefaultSkipExtensions = []string{".json", ".node", ".css", ".svg"}

// Options configures a Walker.
type Options struct {
	// Workers bounds concurrent file processing. 0 means 2x NumCPU.
	Workers int
	// SkipPackages are glob patterns matched against root dependency names.
	SkipPackages []string
	// SkipExtensions are extensions, with or without the leading dot.
	SkipExtensions []string
	// ModuleStore and ScopePrefix configure package identity.
	ModuleStore string
	ScopePrefix string
	// Visited, when set, is shared with the caller. Paths already in it are
	// treated as visited before traversal starts.
	Visited *VisitedSet
	// OnProgress is called after each resolved edge.
	OnProgress func()
	Logger     *slog.Logger
}

// Walker traverses dependency graphs. A Walker may run several traversals,
// each with its own VisitedSet unless Options.Visited is set.
type Walker struct {
	resolver   Resolver
	opts       Options
	skip       []glob.Glob
	skipExts   map[string]bool
	normalizer *packages.Normalizer
	logger     *slog.Logger
}

// Result is the outcome of one traversal.
type Result struct {
	Stats stats.Stats
	// Packages are the distinct package identities visited by this traversal.
	Packages []string
	// Failures are the files that could not be read or parsed, by path.
	Failures []fileproc.ProcessingError
}

// New creates a Walker. Nil skip lists take the defaults; an empty non-nil
// list disables skipping.
func New(r Resolver, opts Options) (*Walker, error) {
	if r == nil {
		return nil, errors.New("walker: nil resolver")
	}
	if opts.SkipPackages == nil {
		opts.SkipPackages = DefaultSkipPackages
	}
	if opts.SkipExtensions == nil {
		opts.SkipExtensions = DefaultSkipExtensions
	}

	w := &Walker{
		resolver:   r,
		opts:       opts,
		skipExts:   make(map[string]bool, len(opts.SkipExtensions)),
		normalizer: packages.New(opts.ModuleStore, opts.ScopePrefix),
		logger:     opts.Logger,
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}

	for _, pattern := range opts.SkipPackages {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid skip pattern %q: %w", pattern, err)
		}
		w.skip = append(w.skip, g)
	}
	for _, ext := range opts.SkipExtensions {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		w.skipExts[ext] = true
	}
	return w, nil
}

// edge is one specifier to resolve and the file it was found in.
type edge struct {
	specifier string
	from      string
}

// Traverse resolves every root name from basePath and walks everything
// reachable. Per-file failures are counted in the stats, never returned;
// the error is non-nil only for invalid arguments or a cancelled context.
func (w *Walker) Traverse(ctx context.Context, roots []string, basePath string) (Result, error) {
	if basePath == "" {
		return Result{}, errors.New("walker: empty base path")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	visited := w.opts.Visited
	if visited == nil {
		visited = NewVisitedSet()
	}
	seeded := make(map[string]struct{}, visited.Len())
	for _, p := range visited.Paths() {
		seeded[p] = struct{}{}
	}

	seeds := make([]edge, 0, len(roots))
	for _, name := range roots {
		if w.skipped(name) {
			w.logger.Debug("skipping package", "name", name)
			continue
		}
		seeds = append(seeds, edge{specifier: name, from: basePath})
	}

	failures := &fileproc.ProcessingErrors{}
	process := func(psr *parser.Parser, e edge) (stats.Stats, []edge) {
		return w.follow(ctx, psr, visited, failures, e)
	}

	total, err := fileproc.Drain(ctx, seeds, w.opts.Workers, process, stats.Merge, w.opts.OnProgress)

	var fresh []string
	for _, p := range visited.Paths() {
		if _, ok := seeded[p]; !ok {
			fresh = append(fresh, p)
		}
	}
	ids := w.normalizer.Identities(fresh)
	total.Packages = uint32(len(ids))

	return Result{Stats: total, Packages: ids, Failures: failures.Sorted()}, err
}

func (w *Walker) skipped(name string) bool {
	for _, g := range w.skip {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// follow resolves one edge and, if it leads to a file this call is first to
// reach, classifies the file and returns its outgoing edges.
func (w *Walker) follow(ctx context.Context, psr *parser.Parser, visited *VisitedSet, failures *fileproc.ProcessingErrors, e edge) (stats.Stats, []edge) {
	res := w.resolver.Resolve(e.specifier, e.from, resolver.KindESM)
	switch res.Status {
	case resolver.Builtin:
		return stats.Zero(), nil
	case resolver.Unresolved:
		w.logger.Debug("unresolved specifier", "specifier", e.specifier, "from", e.from)
		return stats.Zero(), nil
	}

	path := res.Path
	if !visited.Insert(path) {
		return stats.Zero(), nil
	}

	ext := filepath.Ext(path)
	if ext == "" || w.skipExts[ext] {
		return stats.Zero(), nil
	}

	result, err := modsys.AnalyzeFile(ctx, psr, path)
	if err != nil {
		var readErr *parser.ReadError
		if errors.As(err, &readErr) {
			w.logger.Debug("failed to read file", "path", path, "error", err)
		} else {
			w.logger.Debug("failed to parse file", "path", path, "error", err)
		}
		failures.Add(path, err)
		return stats.ErrorStats(), nil
	}

	next := make([]edge, len(result.Specifiers))
	for i, spec := range result.Specifiers {
		next[i] = edge{specifier: spec, from: path}
	}
	return result.Stats, next
}
