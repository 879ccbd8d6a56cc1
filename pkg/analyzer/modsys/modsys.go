// Package modsys classifies a single JavaScript file by the module system it
// uses and collects the statically known specifiers it depends on.
package modsys

import (
	"context"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/esmaudit/pkg/analyzer/binding"
	"github.com/panbanda/esmaudit/pkg/parser"
	"github.com/panbanda/esmaudit/pkg/stats"
)

// Result is the classification of one file.
type Result struct {
	Stats stats.Stats
	// Specifiers holds every statically known import or require target,
	// deduplicated and sorted.
	Specifiers []string
}

// AnalyzeFile reads, parses and classifies the file at path. Read and parse
// failures are returned as errors; the caller decides how to count them.
func AnalyzeFile(ctx context.Context, psr *parser.Parser, path string) (Result, error) {
	parsed, err := psr.ParseFile(ctx, path)
	if err != nil {
		return Result{}, err
	}
	defer parsed.Close()

	table := binding.Resolve(parsed.Root(), parsed.Source)
	return Classify(parsed.Root(), parsed.Source, table), nil
}

// Classify walks a program once and applies the module-system rules. The
// binding table must have been computed for the same tree.
func Classify(root *sitter.Node, source []byte, table *binding.Table) Result {
	c := &classifier{
		source: source,
		table:  table,
		stats:  stats.FileStats(),
		deps:   make(map[string]struct{}),
	}
	c.visit(root)

	specs := make([]string, 0, len(c.deps))
	for s := range c.deps {
		specs = append(specs, s)
	}
	sort.Strings(specs)

	return Result{Stats: c.stats, Specifiers: specs}
}

type classifier struct {
	source []byte
	table  *binding.Table
	stats  stats.Stats
	deps   map[string]struct{}
}

func (c *classifier) visitChildren(n *sitter.Node) {
	for i := range int(n.ChildCount()) {
		c.visit(n.Child(i))
	}
}

func (c *classifier) visit(n *sitter.Node) {
	if n == nil {
		return
	}

	switch n.Type() {
	case "import_statement":
		c.stats.ESM = 1
		if src := n.ChildByFieldName("source"); src != nil {
			c.addSource(src)
		}
		for i := range int(n.NamedChildCount()) {
			if req := n.NamedChild(i); req.Type() == "import_require_clause" {
				c.addSource(req.ChildByFieldName("source"))
			}
		}
		c.visitChildren(n)

	case "export_statement":
		c.stats.ESM = 1
		if src := n.ChildByFieldName("source"); src != nil {
			c.addSource(src)
		}
		c.visitChildren(n)

	case "call_expression":
		c.call(n)

	case "assignment_expression", "augmented_assignment_expression":
		// The left side of module.exports = ... is the exports object itself,
		// so only the right side can contribute anything.
		if c.isModuleExports(n.ChildByFieldName("left")) {
			c.stats.CJS = 1
			c.visit(n.ChildByFieldName("right"))
			return
		}
		c.visitChildren(n)

	case "member_expression":
		if c.isExportsObject(n.ChildByFieldName("object")) {
			c.stats.CJS = 1
			c.visit(n.ChildByFieldName("property"))
			return
		}
		c.visitChildren(n)

	case "subscript_expression":
		if c.isExportsObject(n.ChildByFieldName("object")) {
			c.stats.CJS = 1
			index := n.ChildByFieldName("index")
			if _, ok := Fold(index, c.source, c.table); !ok {
				c.stats.NonStaticExports = 1
			}
			c.visit(index)
			return
		}
		c.visitChildren(n)

	case "identifier", "shorthand_property_identifier", "shorthand_property_identifier_pattern":
		// A bare exports or module may be aliased and mutated out of sight.
		if c.table.IsFree(n, c.source, "exports") || c.table.IsFree(n, c.source, "module") {
			c.stats.CJS = 1
			c.stats.NonStaticExports = 1
		}

	default:
		c.visitChildren(n)
	}
}

func (c *classifier) call(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")

	// Tagged templates are also call_expression nodes, with a template as arguments.
	if fn != nil && args != nil && args.Type() == "arguments" {
		switch {
		case fn.Type() == "import":
			c.stats.DynamicImport = 1
			c.dependency(parser.FirstNamedChild(args))
		case c.table.IsFree(fn, c.source, "require"):
			c.stats.CJS = 1
			c.dependency(parser.FirstNamedChild(args))
		}
	}

	c.visitChildren(n)
}

func (c *classifier) dependency(arg *sitter.Node) {
	if arg != nil && arg.Type() != "spread_element" {
		if spec, ok := Fold(arg, c.source, c.table); ok {
			c.deps[spec] = struct{}{}
			return
		}
	}
	c.stats.NonStaticDeps = 1
}

func (c *classifier) addSource(n *sitter.Node) {
	if spec, ok := Fold(n, c.source, c.table); ok {
		c.deps[spec] = struct{}{}
	}
}

// isModuleExports matches the free module identifier followed by .exports.
func (c *classifier) isModuleExports(n *sitter.Node) bool {
	if n == nil || n.Type() != "member_expression" {
		return false
	}
	prop := n.ChildByFieldName("property")
	return c.table.IsFree(n.ChildByFieldName("object"), c.source, "module") &&
		prop != nil && prop.Type() == "property_identifier" &&
		parser.GetNodeText(prop, c.source) == "exports"
}

// isExportsObject reports whether n denotes the exports object: either the
// free exports identifier or module.exports.
func (c *classifier) isExportsObject(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	return c.table.IsFree(n, c.source, "exports") || c.isModuleExports(n)
}
