// Package binding computes, for every identifier occurrence in a JavaScript
// syntax tree, whether it refers to a local declaration or is a free
// reference to an ambient global such as require, module or exports.
//
// The table is built in a single pre-pass and is read-only afterwards.
package binding

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/esmaudit/pkg/parser"
)

// Tag classifies one identifier occurrence.
type Tag uint8

const (
	// Unknown is returned for nodes the pre-pass never saw.
	Unknown Tag = iota
	// FreeReference is an occurrence not bound by any enclosing scope.
	FreeReference
	// LocalBinding is a declaring occurrence, or a reference that an
	// enclosing scope declares.
	LocalBinding
)

func (t Tag) String() string {
	switch t {
	case FreeReference:
		return "free"
	case LocalBinding:
		return "local"
	default:
		return "unknown"
	}
}

// Table maps identifier occurrences, keyed by start byte, to their Tag.
type Table struct {
	tags map[uint32]Tag
}

// Tag returns the tag recorded for n.
func (t *Table) Tag(n *sitter.Node) Tag {
	if t == nil || n == nil {
		return Unknown
	}
	return t.tags[n.StartByte()]
}

// IsFree reports whether n is an identifier spelled name that is a free reference.
func (t *Table) IsFree(n *sitter.Node, source []byte, name string) bool {
	if n == nil || !isIdentifierType(n.Type()) {
		return false
	}
	if parser.GetNodeText(n, source) != name {
		return false
	}
	return t.Tag(n) == FreeReference
}

// Len returns the number of tagged occurrences.
func (t *Table) Len() int {
	return len(t.tags)
}

func isIdentifierType(typ string) bool {
	switch typ {
	case "identifier", "shorthand_property_identifier", "shorthand_property_identifier_pattern":
		return true
	}
	return false
}

type scope struct {
	parent   *scope
	function bool
	names    map[string]struct{}
}

func newScope(parent *scope, function bool) *scope {
	return &scope{parent: parent, function: function}
}

func (s *scope) declare(name string) {
	if s.names == nil {
		s.names = make(map[string]struct{})
	}
	s.names[name] = struct{}{}
}

// functionScope returns the nearest enclosing function or program scope,
// which is where var declarations are hoisted to.
func (s *scope) functionScope() *scope {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.function {
			return cur
		}
	}
	return s
}

func (s *scope) lookup(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.names[name]; ok {
			return true
		}
	}
	return false
}

type reference struct {
	start uint32
	name  string
	scope *scope
}

type resolver struct {
	source []byte
	root   *scope
	refs   []reference
	tags   map[uint32]Tag
}

// Resolve runs the scope pre-pass over a program node.
func Resolve(root *sitter.Node, source []byte) *Table {
	r := &resolver{
		source: source,
		root:   newScope(nil, true),
		tags:   make(map[uint32]Tag),
	}
	if root != nil {
		r.walkChildren(root, r.root)
	}

	// Declarations are all known now, so hoisted names resolve regardless of
	// where the reference appears.
	for _, ref := range r.refs {
		if ref.scope.lookup(ref.name) {
			r.tags[ref.start] = LocalBinding
		} else {
			r.tags[ref.start] = FreeReference
		}
	}

	return &Table{tags: r.tags}
}

func (r *resolver) text(n *sitter.Node) string {
	return parser.GetNodeText(n, r.source)
}

func (r *resolver) walkChildren(n *sitter.Node, sc *scope) {
	for i := range int(n.ChildCount()) {
		r.walk(n.Child(i), sc)
	}
}

func (r *resolver) walk(n *sitter.Node, sc *scope) {
	// Anonymous nodes are tokens and never contain identifiers.
	if n == nil || !n.IsNamed() {
		return
	}

	switch n.Type() {
	case "identifier", "shorthand_property_identifier", "shorthand_property_identifier_pattern":
		r.refs = append(r.refs, reference{start: n.StartByte(), name: r.text(n), scope: sc})

	case "function_declaration", "generator_function_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			r.declare(name, sc)
		}
		fn := newScope(sc, true)
		r.params(n, fn)
		r.walk(n.ChildByFieldName("body"), fn)

	case "function", "function_expression", "generator_function":
		fn := newScope(sc, true)
		if name := n.ChildByFieldName("name"); name != nil {
			r.declare(name, fn)
		}
		r.params(n, fn)
		r.walk(n.ChildByFieldName("body"), fn)

	case "arrow_function":
		fn := newScope(sc, true)
		if p := n.ChildByFieldName("parameter"); p != nil {
			r.declarePattern(p, fn, fn)
		} else {
			r.params(n, fn)
		}
		r.walk(n.ChildByFieldName("body"), fn)

	case "method_definition":
		// Computed method names are evaluated in the enclosing scope.
		if name := n.ChildByFieldName("name"); name != nil && name.Type() == "computed_property_name" {
			r.walk(name, sc)
		}
		fn := newScope(sc, true)
		r.params(n, fn)
		r.walk(n.ChildByFieldName("body"), fn)

	case "class_declaration":
		name := n.ChildByFieldName("name")
		if name != nil {
			r.declare(name, sc)
		}
		r.walkExcept(n, name, newScope(sc, false))

	case "class":
		cls := newScope(sc, false)
		name := n.ChildByFieldName("name")
		if name != nil {
			r.declare(name, cls)
		}
		r.walkExcept(n, name, cls)

	case "statement_block", "class_body", "switch_body", "for_statement":
		r.walkChildren(n, newScope(sc, false))

	case "catch_clause":
		blk := newScope(sc, false)
		if p := n.ChildByFieldName("parameter"); p != nil {
			r.declarePattern(p, blk, blk)
		}
		r.walk(n.ChildByFieldName("body"), blk)

	case "for_in_statement":
		r.forIn(n, sc)

	case "variable_declaration":
		r.declarators(n, sc.functionScope(), sc)

	case "lexical_declaration":
		r.declarators(n, sc, sc)

	case "import_statement":
		for i := range int(n.NamedChildCount()) {
			c := n.NamedChild(i)
			if c.Type() == "import_clause" {
				r.importClause(c)
			}
		}

	case "export_statement":
		r.export(n, sc)

	default:
		r.walkChildren(n, sc)
	}
}

func (r *resolver) walkExcept(n, skip *sitter.Node, sc *scope) {
	for i := range int(n.ChildCount()) {
		c := n.Child(i)
		if skip != nil && c.StartByte() == skip.StartByte() && c.Type() == skip.Type() {
			continue
		}
		r.walk(c, sc)
	}
}

func (r *resolver) declare(n *sitter.Node, sc *scope) {
	sc.declare(r.text(n))
	r.tags[n.StartByte()] = LocalBinding
}

func (r *resolver) markLocal(n *sitter.Node) {
	parser.Walk(n, r.source, func(c *sitter.Node, _ []byte) bool {
		if isIdentifierType(c.Type()) {
			r.tags[c.StartByte()] = LocalBinding
		}
		return true
	})
}

func (r *resolver) params(fn *sitter.Node, sc *scope) {
	if ps := fn.ChildByFieldName("parameters"); ps != nil {
		r.declarePattern(ps, sc, sc)
	}
}

func (r *resolver) declarators(n *sitter.Node, target, sc *scope) {
	for i := range int(n.NamedChildCount()) {
		d := n.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		r.declarePattern(d.ChildByFieldName("name"), target, sc)
		r.walk(d.ChildByFieldName("value"), sc)
	}
}

// declarePattern binds every name introduced by a binding pattern into target.
// Default values and computed keys are ordinary expressions evaluated in sc.
func (r *resolver) declarePattern(n *sitter.Node, target, sc *scope) {
	if n == nil {
		return
	}

	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		r.declare(n, target)

	case "object_pattern", "array_pattern", "formal_parameters", "rest_pattern":
		for i := range int(n.NamedChildCount()) {
			r.declarePattern(n.NamedChild(i), target, sc)
		}

	case "pair_pattern":
		if key := n.ChildByFieldName("key"); key != nil && key.Type() == "computed_property_name" {
			r.walk(key, sc)
		}
		r.declarePattern(n.ChildByFieldName("value"), target, sc)

	case "assignment_pattern", "object_assignment_pattern":
		r.declarePattern(n.ChildByFieldName("left"), target, sc)
		r.walk(n.ChildByFieldName("right"), sc)

	case "required_parameter", "optional_parameter":
		r.declarePattern(n.ChildByFieldName("pattern"), target, sc)
		r.walk(n.ChildByFieldName("value"), sc)

	case "comment", "type_annotation":

	default:
		r.walk(n, sc)
	}
}

func (r *resolver) forIn(n *sitter.Node, sc *scope) {
	blk := newScope(sc, false)
	left := n.ChildByFieldName("left")

	kind := ""
	for i := range int(n.ChildCount()) {
		c := n.Child(i)
		if left != nil && c.StartByte() >= left.StartByte() {
			break
		}
		switch c.Type() {
		case "var", "let", "const":
			kind = c.Type()
		}
	}

	switch kind {
	case "var":
		r.declarePattern(left, sc.functionScope(), blk)
	case "let", "const":
		r.declarePattern(left, blk, blk)
	default:
		r.walk(left, blk)
	}

	for i := range int(n.ChildCount()) {
		c := n.Child(i)
		if left != nil && c.StartByte() == left.StartByte() && c.Type() == left.Type() {
			continue
		}
		r.walk(c, blk)
	}
}

func (r *resolver) importClause(n *sitter.Node) {
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		switch c.Type() {
		case "identifier":
			r.declare(c, r.root)
		case "namespace_import":
			for j := range int(c.NamedChildCount()) {
				if id := c.NamedChild(j); id.Type() == "identifier" {
					r.declare(id, r.root)
				}
			}
		case "named_imports":
			for j := range int(c.NamedChildCount()) {
				spec := c.NamedChild(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				name := spec.ChildByFieldName("name")
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					r.markLocal(name)
					r.declare(alias, r.root)
				} else if name != nil && name.Type() == "identifier" {
					r.declare(name, r.root)
				}
			}
		}
	}
}

func (r *resolver) export(n *sitter.Node, sc *scope) {
	source := n.ChildByFieldName("source")

	for i := range int(n.ChildCount()) {
		c := n.Child(i)
		switch c.Type() {
		case "export_clause":
			for j := range int(c.NamedChildCount()) {
				spec := c.NamedChild(j)
				if spec.Type() != "export_specifier" {
					continue
				}
				name := spec.ChildByFieldName("name")
				if source == nil && name != nil && name.Type() == "identifier" {
					r.walk(name, sc)
				} else {
					r.markLocal(name)
				}
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					r.markLocal(alias)
				}
			}
		case "namespace_export":
			r.markLocal(c)
		default:
			r.walk(c, sc)
		}
	}
}
