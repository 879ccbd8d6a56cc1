package binding

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/esmaudit/pkg/parser"
)

// tagsFor parses src and returns the tag of every occurrence of name, in
// source order.
func tagsFor(t *testing.T, src, name string) []Tag {
	t.Helper()

	p := parser.New()
	defer p.Close()

	result, err := p.Parse(context.Background(), []byte(src), parser.LangJavaScript, "test.js")
	require.NoError(t, err)
	defer result.Close()

	table := Resolve(result.Root(), result.Source)

	var tags []Tag
	parser.Walk(result.Root(), result.Source, func(n *sitter.Node, source []byte) bool {
		if isIdentifierType(n.Type()) && parser.GetNodeText(n, source) == name {
			tags = append(tags, table.Tag(n))
		}
		return true
	})
	return tags
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		src  string
		id   string
		want []Tag
	}{
		{
			name: "global require",
			src:  `require("a");`,
			id:   "require",
			want: []Tag{FreeReference},
		},
		{
			name: "top-level const shadows",
			src:  `const require = createRequire(__filename); require("a");`,
			id:   "require",
			want: []Tag{LocalBinding, LocalBinding},
		},
		{
			name: "parameter shadows inside function only",
			src:  `function f(module) { return module; } module.exports = f;`,
			id:   "module",
			want: []Tag{LocalBinding, LocalBinding, FreeReference},
		},
		{
			name: "var hoists out of blocks",
			src:  `function f() { exports.a = 1; if (x) { var exports = {}; } } exports.b = 2;`,
			id:   "exports",
			want: []Tag{LocalBinding, LocalBinding, FreeReference},
		},
		{
			name: "let stays in its block",
			src:  `{ let exports = {}; exports.a = 1; } exports.b = 2;`,
			id:   "exports",
			want: []Tag{LocalBinding, LocalBinding, FreeReference},
		},
		{
			name: "reference before hoisted function declaration",
			src:  `require("a"); function require() {}`,
			id:   "require",
			want: []Tag{LocalBinding, LocalBinding},
		},
		{
			name: "destructured parameter",
			src:  `const f = ({ module }, [exports] = []) => module + exports; module;`,
			id:   "module",
			want: []Tag{LocalBinding, LocalBinding, FreeReference},
		},
		{
			name: "arrow single parameter",
			src:  `const f = require => require("x"); require("y");`,
			id:   "require",
			want: []Tag{LocalBinding, LocalBinding, FreeReference},
		},
		{
			name: "catch parameter",
			src:  `try {} catch (module) { module; } module;`,
			id:   "module",
			want: []Tag{LocalBinding, LocalBinding, FreeReference},
		},
		{
			name: "import binding",
			src:  `import module from "m"; module.exports = 1;`,
			id:   "module",
			want: []Tag{LocalBinding, LocalBinding},
		},
		{
			name: "import alias",
			src:  `import { exports as e } from "m"; exports.x = e;`,
			id:   "exports",
			want: []Tag{LocalBinding, FreeReference},
		},
		{
			name: "named function expression binds its own name",
			src:  `const x = function require() { return require; }; require;`,
			id:   "require",
			want: []Tag{LocalBinding, LocalBinding, FreeReference},
		},
		{
			name: "for-of let",
			src:  `for (const module of list) { module; } module;`,
			id:   "module",
			want: []Tag{LocalBinding, LocalBinding, FreeReference},
		},
		{
			name: "shorthand property is a reference",
			src:  `f({ exports });`,
			id:   "exports",
			want: []Tag{FreeReference},
		},
		{
			name: "export alias is a name not a reference",
			src:  `const a = 1; export { a as exports };`,
			id:   "exports",
			want: []Tag{LocalBinding},
		},
		{
			name: "class declaration",
			src:  `class module {} new module();`,
			id:   "module",
			want: []Tag{LocalBinding, LocalBinding},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tagsFor(t, tt.src, tt.id))
		})
	}
}

func TestTable_NilSafe(t *testing.T) {
	var table *Table
	assert.Equal(t, Unknown, table.Tag(nil))

	empty := Resolve(nil, nil)
	assert.Equal(t, 0, empty.Len())
}

func TestTag_String(t *testing.T) {
	assert.Equal(t, "free", FreeReference.String())
	assert.Equal(t, "local", LocalBinding.String())
	assert.Equal(t, "unknown", Unknown.String())
}
