package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	p := New()
	if p == nil {
		t.Fatal("New() returned nil")
	}
	if p.parser == nil {
		t.Error("parser field is nil")
	}
	p.Close()
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		{"index.js", LangJavaScript},
		{"lib/module.mjs", LangJavaScript},
		{"lib/common.cjs", LangJavaScript},
		{"component.jsx", LangJavaScript},
		{"src/app.ts", LangTypeScript},
		{"src/app.mts", LangTypeScript},
		{"src/app.cts", LangTypeScript},
		{"src/App.tsx", LangTSX},
		{"README", LangJavaScript},
		{"INDEX.JS", LangJavaScript},
		{"MAIN.TS", LangTypeScript},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.path))
		})
	}
}

func TestParse_Valid(t *testing.T) {
	p := New()
	defer p.Close()

	src := []byte(`import a from "a";
const b = require("b");
module.exports = { a, b };
`)
	result, err := p.Parse(context.Background(), src, LangJavaScript, "index.js")
	require.NoError(t, err)
	defer result.Close()

	root := result.Root()
	assert.Equal(t, "program", root.Type())
	assert.Len(t, FindNodesByType(root, src, "import_statement"), 1)
	assert.Len(t, FindNodesByType(root, src, "call_expression"), 1)
}

func TestParse_Rejected(t *testing.T) {
	p := New()
	defer p.Close()

	_, err := p.Parse(context.Background(), []byte("const = = {;\nfunction ("), LangJavaScript, "broken.js")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse), "want ErrParse, got %v", err)
}

func TestParse_TypeScript(t *testing.T) {
	p := New()
	defer p.Close()

	src := []byte(`import type { A } from "./a";
export const x: number = 1;
`)
	result, err := p.Parse(context.Background(), src, LangTypeScript, "x.ts")
	require.NoError(t, err)
	defer result.Close()
	assert.Equal(t, LangTypeScript, result.Language)
}

func TestParseFile_ReadError(t *testing.T) {
	p := New()
	defer p.Close()

	_, err := p.ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.js"))
	require.Error(t, err)

	var readErr *ReadError
	assert.True(t, errors.As(err, &readErr))
	assert.False(t, errors.Is(err, ErrParse))
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.js")
	require.NoError(t, os.WriteFile(path, []byte("export default 1;\n"), 0644))

	p := New()
	defer p.Close()

	result, err := p.ParseFile(context.Background(), path)
	require.NoError(t, err)
	defer result.Close()

	assert.Equal(t, path, result.Path)
	assert.Equal(t, LangJavaScript, result.Language)
}

func TestGetNodeText(t *testing.T) {
	p := New()
	defer p.Close()

	src := []byte(`foo("bar")`)
	result, err := p.Parse(context.Background(), src, LangJavaScript, "t.js")
	require.NoError(t, err)
	defer result.Close()

	calls := FindNodesByType(result.Root(), src, "call_expression")
	require.Len(t, calls, 1)
	assert.Equal(t, `foo("bar")`, GetNodeText(calls[0], src))
	assert.Equal(t, "foo", GetNodeText(calls[0].ChildByFieldName("function"), src))
	assert.Equal(t, "", GetNodeText(nil, src))
}

func TestWalk_SkipChildren(t *testing.T) {
	p := New()
	defer p.Close()

	src := []byte(`function f() { g(); }`)
	result, err := p.Parse(context.Background(), src, LangJavaScript, "t.js")
	require.NoError(t, err)
	defer result.Close()

	calls := 0
	Walk(result.Root(), src, func(n *sitter.Node, _ []byte) bool {
		if n.Type() == "call_expression" {
			calls++
		}
		return n.Type() != "function_declaration"
	})
	assert.Equal(t, 0, calls)
}
