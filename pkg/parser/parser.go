package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ErrParse is returned when the grammar rejects a file outright.
var ErrParse = errors.New("syntax error")

// Language represents a supported grammar.
type Language string

const (
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
)

// Parser wraps a tree-sitter parser. A Parser is not safe for concurrent use;
// give each worker its own.
type Parser struct {
	parser *sitter.Parser
}

// ParseResult contains the parsed syntax tree and metadata.
type ParseResult struct {
	Tree     *sitter.Tree
	Language Language
	Source   []byte
	Path     string
}

// Root returns the program node.
func (r *ParseResult) Root() *sitter.Node {
	return r.Tree.RootNode()
}

// Close releases the syntax tree.
func (r *ParseResult) Close() {
	if r != nil && r.Tree != nil {
		r.Tree.Close()
	}
}

// New creates a new parser instance.
func New() *Parser {
	return &Parser{
		parser: sitter.NewParser(),
	}
}

// ReadError wraps an I/O failure so callers can tell it apart from a syntax error.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// ParseFile reads and parses a source file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*ParseResult, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	return p.Parse(ctx, source, DetectLanguage(path), path)
}

// Parse parses source with the given grammar. Trees containing ERROR nodes are
// rejected with ErrParse; trees that only needed MISSING tokens inserted are
// accepted as recovered.
func (p *Parser) Parse(ctx context.Context, source []byte, lang Language, path string) (*ParseResult, error) {
	p.parser.SetLanguage(GetTreeSitterLanguage(lang))
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrParse)
	}

	if pos, bad := FirstErrorNode(tree.RootNode()); bad {
		tree.Close()
		return nil, fmt.Errorf("%s:%d:%d: %w", path, pos.Row+1, pos.Column+1, ErrParse)
	}

	return &ParseResult{
		Tree:     tree,
		Language: lang,
		Source:   source,
		Path:     path,
	}, nil
}

// GetTreeSitterLanguage returns the tree-sitter grammar for a Language.
func GetTreeSitterLanguage(lang Language) *sitter.Language {
	switch lang {
	case LangTypeScript:
		return typescript.GetLanguage()
	case LangTSX:
		return tsx.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

// DetectLanguage determines the grammar from a file path. Anything that is not
// TypeScript is parsed as JavaScript, whose grammar also accepts JSX.
func DetectLanguage(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return LangTypeScript
	case ".tsx":
		return LangTSX
	default:
		return LangJavaScript
	}
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// FirstErrorNode finds the first ERROR node below root, descending only into
// subtrees that report errors.
func FirstErrorNode(root *sitter.Node) (sitter.Point, bool) {
	if root == nil || !root.HasError() {
		return sitter.Point{}, false
	}
	if root.Type() == "ERROR" {
		return root.StartPoint(), true
	}
	for i := range int(root.ChildCount()) {
		if pos, ok := FirstErrorNode(root.Child(i)); ok {
			return pos, true
		}
	}
	return sitter.Point{}, false
}

// NodeVisitor is a function that visits syntax nodes. Returning false skips
// the node's children.
type NodeVisitor func(node *sitter.Node, source []byte) bool

// Walk traverses the tree calling visitor for each node.
func Walk(node *sitter.Node, source []byte, visitor NodeVisitor) {
	if node == nil {
		return
	}

	if !visitor(node, source) {
		return
	}

	for i := range int(node.ChildCount()) {
		Walk(node.Child(i), source, visitor)
	}
}

// FindNodesByType returns all nodes of a specific type.
func FindNodesByType(root *sitter.Node, source []byte, nodeType string) []*sitter.Node {
	var results []*sitter.Node
	Walk(root, source, func(n *sitter.Node, _ []byte) bool {
		if n.Type() == nodeType {
			results = append(results, n)
		}
		return true
	})
	return results
}

// GetNodeText extracts the source text for a node.
// Returns empty string if node is nil or byte offsets are out of bounds.
func GetNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}

// FirstNamedChild returns the first named child that is not a comment.
func FirstNamedChild(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := range int(node.NamedChildCount()) {
		c := node.NamedChild(i)
		if c.Type() != "comment" {
			return c
		}
	}
	return nil
}
