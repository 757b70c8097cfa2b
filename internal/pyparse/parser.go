// Package pyparse provides the reference hostapi.Parser implementation:
// a tree-sitter grammar for Python wrapped so its concrete syntax tree
// satisfies the pyast.Tree visitor contract the core walks. Grounded on
// the teacher's tree-sitter parsing layer (pkg/uast), trimmed to the one
// grammar this domain needs instead of the full language matrix.
package pyparse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alexaandru/go-sitter-forest/python"
	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
)

var errNoRootNode = errors.New("pyparse: no root node")

var (
	pythonLanguage     *sitter.Language
	pythonLanguageOnce sync.Once
)

func language() *sitter.Language {
	pythonLanguageOnce.Do(func() {
		pythonLanguage = sitter.NewLanguage(python.GetLanguage())
	})

	return pythonLanguage
}

// Parser parses Python source with tree-sitter. The zero value is usable;
// the underlying *sitter.Parser is pooled since constructing one per file
// would dominate parse time on large trees.
type Parser struct {
	pool sync.Pool
}

// New creates a Parser ready to use.
func New() *Parser {
	p := &Parser{}
	p.pool.New = func() any {
		tsParser := sitter.NewParser()
		tsParser.SetLanguage(language())

		return tsParser
	}

	return p
}

// Parse implements hostapi.Parser.
func (p *Parser) Parse(text string) (pyast.Tree, error) {
	tsParser, ok := p.pool.Get().(*sitter.Parser)
	if !ok {
		tsParser = sitter.NewParser()
		tsParser.SetLanguage(language())
	}

	defer p.pool.Put(tsParser)

	source := []byte(text)

	tree, err := tsParser.ParseString(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("pyparse: parse: %w", err)
	}

	root := tree.RootNode()
	if root.IsNull() {
		tree.Close()
		return nil, errNoRootNode
	}

	return &Tree{tree: tree, root: root, source: source}, nil
}

// Tree wraps a parsed tree-sitter CST. Close releases the underlying
// tree-sitter tree; callers that hold a Tree past the lifetime of a single
// analysis pass should call Close explicitly, mirroring the teacher's
// defer tree.Close() convention.
type Tree struct {
	tree   *sitter.Tree
	root   sitter.Node
	source []byte
}

// Close releases the tree-sitter tree's native memory.
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
	}
}

// Walk implements pyast.Tree. It descends the whole module body, recursing
// into every compound statement (function/class bodies, if/for/while/try
// blocks, with-statements) since Python imports and nested defs can appear
// anywhere a statement can.
func (t *Tree) Walk(visit func(pyast.Node)) {
	walkNode(t.root, t.source, visit)
}

func walkNode(n sitter.Node, source []byte, visit func(pyast.Node)) {
	if n.IsNull() {
		return
	}

	switch n.Type() {
	case "import_statement":
		visit(importNode(n, source))
	case "import_from_statement":
		if isFutureImport(n, source) {
			visit(futureImportNode(n, source))
		} else {
			visit(fromImportNode(n, source))
		}
	case "class_definition":
		visit(classDefNode(n, source))
	case "function_definition":
		visit(functionDefNode(n, source))
	case "assignment":
		visit(assignmentNode(n, source))
	case "attribute":
		visit(memberExpressionNode(n, source))
	}

	count := n.NamedChildCount()
	for i := uint32(0); i < count; i++ {
		walkNode(n.NamedChild(i), source, visit)
	}
}

func text(n sitter.Node, source []byte) string {
	if n.IsNull() {
		return ""
	}

	return n.Content(source)
}
