// Package pyast declares the contracts the core consumes from the Python
// parser and module loader. Per the specification these are external
// collaborators supplied by the host; this package only describes the shape
// the core depends on so the scheduler can be compiled and tested without a
// real Python front end. internal/pyparse supplies one concrete
// implementation, grounded on tree-sitter, for tests and the reference CLI.
package pyast

// ModuleType classifies a loaded module the way the loader reports it.
type ModuleType int

// Module type values. Order is significant only for readability in logs.
const (
	ModuleTypeUser ModuleType = iota
	ModuleTypeLibrary
	ModuleTypeStub
	ModuleTypeSpecialized
	ModuleTypeCompiled
	ModuleTypeCompiledBuiltin
	ModuleTypeBuiltins
)

// String renders the module type for logs.
func (t ModuleType) String() string {
	switch t {
	case ModuleTypeUser:
		return "user"
	case ModuleTypeLibrary:
		return "library"
	case ModuleTypeStub:
		return "stub"
	case ModuleTypeSpecialized:
		return "specialized"
	case ModuleTypeCompiled:
		return "compiled"
	case ModuleTypeCompiledBuiltin:
		return "compiled-builtin"
	case ModuleTypeBuiltins:
		return "builtins"
	default:
		return "unknown"
	}
}

// Module is the module-object contract supplied by the loader.
type Module struct {
	Name       string
	FilePath   string
	Type       ModuleType
	IsTypeshed bool
	// Stub is the key of the companion .pyi stub for this module, if any.
	// The import extractor prepends it to the module's own dependency set
	// so stubs are always analyzed before the sources that rely on them.
	Stub *ModuleRef
}

// ModuleRef is a lightweight pointer to another module by name/path, used
// where a full Module would be premature (the referenced module need not be
// loaded yet).
type ModuleRef struct {
	Name       string
	FilePath   string
	IsTypeshed bool
}

// Tree is the AST contract the core walks. Real implementations wrap a
// parser's concrete syntax tree; Walk must visit every statement reachable
// from the module body, including nested ones (inside functions, classes,
// conditionals), since imports can appear anywhere in Python source.
type Tree interface {
	// Walk invokes visit for every import-relevant statement in the module,
	// in source order. Implementations may also invoke visit for
	// declarations (ClassDef, FunctionDef, Assignment) the evaluator and
	// linter need; the import extractor only inspects ImportNode values.
	Walk(visit func(Node))
}

// Node is the visitor protocol element the core pattern-matches on. Exactly
// one of the typed accessors below is meaningful for a given Node; callers
// use the Kind to decide which.
type Node interface {
	Kind() NodeKind
}

// NodeKind discriminates the concrete node types the core inspects.
type NodeKind int

const (
	KindImport NodeKind = iota
	KindFromImport
	KindFutureImport
	KindClassDef
	KindFunctionDef
	KindAssignment
	KindMemberExpression
)

// ImportNode models `import a.b.c[, d.e as f, ...]`.
type ImportNode struct {
	// Modules is the list of dotted module names imported, one per clause
	// (`import a.b, c.d` yields two entries).
	Modules []string
}

func (ImportNode) Kind() NodeKind { return KindImport }

// FromImportNode models `from a.b import x, y`.
type FromImportNode struct {
	Module string
	Names  []string
	// Level is the number of leading dots for relative imports
	// (`from . import x` has Level 1).
	Level int
}

func (FromImportNode) Kind() NodeKind { return KindFromImport }

// FutureImportNode models `from __future__ import annotations` and similar.
// It is never a dependency edge.
type FutureImportNode struct {
	Names []string
}

func (FutureImportNode) Kind() NodeKind { return KindFutureImport }

// ClassDefNode, FunctionDefNode, AssignmentNode and MemberExpressionNode
// carry enough information for the evaluator/linter; the scheduler itself
// does not inspect their fields, only their Kind, so they are declared as
// opaque markers plus a Name for diagnostics.

type ClassDefNode struct{ Name string }

func (ClassDefNode) Kind() NodeKind { return KindClassDef }

type FunctionDefNode struct{ Name string }

func (FunctionDefNode) Kind() NodeKind { return KindFunctionDef }

type AssignmentNode struct{ Targets []string }

func (AssignmentNode) Kind() NodeKind { return KindAssignment }

type MemberExpressionNode struct{ Dotted string }

func (MemberExpressionNode) Kind() NodeKind { return KindMemberExpression }
