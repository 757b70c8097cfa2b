package pyparse

import (
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
)

// importedNames collects the dotted-name text of every "name" field child
// of an import_statement/import_from_statement (both grammar rules reuse
// the same _import_list production), unwrapping aliased_import nodes to
// the module/name actually bound rather than its local alias.
func importedNames(n sitter.Node, source []byte) []string {
	var names []string

	mod := n.ChildByFieldName("module_name")

	count := n.NamedChildCount()
	for i := uint32(0); i < count; i++ {
		child := n.NamedChild(i)

		if !mod.IsNull() && child.StartByte() == mod.StartByte() {
			continue
		}

		switch child.Type() {
		case "dotted_name":
			names = append(names, text(child, source))
		case "aliased_import":
			if nameField := child.ChildByFieldName("name"); !nameField.IsNull() {
				names = append(names, text(nameField, source))
			}
		}
	}

	return names
}

func importNode(n sitter.Node, source []byte) pyast.ImportNode {
	return pyast.ImportNode{Modules: importedNames(n, source)}
}

func isFutureImport(n sitter.Node, source []byte) bool {
	mod := n.ChildByFieldName("module_name")
	if mod.IsNull() {
		return false
	}

	return text(mod, source) == "__future__"
}

func futureImportNode(n sitter.Node, source []byte) pyast.FutureImportNode {
	return pyast.FutureImportNode{Names: importFromNames(n, source)}
}

func fromImportNode(n sitter.Node, source []byte) pyast.FromImportNode {
	module, level := relativeModuleAndLevel(n, source)

	return pyast.FromImportNode{
		Module: module,
		Names:  importFromNames(n, source),
		Level:  level,
	}
}

// importFromNames returns the identifiers named after `import` in a
// from-import, or nil for `from x import *`.
func importFromNames(n sitter.Node, source []byte) []string {
	count := n.NamedChildCount()
	for i := uint32(0); i < count; i++ {
		if n.NamedChild(i).Type() == "wildcard_import" {
			return nil
		}
	}

	return importedNames(n, source)
}

// relativeModuleAndLevel splits the module_name field of a from-import
// into its dotted module name and leading-dot count. A plain dotted_name
// module has level 0; a relative_import counts the dots in its prefix.
func relativeModuleAndLevel(n sitter.Node, source []byte) (string, int) {
	mod := n.ChildByFieldName("module_name")
	if mod.IsNull() {
		return "", 0
	}

	if mod.Type() != "relative_import" {
		return text(mod, source), 0
	}

	prefix := text(mod, source)

	level := 0
	name := ""

	for i, r := range prefix {
		if r != '.' {
			name = prefix[i:]
			break
		}

		level++
	}

	return strings.TrimSpace(name), level
}

func classDefNode(n sitter.Node, source []byte) pyast.ClassDefNode {
	if name := n.ChildByFieldName("name"); !name.IsNull() {
		return pyast.ClassDefNode{Name: text(name, source)}
	}

	return pyast.ClassDefNode{}
}

func functionDefNode(n sitter.Node, source []byte) pyast.FunctionDefNode {
	if name := n.ChildByFieldName("name"); !name.IsNull() {
		return pyast.FunctionDefNode{Name: text(name, source)}
	}

	return pyast.FunctionDefNode{}
}

func assignmentNode(n sitter.Node, source []byte) pyast.AssignmentNode {
	left := n.ChildByFieldName("left")
	if left.IsNull() {
		return pyast.AssignmentNode{}
	}

	switch left.Type() {
	case "pattern_list", "tuple_pattern":
		var targets []string

		count := left.NamedChildCount()
		for i := uint32(0); i < count; i++ {
			targets = append(targets, text(left.NamedChild(i), source))
		}

		return pyast.AssignmentNode{Targets: targets}
	default:
		return pyast.AssignmentNode{Targets: []string{text(left, source)}}
	}
}

func memberExpressionNode(n sitter.Node, source []byte) pyast.MemberExpressionNode {
	return pyast.MemberExpressionNode{Dotted: text(n, source)}
}
