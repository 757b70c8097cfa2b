// Package importscan walks a module's AST and produces the set of module
// keys it depends on, following the extraction rules of spec §4.C.
package importscan

import (
	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
	"github.com/Sumatoshi-tech/pyanalyze/internal/modkey"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
)

// builtinNames are module names the core never treats as a graph
// dependency: either truly built into the interpreter or provided by a
// specialized internal stub the host supplies out of band.
var builtinNames = map[string]bool{
	"sys":      true,
	"builtins": true,
	"__main__": true,
}

// Result is the output of Extract: the deduplicated dependency set. Extract
// does not collect exported names, so Exports is always empty in the
// Results it returns.
type Result struct {
	Keys    []modkey.Key
	Exports []string
}

// Extract performs a single pass over tree, resolving each import/
// from-import via resolver and returning the deduplicated set of module
// keys this module depends on.
//
// `from __future__ import ...` is never a dependency. Names matching a
// built-in module, or a specialized module the host provides internally,
// are dropped. When fromModule has a stub companion, the stub's key is
// prepended so that stubs are always ordered ahead of their source
// siblings in the returned slice.
func Extract(fromModule *pyast.Module, tree pyast.Tree, resolver hostapi.PathResolver) Result {
	seen := make(map[modkey.Key]bool)

	var keys []modkey.Key

	addKey := func(k modkey.Key) {
		if builtinNames[k.Name] {
			return
		}

		if seen[k] {
			return
		}

		seen[k] = true

		keys = append(keys, k)
	}

	if fromModule != nil && fromModule.Stub != nil {
		addKey(modkey.New(fromModule.Stub.Name, fromModule.Stub.FilePath, fromModule.Stub.IsTypeshed))
	}

	var fromFile string
	if fromModule != nil {
		fromFile = fromModule.FilePath
	}

	tree.Walk(func(n pyast.Node) {
		switch node := n.(type) {
		case pyast.ImportNode:
			for _, dotted := range node.Modules {
				resolveDottedImport(fromFile, dotted, resolver, addKey)
			}
		case pyast.FromImportNode:
			resolveFromImport(fromFile, node, resolver, addKey)
		case pyast.FutureImportNode:
			// Never a dependency.
		}
	})

	return Result{Keys: keys}
}

// resolveDottedImport emits one key per prefix of dotted that the resolver
// can turn into a module ("import a.b.c" depends on a, a.b, and a.b.c when
// all three resolve).
func resolveDottedImport(fromFile, dotted string, resolver hostapi.PathResolver, add func(modkey.Key)) {
	for i := 1; i <= len(dotted); i++ {
		if i < len(dotted) && dotted[i] != '.' {
			continue
		}

		res := resolver.FindImports(fromFile, []string{dotted[:i]}, false)

		switch res.Kind {
		case hostapi.ResolutionModuleImport:
			add(modkey.New(res.FullName, res.ModulePath, false))
		case hostapi.ResolutionPossibleModuleImport:
			if res.PrecedingFullName != "" {
				add(modkey.New(res.PrecedingFullName, res.PrecedingPath, false))
			}
		case hostapi.ResolutionPackageImport:
			for _, k := range res.Modules {
				add(k)
			}
		case hostapi.ResolutionNone:
		}
	}
}

// resolveFromImport emits the package key for `from a.b import x, y`, plus
// the keys of any of x/y that themselves resolve to submodules.
func resolveFromImport(fromFile string, node pyast.FromImportNode, resolver hostapi.PathResolver, add func(modkey.Key)) {
	pkgRes := resolver.FindImports(fromFile, []string{node.Module}, node.Level == 0)

	switch pkgRes.Kind {
	case hostapi.ResolutionModuleImport:
		add(modkey.New(pkgRes.FullName, pkgRes.ModulePath, false))
	case hostapi.ResolutionPossibleModuleImport:
		if pkgRes.PrecedingFullName != "" {
			add(modkey.New(pkgRes.PrecedingFullName, pkgRes.PrecedingPath, false))
		}
	case hostapi.ResolutionPackageImport:
		for _, k := range pkgRes.Modules {
			add(k)
		}
	case hostapi.ResolutionNone:
	}

	for _, name := range node.Names {
		qualified := node.Module + "." + name
		if node.Module == "" {
			qualified = name
		}

		memberRes := resolver.FindImports(fromFile, []string{qualified}, node.Level == 0)

		switch memberRes.Kind {
		case hostapi.ResolutionModuleImport:
			add(modkey.New(memberRes.FullName, memberRes.ModulePath, false))
		case hostapi.ResolutionPackageImport:
			for _, k := range memberRes.Modules {
				add(k)
			}
		case hostapi.ResolutionPossibleModuleImport, hostapi.ResolutionNone:
			// x is a plain symbol, not a submodule: no additional edge.
		}
	}
}
