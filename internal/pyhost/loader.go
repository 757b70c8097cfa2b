package pyhost

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
)

// FSLoader resolves a bare module name to a *pyast.Module by the same
// root-search FSResolver uses, without parsing it: the facade enqueues the
// result with no AST and picks up its content on the next buffer change or
// directory scan.
type FSLoader struct {
	Roots        []string
	TypeshedRoot string
}

// NewFSLoader creates a loader searching roots (and, for typeshed
// requests, typeshedRoot) for a module's backing file.
func NewFSLoader(roots []string, typeshedRoot string) *FSLoader {
	return &FSLoader{Roots: roots, TypeshedRoot: typeshedRoot}
}

// GetOrLoad implements hostapi.ModuleLoader.
func (l *FSLoader) GetOrLoad(_ context.Context, name string, isTypeshed bool) (*pyast.Module, error) {
	parts := strings.Split(name, ".")

	if isTypeshed && l.TypeshedRoot != "" {
		if path, ok := resolveStub(l.TypeshedRoot, parts); ok {
			return &pyast.Module{Name: name, FilePath: path, Type: pyast.ModuleTypeLibrary, IsTypeshed: true}, nil
		}

		return &pyast.Module{Name: name, Type: pyast.ModuleTypeLibrary, IsTypeshed: true}, nil
	}

	for _, root := range l.Roots {
		if path, ok := resolveParts(root, parts); ok {
			return &pyast.Module{Name: name, FilePath: path, Type: pyast.ModuleTypeUser}, nil
		}
	}

	// Unresolvable on disk: still hand back a built-in-shaped module so the
	// entry exists and dependents stop reporting it missing.
	return &pyast.Module{Name: name, Type: pyast.ModuleTypeLibrary}, nil
}

func resolveStub(typeshedRoot string, parts []string) (string, bool) {
	joined := filepath.Join(append([]string{typeshedRoot}, parts...)...)

	if stub := joined + ".pyi"; isFile(stub) {
		return filepath.Clean(stub), true
	}

	if pkgStub := filepath.Join(joined, "__init__.pyi"); isFile(pkgStub) {
		return filepath.Clean(pkgStub), true
	}

	return "", false
}

// ModuleNameForPath derives a dotted module name for path relative to root,
// the same "strip extension, join with dots" convention the LSP server uses
// for a document URI, generalized from a URI root to a filesystem root.
func ModuleNameForPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	rel = strings.TrimSuffix(rel, pyExt)
	rel = strings.TrimSuffix(rel, string(filepath.Separator)+"__init__")

	return strings.ReplaceAll(rel, string(filepath.Separator), ".")
}

// DiscoverFiles walks root collecting every .py file path, for the CLI's
// `analyze`/`graph` commands seeding the initial set of modules.
func DiscoverFiles(root string) ([]string, error) {
	var files []string

	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		if strings.HasSuffix(path, pyExt) {
			files = append(files, path)
		}

		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return files, nil
}
