// Package pyhost is the reference host: a filesystem-backed
// hostapi.PathResolver, hostapi.ModuleLoader, hostapi.Evaluator, and
// hostapi.Linter, good enough to drive analyzer.Facade end to end against
// real files on disk. It stands in for whatever a real editor or build
// system would supply, per spec §6 ("a parser is external"/"a resolver is
// external"). Python import semantics here are deliberately approximate —
// exact semantics are an explicit non-goal.
package pyhost

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
)

const pyExt = ".py"

const initFile = "__init__.py"

// FSResolver resolves dotted Python import names to files under a fixed
// set of source roots, falling back to the importing file's own directory
// for relative imports (forceAbsolute unset).
type FSResolver struct {
	Roots []string
}

// NewFSResolver creates a resolver searching roots in order.
func NewFSResolver(roots []string) *FSResolver {
	return &FSResolver{Roots: roots}
}

// FindImports implements hostapi.PathResolver.
func (r *FSResolver) FindImports(fromFile string, names []string, forceAbsolute bool) hostapi.ImportResolution {
	for _, name := range names {
		if res, ok := r.resolveOne(fromFile, name, forceAbsolute); ok {
			return res
		}
	}

	return hostapi.ImportResolution{Kind: hostapi.ResolutionNone}
}

func (r *FSResolver) resolveOne(fromFile, dotted string, forceAbsolute bool) (hostapi.ImportResolution, bool) {
	parts := strings.Split(dotted, ".")

	if path, ok := r.findUnderRoots(parts); ok {
		return hostapi.ImportResolution{
			Kind:       hostapi.ResolutionModuleImport,
			FullName:   dotted,
			ModulePath: path,
		}, true
	}

	if longest, path, rest, ok := r.longestPrefix(parts); ok {
		return hostapi.ImportResolution{
			Kind:              hostapi.ResolutionPossibleModuleImport,
			PrecedingFullName: longest,
			PrecedingPath:     path,
			RemainingParts:    rest,
		}, true
	}

	if !forceAbsolute && fromFile != "" {
		if path, ok := r.findRelative(fromFile, parts); ok {
			return hostapi.ImportResolution{
				Kind:       hostapi.ResolutionModuleImport,
				FullName:   dotted,
				ModulePath: path,
			}, true
		}
	}

	return hostapi.ImportResolution{}, false
}

func (r *FSResolver) findUnderRoots(parts []string) (string, bool) {
	for _, root := range r.Roots {
		if path, ok := resolveParts(root, parts); ok {
			return path, true
		}
	}

	return "", false
}

func (r *FSResolver) longestPrefix(parts []string) (name string, path string, rest []string, ok bool) {
	for n := len(parts) - 1; n >= 1; n-- {
		if p, found := r.findUnderRoots(parts[:n]); found {
			return strings.Join(parts[:n], "."), p, parts[n:], true
		}
	}

	return "", "", nil, false
}

func (r *FSResolver) findRelative(fromFile string, parts []string) (string, bool) {
	dir := filepath.Dir(fromFile)

	return resolveParts(dir, parts)
}

// resolveParts tries base/parts.../<last>.py then base/parts.../__init__.py.
func resolveParts(base string, parts []string) (string, bool) {
	if len(parts) == 0 {
		return "", false
	}

	joined := filepath.Join(append([]string{base}, parts...)...)

	if fileAsModule := joined + pyExt; isFile(fileAsModule) {
		return filepath.Clean(fileAsModule), true
	}

	if pkgInit := filepath.Join(joined, initFile); isFile(pkgInit) {
		return filepath.Clean(pkgInit), true
	}

	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}
