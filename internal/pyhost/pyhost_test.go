package pyhost_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyhost"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestFSResolverResolvesModuleUnderRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "mod.py"), "x = 1\n")

	resolver := pyhost.NewFSResolver([]string{root})

	res := resolver.FindImports("", []string{"pkg.mod"}, true)
	require.Equal(t, hostapi.ResolutionModuleImport, res.Kind)
	assert.Equal(t, "pkg.mod", res.FullName)
	assert.Equal(t, filepath.Clean(filepath.Join(root, "pkg", "mod.py")), res.ModulePath)
}

func TestFSResolverResolvesPackageInit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "__init__.py"), "")

	resolver := pyhost.NewFSResolver([]string{root})

	res := resolver.FindImports("", []string{"pkg"}, true)
	require.Equal(t, hostapi.ResolutionModuleImport, res.Kind)
}

func TestFSResolverReturnsPossibleModuleImportForPartialPrefix(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "mod.py"), "Widget = 1\n")

	resolver := pyhost.NewFSResolver([]string{root})

	res := resolver.FindImports("", []string{"pkg.mod.Widget"}, true)
	require.Equal(t, hostapi.ResolutionPossibleModuleImport, res.Kind)
	assert.Equal(t, "pkg.mod", res.PrecedingFullName)
	assert.Equal(t, []string{"Widget"}, res.RemainingParts)
}

func TestFSResolverResolvesRelativeImportAgainstFromFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "sibling.py"), "")
	fromFile := filepath.Join(root, "pkg", "main.py")
	writeFile(t, fromFile, "")

	resolver := pyhost.NewFSResolver([]string{filepath.Join(root, "elsewhere")})

	res := resolver.FindImports(fromFile, []string{"sibling"}, false)
	require.Equal(t, hostapi.ResolutionModuleImport, res.Kind)
}

func TestFSResolverReturnsNoneWhenUnresolvable(t *testing.T) {
	resolver := pyhost.NewFSResolver([]string{t.TempDir()})

	res := resolver.FindImports("", []string{"nope.nothere"}, true)
	assert.Equal(t, hostapi.ResolutionNone, res.Kind)
}

func TestFSLoaderFindsModuleOnDisk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "mod.py"), "")

	loader := pyhost.NewFSLoader([]string{root}, "")

	module, err := loader.GetOrLoad(context.Background(), "pkg.mod", false)
	require.NoError(t, err)
	assert.Equal(t, pyast.ModuleTypeUser, module.Type)
	assert.NotEmpty(t, module.FilePath)
}

func TestFSLoaderFallsBackToLibraryModuleWhenMissing(t *testing.T) {
	loader := pyhost.NewFSLoader([]string{t.TempDir()}, "")

	module, err := loader.GetOrLoad(context.Background(), "missing", false)
	require.NoError(t, err)
	assert.Equal(t, pyast.ModuleTypeLibrary, module.Type)
	assert.Empty(t, module.FilePath)
}

func TestDiscoverFilesFindsPythonFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "")
	writeFile(t, filepath.Join(root, "sub", "b.py"), "")
	writeFile(t, filepath.Join(root, "README.md"), "")

	files, err := pyhost.DiscoverFiles(root)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestModuleNameForPathJoinsWithDots(t *testing.T) {
	root := "/proj"
	assert.Equal(t, "pkg.mod", pyhost.ModuleNameForPath(root, filepath.Join(root, "pkg", "mod.py")))
	assert.Equal(t, "pkg", pyhost.ModuleNameForPath(root, filepath.Join(root, "pkg", "__init__.py")))
}

type fakeTree struct{ nodes []pyast.Node }

func (f fakeTree) Walk(visit func(pyast.Node)) {
	for _, n := range f.nodes {
		visit(n)
	}
}

func TestEvaluatorBuildsScopeFromTree(t *testing.T) {
	tree := fakeTree{nodes: []pyast.Node{
		pyast.ClassDefNode{Name: "Widget"},
		pyast.FunctionDefNode{Name: "run"},
		pyast.AssignmentNode{Targets: []string{"x"}},
		pyast.FromImportNode{Module: "pkg", Names: nil},
	}}

	module := &pyast.Module{Name: "m"}

	analysis, err := pyhost.NewEvaluator().Evaluate(context.Background(), module, tree, nil)
	require.NoError(t, err)
	require.Len(t, analysis.Diagnostics, 1)
	assert.Equal(t, "m", analysis.Scope.ModuleName())
}

func TestLinterFlagsRedefinition(t *testing.T) {
	tree := fakeTree{nodes: []pyast.Node{
		pyast.FunctionDefNode{Name: "run"},
		pyast.FunctionDefNode{Name: "run"},
	}}

	module := &pyast.Module{Name: "m"}
	analysis, err := pyhost.NewEvaluator().Evaluate(context.Background(), module, tree, nil)
	require.NoError(t, err)

	diags := pyhost.NewLinter().Lint(context.Background(), module, analysis)
	found := false

	for _, d := range diags {
		if d.Severity == hostapi.SeverityWarning {
			found = true
		}
	}

	assert.True(t, found)
}

func TestScopeCodecRoundTrips(t *testing.T) {
	tree := fakeTree{nodes: []pyast.Node{
		pyast.ClassDefNode{Name: "Widget"},
		pyast.FunctionDefNode{Name: "run"},
		pyast.AssignmentNode{Targets: []string{"x"}},
	}}

	module := &pyast.Module{Name: "pkg.mod"}

	analysis, err := pyhost.NewEvaluator().Evaluate(context.Background(), module, tree, nil)
	require.NoError(t, err)

	codec := pyhost.NewScopeCodec()

	encoded, err := codec.Encode(analysis.Scope)
	require.NoError(t, err)

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, "pkg.mod", decoded.ModuleName())
}
