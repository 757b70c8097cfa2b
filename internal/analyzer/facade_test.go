package analyzer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/pyanalyze/internal/analyzer"
	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
	"github.com/Sumatoshi-tech/pyanalyze/internal/modkey"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
)

// noImportsTree is an empty AST: Walk never invokes its callback, so every
// module using it has no dependencies.
type noImportsTree struct{}

func (noImportsTree) Walk(func(pyast.Node)) {}

type noopResolver struct{}

func (noopResolver) FindImports(string, []string, bool) hostapi.ImportResolution {
	return hostapi.ImportResolution{Kind: hostapi.ResolutionNone}
}

type echoEvaluator struct{}

func (echoEvaluator) Evaluate(_ context.Context, module *pyast.Module, _ pyast.Tree, _ []hostapi.Analysis) (hostapi.Analysis, error) {
	return hostapi.Analysis{Scope: scopeOf(module.Name)}, nil
}

type scopeOf string

func (s scopeOf) ModuleName() string { return string(s) }

func TestEnqueueProducesAnalysis(t *testing.T) {
	cfg := analyzer.Config{Resolver: noopResolver{}}
	cfg.Evaluator = echoEvaluator{}

	f := analyzer.New(cfg)

	module := &pyast.Module{Name: "a", FilePath: "a.py", Type: pyast.ModuleTypeUser}
	f.Enqueue(context.Background(), module, noImportsTree{}, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	analysis := f.GetAnalysis(ctx, modkey.New("a", "a.py", false), 0)
	require.False(t, analysis.IsZero())
	assert.Equal(t, "a", analysis.Scope.ModuleName())
}

func TestStaleEnqueueIsDropped(t *testing.T) {
	cfg := analyzer.Config{Resolver: noopResolver{}}
	cfg.Evaluator = echoEvaluator{}

	f := analyzer.New(cfg)

	module := &pyast.Module{Name: "a", FilePath: "a.py", Type: pyast.ModuleTypeUser}
	f.Enqueue(context.Background(), module, noImportsTree{}, 2)
	f.Enqueue(context.Background(), module, noImportsTree{}, 1) // stale, dropped.

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	f.WaitForComplete(ctx)

	analysis := f.GetAnalysis(context.Background(), modkey.New("a", "a.py", false), 0)
	require.False(t, analysis.IsZero())
}

func TestResetDropsUserEntries(t *testing.T) {
	cfg := analyzer.Config{Resolver: noopResolver{}}
	cfg.Evaluator = echoEvaluator{}

	f := analyzer.New(cfg)

	module := &pyast.Module{Name: "a", FilePath: "a.py", Type: pyast.ModuleTypeUser}
	f.Enqueue(context.Background(), module, noImportsTree{}, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	f.WaitForComplete(ctx)

	f.Reset()

	analysis := f.GetAnalysis(context.Background(), modkey.New("a", "a.py", false), 1)
	assert.True(t, analysis.IsZero())
}
