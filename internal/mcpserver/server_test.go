package mcpserver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/pyanalyze/internal/analyzer"
	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
	"github.com/Sumatoshi-tech/pyanalyze/internal/mcpserver"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
)

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

type noImportsTree struct{}

func (noImportsTree) Walk(func(pyast.Node)) {}

func newTestFacade() *analyzer.Facade {
	cfg := analyzer.Config{Resolver: noopResolver{}}
	cfg.Evaluator = echoEvaluator{}

	return analyzer.New(cfg)
}

func TestNewServerRegistersAllTools(t *testing.T) {
	srv := mcpserver.NewServer(newTestFacade(), mcpserver.ServerDeps{})

	tools := srv.ListToolNames()
	require.Len(t, tools, 4)
	assert.Contains(t, tools, mcpserver.ToolNameGetAnalysis)
	assert.Contains(t, tools, mcpserver.ToolNameLint)
	assert.Contains(t, tools, mcpserver.ToolNameWaitComplete)
	assert.Contains(t, tools, mcpserver.ToolNameGraphSnapshot)
}

func TestServerRunReturnsOnCanceledContext(t *testing.T) {
	srv := mcpserver.NewServer(newTestFacade(), mcpserver.ServerDeps{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := srv.Run(ctx)
	require.Error(t, err)
}
