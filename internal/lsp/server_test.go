package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
)

func TestFilePathFromURIStripsFileScheme(t *testing.T) {
	assert.Equal(t, "/home/dev/pkg/mod.py", filePathFromURI("file:///home/dev/pkg/mod.py"))
}

func TestFilePathFromURIPassesThroughNonFileScheme(t *testing.T) {
	assert.Equal(t, "untitled:mod.py", filePathFromURI("untitled:mod.py"))
}

func TestModuleNameFromPath(t *testing.T) {
	assert.Equal(t, "pkg.mod", moduleNameFromPath("/pkg/mod.py"))
	assert.Equal(t, "mod", moduleNameFromPath("mod.py"))
}

func TestModuleForURIBuildsUserModule(t *testing.T) {
	m := moduleForURI("file:///repo/pkg/mod.py")

	assert.Equal(t, "repo.pkg.mod", m.Name)
	assert.Equal(t, "/repo/pkg/mod.py", m.FilePath)
	assert.False(t, m.IsTypeshed)
}

func TestToProtocolSeverityMapsEveryLevel(t *testing.T) {
	assert.Equal(t, protocol.DiagnosticSeverityError, toProtocolSeverity(hostapi.SeverityError))
	assert.Equal(t, protocol.DiagnosticSeverityWarning, toProtocolSeverity(hostapi.SeverityWarning))
	assert.Equal(t, protocol.DiagnosticSeverityInformation, toProtocolSeverity(hostapi.SeverityInfo))
}

func TestBufferVersionsIncrementsPerURI(t *testing.T) {
	b := bufferVersions{versions: make(map[string]int64)}

	assert.Equal(t, int64(1), b.next("a"))
	assert.Equal(t, int64(2), b.next("a"))
	assert.Equal(t, int64(1), b.next("b"))
}
