package memcache_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
	"github.com/Sumatoshi-tech/pyanalyze/internal/memcache"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
)

func TestDurableSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	module := &pyast.Module{Name: "pkg.mod", FilePath: "pkg/mod.py"}
	scope := stringScope("pkg.mod:" + strings.Repeat("y", 512))

	d1, err := memcache.NewDurable(stringCodec{}, 0, 0, dir)
	require.NoError(t, err)
	require.NoError(t, d1.Store(context.Background(), module, hostapi.Analysis{Scope: scope}))

	d2, err := memcache.NewDurable(stringCodec{}, 0, 0, dir)
	require.NoError(t, err)

	restored, ok, err := d2.Restore(context.Background(), module)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, scope, restored)
}

func TestDurableSurvivesReloadWithIncompressibleEntry(t *testing.T) {
	dir := t.TempDir()
	module := &pyast.Module{Name: "tiny", FilePath: "tiny.py"}
	scope := stringScope("t")

	d1, err := memcache.NewDurable(stringCodec{}, 0, 0, dir)
	require.NoError(t, err)
	require.NoError(t, d1.Store(context.Background(), module, hostapi.Analysis{Scope: scope}))

	d2, err := memcache.NewDurable(stringCodec{}, 0, 0, dir)
	require.NoError(t, err)

	restored, ok, err := d2.Restore(context.Background(), module)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, scope, restored)
}

func TestNewDurableOnEmptyDirHasNoEntries(t *testing.T) {
	dir := t.TempDir()

	d, err := memcache.NewDurable(stringCodec{}, 0, 0, dir)
	require.NoError(t, err)

	assert.False(t, d.Exists(context.Background(), "anything", "anything.py"))
}
