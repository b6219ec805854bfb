package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"poold/internal/infra/backend"
	"poold/internal/infra/catalog"
	"poold/internal/infra/cluster"
	"poold/internal/infra/telemetry"
)

const configV1 = `
pools:
  - name: alpha
    address: 127.0.0.1:6001
  - name: beta
    address: 127.0.0.1:6002
`

const configV2 = `
pools:
  - name: alpha
    address: 127.0.0.1:6001
  - name: gamma
    address: 127.0.0.1:6003
`

const configV3 = `
pools:
  - name: alpha
    address: 127.0.0.1:7001
`

func poolNames(cl *cluster.Cluster[*backend.Conn]) []string {
	var names []string
	for _, p := range cl.Pools() {
		names = append(names, p.Name())
	}
	return names
}

func newTestReloader(t *testing.T, initial string) (*reloader, *cluster.Cluster[*backend.Conn], string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "poold.yaml")
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o600))

	logger := zap.NewNop()
	loader := catalog.NewLoader(logger)
	cat, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	a := New(logger)
	metrics := telemetry.NewNoopMetrics()
	build := a.poolBuilder(metrics, nil)

	cl, err := cluster.New[*backend.Conn](logger)
	require.NoError(t, err)
	for _, spec := range cat.Pools {
		p, err := build(spec)
		require.NoError(t, err)
		require.NoError(t, cl.Add(p))
	}
	t.Cleanup(func() {
		for _, p := range cl.Pools() {
			p.DestroyPool()
		}
	})

	return newReloader(logger, loader, path, cl, build, cat.Pools), cl, path
}

func TestReloader_AddsAndRemovesPools(t *testing.T) {
	r, cl, path := newTestReloader(t, configV1)
	require.Equal(t, []string{"alpha", "beta"}, poolNames(cl))

	require.NoError(t, os.WriteFile(path, []byte(configV2), 0o600))
	r.apply(context.Background())

	require.Equal(t, []string{"alpha", "gamma"}, poolNames(cl))
}

func TestReloader_ReplacesChangedSpec(t *testing.T) {
	r, cl, path := newTestReloader(t, configV1)
	original := cl.Pools()[0]

	require.NoError(t, os.WriteFile(path, []byte(configV3), 0o600))
	r.apply(context.Background())

	names := poolNames(cl)
	require.Equal(t, []string{"alpha"}, names)
	require.NotSame(t, original, cl.Pools()[0])
}

func TestReloader_RejectsInvalidConfigKeepsState(t *testing.T) {
	r, cl, path := newTestReloader(t, configV1)

	require.NoError(t, os.WriteFile(path, []byte("pools:\n  - name: broken\n"), 0o600))
	r.apply(context.Background())

	require.Equal(t, []string{"alpha", "beta"}, poolNames(cl))
}
