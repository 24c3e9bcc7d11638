package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/channelup/internal/config"
	"github.com/oshokin/channelup/internal/service/operation"
)

// TestRun sweeps staging directories of dead processes and restores an
// installation left without its live directory.
func TestRun(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.StagingDir = t.TempDir()
	cfg.StaleStagingAge = time.Hour

	// PIDs never reach this value on supported platforms.
	stale := filepath.Join(cfg.StagingDir, "channelup-candidate-2147483646-abc")
	require.NoError(t, os.MkdirAll(stale, 0o755))

	parent := t.TempDir()
	dir := filepath.Join(parent, "server")
	backup := filepath.Join(parent, ".server.old-123")
	require.NoError(t, os.MkdirAll(backup, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(backup, "file.txt"), []byte("live"), 0o600))

	result, err := Run(context.Background(), &Options{Env: operation.New(cfg), InstallDir: dir})
	require.NoError(t, err)
	require.True(t, result.Restored)
	require.Equal(t, []string{stale}, result.Removed)

	require.NoDirExists(t, stale)
	require.NoDirExists(t, backup)
	require.FileExists(t, filepath.Join(dir, "file.txt"))
}

// TestRun_NothingToClean is a no-op.
func TestRun_NothingToClean(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.StagingDir = t.TempDir()

	result, err := Run(context.Background(), &Options{Env: operation.New(cfg)})
	require.NoError(t, err)
	require.False(t, result.Restored)
	require.Empty(t, result.Removed)
}
