package channel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/channelup/internal/config"
	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/repository/metadata"
	"github.com/oshokin/channelup/internal/service/operation"
	"github.com/oshokin/channelup/internal/testutil"
)

func setup(t *testing.T) (*operation.Environment, string, installation.Channel) {
	t.Helper()

	cfg := config.Default()
	cfg.StagingDir = t.TempDir()

	dir := filepath.Join(t.TempDir(), "server")
	primary := installation.Channel{
		Name:         "main",
		Manifest:     installation.ManifestCoordinate{URL: "https://example.org/main.yaml"},
		Repositories: []installation.Repository{{ID: "central", URL: "https://repo.example.org/maven2"}},
	}

	require.NoError(t, metadata.NewStore(dir).Write(context.Background(), &installation.InstallationMetadata{
		Manifest: installation.NewManifest("installation", nil),
		Channels: []installation.Channel{primary},
		Provisioning: &installation.ProvisioningConfig{
			FeaturePacks: []installation.FeaturePackConfig{{Producer: testutil.ServerProducer}},
		},
	}))

	return operation.New(cfg), dir, primary
}

// TestAddRemove edits the recorded channel list.
func TestAddRemove(t *testing.T) {
	t.Parallel()

	env, dir, primary := setup(t)
	ctx := context.Background()

	extra := installation.Channel{
		Name:         "extra",
		Manifest:     installation.ManifestCoordinate{URL: "https://example.org/extra.yaml"},
		Repositories: []installation.Repository{{ID: "extra", URL: "https://repo.example.org/extra"}},
	}

	channels, err := Add(ctx, &Options{Env: env, InstallDir: dir, Channel: extra})
	require.NoError(t, err)
	require.Equal(t, []installation.Channel{primary, extra}, channels)

	listed, err := List(ctx, &Options{Env: env, InstallDir: dir})
	require.NoError(t, err)
	require.Equal(t, channels, listed)

	_, err = Add(ctx, &Options{Env: env, InstallDir: dir, Channel: extra})
	require.ErrorIs(t, err, errChannelExists)

	channels, err = Remove(ctx, &Options{Env: env, InstallDir: dir, Name: "main"})
	require.NoError(t, err)
	require.Equal(t, []installation.Channel{extra}, channels)

	md, err := metadata.NewStore(dir).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []installation.Channel{extra}, md.Channels)
}

// TestRejected leaves the recorded list untouched.
func TestRejected(t *testing.T) {
	t.Parallel()

	env, dir, primary := setup(t)
	ctx := context.Background()

	_, err := Remove(ctx, &Options{Env: env, InstallDir: dir, Name: "absent"})
	require.ErrorIs(t, err, errUnknownChannel)

	_, err = Remove(ctx, &Options{Env: env, InstallDir: dir, Name: "main"})
	require.Equal(t, installation.KindChannelConfig, installation.KindOf(err))

	_, err = Add(ctx, &Options{Env: env, InstallDir: dir})
	require.ErrorIs(t, err, errUnnamedChannel)

	_, err = Add(ctx, &Options{Env: env, InstallDir: dir, Channel: installation.Channel{Name: "broken"}})
	require.Equal(t, installation.KindChannelConfig, installation.KindOf(err))

	listed, err := List(ctx, &Options{Env: env, InstallDir: dir})
	require.NoError(t, err)
	require.Equal(t, []installation.Channel{primary}, listed)
}

// TestList_InterruptedWrite reads the channel list left between the two
// renames of a crashed write.
func TestList_InterruptedWrite(t *testing.T) {
	t.Parallel()

	env, dir, primary := setup(t)
	ctx := context.Background()
	store := metadata.NewStore(dir)

	path := filepath.Join(store.Dir(), metadata.ChannelsFile)
	pending := filepath.Join(store.Dir(), "."+metadata.ChannelsFile+".new")
	backup := filepath.Join(store.Dir(), "."+metadata.ChannelsFile+".old")

	original, err := os.ReadFile(path)
	require.NoError(t, err)

	extra := installation.Channel{
		Name:         "extra",
		Manifest:     installation.ManifestCoordinate{URL: "https://example.org/extra.yaml"},
		Repositories: []installation.Repository{{ID: "extra", URL: "https://repo.example.org/extra"}},
	}

	require.NoError(t, store.WriteChannels(ctx, []installation.Channel{primary, extra}))
	require.NoError(t, os.Rename(path, pending))
	require.NoError(t, os.WriteFile(backup, original, metadata.DefaultFileMode))

	listed, err := List(ctx, &Options{Env: env, InstallDir: dir})
	require.NoError(t, err)
	require.Equal(t, []installation.Channel{primary, extra}, listed)
	require.FileExists(t, path)
	require.NoFileExists(t, pending)
	require.NoFileExists(t, backup)
}
