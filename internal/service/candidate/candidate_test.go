package candidate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/repository/metadata"
	"github.com/oshokin/channelup/internal/testutil"
	"github.com/oshokin/channelup/internal/version"
)

func prepareInstall(t *testing.T, s *testutil.Scenario, root string) *Candidate {
	t.Helper()

	c, err := NewBuilder(WithStagingRoot(root)).Prepare(context.Background(), Request{
		InstallDir:   filepath.Join(t.TempDir(), "server"),
		Operation:    installation.OperationInstall,
		Provisioning: s.Provisioning(),
		Channels:     s.Channels(),
	})
	require.NoError(t, err)

	return c
}

// TestPrepare_Install stages a complete installation with self-describing metadata.
func TestPrepare_Install(t *testing.T) {
	t.Parallel()

	s := testutil.NewScenario(t)
	root := t.TempDir()
	c := prepareInstall(t, s, root)

	require.FileExists(t, filepath.Join(c.Dir, "bin", "run.sh"))
	require.FileExists(t, filepath.Join(c.Dir, "modules", "core", "core-1.0.2.jar"))
	require.NoFileExists(t, filepath.Join(c.Dir, "docs", "README.txt"))

	stream, ok := c.Metadata.Manifest.Find("org.example:core")
	require.True(t, ok)
	require.Equal(t, "1.0.2", stream.Version)

	stored, err := metadata.NewStore(c.Dir).Load(context.Background())
	require.NoError(t, err)
	require.True(t, c.Metadata.Manifest.Equal(stored.Manifest))
	require.Equal(t, c.Metadata.Files, stored.Files)

	marker, err := metadata.NewStore(c.Dir).LoadMarker(context.Background())
	require.NoError(t, err)
	require.Equal(t, installation.OperationInstall, marker.Operation)
	require.Equal(t, version.Short(), marker.ToolVersion)
	require.Empty(t, marker.BaseDigest)
	require.True(t, filepath.IsAbs(marker.SourceInstallation))
	require.False(t, marker.Consumed)

	// Only the candidate remains in the staging root; the run-scoped cache is gone.
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, c.Dir, filepath.Join(root, entries[0].Name()))

	require.NoError(t, c.Discard())
	require.NoDirExists(t, c.Dir)
}

// TestPrepare_UpdateRecordsBaseDigest binds the candidate to the live metadata.
func TestPrepare_UpdateRecordsBaseDigest(t *testing.T) {
	t.Parallel()

	s := testutil.NewScenario(t)
	live := prepareInstall(t, s, t.TempDir())

	c, err := NewBuilder(WithStagingRoot(t.TempDir())).Prepare(context.Background(), Request{
		InstallDir:   live.Dir,
		Operation:    installation.OperationUpdate,
		Provisioning: live.Metadata.Provisioning,
		Channels:     s.UpdateChannels(),
	})
	require.NoError(t, err)

	want, err := metadata.Digest(live.Metadata)
	require.NoError(t, err)
	require.Equal(t, want.String(), c.Marker.BaseDigest)
	require.Equal(t, live.Dir, c.Marker.SourceInstallation)

	stream, _ := c.Metadata.Manifest.Find("org.example:core")
	require.Equal(t, "1.0.3", stream.Version)
	require.FileExists(t, filepath.Join(c.Dir, "modules", "core", "core-1.0.3.jar"))
}

// TestPrepare_Frozen keeps versions recorded by the frozen manifest.
func TestPrepare_Frozen(t *testing.T) {
	t.Parallel()

	s := testutil.NewScenario(t)
	frozen := installation.NewManifest("", []installation.Stream{
		{GroupID: "org.example", ArtifactID: "core", Version: "1.0.1"},
	})

	c, err := NewBuilder(WithStagingRoot(t.TempDir())).Prepare(context.Background(), Request{
		InstallDir:   filepath.Join(t.TempDir(), "server"),
		Operation:    installation.OperationInstall,
		Provisioning: s.Provisioning(),
		Channels:     s.Channels(),
		Frozen:       frozen,
	})
	require.NoError(t, err)

	stream, _ := c.Metadata.Manifest.Find("org.example:core")
	require.Equal(t, "1.0.1", stream.Version)
}

// TestPrepare_FailureRemovesStaging leaves nothing behind when a stream is missing.
func TestPrepare_FailureRemovesStaging(t *testing.T) {
	t.Parallel()

	s := testutil.NewScenario(t)
	root := t.TempDir()

	cfg := s.Provisioning()
	cfg.FeaturePacks = append(cfg.FeaturePacks, installation.FeaturePackConfig{Producer: "org.example:unknown"})

	_, err := NewBuilder(WithStagingRoot(root)).Prepare(context.Background(), Request{
		InstallDir:   filepath.Join(t.TempDir(), "server"),
		Operation:    installation.OperationInstall,
		Provisioning: cfg,
		Channels:     s.Channels(),
	})

	var notFound *installation.NoStreamFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "org.example:unknown", notFound.Artifact.Key())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestPrepare_OutputDir writes into an explicit empty directory and rejects a used one.
func TestPrepare_OutputDir(t *testing.T) {
	t.Parallel()

	s := testutil.NewScenario(t)
	output := filepath.Join(t.TempDir(), "candidate")

	req := Request{
		InstallDir:   filepath.Join(t.TempDir(), "server"),
		Operation:    installation.OperationInstall,
		Provisioning: s.Provisioning(),
		Channels:     s.Channels(),
		OutputDir:    output,
	}

	c, err := NewBuilder(WithStagingRoot(t.TempDir())).Prepare(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, output, c.Dir)

	_, err = NewBuilder(WithStagingRoot(t.TempDir())).Prepare(context.Background(), req)
	require.ErrorIs(t, err, errOutputNotEmpty)
	require.Equal(t, installation.KindStaging, installation.KindOf(err))
	require.FileExists(t, filepath.Join(output, "bin", "run.sh"))
}

// TestPrepare_RequiresLiveMetadata fails an update without an installation.
func TestPrepare_RequiresLiveMetadata(t *testing.T) {
	t.Parallel()

	s := testutil.NewScenario(t)

	_, err := NewBuilder(WithStagingRoot(t.TempDir())).Prepare(context.Background(), Request{
		InstallDir:   t.TempDir(),
		Operation:    installation.OperationUpdate,
		Provisioning: s.Provisioning(),
		Channels:     s.Channels(),
	})
	require.ErrorIs(t, err, metadata.ErrNotFound)
}

// TestPrepare_Validation rejects incomplete requests before touching the disk.
func TestPrepare_Validation(t *testing.T) {
	t.Parallel()

	s := testutil.NewScenario(t)

	tests := []struct {
		name string
		req  Request
		kind installation.Kind
	}{
		{
			name: "no operation",
			req:  Request{Provisioning: s.Provisioning(), Channels: s.Channels()},
			kind: installation.KindStaging,
		},
		{
			name: "no provisioning",
			req:  Request{Operation: installation.OperationInstall, Channels: s.Channels()},
			kind: installation.KindStaging,
		},
		{
			name: "no channels",
			req:  Request{Operation: installation.OperationInstall, Provisioning: s.Provisioning()},
			kind: installation.KindChannelConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewBuilder(WithStagingRoot(t.TempDir())).Prepare(context.Background(), tt.req)
			require.Equal(t, tt.kind, installation.KindOf(err))
		})
	}
}
