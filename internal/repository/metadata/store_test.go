package metadata

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/channelup/internal/domain/installation"
)

func sampleMetadata() *installation.InstallationMetadata {
	repo := installation.Repository{ID: "central", URL: "file:///repo"}

	return &installation.InstallationMetadata{
		Manifest: installation.NewManifest("installed", []installation.Stream{
			{GroupID: "org.example", ArtifactID: "core", Version: "1.0.2"},
		}),
		Channels: []installation.Channel{{
			Name:         "main",
			Manifest:     installation.ManifestCoordinate{URL: "file:///channels/main.yaml"},
			Repositories: []installation.Repository{repo},
		}},
		Provisioning: &installation.ProvisioningConfig{
			FeaturePacks: []installation.FeaturePackConfig{{Producer: "org.example:server"}},
		},
		Repositories: []installation.Repository{repo},
		Files: installation.FileInventory{
			{Path: "bin/run.sh", Digest: "sha256:abc", Producer: "org.example:server"},
		},
		History: []installation.HistoryEntry{{
			Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Operation: installation.OperationInstall,
			Actor:     &installation.Actor{Hostname: "host", Username: "user"},
		}},
	}
}

// TestStore_NotFound verifies Load reports missing metadata as a metadata failure.
func TestStore_NotFound(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	require.False(t, store.Exists())

	md, err := store.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, installation.KindMetadata, installation.KindOf(err))
	require.Nil(t, md)
}

// TestStore_WriteLoad_Roundtrip ensures Write followed by Load returns equal metadata.
func TestStore_WriteLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	want := sampleMetadata()

	require.NoError(t, store.Write(context.Background(), want))
	require.True(t, store.Exists())

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, want.Manifest.Equal(got.Manifest))
	require.Equal(t, want.Channels, got.Channels)
	require.Equal(t, want.Provisioning, got.Provisioning)
	require.Equal(t, want.Repositories, got.Repositories)
	require.Equal(t, want.Files, got.Files)
	require.Equal(t, want.History, got.History)

	wantDigest, err := Digest(want)
	require.NoError(t, err)

	gotDigest, err := Digest(got)
	require.NoError(t, err)
	require.Equal(t, wantDigest, gotDigest)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)

	for _, entry := range entries {
		require.NotContains(t, entry.Name(), ".new")
		require.NotContains(t, entry.Name(), ".old")
	}
}

// TestStore_Corrupt reports undecodable documents.
func TestStore_Corrupt(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	require.NoError(t, store.Write(context.Background(), sampleMetadata()))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), ProvisioningFile), []byte("featurePacks: {"), 0o644))

	_, err := store.Load(context.Background())

	var mdErr *installation.MetadataError
	require.ErrorAs(t, err, &mdErr)
	require.Equal(t, filepath.Join(store.Dir(), ProvisioningFile), mdErr.Path)

	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), ProvisioningFile), nil, 0o644))

	_, err = store.Load(context.Background())
	require.ErrorIs(t, err, errEmptyDocument)
}

// TestStore_WriteChannels replaces only the channel list.
func TestStore_WriteChannels(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	require.NoError(t, store.Write(context.Background(), sampleMetadata()))

	channels := []installation.Channel{{Name: "other", Manifest: installation.ManifestCoordinate{URL: "file:///other.yaml"}}}
	require.NoError(t, store.WriteChannels(context.Background(), channels))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "other", got.Channels[0].Name)
	require.Equal(t, 1, got.Manifest.Len())
}

// TestStore_Marker writes, reads and removes the candidate marker.
func TestStore_Marker(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())

	_, err := store.LoadMarker(context.Background())
	require.ErrorIs(t, err, ErrNotFound)

	marker := &installation.CandidateMarker{
		ToolVersion:        "1.2.0",
		Operation:          installation.OperationUpdate,
		SourceInstallation: "/opt/server",
		BaseDigest:         "sha256:abc",
		Created:            time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.NoError(t, store.WriteMarker(context.Background(), marker))

	got, err := store.LoadMarker(context.Background())
	require.NoError(t, err)
	require.Equal(t, marker, got)

	require.NoError(t, store.RemoveMarker())
	require.NoError(t, store.RemoveMarker())
	require.NoFileExists(t, filepath.Join(store.Dir(), MarkerFile))
}

// TestDigest_DetectsChanges checks the fingerprint follows the content.
func TestDigest_DetectsChanges(t *testing.T) {
	t.Parallel()

	md := sampleMetadata()

	before, err := Digest(md)
	require.NoError(t, err)

	md.Manifest = installation.NewManifest("installed", []installation.Stream{
		{GroupID: "org.example", ArtifactID: "core", Version: "1.0.3"},
	})

	after, err := Digest(md)
	require.NoError(t, err)
	require.NotEqual(t, before, after)

	_, err = Digest(&installation.InstallationMetadata{})
	require.ErrorIs(t, err, errIncomplete)
}

// TestExportImport moves the restorable subset through a bundle.
func TestExportImport(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	want := sampleMetadata()
	require.NoError(t, store.Write(context.Background(), want))

	var buf bytes.Buffer
	require.NoError(t, store.Export(context.Background(), &buf))

	bundle := filepath.Join(t.TempDir(), "bundle.tar.gz")
	require.NoError(t, os.WriteFile(bundle, buf.Bytes(), 0o644))

	got, err := Import(context.Background(), bundle)
	require.NoError(t, err)
	require.True(t, want.Manifest.Equal(got.Manifest))
	require.Equal(t, want.Channels, got.Channels)
	require.Equal(t, want.Provisioning, got.Provisioning)
	require.Equal(t, want.Repositories, got.Repositories)
	require.Empty(t, got.Files)
	require.Empty(t, got.History)

	_, err = Import(context.Background(), filepath.Join(t.TempDir(), "absent.tar.gz"))
	require.Equal(t, installation.KindMetadata, installation.KindOf(err))
}
