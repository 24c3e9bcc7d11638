package metadata

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/channelup/internal/domain/installation"
)

// TestStore_Repair restores documents lost between the two renames of a write.
func TestStore_Repair(t *testing.T) {
	t.Parallel()

	other := []installation.Channel{{Name: "other", Manifest: installation.ManifestCoordinate{URL: "file:///other.yaml"}}}

	tests := []struct {
		name    string
		pending string
		want    string
	}{
		{name: "pending copy is promoted", pending: "valid", want: "other"},
		{name: "backup is restored when pending copy is truncated", pending: "truncated", want: "main"},
		{name: "backup is restored without pending copy", want: "main"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := NewStore(t.TempDir())
			require.NoError(t, store.Write(ctx, sampleMetadata()))

			path := filepath.Join(store.Dir(), ChannelsFile)
			pending := filepath.Join(store.Dir(), "."+ChannelsFile+".new")
			backup := filepath.Join(store.Dir(), "."+ChannelsFile+".old")

			original, err := os.ReadFile(path)
			require.NoError(t, err)

			require.NoError(t, store.WriteChannels(ctx, other))

			switch tt.pending {
			case "valid":
				require.NoError(t, os.Rename(path, pending))
			case "truncated":
				require.NoError(t, os.WriteFile(pending, []byte("  \n"), 0o644))
				require.NoError(t, os.Remove(path))
			default:
				require.NoError(t, os.Remove(path))
			}

			require.NoError(t, os.WriteFile(backup, original, 0o644))

			_, err = store.Load(ctx)
			require.ErrorIs(t, err, ErrNotFound)

			repaired, err := store.Repair(ctx)
			require.NoError(t, err)
			require.Equal(t, []string{ChannelsFile}, repaired)
			require.NoFileExists(t, pending)
			require.NoFileExists(t, backup)

			md, err := store.Load(ctx)
			require.NoError(t, err)
			require.Equal(t, tt.want, md.Channels[0].Name)
		})
	}
}

// TestStore_Repair_Leftovers removes copies next to intact documents.
func TestStore_Repair_Leftovers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(t.TempDir())
	require.NoError(t, store.Write(ctx, sampleMetadata()))

	pending := filepath.Join(store.Dir(), "."+ManifestFile+".new")
	backup := filepath.Join(store.Dir(), "."+HistoryFile+".old")

	require.NoError(t, os.WriteFile(pending, []byte("streams: []\n"), 0o644))
	require.NoError(t, os.WriteFile(backup, []byte("history: []\n"), 0o644))

	repaired, err := store.Repair(ctx)
	require.NoError(t, err)
	require.Empty(t, repaired)
	require.NoFileExists(t, pending)
	require.NoFileExists(t, backup)

	md, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, md.History, 1)
}

// TestStore_Repair_NoMetadata is a no-op outside an installation.
func TestStore_Repair_NoMetadata(t *testing.T) {
	t.Parallel()

	repaired, err := NewStore(t.TempDir()).Repair(context.Background())
	require.NoError(t, err)
	require.Empty(t, repaired)
}
