package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/channelup/internal/domain/installation"
)

// ChannelStream is a stream rule of a channel manifest.
type ChannelStream struct {
	GroupID           string `yaml:"groupId"`
	ArtifactID        string `yaml:"artifactId"`
	Version           string `yaml:"version,omitempty"`
	VersionRange      string `yaml:"versionRange,omitempty"`
	VersionPattern    string `yaml:"versionPattern,omitempty"`
	VersionConstraint string `yaml:"versionConstraint,omitempty"`
}

type channelManifest struct {
	SchemaVersion int             `yaml:"schemaVersion"`
	Name          string          `yaml:"name"`
	Streams       []ChannelStream `yaml:"streams"`
}

// ChannelManifestYAML renders a channel manifest document.
func ChannelManifestYAML(t testing.TB, name string, streams ...ChannelStream) []byte {
	t.Helper()

	raw, err := yaml.Marshal(channelManifest{SchemaVersion: 1, Name: name, Streams: streams})
	require.NoError(t, err)

	return raw
}

// WriteChannel writes a channel manifest into dir and returns a channel
// pointing at it through a file:// URL.
func WriteChannel(
	t testing.TB,
	dir, name string,
	repos []installation.Repository,
	streams ...ChannelStream,
) installation.Channel {
	t.Helper()

	file := filepath.Join(dir, name+"-manifest.yaml")
	require.NoError(t, os.WriteFile(file, ChannelManifestYAML(t, name, streams...), 0o644))

	return installation.Channel{
		Name:         name,
		Manifest:     installation.ManifestCoordinate{URL: "file://" + filepath.ToSlash(file)},
		Repositories: repos,
	}
}
