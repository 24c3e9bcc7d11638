package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/channelup/internal/domain/installation"
)

type metadata struct {
	XMLName    xml.Name `xml:"metadata"`
	GroupID    string   `xml:"groupId"`
	ArtifactID string   `xml:"artifactId"`
	Versioning struct {
		Versions []string `xml:"versions>version"`
	} `xml:"versioning"`
}

// Repository is a Maven-layout directory used as an artifact repository.
type Repository struct {
	t    testing.TB
	Root string
	ID   string
}

// NewRepository creates an empty repository under a fresh temporary directory.
func NewRepository(t testing.TB, id string) *Repository {
	t.Helper()

	return &Repository{t: t, Root: t.TempDir(), ID: id}
}

// Config returns the repository configuration pointing at the directory.
func (r *Repository) Config() installation.Repository {
	return installation.Repository{ID: r.ID, URL: "file://" + filepath.ToSlash(r.Root)}
}

// Publish stores content as the concrete artifact ref, writes its sha256
// sidecar and registers the version in maven-metadata.xml.
func (r *Repository) Publish(ref installation.ArtifactRef, content []byte) string {
	r.t.Helper()

	streamDir := filepath.Join(r.Root, filepath.FromSlash(strings.ReplaceAll(ref.GroupID, ".", "/")), ref.ArtifactID)
	file := filepath.Join(streamDir, ref.Version, ref.FileName())

	require.NoError(r.t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(r.t, os.WriteFile(file, content, 0o644))

	sum := sha256.Sum256(content)
	require.NoError(r.t, os.WriteFile(file+".sha256", []byte(hex.EncodeToString(sum[:])+"  "+ref.FileName()+"\n"), 0o644))

	mdPath := filepath.Join(streamDir, "maven-metadata.xml")

	md := metadata{GroupID: ref.GroupID, ArtifactID: ref.ArtifactID}

	if raw, err := os.ReadFile(mdPath); err == nil {
		require.NoError(r.t, xml.Unmarshal(raw, &md))
	}

	if !slices.Contains(md.Versioning.Versions, ref.Version) {
		md.Versioning.Versions = append(md.Versioning.Versions, ref.Version)
	}

	raw, err := xml.MarshalIndent(md, "", "  ")
	require.NoError(r.t, err)
	require.NoError(r.t, os.WriteFile(mdPath, raw, 0o644))

	return file
}

// PublishVersions publishes a small jar for every version of a stream.
func (r *Repository) PublishVersions(groupID, artifactID string, versions ...string) {
	r.t.Helper()

	for _, v := range versions {
		ref := installation.ArtifactRef{GroupID: groupID, ArtifactID: artifactID, Version: v}
		r.Publish(ref, []byte(ref.Key()+":"+v))
	}
}
