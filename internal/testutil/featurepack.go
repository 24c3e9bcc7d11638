package testutil

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"path"
	"slices"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/channelup/internal/domain/installation"
)

// FeaturePackArtifact is an artifact a feature pack installs.
type FeaturePackArtifact struct {
	GroupID    string `yaml:"groupId"`
	ArtifactID string `yaml:"artifactId"`
	Classifier string `yaml:"classifier,omitempty"`
	Extension  string `yaml:"extension,omitempty"`
	Path       string `yaml:"path"`
}

// FeaturePackPackage groups content paths under a name.
type FeaturePackPackage struct {
	Name     string   `yaml:"name"`
	Paths    []string `yaml:"paths"`
	Optional bool     `yaml:"optional,omitempty"`
}

// FeaturePack describes a feature pack archive.
type FeaturePack struct {
	Producer     string                `yaml:"producer"`
	Dependencies []string              `yaml:"dependencies,omitempty"`
	Artifacts    []FeaturePackArtifact `yaml:"artifacts,omitempty"`
	Layers       map[string][]string   `yaml:"layers,omitempty"`
	Packages     []FeaturePackPackage  `yaml:"packages,omitempty"`

	// Content maps slash-separated installation paths to file contents.
	Content map[string]string `yaml:"-"`
	// Executable lists content paths archived with mode 0755.
	Executable []string `yaml:"-"`
}

// Archive renders the feature pack as a tar.gz archive.
func (fp FeaturePack) Archive(t testing.TB) []byte {
	t.Helper()

	descriptor, err := yaml.Marshal(fp)
	require.NoError(t, err)

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	writeFile := func(name string, data []byte, mode int64) {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     mode,
			Size:     int64(len(data)),
			ModTime:  time.Unix(0, 0),
			Typeflag: tar.TypeReg,
		}))

		_, err = tw.Write(data)
		require.NoError(t, err)
	}

	writtenDirs := make(map[string]bool)

	var writeDir func(name string)
	writeDir = func(name string) {
		if name == "." || writtenDirs[name] {
			return
		}

		writeDir(path.Dir(name))

		writtenDirs[name] = true

		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name + "/",
			Mode:     0o755,
			ModTime:  time.Unix(0, 0),
			Typeflag: tar.TypeDir,
		}))
	}

	writeFile("feature-pack.yaml", descriptor, 0o644)
	writeDir("content")

	paths := make([]string, 0, len(fp.Content))
	for p := range fp.Content {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	for _, p := range paths {
		writeDir(path.Dir("content/" + p))
		mode := int64(0o644)
		if slices.Contains(fp.Executable, p) {
			mode = 0o755
		}

		writeFile("content/"+p, []byte(fp.Content[p]), mode)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

// PublishFeaturePack stores the feature pack archive under the given version.
func (r *Repository) PublishFeaturePack(fp FeaturePack, version string) installation.ArtifactRef {
	r.t.Helper()

	ref, err := installation.ParseArtifactRef(fp.Producer)
	require.NoError(r.t, err)

	ref.Extension = installation.FeaturePackExtension
	ref.Version = version

	r.Publish(ref, fp.Archive(r.t))

	return ref
}
