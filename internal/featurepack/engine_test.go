package featurepack

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/testutil"
	"github.com/oshokin/channelup/internal/transport/maven"
)

type fixture struct {
	engine   *Engine
	manifest *installation.Manifest
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	repo := testutil.NewRepository(t, "central")

	repo.PublishFeaturePack(testutil.FeaturePack{
		Producer: "org.example:base",
		Layers:   map[string][]string{"standalone": {"core-layer", "web"}},
		Content: map[string]string{
			"bin/run.sh":      "base run",
			"docs/README.txt": "base docs",
		},
		Packages: []testutil.FeaturePackPackage{{Name: "docs", Paths: []string{"docs"}, Optional: true}},
	}, "1.0.0")

	repo.PublishFeaturePack(testutil.FeaturePack{
		Producer:     "org.example:server",
		Dependencies: []string{"org.example:base"},
		Artifacts: []testutil.FeaturePackArtifact{
			{GroupID: "org.example", ArtifactID: "core", Path: "modules/core"},
		},
		Layers: map[string][]string{"standalone": {"web", "ejb"}, "domain": {"host"}},
		Content: map[string]string{
			"bin/run.sh":         "server run",
			"welcome/index.html": "hello",
		},
		Executable: []string{"bin/run.sh"},
		Packages:   []testutil.FeaturePackPackage{{Name: "welcome", Paths: []string{"welcome"}}},
	}, "2.0.0")

	repo.PublishVersions("org.example", "core", "1.0.2")

	repos, err := maven.OpenAll([]installation.Repository{repo.Config()})
	require.NoError(t, err)

	return fixture{
		engine: NewEngine(maven.NewSession(repos, t.TempDir())),
		manifest: installation.NewManifest("", []installation.Stream{
			{GroupID: "org.example", ArtifactID: "server", Version: "2.0.0"},
			{GroupID: "org.example", ArtifactID: "core", Version: "1.0.2"},
			{GroupID: "org.example", ArtifactID: "base", Version: "1.0.0"},
		}),
	}
}

func serverRef(version string) installation.ArtifactRef {
	return installation.ArtifactRef{
		GroupID:    "org.example",
		ArtifactID: "server",
		Extension:  installation.FeaturePackExtension,
		Version:    version,
	}
}

// TestRequirements lists artifacts and feature pack dependencies.
func TestRequirements(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	refs, err := f.engine.Requirements(context.Background(), serverRef("2.0.0"))
	require.NoError(t, err)
	require.Equal(t, []installation.ArtifactRef{
		{GroupID: "org.example", ArtifactID: "core"},
		{GroupID: "org.example", ArtifactID: "base", Extension: installation.FeaturePackExtension},
	}, refs)

	_, err = f.engine.Requirements(context.Background(), serverRef("9.9.9"))
	require.Equal(t, installation.KindResolution, installation.KindOf(err))
}

// TestLayers returns the union of layers across dependencies.
func TestLayers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	layers, err := f.engine.Layers(context.Background(), "org.example:server", f.manifest)
	require.NoError(t, err)
	require.Equal(t, map[string][]string{
		"standalone": {"core-layer", "ejb", "web"},
		"domain":     {"host"},
	}, layers)
}

// TestProvision materializes content, artifacts and configs with an inventory.
func TestProvision(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	target := t.TempDir()

	cfg := &installation.ProvisioningConfig{
		FeaturePacks: []installation.FeaturePackConfig{
			{Producer: "org.example:server", ExcludedPackages: []string{"welcome"}},
		},
		Configs: []installation.ConfigModel{
			{Model: "standalone", Name: "standalone.xml", IncludedLayers: []string{"web", "ejb"}, ExcludedLayers: []string{"ejb"}},
		},
	}

	inventory, err := f.engine.Provision(context.Background(), target, cfg, f.manifest)
	require.NoError(t, err)

	paths := make([]string, len(inventory))
	for i, rec := range inventory {
		paths[i] = rec.Path
	}

	require.Equal(t, []string{
		"bin/run.sh",
		"configuration/standalone/standalone.xml",
		"modules/core/core-1.0.2.jar",
	}, paths)

	run, err := os.ReadFile(filepath.Join(target, "bin", "run.sh"))
	require.NoError(t, err)
	require.Equal(t, "server run", string(run))

	index := inventory.Index()
	require.Equal(t, "org.example:server", index["bin/run.sh"].Producer)
	require.Equal(t, digest.FromString("server run").String(), index["bin/run.sh"].Digest)
	require.Empty(t, index["configuration/standalone/standalone.xml"].Producer)

	rendered, err := os.ReadFile(filepath.Join(target, "configuration", "standalone", "standalone.xml"))
	require.NoError(t, err)
	require.Contains(t, string(rendered), "- web")
	require.NotContains(t, string(rendered), "ejb")

	require.NoFileExists(t, filepath.Join(target, "docs", "README.txt"))
	require.NoFileExists(t, filepath.Join(target, "welcome", "index.html"))
}

// TestProvision_KeepsFileModes installs content with the archived permissions.
func TestProvision_KeepsFileModes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	target := t.TempDir()

	cfg := &installation.ProvisioningConfig{
		FeaturePacks: []installation.FeaturePackConfig{
			{Producer: "org.example:base", IncludedPackages: []string{"docs"}},
			{Producer: "org.example:server"},
		},
	}

	_, err := f.engine.Provision(context.Background(), target, cfg, f.manifest)
	require.NoError(t, err)

	run, err := os.Stat(filepath.Join(target, "bin", "run.sh"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), run.Mode().Perm())

	readme, err := os.Stat(filepath.Join(target, "docs", "README.txt"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), readme.Mode().Perm())
}

// TestProvision_IncludesOptionalPackage installs optional packages only on request.
func TestProvision_IncludesOptionalPackage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	target := t.TempDir()

	cfg := &installation.ProvisioningConfig{
		FeaturePacks: []installation.FeaturePackConfig{
			{Producer: "org.example:base", IncludedPackages: []string{"docs"}},
			{Producer: "org.example:server"},
		},
	}

	inventory, err := f.engine.Provision(context.Background(), target, cfg, f.manifest)
	require.NoError(t, err)

	index := inventory.Index()
	require.Equal(t, "org.example:base", index["docs/README.txt"].Producer)
	require.Equal(t, "org.example:server", index["welcome/index.html"].Producer)
}

// TestProvision_MissingStream fails when the manifest lacks a required stream.
func TestProvision_MissingStream(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	partial := installation.NewManifest("", []installation.Stream{
		{GroupID: "org.example", ArtifactID: "server", Version: "2.0.0"},
		{GroupID: "org.example", ArtifactID: "base", Version: "1.0.0"},
	})

	cfg := &installation.ProvisioningConfig{
		FeaturePacks: []installation.FeaturePackConfig{{Producer: "org.example:server"}},
	}

	_, err := f.engine.Provision(context.Background(), t.TempDir(), cfg, partial)

	var notFound *installation.NoStreamFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "org.example:core", notFound.Artifact.Key())
}

// TestLoad_ProducerMismatch rejects archives published under a foreign coordinate.
func TestLoad_ProducerMismatch(t *testing.T) {
	t.Parallel()

	repo := testutil.NewRepository(t, "central")
	ref := serverRef("1.0.0")
	repo.Publish(ref, testutil.FeaturePack{Producer: "org.example:other"}.Archive(t))

	repos, err := maven.OpenAll([]installation.Repository{repo.Config()})
	require.NoError(t, err)

	_, err = NewEngine(maven.NewSession(repos, t.TempDir())).Requirements(context.Background(), ref)
	require.ErrorIs(t, err, errProducerMismatch)
}
