package update

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
	"github.com/oshokin/channelup/internal/service/provision"
	"github.com/oshokin/channelup/internal/testutil"
)

func setup(t *testing.T) (*testutil.Scenario, *operation.Environment, string) {
	t.Helper()

	cfg := config.Default()
	cfg.StagingDir = t.TempDir()

	s := testutil.NewScenario(t)
	env := operation.New(cfg)
	dir := filepath.Join(t.TempDir(), "server")

	_, err := provision.Install(context.Background(), &provision.InstallOptions{
		Env:         env,
		InstallDir:  dir,
		FeaturePack: testutil.ServerProducer,
		Channels:    s.Channels(),
	})
	require.NoError(t, err)

	return s, env, dir
}

func coreVersion(t *testing.T, dir string) string {
	t.Helper()

	md, err := metadata.NewStore(dir).Load(context.Background())
	require.NoError(t, err)

	stream, ok := md.Manifest.Find("org.example:core")
	require.True(t, ok)

	return stream.Version
}

func digest(t *testing.T, dir string) string {
	t.Helper()

	md, err := metadata.NewStore(dir).Load(context.Background())
	require.NoError(t, err)

	d, err := metadata.Digest(md)
	require.NoError(t, err)

	return d.String()
}

// TestPerform_NoUpdates reports an empty change set and leaves the installation alone.
func TestPerform_NoUpdates(t *testing.T) {
	t.Parallel()

	_, env, dir := setup(t)

	before := digest(t, dir)

	result, err := Perform(context.Background(), &Options{Env: env, InstallDir: dir})
	require.NoError(t, err)
	require.True(t, result.Changes.IsEmpty())
	require.Nil(t, result.Applied)

	require.Equal(t, before, digest(t, dir))
}

// TestPerform picks up a newly published version and keeps user files.
func TestPerform(t *testing.T) {
	t.Parallel()

	s, env, dir := setup(t)

	userFile := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(userFile, []byte("mine"), 0o600))

	s.Repo.PublishVersions("org.example", "core", "1.0.3")

	listed, err := List(context.Background(), &Options{Env: env, InstallDir: dir})
	require.NoError(t, err)
	require.Equal(t, []installation.ArtifactChange{{Key: "org.example:core", From: "1.0.2", To: "1.0.3"}},
		listed.Changes.UpdatedArtifacts)
	require.Equal(t, "1.0.2", coreVersion(t, dir))

	result, err := Perform(context.Background(), &Options{Env: env, InstallDir: dir})
	require.NoError(t, err)
	require.NotNil(t, result.Applied)
	require.Equal(t, 1, result.Changes.ArtifactChanges())

	require.Equal(t, "1.0.3", coreVersion(t, dir))
	require.FileExists(t, filepath.Join(dir, "modules", "core", "core-1.0.3.jar"))
	require.NoFileExists(t, filepath.Join(dir, "modules", "core", "core-1.0.2.jar"))
	require.FileExists(t, userFile)

	md, err := metadata.NewStore(dir).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, md.History, 2)
	require.Equal(t, installation.OperationUpdate, md.History[1].Operation)

	entries, err := os.ReadDir(env.Config().StagingDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestPerform_DryRun computes the changes without applying them.
func TestPerform_DryRun(t *testing.T) {
	t.Parallel()

	s, env, dir := setup(t)
	s.Repo.PublishVersions("org.example", "core", "1.0.3")

	result, err := Perform(context.Background(), &Options{Env: env, InstallDir: dir, DryRun: true})
	require.NoError(t, err)
	require.Equal(t, 1, result.Changes.ArtifactChanges())
	require.Nil(t, result.Applied)
	require.Equal(t, "1.0.2", coreVersion(t, dir))
}

// TestPrepareApply promotes a candidate prepared earlier and refuses to reuse it.
func TestPrepareApply(t *testing.T) {
	t.Parallel()

	s, env, dir := setup(t)
	s.Repo.PublishVersions("org.example", "core", "1.0.3")

	candidateDir := filepath.Join(t.TempDir(), "candidate")

	prepared, err := Prepare(context.Background(), &Options{Env: env, InstallDir: dir, CandidateDir: candidateDir})
	require.NoError(t, err)
	require.Equal(t, candidateDir, prepared.CandidateDir)
	require.FileExists(t, filepath.Join(candidateDir, "modules", "core", "core-1.0.3.jar"))
	require.Equal(t, "1.0.2", coreVersion(t, dir))

	applied, err := Apply(context.Background(), &Options{Env: env, InstallDir: dir, CandidateDir: candidateDir})
	require.NoError(t, err)
	require.Equal(t, 1, applied.Changes.ArtifactChanges())
	require.Equal(t, "1.0.3", coreVersion(t, dir))

	_, err = Apply(context.Background(), &Options{Env: env, InstallDir: dir, CandidateDir: candidateDir})
	require.Equal(t, installation.KindInvalidCandidate, installation.KindOf(err))
}

// TestPrepare_NoUpdates keeps no candidate.
func TestPrepare_NoUpdates(t *testing.T) {
	t.Parallel()

	_, env, dir := setup(t)
	candidateDir := filepath.Join(t.TempDir(), "candidate")

	result, err := Prepare(context.Background(), &Options{Env: env, InstallDir: dir, CandidateDir: candidateDir})
	require.NoError(t, err)
	require.True(t, result.Changes.IsEmpty())
	require.Empty(t, result.CandidateDir)
	require.NoDirExists(t, candidateDir)

	_, err = Prepare(context.Background(), &Options{Env: env, InstallDir: dir})
	require.ErrorIs(t, err, errNoCandidateDir)
}

// TestApply_StaleCandidate rejects a candidate prepared before the
// installation changed.
func TestApply_StaleCandidate(t *testing.T) {
	t.Parallel()

	s, env, dir := setup(t)
	s.Repo.PublishVersions("org.example", "core", "1.0.3")

	candidateDir := filepath.Join(t.TempDir(), "candidate")

	_, err := Prepare(context.Background(), &Options{Env: env, InstallDir: dir, CandidateDir: candidateDir})
	require.NoError(t, err)

	require.NoError(t, metadata.NewStore(dir).WriteChannels(context.Background(), s.UpdateChannels()))

	_, err = Apply(context.Background(), &Options{Env: env, InstallDir: dir, CandidateDir: candidateDir})
	require.Equal(t, installation.KindInvalidCandidate, installation.KindOf(err))
	require.Equal(t, "1.0.2", coreVersion(t, dir))
}

// TestPerform_Repositories overrides the recorded repositories for one run.
func TestPerform_Repositories(t *testing.T) {
	t.Parallel()

	s, env, dir := setup(t)

	updates := testutil.NewRepository(t, "updates")
	updates.PublishVersions("org.example", "core", "1.0.4")

	// The feature pack itself stays in central, so both are needed.
	result, err := List(context.Background(), &Options{
		Env:          env,
		InstallDir:   dir,
		Repositories: []installation.Repository{updates.Config(), s.Repo.Config()},
	})
	require.NoError(t, err)
	require.Equal(t, "1.0.4", result.Changes.UpdatedArtifacts[0].To)
}
