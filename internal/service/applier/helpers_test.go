package applier

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/repository/metadata"
	"github.com/oshokin/channelup/internal/version"
)

var errInjected = errors.New("injected failure")

// faultSystem fails selected calls and records every mutating call.
type faultSystem struct {
	base System

	mkdirTempErr error
	copyErr      error
	// renameErrs fails the n-th rename call (1-based).
	renameErrs map[int]error

	renames int
	calls   []string
}

func newFaultSystem() *faultSystem {
	return &faultSystem{base: RealSystem{}, renameErrs: map[int]error{}}
}

func (f *faultSystem) Stat(name string) (os.FileInfo, error) {
	return f.base.Stat(name)
}

func (f *faultSystem) MkdirAll(path string, perm os.FileMode) error {
	f.calls = append(f.calls, "mkdir "+path)

	return f.base.MkdirAll(path, perm)
}

func (f *faultSystem) MkdirTemp(dir, pattern string) (string, error) {
	f.calls = append(f.calls, "mkdirtemp "+dir)
	if f.mkdirTempErr != nil {
		return "", f.mkdirTempErr
	}

	return f.base.MkdirTemp(dir, pattern)
}

func (f *faultSystem) CopyFile(src, dst string) error {
	f.calls = append(f.calls, "copy "+dst)
	if f.copyErr != nil {
		return f.copyErr
	}

	return f.base.CopyFile(src, dst)
}

func (f *faultSystem) Rename(oldpath, newpath string) error {
	f.renames++
	f.calls = append(f.calls, "rename "+newpath)

	if err, ok := f.renameErrs[f.renames]; ok {
		return err
	}

	return f.base.Rename(oldpath, newpath)
}

func (f *faultSystem) RemoveAll(path string) error {
	f.calls = append(f.calls, "remove "+path)

	return f.base.RemoveAll(path)
}

func (f *faultSystem) WalkDir(root string, fn fs.WalkDirFunc) error {
	return f.base.WalkDir(root, fn)
}

func (f *faultSystem) ReadDir(name string) ([]os.DirEntry, error) {
	return f.base.ReadDir(name)
}

type file struct {
	content  string
	producer string
}

type state struct {
	files     map[string]file
	streams   []installation.Stream
	producers []string
}

func core(v string) installation.Stream {
	return installation.Stream{GroupID: "org.example", ArtifactID: "core", Version: v}
}

// materialize writes the files and metadata of s into dir and returns the
// metadata as loaded back from disk.
func materialize(t *testing.T, dir string, s state) *installation.InstallationMetadata {
	t.Helper()

	md := &installation.InstallationMetadata{
		Manifest: installation.NewManifest("installation", s.streams),
		Channels: []installation.Channel{{
			Name:         "main",
			Manifest:     installation.ManifestCoordinate{URL: "file:///channels/main.yaml"},
			Repositories: []installation.Repository{{ID: "central", URL: "file:///repo"}},
		}},
		Provisioning: new(installation.ProvisioningConfig),
		Repositories: []installation.Repository{{ID: "central", URL: "file:///repo"}},
	}

	for _, producer := range s.producers {
		md.Provisioning.FeaturePacks = append(md.Provisioning.FeaturePacks,
			installation.FeaturePackConfig{Producer: producer})
	}

	for path, f := range s.files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(f.content), 0o644))

		md.Files = append(md.Files, installation.FileRecord{
			Path:     path,
			Digest:   digest.FromString(f.content).String(),
			Producer: f.producer,
		})
	}

	md.Files.Sort()

	store := metadata.NewStore(dir)
	require.NoError(t, store.Write(context.Background(), md))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)

	return loaded
}

// writeCandidate stages s as a candidate for target. base is the live
// metadata the candidate is bound to, nil for new installations.
func writeCandidate(
	t *testing.T,
	target string,
	op installation.Operation,
	s state,
	base *installation.InstallationMetadata,
) string {
	t.Helper()

	dir := t.TempDir()
	materialize(t, dir, s)

	marker := &installation.CandidateMarker{
		ToolVersion:        version.Short(),
		Operation:          op,
		SourceInstallation: target,
		Created:            time.Now().UTC().Truncate(time.Second),
	}

	if base != nil {
		d, err := metadata.Digest(base)
		require.NoError(t, err)

		marker.BaseDigest = d.String()
	}

	require.NoError(t, metadata.NewStore(dir).WriteMarker(context.Background(), marker))

	return dir
}

// snapshot returns every file below dir with its content.
func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()

	files := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		files[filepath.ToSlash(rel)] = string(raw)

		return nil
	})
	require.NoError(t, err)

	return files
}

// siblings lists the entries of the target's parent directory.
func siblings(t *testing.T, target string) []string {
	t.Helper()

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	return names
}

func liveState() state {
	return state{
		files: map[string]file{
			"bin/run.sh":                  {content: "run", producer: "org.example:server"},
			"modules/core/core-1.0.2.jar": {content: "core 1.0.2", producer: "org.example:server"},
			"conf/app.conf":               {content: "default"},
		},
		streams:   []installation.Stream{core("1.0.2")},
		producers: []string{"org.example:server"},
	}
}

func updatedState() state {
	return state{
		files: map[string]file{
			"bin/run.sh":                  {content: "run", producer: "org.example:server"},
			"modules/core/core-1.0.3.jar": {content: "core 1.0.3", producer: "org.example:server"},
			"conf/app.conf":               {content: "default v2"},
		},
		streams:   []installation.Stream{core("1.0.3")},
		producers: []string{"org.example:server"},
	}
}

// newLive materializes the live installation at <tmp>/server.
func newLive(t *testing.T, s state) (string, *installation.InstallationMetadata) {
	t.Helper()

	target := filepath.Join(t.TempDir(), "server")
	require.NoError(t, os.MkdirAll(target, 0o755))

	return target, materialize(t, target, s)
}
