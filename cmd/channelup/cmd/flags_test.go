package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/channelup/internal/domain/installation"
)

// TestParseRepositories accepts only <id>::<url> values.
func TestParseRepositories(t *testing.T) {
	t.Parallel()

	repos, err := parseRepositories([]string{"central::https://repo.example.org/maven2", "local::file:///srv/repo"})
	require.NoError(t, err)
	require.Equal(t, []installation.Repository{
		{ID: "central", URL: "https://repo.example.org/maven2"},
		{ID: "local", URL: "file:///srv/repo"},
	}, repos)

	_, err = parseRepositories([]string{"https://repo.example.org/maven2"})
	require.ErrorIs(t, err, errRepositoryFormat)
}

// TestBuildChannel tells manifest URLs from Maven coordinates.
func TestBuildChannel(t *testing.T) {
	t.Parallel()

	repos := []string{"central::https://repo.example.org/maven2"}

	ch, err := buildChannel("main", "https://example.org/main.yaml", repos)
	require.NoError(t, err)
	require.Equal(t, "https://example.org/main.yaml", ch.Manifest.URL)
	require.Nil(t, ch.Manifest.Maven)

	ch, err = buildChannel("main", "org.example:channel", repos)
	require.NoError(t, err)
	require.Equal(t, "org.example", ch.Manifest.Maven.GroupID)
	require.Equal(t, "channel", ch.Manifest.Maven.ArtifactID)

	_, err = buildChannel("main", "https://example.org/main.yaml", append(repos, repos[0]))
	require.Equal(t, installation.KindChannelConfig, installation.KindOf(err))
}

// TestExitCode separates operation failures from unexpected ones.
func TestExitCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, exitOK, exitCode(nil))
	require.Equal(t, exitFailure, exitCode(&installation.LockedError{Dir: "/opt/server"}))
	require.Equal(t, exitFailure, exitCode(&usageError{err: errNoTarget}))
	require.Equal(t, exitInternal, exitCode(errors.New("boom")))
}
