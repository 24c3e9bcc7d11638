package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/service/provision"
)

var (
	errRepositoryFormat = errors.New("repository must be given as <id>::<url>")
	errChannelSource    = errors.New("either --channels or --manifest is required")
	errChannelSources   = errors.New("--channels and --manifest are mutually exclusive")
)

// channelFlags describe the channels of a new installation.
type channelFlags struct {
	file         string
	manifest     string
	repositories []string
}

func (f *channelFlags) channels() ([]installation.Channel, error) {
	switch {
	case f.file != "" && f.manifest != "":
		return nil, &usageError{err: errChannelSources}
	case f.file != "":
		channels, err := provision.LoadChannels(f.file)
		if err != nil {
			return nil, err
		}

		repos, err := parseRepositories(f.repositories)
		if err != nil {
			return nil, err
		}

		return installation.OverrideRepositories(channels, repos), nil
	case f.manifest != "":
		ch, err := buildChannel("", f.manifest, f.repositories)
		if err != nil {
			return nil, err
		}

		return []installation.Channel{ch}, nil
	default:
		return nil, &usageError{err: errChannelSource}
	}
}

// buildChannel creates a channel from a manifest URL or a Maven coordinate.
func buildChannel(name, manifest string, repositories []string) (installation.Channel, error) {
	repos, err := parseRepositories(repositories)
	if err != nil {
		return installation.Channel{}, err
	}

	ch := installation.Channel{Name: name, Repositories: repos}

	if strings.Contains(manifest, "://") {
		ch.Manifest.URL = manifest
	} else {
		ref, err := installation.ParseArtifactRef(manifest)
		if err != nil {
			return installation.Channel{}, &usageError{err: err}
		}

		ch.Manifest.Maven = &ref
	}

	if err = installation.ValidateChannels([]installation.Channel{ch}); err != nil {
		return installation.Channel{}, err
	}

	return ch, nil
}

// parseRepositories parses "<id>::<url>" values.
func parseRepositories(values []string) ([]installation.Repository, error) {
	repos := make([]installation.Repository, 0, len(values))

	for _, value := range values {
		id, url, ok := strings.Cut(value, "::")
		if !ok || id == "" || url == "" {
			return nil, &usageError{err: fmt.Errorf("%w: %q", errRepositoryFormat, value)}
		}

		repos = append(repos, installation.Repository{ID: id, URL: url})
	}

	return repos, nil
}
