package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/logger"
	"github.com/oshokin/channelup/internal/service/resolver"
	"github.com/oshokin/channelup/internal/transport/maven"
)

const (
	// ManifestClassifier is the classifier of channel manifests published as artifacts.
	ManifestClassifier = "manifest"
	// ManifestExtension is the extension of channel manifests published as artifacts.
	ManifestExtension = "yaml"
)

var errUnsupportedManifestURL = errors.New("unsupported channel manifest url")

// ChannelLoader fetches and parses channel manifests.
type ChannelLoader struct {
	client *http.Client
	open   maven.Opener
}

// NewChannelLoader creates a loader. A nil client uses http.DefaultClient,
// a nil opener uses maven.Open.
func NewChannelLoader(client *http.Client, open maven.Opener) *ChannelLoader {
	if client == nil {
		client = http.DefaultClient
	}

	if open == nil {
		open = func(repo installation.Repository) (maven.Repository, error) {
			return maven.Open(repo, maven.WithHTTPClient(client))
		}
	}

	return &ChannelLoader{client: client, open: open}
}

// Load returns the manifest of a channel. Any failure is a ChannelConfigError.
func (l *ChannelLoader) Load(ctx context.Context, ch installation.Channel) (*ChannelManifest, error) {
	data, err := l.fetch(ctx, ch)
	if err == nil {
		var cm *ChannelManifest

		if cm, err = ParseChannelManifest(data); err == nil {
			return cm, nil
		}
	}

	return nil, &installation.ChannelConfigError{Channel: ch.DisplayName(), Err: err}
}

func (l *ChannelLoader) fetch(ctx context.Context, ch installation.Channel) ([]byte, error) {
	if ch.Manifest.Maven != nil {
		return l.fetchArtifact(ctx, ch)
	}

	parsed, err := url.Parse(ch.Manifest.URL)
	if err != nil {
		return nil, fmt.Errorf("parse manifest url: %w", err)
	}

	switch parsed.Scheme {
	case "file":
		return os.ReadFile(filepath.FromSlash(parsed.Path))
	case "":
		return os.ReadFile(ch.Manifest.URL)
	case "http", "https":
		return l.fetchURL(ctx, ch.Manifest.URL)
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedManifestURL, ch.Manifest.URL)
	}
}

func (l *ChannelLoader) fetchURL(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &maven.StatusError{URL: target, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	return io.ReadAll(resp.Body)
}

// fetchArtifact resolves the latest manifest artifact at or above the
// coordinate's version and downloads it from the channel's repositories.
func (l *ChannelLoader) fetchArtifact(ctx context.Context, ch installation.Channel) ([]byte, error) {
	ref := *ch.Manifest.Maven
	ref.Classifier = ManifestClassifier
	ref.Extension = ManifestExtension

	repos, err := openRepositories(ch.Repositories, l.open)
	if err != nil {
		return nil, err
	}

	resolution, err := resolver.ResolveLatest(ctx, ref, repos, resolver.Any())
	if err != nil {
		return nil, err
	}

	ref.Version = resolution.Version

	logger.DebugKV(ctx, "Channel manifest resolved", "channel", ch.DisplayName(), "version", ref.Version)

	var buf bytes.Buffer

	for _, repo := range repos {
		buf.Reset()

		if err = repo.Download(ctx, ref, &buf); err == nil {
			return buf.Bytes(), nil
		}
	}

	return nil, &installation.ResolutionError{
		Unresolved: []installation.ArtifactRef{ref},
		Attempted:  ch.Repositories,
		Err:        err,
	}
}

func openRepositories(configured []installation.Repository, open maven.Opener) ([]maven.Repository, error) {
	repos := make([]maven.Repository, 0, len(configured))

	for _, repo := range configured {
		opened, err := open(repo)
		if err != nil {
			return nil, err
		}

		repos = append(repos, opened)
	}

	return repos, nil
}
