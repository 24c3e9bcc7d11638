package maven

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshokin/channelup/internal/domain/installation"
)

// ErrNotFound reports that a repository does not hold the requested artifact.
// It is a "not available" signal, distinct from transport failures.
var ErrNotFound = errors.New("artifact not found")

var errUnsupportedScheme = errors.New("unsupported repository url scheme")

// metadataFile is the per-artifact version listing.
const metadataFile = "maven-metadata.xml"

// checksumSuffix names the optional sha256 sidecar of a file.
const checksumSuffix = ".sha256"

// Repository is a source of artifacts.
type Repository interface {
	// ID returns the repository id.
	ID() string
	// URL returns the repository location.
	URL() string
	// Versions lists every version of ref's stream. ErrNotFound means the
	// repository does not know the stream.
	Versions(ctx context.Context, ref installation.ArtifactRef) ([]string, error)
	// Download writes the content of the concrete artifact ref into w.
	Download(ctx context.Context, ref installation.ArtifactRef, w io.Writer) error
}

// Opener creates a Repository for a configured repository.
type Opener func(repo installation.Repository) (Repository, error)

type options struct {
	client *http.Client
}

// Option configures Open.
type Option func(*options)

// WithHTTPClient sets the client used by remote repositories.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithTimeout sets the per-request timeout of remote repositories.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.client = &http.Client{Timeout: timeout}
	}
}

// Open creates the repository implementation matching the URL scheme.
func Open(repo installation.Repository, opts ...Option) (Repository, error) {
	o := &options{client: http.DefaultClient}
	for _, opt := range opts {
		opt(o)
	}

	parsed, err := url.Parse(repo.URL)
	if err != nil {
		return nil, fmt.Errorf("parse repository %s url: %w", repo.ID, err)
	}

	switch parsed.Scheme {
	case "http", "https":
		return &httpRepository{
			id:     repo.ID,
			base:   strings.TrimSuffix(repo.URL, "/"),
			client: o.client,
		}, nil
	case "file":
		return &dirRepository{id: repo.ID, url: repo.URL, root: filepath.FromSlash(parsed.Path)}, nil
	case "":
		return &dirRepository{id: repo.ID, url: repo.URL, root: repo.URL}, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedScheme, repo.URL)
	}
}

// OpenAll opens every repository in order.
func OpenAll(repos []installation.Repository, opts ...Option) ([]Repository, error) {
	opened := make([]Repository, 0, len(repos))

	for _, repo := range repos {
		r, err := Open(repo, opts...)
		if err != nil {
			return nil, err
		}

		opened = append(opened, r)
	}

	return opened, nil
}

// Describe converts opened repositories back into their configuration.
func Describe(repos []Repository) []installation.Repository {
	described := make([]installation.Repository, len(repos))
	for i, r := range repos {
		described[i] = installation.Repository{ID: r.ID(), URL: r.URL()}
	}

	return described
}

// streamPath returns "<group/path>/<artifactId>".
func streamPath(ref installation.ArtifactRef) string {
	return path.Join(strings.ReplaceAll(ref.GroupID, ".", "/"), ref.ArtifactID)
}

// ArtifactPath returns the slash-separated repository path of a concrete artifact.
func ArtifactPath(ref installation.ArtifactRef) string {
	return path.Join(streamPath(ref), ref.Version, ref.FileName())
}
