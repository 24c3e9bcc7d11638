package candidate

import (
	"context"
	"errors"
	"net/http"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/featurepack"
	"github.com/oshokin/channelup/internal/logger"
	"github.com/oshokin/channelup/internal/service/manifest"
	"github.com/oshokin/channelup/internal/staging"
	"github.com/oshokin/channelup/internal/transport/maven"
)

// Workspace holds the collaborators of one provisioning run. The artifact
// cache it owns lives until Close.
type Workspace struct {
	// Channels are the channels used for resolution, after any repository override.
	Channels []installation.Channel
	// Manifests resolves streams against Channels.
	Manifests *manifest.Builder
	// Engine reads and provisions feature packs.
	Engine *featurepack.Engine

	session *maven.Session
	cache   *staging.Dir
}

// Close releases the run-scoped artifact cache. A configured persistent
// cache is left alone.
func (w *Workspace) Close() error {
	if w.cache == nil {
		return nil
	}

	return w.cache.Release()
}

// Builder prepares candidates.
type Builder struct {
	stagingRoot string
	localCache  string
	client      *http.Client
	open        maven.Opener
}

// Option configures a Builder.
type Option func(*Builder)

// WithStagingRoot sets where staging directories are created.
func WithStagingRoot(root string) Option {
	return func(b *Builder) {
		b.stagingRoot = root
	}
}

// WithLocalCache uses a persistent artifact cache instead of a run-scoped one.
func WithLocalCache(dir string) Option {
	return func(b *Builder) {
		b.localCache = dir
	}
}

// WithHTTPClient sets the client for remote channels and repositories.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Builder) {
		b.client = client
	}
}

// WithOpener replaces the repository opener.
func WithOpener(open maven.Opener) Option {
	return func(b *Builder) {
		b.open = open
	}
}

// NewBuilder creates a candidate builder.
func NewBuilder(opts ...Option) *Builder {
	b := new(Builder)
	for _, opt := range opts {
		opt(b)
	}

	if b.client == nil {
		b.client = http.DefaultClient
	}

	if b.open == nil {
		b.open = func(repo installation.Repository) (maven.Repository, error) {
			return maven.Open(repo, maven.WithHTTPClient(b.client))
		}
	}

	return b
}

// Open prepares a workspace over channels. Non-empty repositories replace
// the repositories of every channel for this run only.
func (b *Builder) Open(
	ctx context.Context,
	channels []installation.Channel,
	repositories []installation.Repository,
) (*Workspace, error) {
	effective := installation.OverrideRepositories(channels, repositories)
	if err := installation.ValidateChannels(effective); err != nil {
		return nil, err
	}

	w := &Workspace{
		Channels:  effective,
		Manifests: manifest.NewBuilder(manifest.WithHTTPClient(b.client), manifest.WithOpener(b.open)),
	}

	cacheDir := b.localCache
	if cacheDir == "" {
		cache, err := staging.Acquire(b.stagingRoot, staging.KindCache)
		if err != nil {
			return nil, &installation.StagingError{Phase: "cache", Err: err}
		}

		w.cache = cache
		cacheDir = cache.Path()
	}

	var repos []maven.Repository

	for _, repo := range installation.MergeRepositories(effective) {
		opened, err := b.open(repo)
		if err != nil {
			return nil, errors.Join(
				&installation.ChannelConfigError{Channel: repo.ID, Err: err},
				w.Close(),
			)
		}

		repos = append(repos, opened)
	}

	w.session = maven.NewSession(repos, cacheDir)
	w.Engine = featurepack.NewEngine(w.session)

	logger.DebugKV(ctx, "Workspace opened", "cache", cacheDir, "repositories", len(repos))

	return w, nil
}
