package operation

import (
	"context"
	"net/http"

	"github.com/oshokin/channelup/internal/config"
	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/lock"
	"github.com/oshokin/channelup/internal/logger"
	"github.com/oshokin/channelup/internal/repository/metadata"
	"github.com/oshokin/channelup/internal/service/applier"
	"github.com/oshokin/channelup/internal/service/candidate"
	"github.com/oshokin/channelup/internal/transport/maven"
)

// Environment builds candidate builders and appliers from the configuration.
type Environment struct {
	cfg     *config.Config
	client  *http.Client
	open    maven.Opener
	applier *applier.Applier
}

// Option configures an Environment.
type Option func(*Environment)

// WithApplier replaces the applier, e.g. to inject filesystem faults.
func WithApplier(a *applier.Applier) Option {
	return func(e *Environment) {
		e.applier = a
	}
}

// WithOpener replaces the repository opener.
func WithOpener(open maven.Opener) Option {
	return func(e *Environment) {
		e.open = open
	}
}

// New creates an environment. A nil configuration uses the defaults.
func New(cfg *config.Config, opts ...Option) *Environment {
	if cfg == nil {
		cfg = config.Default()
	}

	e := &Environment{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.HTTPTimeout},
		applier: applier.New(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Config returns the configuration.
func (e *Environment) Config() *config.Config {
	return e.cfg
}

// Candidates returns a candidate builder honouring the staging and cache settings.
func (e *Environment) Candidates() *candidate.Builder {
	opts := []candidate.Option{
		candidate.WithStagingRoot(e.cfg.StagingDir),
		candidate.WithLocalCache(e.cfg.LocalCache),
		candidate.WithHTTPClient(e.client),
	}

	if e.open != nil {
		opts = append(opts, candidate.WithOpener(e.open))
	}

	return candidate.NewBuilder(opts...)
}

// Applier returns the applier.
func (e *Environment) Applier() *applier.Applier {
	return e.applier
}

// Guard takes the installation lock and settles any interrupted promotion
// or metadata write.
// The returned function releases the lock.
func (e *Environment) Guard(ctx context.Context, installDir string) (func(), error) {
	l, err := lock.Acquire(ctx, installDir, e.cfg.LockTimeout)
	if err != nil {
		return nil, err
	}

	release := func() {
		if releaseErr := l.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Failed to release installation lock", "dir", installDir, "error", releaseErr)
		}
	}

	if _, err = e.Recover(ctx, installDir); err != nil {
		release()

		return nil, err
	}

	return release, nil
}

// Recover settles an interrupted promotion of installDir and then any
// interrupted metadata write. It reports whether anything was restored. The
// caller must hold the installation lock.
func (e *Environment) Recover(ctx context.Context, installDir string) (bool, error) {
	restored, err := e.applier.Recover(ctx, installDir)
	if err != nil {
		return false, err
	}

	repaired, err := metadata.NewStore(installDir).Repair(ctx)
	if err != nil {
		return restored, err
	}

	return restored || len(repaired) > 0, nil
}

// Load returns the recorded state of installDir after settling any
// interrupted promotion. It does not keep the lock.
func (e *Environment) Load(ctx context.Context, installDir string) (*installation.InstallationMetadata, error) {
	release, err := e.Guard(ctx, installDir)
	if err != nil {
		return nil, err
	}

	defer release()

	return metadata.NewStore(installDir).Load(ctx)
}
