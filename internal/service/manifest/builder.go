package manifest

import (
	"context"
	"net/http"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/logger"
	"github.com/oshokin/channelup/internal/service/resolver"
	"github.com/oshokin/channelup/internal/transport/maven"
)

// Layout reports the streams a feature pack needs. References carrying the
// feature pack extension are feature packs themselves and are expanded too.
type Layout interface {
	Requirements(ctx context.Context, featurePack installation.ArtifactRef) ([]installation.ArtifactRef, error)
}

// Builder resolves manifests.
type Builder struct {
	client *http.Client
	open   maven.Opener
	loader *ChannelLoader
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithOpener replaces the repository opener.
func WithOpener(open maven.Opener) BuilderOption {
	return func(b *Builder) {
		b.open = open
	}
}

// WithHTTPClient sets the client for remote channels and repositories.
func WithHTTPClient(client *http.Client) BuilderOption {
	return func(b *Builder) {
		b.client = client
	}
}

// NewBuilder creates a manifest builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := new(Builder)
	for _, opt := range opts {
		opt(b)
	}

	b.loader = NewChannelLoader(b.client, b.open)
	b.open = b.loader.open

	return b
}

type buildOptions struct {
	name   string
	frozen *installation.Manifest
}

// BuildOption configures one Build call.
type BuildOption func(*buildOptions)

// WithName names the resulting manifest.
func WithName(name string) BuildOption {
	return func(o *buildOptions) {
		o.name = name
	}
}

// WithFrozen keeps the versions of every stream the given manifest already
// records. Only streams it lacks are resolved.
func WithFrozen(frozen *installation.Manifest) BuildOption {
	return func(o *buildOptions) {
		o.frozen = frozen
	}
}

// resolvedChannel is a loaded channel ready for lookups.
type resolvedChannel struct {
	channel  installation.Channel
	manifest *ChannelManifest
	repos    []maven.Repository
}

func (b *Builder) loadChannels(ctx context.Context, channels []installation.Channel) ([]resolvedChannel, error) {
	if err := installation.ValidateChannels(channels); err != nil {
		return nil, err
	}

	loaded := make([]resolvedChannel, 0, len(channels))

	for _, ch := range channels {
		cm, err := b.loader.Load(ctx, ch)
		if err != nil {
			return nil, err
		}

		repos, err := openRepositories(ch.Repositories, b.open)
		if err != nil {
			return nil, &installation.ChannelConfigError{Channel: ch.DisplayName(), Err: err}
		}

		loaded = append(loaded, resolvedChannel{channel: ch, manifest: cm, repos: repos})
	}

	return loaded, nil
}

// Resolve returns the version of one stream according to the channels.
// NoStreamFoundError means no channel defines the stream.
func (b *Builder) Resolve(
	ctx context.Context,
	channels []installation.Channel,
	ref installation.ArtifactRef,
) (installation.Stream, error) {
	loaded, err := b.loadChannels(ctx, channels)
	if err != nil {
		return installation.Stream{}, err
	}

	return resolveStream(ctx, loaded, ref)
}

// Build resolves every stream the configuration needs, following feature
// pack requirements reported by layout transitively.
func (b *Builder) Build(
	ctx context.Context,
	channels []installation.Channel,
	cfg *installation.ProvisioningConfig,
	layout Layout,
	opts ...BuildOption,
) (*installation.Manifest, error) {
	options := new(buildOptions)
	for _, opt := range opts {
		opt(options)
	}

	ctx = logger.WithName(ctx, "manifest")

	loaded, err := b.loadChannels(ctx, channels)
	if err != nil {
		return nil, err
	}

	var queue []installation.ArtifactRef

	for _, fp := range cfg.FeaturePacks {
		ref, err := fp.Ref()
		if err != nil {
			return nil, err
		}

		queue = append(queue, ref)
	}

	var (
		streams []installation.Stream
		seen    = make(map[string]struct{})
	)

	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]

		if _, ok := seen[ref.Key()]; ok {
			continue
		}

		seen[ref.Key()] = struct{}{}

		stream, err := b.pick(ctx, loaded, ref, options.frozen)
		if err != nil {
			return nil, err
		}

		streams = append(streams, stream)

		if ref.Extension != installation.FeaturePackExtension {
			continue
		}

		requirements, err := layout.Requirements(ctx, ref.WithVersion(stream.Version))
		if err != nil {
			return nil, err
		}

		queue = append(queue, requirements...)
	}

	logger.InfoKV(ctx, "Manifest resolved", "streams", len(streams))

	return installation.NewManifest(options.name, streams), nil
}

func (b *Builder) pick(
	ctx context.Context,
	loaded []resolvedChannel,
	ref installation.ArtifactRef,
	frozen *installation.Manifest,
) (installation.Stream, error) {
	if s, ok := frozen.Find(ref.Key()); ok {
		return s, nil
	}

	if ref.IsResolved() {
		return installation.Stream{GroupID: ref.GroupID, ArtifactID: ref.ArtifactID, Version: ref.Version}, nil
	}

	return resolveStream(ctx, loaded, ref)
}

func resolveStream(
	ctx context.Context,
	loaded []resolvedChannel,
	ref installation.ArtifactRef,
) (installation.Stream, error) {
	for _, ch := range loaded {
		rule, filter, ok := ch.manifest.Lookup(ref.Key())
		if !ok {
			continue
		}

		stream := installation.Stream{GroupID: ref.GroupID, ArtifactID: ref.ArtifactID}

		// Exact pins are not probed here; a missing artifact fails at staging.
		if rule.Version != "" {
			stream.Version = rule.Version

			return stream, nil
		}

		resolution, err := resolver.ResolveLatest(ctx, ref.WithVersion(""), ch.repos, filter)
		if err != nil {
			return installation.Stream{}, err
		}

		logger.DebugKV(ctx, "Stream resolved",
			"stream", ref.Key(), "version", resolution.Version, "channel", ch.channel.DisplayName())

		stream.Version = resolution.Version

		return stream, nil
	}

	return installation.Stream{}, &installation.NoStreamFoundError{Artifact: ref}
}
