package featureadd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/logger"
	"github.com/oshokin/channelup/internal/repository/metadata"
	"github.com/oshokin/channelup/internal/service/applier"
	"github.com/oshokin/channelup/internal/service/candidate"
	"github.com/oshokin/channelup/internal/service/manifest"
	"github.com/oshokin/channelup/internal/service/operation"
)

var errInvalidCoordinate = errors.New("feature pack must be given as <groupId>:<artifactId>")

// Options are inputs of Run.
type Options struct {
	Env        *operation.Environment
	InstallDir string
	// FeaturePack is "groupId:artifactId".
	FeaturePack string
	// Layers are included into the selected config model.
	Layers []string
	// Model selects the layer model when the feature pack has several.
	Model string
	// ConfigName defaults to "<model>.xml".
	ConfigName string
	// Repositories, when set, replace the channel repositories for this run.
	Repositories []installation.Repository
	// DryRun computes the next configuration without changing anything.
	DryRun bool
}

// Result describes a feature pack addition.
type Result struct {
	// Previous is the recorded configuration before the addition.
	Previous *installation.ProvisioningConfig
	// Next is the configuration after the addition.
	Next *installation.ProvisioningConfig
	// Applied is nil for dry runs.
	Applied *applier.Result
}

// Run adds the feature pack to the installation.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "feature-add")
	ctx = logger.WithKV(ctx, "feature_pack", opts.FeaturePack)

	ref, err := parseCoordinate(opts.FeaturePack)
	if err != nil {
		return nil, err
	}

	release, err := opts.Env.Guard(ctx, opts.InstallDir)
	if err != nil {
		return nil, err
	}

	defer release()

	live, err := metadata.NewStore(opts.InstallDir).Load(ctx)
	if err != nil {
		return nil, err
	}

	next, err := nextConfig(ctx, opts, live, ref)
	if err != nil {
		return nil, err
	}

	result := &Result{Previous: live.Provisioning, Next: next}
	if opts.DryRun {
		return result, nil
	}

	c, err := opts.Env.Candidates().Prepare(ctx, candidate.Request{
		InstallDir:   opts.InstallDir,
		Operation:    installation.OperationFeatureAdd,
		Provisioning: next,
		Channels:     live.Channels,
		Repositories: opts.Repositories,
		Frozen:       live.Manifest,
	})
	if err != nil {
		return nil, err
	}

	defer func() {
		if discardErr := c.Discard(); discardErr != nil {
			logger.WarnKV(ctx, "Failed to discard candidate", "dir", c.Dir, "error", discardErr)
		}
	}()

	if result.Applied, err = opts.Env.Applier().Apply(ctx, c.Dir, opts.InstallDir, installation.OperationFeatureAdd); err != nil {
		return nil, err
	}

	return result, nil
}

// nextConfig validates the layer selection against the feature pack and
// derives the next configuration.
func nextConfig(
	ctx context.Context,
	opts *Options,
	live *installation.InstallationMetadata,
	ref installation.ArtifactRef,
) (*installation.ProvisioningConfig, error) {
	w, err := opts.Env.Candidates().Open(ctx, live.Channels, opts.Repositories)
	if err != nil {
		return nil, err
	}

	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to release artifact cache", "error", closeErr)
		}
	}()

	single := &installation.ProvisioningConfig{
		FeaturePacks: []installation.FeaturePackConfig{{Producer: ref.Key()}},
	}

	m, err := w.Manifests.Build(ctx, w.Channels, single, w.Engine, manifest.WithFrozen(live.Manifest))
	if err != nil {
		return nil, err
	}

	layers, err := w.Engine.Layers(ctx, ref.Key(), m)
	if err != nil {
		return nil, err
	}

	model, err := installation.SelectModel(opts.Model, layers)
	if err != nil {
		return nil, err
	}

	if err = installation.VerifyLayers(opts.Layers, model, layers); err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Layer selection verified", "model", model, "layers", strings.Join(opts.Layers, ","))

	return installation.AddFeaturePack(live.Provisioning, installation.FeaturePackRequest{
		Producer:   ref.Key(),
		Layers:     opts.Layers,
		Model:      model,
		ConfigName: opts.ConfigName,
	})
}

// AvailableOptions are inputs of IsAvailable.
type AvailableOptions struct {
	Env          *operation.Environment
	InstallDir   string
	FeaturePack  string
	Repositories []installation.Repository
}

// IsAvailable reports whether the channels of the installation provide the
// feature pack. Transport failures are errors, not a negative answer.
func IsAvailable(ctx context.Context, opts *AvailableOptions) (bool, error) {
	ctx = logger.WithName(ctx, "feature-available")

	ref, err := parseCoordinate(opts.FeaturePack)
	if err != nil {
		return false, err
	}

	live, err := opts.Env.Load(ctx, opts.InstallDir)
	if err != nil {
		return false, err
	}

	w, err := opts.Env.Candidates().Open(ctx, live.Channels, opts.Repositories)
	if err != nil {
		return false, err
	}

	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to release artifact cache", "error", closeErr)
		}
	}()

	stream, err := w.Manifests.Resolve(ctx, w.Channels, ref)

	var notFound *installation.NoStreamFoundError

	switch {
	case errors.As(err, &notFound):
		return false, nil
	case err != nil:
		return false, err
	}

	logger.DebugKV(ctx, "Feature pack available", "version", stream.Version)

	return true, nil
}

func parseCoordinate(coordinate string) (installation.ArtifactRef, error) {
	ref, err := installation.ParseArtifactRef(coordinate)
	if err != nil || ref.Version != "" {
		return installation.ArtifactRef{}, fmt.Errorf("%w: %q", errInvalidCoordinate, coordinate)
	}

	ref.Extension = installation.FeaturePackExtension

	return ref, nil
}
