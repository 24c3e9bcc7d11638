package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/logger"
	"github.com/oshokin/channelup/internal/repository/metadata"
	"github.com/oshokin/channelup/internal/service/applier"
	"github.com/oshokin/channelup/internal/service/candidate"
	"github.com/oshokin/channelup/internal/service/operation"
)

var (
	errNoDefinition   = errors.New("either a feature pack or a provisioning definition is required")
	errTwoDefinitions = errors.New("a feature pack and a provisioning definition are mutually exclusive")
	errNoBundle       = errors.New("bundle path is required")
	errNoOutput       = errors.New("output path is required")
)

// InstallOptions are inputs of Install.
type InstallOptions struct {
	Env *operation.Environment
	// InstallDir must not exist yet.
	InstallDir string
	// FeaturePack is "groupId:artifactId[:version]".
	FeaturePack string
	// IncludedPackages are optional packages of FeaturePack to install.
	IncludedPackages []string
	// Definition is a provisioning configuration file used instead of FeaturePack.
	Definition string
	// Channels resolve the versions and are recorded in the installation.
	Channels []installation.Channel
}

// Install provisions a new installation.
func Install(ctx context.Context, opts *InstallOptions) (*applier.Result, error) {
	ctx = logger.WithName(ctx, "install")

	var (
		cfg *installation.ProvisioningConfig
		err error
	)

	switch {
	case opts.FeaturePack != "" && opts.Definition != "":
		return nil, errTwoDefinitions
	case opts.FeaturePack != "":
		cfg, err = FeaturePackDefinition(opts.FeaturePack, opts.IncludedPackages)
	case opts.Definition != "":
		cfg, err = LoadDefinition(opts.Definition)
	default:
		return nil, errNoDefinition
	}

	if err != nil {
		return nil, err
	}

	return create(ctx, opts.Env, opts.InstallDir, installation.OperationInstall, candidate.Request{
		Provisioning: cfg,
		Channels:     opts.Channels,
	})
}

// RestoreOptions are inputs of Restore.
type RestoreOptions struct {
	Env *operation.Environment
	// InstallDir must not exist yet.
	InstallDir string
	// Bundle is a file written by Export.
	Bundle string
	// Repositories, when set, replace the recorded channel repositories for this run.
	Repositories []installation.Repository
}

// Restore recreates an installation from a bundle. Recorded stream versions
// are installed as they are.
func Restore(ctx context.Context, opts *RestoreOptions) (*applier.Result, error) {
	ctx = logger.WithName(ctx, "restore")

	if opts.Bundle == "" {
		return nil, errNoBundle
	}

	md, err := metadata.Import(ctx, opts.Bundle)
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Restoring installation", "bundle", opts.Bundle, "streams", md.Manifest.Len())

	return create(ctx, opts.Env, opts.InstallDir, installation.OperationRestore, candidate.Request{
		Provisioning: md.Provisioning,
		Channels:     md.Channels,
		Repositories: opts.Repositories,
		Frozen:       md.Manifest,
	})
}

func create(
	ctx context.Context,
	env *operation.Environment,
	installDir string,
	op installation.Operation,
	req candidate.Request,
) (*applier.Result, error) {
	installDir, err := filepath.Abs(installDir)
	if err != nil {
		return nil, fmt.Errorf("resolve installation directory: %w", err)
	}

	if err = ensureAbsent(installDir); err != nil {
		return nil, err
	}

	release, err := env.Guard(ctx, installDir)
	if err != nil {
		return nil, err
	}

	defer release()

	if err = ensureAbsent(installDir); err != nil {
		return nil, err
	}

	req.InstallDir = installDir
	req.Operation = op

	c, err := env.Candidates().Prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	defer func() {
		if discardErr := c.Discard(); discardErr != nil {
			logger.WarnKV(ctx, "Failed to discard candidate", "dir", c.Dir, "error", discardErr)
		}
	}()

	return env.Applier().Apply(ctx, c.Dir, installDir, op)
}

func ensureAbsent(dir string) error {
	_, err := os.Stat(dir)

	switch {
	case err == nil:
		return &installation.InstallationExistsError{Dir: dir}
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("inspect %s: %w", dir, err)
	}
}

// ExportOptions are inputs of Export.
type ExportOptions struct {
	Env        *operation.Environment
	InstallDir string
	// Output is the bundle file to write.
	Output string
}

// Export writes the restorable metadata of an installation to a bundle.
func Export(ctx context.Context, opts *ExportOptions) error {
	ctx = logger.WithName(ctx, "export")

	if opts.Output == "" {
		return errNoOutput
	}

	release, err := opts.Env.Guard(ctx, opts.InstallDir)
	if err != nil {
		return err
	}

	defer release()

	f, err := os.Create(filepath.Clean(opts.Output))
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}

	if err = metadata.NewStore(opts.InstallDir).Export(ctx, f); err != nil {
		_ = f.Close()
		_ = os.Remove(opts.Output)

		return err
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("close bundle: %w", err)
	}

	logger.InfoKV(ctx, "Installation exported", "bundle", opts.Output)

	return nil
}
