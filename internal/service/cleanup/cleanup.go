package cleanup

import (
	"context"

	"github.com/oshokin/channelup/internal/lock"
	"github.com/oshokin/channelup/internal/logger"
	"github.com/oshokin/channelup/internal/service/operation"
	"github.com/oshokin/channelup/internal/staging"
)

// Options are inputs of Run.
type Options struct {
	Env *operation.Environment
	// InstallDir, when set, is also settled after an interrupted promotion.
	InstallDir string
}

// Result lists what was cleaned.
type Result struct {
	// Removed are the swept staging directories.
	Removed []string
	// Restored is set when the installation or one of its metadata documents
	// was restored after an interrupted write.
	Restored bool
}

// Run sweeps the staging root and settles the installation.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "clean")

	cfg := opts.Env.Config()
	result := new(Result)

	if opts.InstallDir != "" {
		restored, err := settle(ctx, opts)
		if err != nil {
			return nil, err
		}

		result.Restored = restored
	}

	removed, err := staging.Sweep(ctx, cfg.StagingDir, cfg.StaleStagingAge)
	if err != nil {
		return nil, err
	}

	result.Removed = removed

	logger.InfoKV(ctx, "Staging swept", "removed", len(removed))

	return result, nil
}

func settle(ctx context.Context, opts *Options) (bool, error) {
	l, err := lock.Acquire(ctx, opts.InstallDir, opts.Env.Config().LockTimeout)
	if err != nil {
		return false, err
	}

	defer func() {
		if releaseErr := l.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Failed to release installation lock", "dir", opts.InstallDir, "error", releaseErr)
		}
	}()

	return opts.Env.Recover(ctx, opts.InstallDir)
}
