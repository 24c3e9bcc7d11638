package update

import (
	"context"
	"errors"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/logger"
	"github.com/oshokin/channelup/internal/repository/metadata"
	"github.com/oshokin/channelup/internal/service/applier"
	"github.com/oshokin/channelup/internal/service/candidate"
	"github.com/oshokin/channelup/internal/service/operation"
)

var errNoCandidateDir = errors.New("candidate directory is required")

// Options are inputs of the update operations.
type Options struct {
	Env        *operation.Environment
	InstallDir string
	// Repositories, when set, replace the channel repositories for this run.
	Repositories []installation.Repository
	// DryRun reports the changes without applying them. Perform only.
	DryRun bool
	// CandidateDir is the candidate location. Prepare and Apply only.
	CandidateDir string
}

// Result describes an update.
type Result struct {
	// Changes between the recorded state and the candidate.
	Changes installation.ChangeSet
	// Applied is set once a candidate was promoted.
	Applied *applier.Result
	// CandidateDir is set by Prepare when a candidate was kept.
	CandidateDir string
}

// List reports the available updates without changing anything.
func List(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "update-list")

	release, err := opts.Env.Guard(ctx, opts.InstallDir)
	if err != nil {
		return nil, err
	}

	defer release()

	c, changes, err := prepare(ctx, opts, "")
	if err != nil {
		return nil, err
	}

	discard(ctx, c)

	return &Result{Changes: changes}, nil
}

// Perform updates the installation. No changes is reported through an empty
// change set, not an error.
func Perform(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "update")

	release, err := opts.Env.Guard(ctx, opts.InstallDir)
	if err != nil {
		return nil, err
	}

	defer release()

	c, changes, err := prepare(ctx, opts, "")
	if err != nil {
		return nil, err
	}

	defer discard(ctx, c)

	result := &Result{Changes: changes}

	if changes.IsEmpty() {
		logger.Info(ctx, "No updates found")

		return result, nil
	}

	if opts.DryRun {
		return result, nil
	}

	if result.Applied, err = opts.Env.Applier().Apply(ctx, c.Dir, opts.InstallDir, installation.OperationUpdate); err != nil {
		return nil, err
	}

	return result, nil
}

// Prepare writes an update candidate into CandidateDir. Nothing is kept when
// there are no updates.
func Prepare(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "update-prepare")

	if opts.CandidateDir == "" {
		return nil, errNoCandidateDir
	}

	release, err := opts.Env.Guard(ctx, opts.InstallDir)
	if err != nil {
		return nil, err
	}

	defer release()

	c, changes, err := prepare(ctx, opts, opts.CandidateDir)
	if err != nil {
		return nil, err
	}

	if changes.IsEmpty() {
		logger.Info(ctx, "No updates found")
		discard(ctx, c)

		return &Result{Changes: changes}, nil
	}

	return &Result{Changes: changes, CandidateDir: c.Dir}, nil
}

// Apply promotes a candidate written by Prepare.
func Apply(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "update-apply")

	if opts.CandidateDir == "" {
		return nil, errNoCandidateDir
	}

	release, err := opts.Env.Guard(ctx, opts.InstallDir)
	if err != nil {
		return nil, err
	}

	defer release()

	applied, err := opts.Env.Applier().Apply(ctx, opts.CandidateDir, opts.InstallDir, installation.OperationUpdate)
	if err != nil {
		return nil, err
	}

	return &Result{Changes: applied.Changes, Applied: applied}, nil
}

// prepare builds a full candidate from the recorded configuration and
// channels and compares it with the recorded state.
func prepare(
	ctx context.Context,
	opts *Options,
	output string,
) (*candidate.Candidate, installation.ChangeSet, error) {
	live, err := metadata.NewStore(opts.InstallDir).Load(ctx)
	if err != nil {
		return nil, installation.ChangeSet{}, err
	}

	c, err := opts.Env.Candidates().Prepare(ctx, candidate.Request{
		InstallDir:   opts.InstallDir,
		Operation:    installation.OperationUpdate,
		Provisioning: live.Provisioning,
		Channels:     live.Channels,
		Repositories: opts.Repositories,
		OutputDir:    output,
	})
	if err != nil {
		return nil, installation.ChangeSet{}, err
	}

	changes := installation.Diff(live.Manifest, c.Metadata.Manifest, live.Provisioning, c.Metadata.Provisioning)

	logger.InfoKV(ctx, "Update candidate compared",
		"added", len(changes.AddedArtifacts),
		"updated", len(changes.UpdatedArtifacts),
		"removed", len(changes.RemovedArtifacts))

	return c, changes, nil
}

func discard(ctx context.Context, c *candidate.Candidate) {
	if err := c.Discard(); err != nil {
		logger.WarnKV(ctx, "Failed to discard candidate", "dir", c.Dir, "error", err)
	}
}
