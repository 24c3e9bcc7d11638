package candidate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/logger"
	"github.com/oshokin/channelup/internal/repository/metadata"
	"github.com/oshokin/channelup/internal/service/common"
	"github.com/oshokin/channelup/internal/service/manifest"
	"github.com/oshokin/channelup/internal/staging"
	"github.com/oshokin/channelup/internal/version"
)

// ManifestName names the manifests recorded for installations.
const ManifestName = "installation"

var (
	errNoOperation        = errors.New("operation is required")
	errOutputNotEmpty     = errors.New("output directory is not empty")
	errNoProvisioning     = errors.New("provisioning configuration is required")
	errIncompleteMetadata = errors.New("installation metadata is incomplete")
)

// Request describes the candidate to prepare.
type Request struct {
	// InstallDir is the installation the candidate is prepared for.
	InstallDir string
	// Operation is the operation the candidate will be applied with.
	Operation installation.Operation
	// Provisioning is the complete configuration of the next state.
	Provisioning *installation.ProvisioningConfig
	// Channels are recorded in the candidate and used for resolution.
	Channels []installation.Channel
	// Repositories, when set, replace the channel repositories for this run.
	Repositories []installation.Repository
	// Frozen keeps the versions of streams it records.
	Frozen *installation.Manifest
	// OutputDir is an explicit, empty or missing, candidate location.
	// A staging directory is used when it is empty.
	OutputDir string
}

// Candidate is a staged installation.
type Candidate struct {
	// Dir is the candidate root.
	Dir string
	// Metadata is the recorded state of the candidate.
	Metadata *installation.InstallationMetadata
	// Marker binds the candidate to its installation.
	Marker *installation.CandidateMarker

	dir *staging.Dir
}

// Discard removes the candidate. Candidates written to an explicit output
// directory are removed too.
func (c *Candidate) Discard() error {
	if c == nil {
		return nil
	}

	if c.dir != nil {
		return c.dir.Release()
	}

	return os.RemoveAll(c.Dir)
}

// Prepare builds a complete candidate for req. The live installation is only
// read. Failures remove everything the call created.
func (b *Builder) Prepare(ctx context.Context, req Request) (*Candidate, error) {
	ctx = logger.WithName(ctx, "candidate")
	ctx = logger.WithKV(ctx, "operation", string(req.Operation))

	if err := checkRequest(req); err != nil {
		return nil, err
	}

	source, err := filepath.Abs(req.InstallDir)
	if err != nil {
		return nil, &installation.StagingError{Phase: "validate", Err: err}
	}

	var (
		history    []installation.HistoryEntry
		baseDigest string
	)

	if !req.Operation.Creates() {
		live, loadErr := metadata.NewStore(source).Load(ctx)
		if loadErr != nil {
			return nil, loadErr
		}

		digest, digestErr := metadata.Digest(live)
		if digestErr != nil {
			return nil, &installation.MetadataError{Path: source, Err: fmt.Errorf("%w: %w", errIncompleteMetadata, digestErr)}
		}

		baseDigest = digest.String()
		history = live.Clone().History
	}

	c, err := b.allocate(req.OutputDir)
	if err != nil {
		return nil, err
	}

	if err = b.build(ctx, c, req, source, baseDigest, history); err != nil {
		if discardErr := c.Discard(); discardErr != nil {
			logger.WarnKV(ctx, "Failed to discard candidate", "dir", c.Dir, "error", discardErr)
		}

		return nil, wrap("build", err)
	}

	logger.InfoKV(ctx, "Candidate prepared", "dir", c.Dir, "streams", c.Metadata.Manifest.Len(),
		"files", len(c.Metadata.Files))

	return c, nil
}

func checkRequest(req Request) error {
	switch {
	case req.Operation == "":
		return &installation.StagingError{Phase: "validate", Err: errNoOperation}
	case req.Provisioning == nil:
		return &installation.StagingError{Phase: "validate", Err: errNoProvisioning}
	}

	if err := req.Provisioning.Validate(); err != nil {
		return &installation.StagingError{Phase: "validate", Err: err}
	}

	return installation.ValidateChannels(req.Channels)
}

func (b *Builder) allocate(output string) (*Candidate, error) {
	if output == "" {
		dir, err := staging.Acquire(b.stagingRoot, staging.KindCandidate)
		if err != nil {
			return nil, &installation.StagingError{Phase: "allocate", Err: err}
		}

		return &Candidate{Dir: dir.Path(), dir: dir}, nil
	}

	output, err := filepath.Abs(output)
	if err != nil {
		return nil, &installation.StagingError{Phase: "allocate", Err: err}
	}

	entries, err := os.ReadDir(output)

	switch {
	case errors.Is(err, os.ErrNotExist):
		if err = os.MkdirAll(output, 0o755); err != nil {
			return nil, &installation.StagingError{Phase: "allocate", Err: err}
		}
	case err != nil:
		return nil, &installation.StagingError{Phase: "allocate", Err: err}
	case len(entries) > 0:
		return nil, &installation.StagingError{Phase: "allocate", Err: fmt.Errorf("%w: %s", errOutputNotEmpty, output)}
	}

	return &Candidate{Dir: output}, nil
}

func (b *Builder) build(
	ctx context.Context,
	c *Candidate,
	req Request,
	source string,
	baseDigest string,
	history []installation.HistoryEntry,
) (err error) {
	w, err := b.Open(ctx, req.Channels, req.Repositories)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to release artifact cache", "error", closeErr)
		}
	}()

	m, err := w.Manifests.Build(ctx, w.Channels, req.Provisioning, w.Engine,
		manifest.WithName(ManifestName), manifest.WithFrozen(req.Frozen))
	if err != nil {
		return err
	}

	files, err := w.Engine.Provision(ctx, c.Dir, req.Provisioning, m)
	if err != nil {
		return wrap("provision", err)
	}

	c.Metadata = &installation.InstallationMetadata{
		Manifest:     m,
		Channels:     installation.CloneChannels(req.Channels),
		Provisioning: req.Provisioning.Clone(),
		Repositories: installation.MergeRepositories(req.Channels),
		Files:        files,
		History:      history,
	}

	actor, actorErr := common.DetectActor()
	if actorErr != nil {
		logger.WarnKV(ctx, "Failed to detect actor", "error", actorErr)
	}

	c.Marker = &installation.CandidateMarker{
		ToolVersion:        version.Short(),
		Operation:          req.Operation,
		SourceInstallation: source,
		BaseDigest:         baseDigest,
		Created:            time.Now().UTC().Truncate(time.Second),
		Actor:              actor,
	}

	store := metadata.NewStore(c.Dir)

	if err = store.Write(ctx, c.Metadata); err != nil {
		return err
	}

	return store.WriteMarker(ctx, c.Marker)
}

// wrap keeps typed failures and reports anything else as a staging failure.
func wrap(phase string, err error) error {
	if installation.KindOf(err) != installation.KindInternal {
		return err
	}

	return &installation.StagingError{Phase: phase, Err: err}
}
