package applier

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/logger"
	"github.com/oshokin/channelup/internal/repository/metadata"
	"github.com/oshokin/channelup/internal/service/common"
	"github.com/oshokin/channelup/internal/version"

	_ "crypto/sha256"
)

// ConflictSuffix is appended to the candidate version of a file the user
// modified in the live installation.
const ConflictSuffix = ".glnew"

const (
	nextInfix = ".next-"
	oldInfix  = ".old-"
)

var errVerify = errors.New("assembled state does not match the candidate")

// Result describes an applied candidate.
type Result struct {
	// Changes is the difference between the previous and the new state.
	Changes installation.ChangeSet
	// Conflicts lists user-modified files next to which the candidate
	// version was written with ConflictSuffix.
	Conflicts []string
	// Preserved lists untracked or user-modified files carried over.
	Preserved []string
}

// Applier promotes candidates.
type Applier struct {
	sys System
	now func() time.Time
}

// Option configures an Applier.
type Option func(*Applier)

// WithSystem replaces the filesystem.
func WithSystem(sys System) Option {
	return func(a *Applier) {
		a.sys = sys
	}
}

// WithClock replaces the clock used for history entries.
func WithClock(now func() time.Time) Option {
	return func(a *Applier) {
		a.now = now
	}
}

// New creates an applier.
func New(opts ...Option) *Applier {
	a := &Applier{sys: RealSystem{}, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

type plan struct {
	candidateDir string
	targetDir    string
	op           installation.Operation
	marker       *installation.CandidateMarker
	candidate    *installation.InstallationMetadata
	live         *installation.InstallationMetadata
	changes      installation.ChangeSet
}

// Apply promotes the candidate in candidateDir to targetDir. Nothing in the
// live installation is written before validation passes, and a failed swap
// leaves the live installation as it was.
func (a *Applier) Apply(
	ctx context.Context,
	candidateDir string,
	targetDir string,
	op installation.Operation,
) (*Result, error) {
	ctx = logger.WithName(ctx, "applier")

	candidateDir, err := filepath.Abs(candidateDir)
	if err != nil {
		return nil, &installation.InvalidCandidateError{Dir: candidateDir, Reason: err.Error()}
	}

	if targetDir, err = filepath.Abs(targetDir); err != nil {
		return nil, &installation.PromotionError{Phase: "validate", Err: err}
	}

	p, err := a.validate(ctx, candidateDir, targetDir, op)
	if err != nil {
		return nil, err
	}

	result := &Result{Changes: p.changes}

	next, err := a.assemble(ctx, p, result)
	if err != nil {
		return nil, err
	}

	if err = a.swap(ctx, next, targetDir, op.Creates()); err != nil {
		return nil, err
	}

	p.marker.Consumed = true

	if err = metadata.NewStore(candidateDir).WriteMarker(ctx, p.marker); err != nil {
		logger.WarnKV(ctx, "Failed to mark candidate as consumed", "candidate", candidateDir, "error", err)
	}

	logger.InfoKV(ctx, "Candidate applied",
		"target", targetDir,
		"operation", string(op),
		"artifact_changes", p.changes.ArtifactChanges(),
		"conflicts", len(result.Conflicts))

	return result, nil
}

func (a *Applier) validate(
	ctx context.Context,
	candidateDir string,
	targetDir string,
	op installation.Operation,
) (*plan, error) {
	invalid := func(format string, args ...any) error {
		return &installation.InvalidCandidateError{Dir: candidateDir, Reason: fmt.Sprintf(format, args...)}
	}

	store := metadata.NewStore(candidateDir)

	marker, err := store.LoadMarker(ctx)

	switch {
	case errors.Is(err, metadata.ErrNotFound):
		return nil, invalid("candidate marker is missing")
	case err != nil:
		return nil, invalid("candidate marker is unreadable: %v", err)
	case marker.Consumed:
		return nil, invalid("candidate has already been applied")
	case marker.Operation != op:
		return nil, invalid("candidate was prepared for %s, not %s", marker.Operation, op)
	case !version.Compatible(marker.ToolVersion):
		return nil, invalid("candidate was prepared by incompatible version %q", marker.ToolVersion)
	case filepath.Clean(marker.SourceInstallation) != targetDir:
		return nil, invalid("candidate was prepared for %s", marker.SourceInstallation)
	}

	candidate, err := store.Load(ctx)
	if err != nil {
		return nil, invalid("candidate metadata: %v", err)
	}

	p := &plan{
		candidateDir: candidateDir,
		targetDir:    targetDir,
		op:           op,
		marker:       marker,
		candidate:    candidate,
	}

	if op.Creates() {
		_, err = a.sys.Stat(targetDir)

		switch {
		case err == nil:
			return nil, &installation.InstallationExistsError{Dir: targetDir}
		case !errors.Is(err, os.ErrNotExist):
			return nil, &installation.PromotionError{Phase: "validate", Err: err}
		}

		p.changes = installation.Diff(nil, candidate.Manifest, nil, candidate.Provisioning)

		return p, nil
	}

	if p.live, err = metadata.NewStore(targetDir).Load(ctx); err != nil {
		return nil, err
	}

	liveDigest, err := metadata.Digest(p.live)
	if err != nil {
		return nil, &installation.MetadataError{Path: targetDir, Err: err}
	}

	if liveDigest.String() != marker.BaseDigest {
		return nil, invalid("installation changed after the candidate was prepared")
	}

	p.changes = installation.Diff(p.live.Manifest, candidate.Manifest, p.live.Provisioning, candidate.Provisioning)
	if p.changes.IsEmpty() {
		return nil, &installation.NoChangesError{}
	}

	return p, nil
}

// assemble builds the next state in a sibling of the target directory and
// verifies it.
func (a *Applier) assemble(ctx context.Context, p *plan, result *Result) (string, error) {
	parent, base := filepath.Dir(p.targetDir), filepath.Base(p.targetDir)

	if err := a.sys.MkdirAll(parent, 0o755); err != nil {
		return "", &installation.PromotionError{Phase: "assemble", Err: err}
	}

	next, err := a.sys.MkdirTemp(parent, "."+base+nextInfix)
	if err != nil {
		return "", &installation.PromotionError{Phase: "assemble", Err: err}
	}

	fail := func(phase string, err error) (string, error) {
		a.discard(ctx, next)

		return "", &installation.PromotionError{Phase: phase, Err: err}
	}

	files, err := a.merge(ctx, p, next, result)
	if err != nil {
		return fail("assemble", err)
	}

	md := p.candidate.Clone()
	md.Files = files
	md.History = append(md.History, a.historyEntry(ctx, p))

	store := metadata.NewStore(next)

	if err = store.Write(ctx, md); err != nil {
		return fail("metadata", err)
	}

	reloaded, err := store.Load(ctx)
	if err != nil {
		return fail("verify", err)
	}

	if !reloaded.Manifest.Equal(md.Manifest) || len(reloaded.Files) != len(md.Files) {
		return fail("verify", errVerify)
	}

	return next, nil
}

// merge fills next with the candidate files and the live files that must
// survive, and returns the inventory of tracked files.
func (a *Applier) merge(
	ctx context.Context,
	p *plan,
	next string,
	result *Result,
) (installation.FileInventory, error) {
	var (
		candidateFiles = p.candidate.Files.Index()
		liveFiles      map[string]installation.FileRecord
		untouched      = make(map[string]bool)
		records        = make(map[string]installation.FileRecord)
		placed         = make(map[string]bool)
	)

	if p.live != nil {
		liveFiles = p.live.Files.Index()

		if p.op == installation.OperationFeatureAdd {
			affected := installation.AffectedProducers(p.live.Provisioning, p.candidate.Provisioning)

			for _, producer := range p.live.Provisioning.Producers() {
				if !slices.Contains(affected, producer) {
					untouched[producer] = true
				}
			}
		}

		err := a.sys.WalkDir(p.targetDir, func(name string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if err = ctx.Err(); err != nil {
				return err
			}

			rel, err := filepath.Rel(p.targetDir, name)
			if err != nil {
				return err
			}

			rel = filepath.ToSlash(rel)

			if entry.IsDir() {
				if rel == metadata.DirName {
					return fs.SkipDir
				}

				return nil
			}

			liveRec, tracked := liveFiles[rel]

			// Saved-aside versions from an earlier run are superseded.
			if !tracked && strings.HasSuffix(rel, ConflictSuffix) {
				return nil
			}

			src := filepath.Join(p.targetDir, filepath.FromSlash(rel))
			dst := filepath.Join(next, filepath.FromSlash(rel))

			if tracked && liveRec.Producer != "" && untouched[liveRec.Producer] {
				placed[rel] = true
				records[rel] = liveRec

				return a.sys.CopyFile(src, dst)
			}

			current := currentDigest(entry, src)
			if tracked && current == liveRec.Digest {
				return nil
			}

			placed[rel] = true
			result.Preserved = append(result.Preserved, rel)

			if err = a.sys.CopyFile(src, dst); err != nil {
				return err
			}

			candRec, ok := candidateFiles[rel]
			if !ok {
				return nil
			}

			records[rel] = candRec

			// Nothing to save aside when the candidate did not change the file.
			if candRec.Digest == current || (tracked && candRec.Digest == liveRec.Digest) {
				return nil
			}

			result.Conflicts = append(result.Conflicts, rel)

			logger.WarnKV(ctx, "Keeping modified file, candidate version saved aside",
				"path", rel, "saved_as", rel+ConflictSuffix)

			return a.sys.CopyFile(
				filepath.Join(p.candidateDir, filepath.FromSlash(rel)),
				dst+ConflictSuffix,
			)
		})
		if err != nil {
			return nil, err
		}
	}

	for _, rec := range p.candidate.Files {
		if placed[rec.Path] {
			continue
		}

		if liveRec, ok := liveFiles[rec.Path]; ok && liveRec.Producer != "" && untouched[liveRec.Producer] {
			continue
		}

		src := filepath.Join(p.candidateDir, filepath.FromSlash(rec.Path))
		if err := a.sys.CopyFile(src, filepath.Join(next, filepath.FromSlash(rec.Path))); err != nil {
			return nil, err
		}

		records[rec.Path] = rec
	}

	inventory := make(installation.FileInventory, 0, len(records))
	for _, rec := range records {
		inventory = append(inventory, rec)
	}

	inventory.Sort()

	return inventory, nil
}

// currentDigest returns the content digest of a live file, or an empty
// string for anything that is not a readable regular file.
func currentDigest(entry fs.DirEntry, path string) string {
	if !entry.Type().IsRegular() {
		return ""
	}

	f, err := os.Open(path)
	if err != nil {
		return ""
	}

	defer f.Close()

	d, err := digest.Canonical.FromReader(f)
	if err != nil {
		return ""
	}

	return d.String()
}

func (a *Applier) historyEntry(ctx context.Context, p *plan) installation.HistoryEntry {
	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Failed to detect actor", "error", err)

		actor = p.marker.Actor.Clone()
	}

	return installation.HistoryEntry{
		Timestamp: a.now().UTC().Truncate(time.Second),
		Operation: p.op,
		Actor:     actor,
		Summary:   Summarize(p.changes),
	}
}

// Summarize describes a change set in one line.
func Summarize(changes installation.ChangeSet) string {
	summary := fmt.Sprintf("%d added, %d updated, %d removed artifacts",
		len(changes.AddedArtifacts), len(changes.UpdatedArtifacts), len(changes.RemovedArtifacts))

	if len(changes.AddedFeaturePacks) > 0 {
		summary += "; added " + strings.Join(changes.AddedFeaturePacks, ", ")
	}

	if len(changes.RemovedFeaturePacks) > 0 {
		summary += "; removed " + strings.Join(changes.RemovedFeaturePacks, ", ")
	}

	return summary
}

// swap moves next into place. For existing installations the live tree is
// renamed aside first and renamed back when the second rename fails.
func (a *Applier) swap(ctx context.Context, next, target string, creates bool) error {
	if creates {
		if err := a.sys.Rename(next, target); err != nil {
			a.discard(ctx, next)

			return &installation.PromotionError{Phase: "swap", Err: err}
		}

		return nil
	}

	base := filepath.Base(target)
	suffix := strings.TrimPrefix(filepath.Base(next), "."+base+nextInfix)
	backup := filepath.Join(filepath.Dir(target), "."+base+oldInfix+suffix)

	if err := a.sys.Rename(target, backup); err != nil {
		a.discard(ctx, next)

		return &installation.PromotionError{Phase: "backup", Err: err}
	}

	if err := a.sys.Rename(next, target); err != nil {
		promotionErr := &installation.PromotionError{Phase: "swap", Err: err}

		if rollbackErr := a.sys.Rename(backup, target); rollbackErr != nil {
			promotionErr.RollbackErr = rollbackErr

			logger.ErrorKV(ctx, "Failed to restore the installation, run any command again to recover",
				"target", target, "backup", backup, "error", rollbackErr)

			return promotionErr
		}

		a.discard(ctx, next)

		return promotionErr
	}

	if err := a.sys.RemoveAll(backup); err != nil {
		logger.WarnKV(ctx, "Failed to remove previous installation", "backup", backup, "error", err)
	}

	return nil
}

func (a *Applier) discard(ctx context.Context, dir string) {
	if err := a.sys.RemoveAll(dir); err != nil {
		logger.WarnKV(ctx, "Failed to remove directory", "dir", dir, "error", err)
	}
}
