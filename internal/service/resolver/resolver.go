package resolver

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/logger"
	"github.com/oshokin/channelup/internal/mavenversion"
	"github.com/oshokin/channelup/internal/transport/maven"
)

// Resolution is the outcome of a latest-version query.
type Resolution struct {
	Version    string
	Repository installation.Repository
}

var errNoMatchingVersion = errors.New("no version satisfies the channel rule")

type slot struct {
	versions []string
	err      error
}

// ResolveLatest returns the highest version of ref's stream accepted by filter.
// A non-empty ref.Version anchors the query to "[ref.Version,)".
func ResolveLatest(
	ctx context.Context,
	ref installation.ArtifactRef,
	repos []maven.Repository,
	filter Filter,
) (Resolution, error) {
	ctx = logger.WithKV(ctx, "stream", ref.Key())

	fail := func(err error) (Resolution, error) {
		return Resolution{}, &installation.ResolutionError{
			Unresolved: []installation.ArtifactRef{ref},
			Attempted:  maven.Describe(repos),
			Err:        err,
		}
	}

	if len(repos) == 0 {
		return fail(nil)
	}

	accept := All(AtLeast(ref.Version), filter)
	slots := make([]slot, len(repos))

	group, groupCtx := errgroup.WithContext(ctx)

	for i, repo := range repos {
		group.Go(func() error {
			versions, err := repo.Versions(groupCtx, ref)
			slots[i] = slot{versions: versions, err: err}

			return nil
		})
	}

	// Workers never return errors, failures are kept per slot.
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}

	var (
		best       Resolution
		found      bool
		failures   int
		lastErr    error
		anyListing bool
	)

	for i, s := range slots {
		repo := repos[i]

		if s.err != nil {
			if !errors.Is(s.err, maven.ErrNotFound) {
				failures++
				lastErr = s.err

				logger.WarnKV(ctx, "Repository query failed, skipping", "repository", repo.ID(), "error", s.err)
			}

			continue
		}

		anyListing = true

		for _, v := range s.versions {
			if !accept(v) {
				continue
			}

			if !found || mavenversion.Compare(v, best.Version) > 0 {
				best = Resolution{
					Version:    v,
					Repository: installation.Repository{ID: repo.ID(), URL: repo.URL()},
				}
				found = true
			}
		}
	}

	switch {
	case found:
		logger.DebugKV(ctx, "Resolved latest version", "version", best.Version, "repository", best.Repository.ID)

		return best, nil
	case failures == len(repos):
		return fail(fmt.Errorf("every repository failed: %w", lastErr))
	case anyListing:
		return fail(errNoMatchingVersion)
	default:
		return fail(lastErr)
	}
}
