package maven

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/logger"
)

// Session downloads concrete artifacts into a cache directory.
type Session struct {
	repos    []Repository
	cacheDir string
}

// NewSession creates a session over repositories in priority order.
func NewSession(repos []Repository, cacheDir string) *Session {
	return &Session{
		repos:    repos,
		cacheDir: cacheDir,
	}
}

// Repositories returns the session repositories in priority order.
func (s *Session) Repositories() []Repository {
	return s.repos
}

// Fetch returns the local path of the concrete artifact ref, downloading it
// from the first repository that has it. A ResolutionError lists every
// attempted repository when none could provide it.
func (s *Session) Fetch(ctx context.Context, ref installation.ArtifactRef) (string, error) {
	if !ref.IsResolved() {
		return "", fmt.Errorf("fetch %s: %w", ref.Key(), errUnresolvedRef)
	}

	target := filepath.Join(s.cacheDir, filepath.FromSlash(ArtifactPath(ref)))
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create cache directory: %w", err)
	}

	var lastErr error

	for _, repo := range s.repos {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		err := s.fetchFrom(ctx, repo, ref, target)
		if err == nil {
			logger.DebugKV(ctx, "Artifact downloaded", "artifact", ref.String(), "repository", repo.ID())

			return target, nil
		}

		if !errors.Is(err, ErrNotFound) {
			logger.WarnKV(ctx, "Repository failed to provide artifact",
				"artifact", ref.String(), "repository", repo.ID(), "error", err)

			lastErr = err
		}
	}

	return "", &installation.ResolutionError{
		Unresolved: []installation.ArtifactRef{ref},
		Attempted:  Describe(s.repos),
		Err:        lastErr,
	}
}

var errUnresolvedRef = errors.New("artifact version is not resolved")

func (s *Session) fetchFrom(ctx context.Context, repo Repository, ref installation.ArtifactRef, target string) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}

	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err = repo.Download(ctx, ref, tmp); err != nil {
		tmp.Close()

		return err
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close download file: %w", err)
	}

	if err = os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("store artifact in cache: %w", err)
	}

	return nil
}
