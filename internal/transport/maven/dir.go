package maven

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"github.com/oshokin/channelup/internal/domain/installation"
)

var errChecksumMismatch = errors.New("checksum mismatch")

// dirRepository is a Maven layout on the local filesystem.
type dirRepository struct {
	id   string
	url  string
	root string
}

func (r *dirRepository) ID() string  { return r.id }
func (r *dirRepository) URL() string { return r.url }

func (r *dirRepository) Versions(_ context.Context, ref installation.ArtifactRef) ([]string, error) {
	streamDir := filepath.Join(r.root, filepath.FromSlash(streamPath(ref)))

	f, err := os.Open(filepath.Join(streamDir, metadataFile))
	if err == nil {
		defer f.Close()

		return parseMetadata(f)
	}

	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open metadata: %w", err)
	}

	entries, err := os.ReadDir(streamDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}

	var versions []string

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		candidate := ref.WithVersion(entry.Name())
		if _, err = os.Stat(filepath.Join(r.root, filepath.FromSlash(ArtifactPath(candidate)))); err == nil {
			versions = append(versions, entry.Name())
		}
	}

	if len(versions) == 0 {
		return nil, ErrNotFound
	}

	return versions, nil
}

func (r *dirRepository) Download(_ context.Context, ref installation.ArtifactRef, w io.Writer) error {
	file := filepath.Join(r.root, filepath.FromSlash(ArtifactPath(ref)))

	src, err := os.Open(file)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}

	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}

	defer src.Close()

	var expected digest.Digest

	sum, err := os.Open(file + checksumSuffix)
	if err == nil {
		expected, err = parseChecksum(sum)
		sum.Close()

		if err != nil {
			return err
		}
	}

	return copyVerified(w, src, expected)
}
