package metadata

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nlepage/go-tarfs"

	"github.com/oshokin/channelup/internal/domain/installation"
)

// Export writes the restorable subset of the recorded state as a tar.gz bundle.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	md, err := s.Load(ctx)
	if err != nil {
		return err
	}

	return WriteBundle(w, md)
}

// WriteBundle writes md as a tar.gz bundle.
func WriteBundle(w io.Writer, md *installation.InstallationMetadata) error {
	docs, err := encode(md, false)
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)
	now := time.Now().UTC()

	for _, doc := range docs {
		header := &tar.Header{
			Name:     doc.name,
			Mode:     DefaultFileMode,
			Size:     int64(len(doc.data)),
			ModTime:  now,
			Typeflag: tar.TypeReg,
		}

		if err = tw.WriteHeader(header); err != nil {
			return fmt.Errorf("write bundle header %s: %w", doc.name, err)
		}

		if _, err = tw.Write(doc.data); err != nil {
			return fmt.Errorf("write bundle entry %s: %w", doc.name, err)
		}
	}

	if err = tw.Close(); err != nil {
		return fmt.Errorf("close bundle: %w", err)
	}

	return gz.Close()
}

// Import reads a bundle produced by Export.
func Import(_ context.Context, path string) (*installation.InstallationMetadata, error) {
	fail := func(err error) (*installation.InstallationMetadata, error) {
		return nil, &installation.MetadataError{Path: path, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return fail(err)
	}

	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fail(fmt.Errorf("decompress bundle: %w", err))
	}

	defer gz.Close()

	fsys, err := tarfs.New(gz)
	if err != nil {
		return fail(fmt.Errorf("read bundle: %w", err))
	}

	return loadFS(fsys, path, false)
}
