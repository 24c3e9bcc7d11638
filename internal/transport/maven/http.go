package maven

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/opencontainers/go-digest"

	"github.com/oshokin/channelup/internal/domain/installation"
)

// httpRepository is a remote Maven layout.
type httpRepository struct {
	id     string
	base   string
	client *http.Client
}

// StatusError reports an unexpected HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

func (r *httpRepository) ID() string  { return r.id }
func (r *httpRepository) URL() string { return r.base }

func (r *httpRepository) get(ctx context.Context, relative string) (io.ReadCloser, error) {
	target := r.base + "/" + relative

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()

		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()

		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	return resp.Body, nil
}

func (r *httpRepository) Versions(ctx context.Context, ref installation.ArtifactRef) ([]string, error) {
	body, err := r.get(ctx, streamPath(ref)+"/"+metadataFile)
	if err != nil {
		return nil, err
	}

	defer body.Close()

	return parseMetadata(body)
}

func (r *httpRepository) Download(ctx context.Context, ref installation.ArtifactRef, w io.Writer) error {
	relative := ArtifactPath(ref)

	var expected digest.Digest

	sum, err := r.get(ctx, relative+checksumSuffix)

	switch {
	case err == nil:
		expected, err = parseChecksum(sum)
		sum.Close()

		if err != nil {
			return err
		}
	case !errors.Is(err, ErrNotFound):
		return err
	}

	body, err := r.get(ctx, relative)
	if err != nil {
		return err
	}

	defer body.Close()

	return copyVerified(w, body, expected)
}
