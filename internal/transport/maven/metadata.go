package maven

import (
	_ "crypto/sha256" // Registers the digest algorithm.
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/opencontainers/go-digest"
)

type mavenMetadata struct {
	XMLName    xml.Name `xml:"metadata"`
	GroupID    string   `xml:"groupId"`
	ArtifactID string   `xml:"artifactId"`
	Versioning struct {
		Latest   string   `xml:"latest"`
		Release  string   `xml:"release"`
		Versions []string `xml:"versions>version"`
	} `xml:"versioning"`
}

func parseMetadata(r io.Reader) ([]string, error) {
	var md mavenMetadata
	if err := xml.NewDecoder(r).Decode(&md); err != nil {
		return nil, fmt.Errorf("decode %s: %w", metadataFile, err)
	}

	versions := make([]string, 0, len(md.Versioning.Versions))

	for _, v := range md.Versioning.Versions {
		if v = strings.TrimSpace(v); v != "" {
			versions = append(versions, v)
		}
	}

	return versions, nil
}

// parseChecksum reads a sha256 sidecar: a hex digest optionally followed by a file name.
func parseChecksum(r io.Reader) (digest.Digest, error) {
	raw, err := io.ReadAll(io.LimitReader(r, 1024))
	if err != nil {
		return "", fmt.Errorf("read checksum: %w", err)
	}

	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return "", fmt.Errorf("empty checksum: %w", digest.ErrDigestInvalidFormat)
	}

	d := digest.NewDigestFromEncoded(digest.SHA256, strings.ToLower(fields[0]))
	if err = d.Validate(); err != nil {
		return "", fmt.Errorf("invalid checksum: %w", err)
	}

	return d, nil
}

// copyVerified copies src into dst, checking the content against expected when set.
func copyVerified(dst io.Writer, src io.Reader, expected digest.Digest) error {
	if expected == "" {
		_, err := io.Copy(dst, src)

		return err
	}

	verifier := expected.Verifier()

	if _, err := io.Copy(io.MultiWriter(dst, verifier), src); err != nil {
		return err
	}

	if !verifier.Verified() {
		return fmt.Errorf("%w: expected %s", errChecksumMismatch, expected)
	}

	return nil
}
