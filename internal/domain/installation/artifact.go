package installation

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultExtension is the packaging assumed when an artifact reference omits it.
const DefaultExtension = "jar"

// errInvalidCoordinate is returned when a textual coordinate cannot be parsed.
var errInvalidCoordinate = errors.New("invalid artifact coordinate")

// ArtifactRef identifies an artifact. An empty Version makes it a resolution
// request instead of a concrete identity.
type ArtifactRef struct {
	GroupID    string `yaml:"groupId"`
	ArtifactID string `yaml:"artifactId"`
	Classifier string `yaml:"classifier,omitempty"`
	Extension  string `yaml:"extension,omitempty"`
	Version    string `yaml:"version,omitempty"`
}

// ParseArtifactRef parses "group:artifact[:version]".
func ParseArtifactRef(coordinate string) (ArtifactRef, error) {
	parts := strings.Split(strings.TrimSpace(coordinate), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return ArtifactRef{}, fmt.Errorf("%w: %q", errInvalidCoordinate, coordinate)
	}

	for _, part := range parts {
		if part == "" {
			return ArtifactRef{}, fmt.Errorf("%w: %q", errInvalidCoordinate, coordinate)
		}
	}

	ref := ArtifactRef{
		GroupID:    parts[0],
		ArtifactID: parts[1],
	}

	if len(parts) == 3 {
		ref.Version = parts[2]
	}

	return ref, nil
}

// Key returns the stream key "groupId:artifactId".
func (r ArtifactRef) Key() string {
	return StreamKey(r.GroupID, r.ArtifactID)
}

// IsResolved reports whether the reference carries a concrete version.
func (r ArtifactRef) IsResolved() bool {
	return r.Version != ""
}

// Ext returns the extension or the default one.
func (r ArtifactRef) Ext() string {
	if r.Extension == "" {
		return DefaultExtension
	}

	return r.Extension
}

// WithVersion returns a copy pinned to the given version.
func (r ArtifactRef) WithVersion(version string) ArtifactRef {
	r.Version = version

	return r
}

// FileName returns the Maven file name "<artifactId>-<version>[-<classifier>].<ext>".
func (r ArtifactRef) FileName() string {
	name := r.ArtifactID + "-" + r.Version
	if r.Classifier != "" {
		name += "-" + r.Classifier
	}

	return name + "." + r.Ext()
}

// String renders the reference as a coordinate.
func (r ArtifactRef) String() string {
	var b strings.Builder

	b.WriteString(r.Key())

	if r.Classifier != "" || r.Extension != "" {
		b.WriteString(":" + r.Classifier + ":" + r.Extension)
	}

	if r.Version != "" {
		b.WriteString(":" + r.Version)
	}

	return b.String()
}

// StreamKey builds the key identifying a stream within a manifest.
func StreamKey(groupID, artifactID string) string {
	return groupID + ":" + artifactID
}
