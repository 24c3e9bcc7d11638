package installation

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ManifestSchemaVersion is written into every persisted manifest.
const ManifestSchemaVersion = 1

var errManifestSchema = errors.New("unsupported manifest schema version")

// Stream is a resolved artifact version inside a manifest.
type Stream struct {
	GroupID    string `yaml:"groupId"`
	ArtifactID string `yaml:"artifactId"`
	Version    string `yaml:"version"`
}

// Key returns "groupId:artifactId".
func (s Stream) Key() string {
	return StreamKey(s.GroupID, s.ArtifactID)
}

// Ref converts the stream into a concrete artifact reference.
func (s Stream) Ref() ArtifactRef {
	return ArtifactRef{
		GroupID:    s.GroupID,
		ArtifactID: s.ArtifactID,
		Version:    s.Version,
	}
}

// Manifest is an immutable ordered set of streams keyed by Stream.Key.
type Manifest struct {
	name    string
	streams []Stream
	index   map[string]int
}

// NewManifest builds a manifest. A repeated key keeps its first position and
// takes the version of the last occurrence.
func NewManifest(name string, streams []Stream) *Manifest {
	m := &Manifest{
		name:    name,
		streams: make([]Stream, 0, len(streams)),
		index:   make(map[string]int, len(streams)),
	}

	for _, s := range streams {
		if pos, ok := m.index[s.Key()]; ok {
			m.streams[pos] = s

			continue
		}

		m.index[s.Key()] = len(m.streams)
		m.streams = append(m.streams, s)
	}

	return m
}

// Name returns the manifest name.
func (m *Manifest) Name() string {
	if m == nil {
		return ""
	}

	return m.name
}

// Streams returns a copy of the streams in insertion order.
func (m *Manifest) Streams() []Stream {
	if m == nil {
		return nil
	}

	return append([]Stream(nil), m.streams...)
}

// Find looks a stream up by key.
func (m *Manifest) Find(key string) (Stream, bool) {
	if m == nil {
		return Stream{}, false
	}

	pos, ok := m.index[key]
	if !ok {
		return Stream{}, false
	}

	return m.streams[pos], true
}

// Len returns the number of streams.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}

	return len(m.streams)
}

// Equal reports whether both manifests hold the same streams in the same order.
// Names are ignored.
func (m *Manifest) Equal(other *Manifest) bool {
	if m.Len() != other.Len() {
		return false
	}

	for i := range m.Len() {
		if m.streams[i] != other.streams[i] {
			return false
		}
	}

	return true
}

type manifestDocument struct {
	SchemaVersion int      `yaml:"schemaVersion"`
	Name          string   `yaml:"name,omitempty"`
	Streams       []Stream `yaml:"streams"`
}

// MarshalYAML implements yaml.Marshaler.
func (m *Manifest) MarshalYAML() (any, error) {
	return manifestDocument{
		SchemaVersion: ManifestSchemaVersion,
		Name:          m.Name(),
		Streams:       m.Streams(),
	}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Manifest) UnmarshalYAML(node *yaml.Node) error {
	var doc manifestDocument
	if err := node.Decode(&doc); err != nil {
		return err
	}

	if doc.SchemaVersion != ManifestSchemaVersion {
		return fmt.Errorf("%w: %d", errManifestSchema, doc.SchemaVersion)
	}

	*m = *NewManifest(doc.Name, doc.Streams)

	return nil
}
