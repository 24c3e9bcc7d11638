package installation

import (
	"sort"
	"time"
)

// Operation names the kind of change a candidate was prepared for.
type Operation string

const (
	// OperationInstall provisions a new installation.
	OperationInstall Operation = "install"
	// OperationUpdate moves an installation to the latest channel versions.
	OperationUpdate Operation = "update"
	// OperationFeatureAdd adds a feature pack to an installation.
	OperationFeatureAdd Operation = "feature-add"
	// OperationRestore recreates an installation from an exported bundle.
	OperationRestore Operation = "restore"
)

// Creates reports whether the operation produces a new installation
// rather than replacing an existing one.
func (o Operation) Creates() bool {
	return o == OperationInstall || o == OperationRestore
}

// Actor identifies who performed an action.
type Actor struct {
	// Hostname is the machine name where the action was performed.
	Hostname string `yaml:"hostname"`
	// Username is the system user who triggered the action.
	Username string `yaml:"username"`
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// FileRecord describes one file of the installation tree.
type FileRecord struct {
	// Path is slash-separated and relative to the installation root.
	Path string `yaml:"path"`
	// Digest is the content digest, e.g. "sha256:...".
	Digest string `yaml:"digest"`
	// Producer is the feature pack that created the file.
	Producer string `yaml:"producer,omitempty"`
}

// FileInventory lists every tracked file, sorted by path.
type FileInventory []FileRecord

// Sort orders the inventory by path.
func (f FileInventory) Sort() {
	sort.Slice(f, func(i, j int) bool { return f[i].Path < f[j].Path })
}

// Index maps paths to records.
func (f FileInventory) Index() map[string]FileRecord {
	index := make(map[string]FileRecord, len(f))
	for _, rec := range f {
		index[rec.Path] = rec
	}

	return index
}

// HistoryEntry records one applied operation.
type HistoryEntry struct {
	Timestamp time.Time `yaml:"timestamp"`
	Operation Operation `yaml:"operation"`
	Actor     *Actor    `yaml:"actor,omitempty"`
	Summary   string    `yaml:"summary,omitempty"`
}

// InstallationMetadata is the recorded state of an installation.
type InstallationMetadata struct {
	Manifest     *Manifest
	Channels     []Channel
	Provisioning *ProvisioningConfig
	Repositories []Repository
	Files        FileInventory
	History      []HistoryEntry
}

// Clone returns a deep copy. The manifest is shared since it is immutable.
func (m *InstallationMetadata) Clone() *InstallationMetadata {
	if m == nil {
		return nil
	}

	cloned := &InstallationMetadata{
		Manifest:     m.Manifest,
		Channels:     CloneChannels(m.Channels),
		Provisioning: m.Provisioning.Clone(),
		Repositories: append([]Repository(nil), m.Repositories...),
		Files:        append(FileInventory(nil), m.Files...),
		History:      make([]HistoryEntry, len(m.History)),
	}

	for i, h := range m.History {
		h.Actor = h.Actor.Clone()
		cloned.History[i] = h
	}

	return cloned
}

// CandidateMarker makes a staged candidate self-describing.
type CandidateMarker struct {
	// ToolVersion is the version of the tool that prepared the candidate.
	ToolVersion string `yaml:"toolVersion"`
	// Operation is the operation the candidate was prepared for.
	Operation Operation `yaml:"operation"`
	// SourceInstallation is the absolute path of the targeted installation.
	SourceInstallation string `yaml:"sourceInstallation"`
	// BaseDigest is the digest of the live metadata the candidate was built
	// against. Empty for operations creating a new installation.
	BaseDigest string `yaml:"baseDigest,omitempty"`
	// Created is when the candidate was prepared.
	Created time.Time `yaml:"created"`
	// Actor prepared the candidate.
	Actor *Actor `yaml:"actor,omitempty"`
	// Consumed is set once the candidate has been applied.
	Consumed bool `yaml:"consumed"`
}
