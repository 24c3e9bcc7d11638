package metadata

import (
	"bytes"
	"context"
	"crypto"
	_ "crypto/sha256" // Registers the digest algorithm.
	_ "crypto/sha512" // Registers the checksum function.
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/opencontainers/go-digest"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/channelup/internal/domain/installation"
)

// DirName is the metadata directory inside an installation root.
const DirName = ".installation"

// Document file names.
const (
	ManifestFile     = "manifest.yaml"
	ChannelsFile     = "channels.yaml"
	ProvisioningFile = "provisioning.yaml"
	RepositoriesFile = "repositories.yaml"
	FilesFile        = "files.yaml"
	HistoryFile      = "history.yaml"
	MarkerFile       = "candidate.yaml"
)

const (
	// DefaultFileMode is the permission of metadata documents.
	DefaultFileMode = 0o644

	// checksumFunction verifies every written document.
	checksumFunction = crypto.SHA512
)

// ErrNotFound is returned when a required document does not exist.
var ErrNotFound = errors.New("metadata not found")

type channelsDocument struct {
	SchemaVersion int                    `yaml:"schemaVersion"`
	Channels      []installation.Channel `yaml:"channels"`
}

type repositoriesDocument struct {
	Repositories []installation.Repository `yaml:"repositories"`
}

type filesDocument struct {
	Files installation.FileInventory `yaml:"files"`
}

type historyDocument struct {
	History []installation.HistoryEntry `yaml:"history"`
}

const channelsSchemaVersion = 1

// Store reads and writes the metadata of one installation root.
type Store struct {
	// root is the installation (or candidate) directory.
	root string
	// mu serializes writes from this process.
	mu sync.Mutex
}

// NewStore creates a store for the installation at root.
func NewStore(root string) *Store {
	return &Store{
		root: filepath.Clean(root),
	}
}

// Root returns the installation directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the metadata directory.
func (s *Store) Dir() string {
	return filepath.Join(s.root, DirName)
}

// Exists reports whether the installation has a manifest document.
func (s *Store) Exists() bool {
	_, err := os.Stat(filepath.Join(s.Dir(), ManifestFile))

	return err == nil
}

// Load reads the recorded state. Missing or corrupt required documents
// yield a MetadataError.
func (s *Store) Load(_ context.Context) (*installation.InstallationMetadata, error) {
	return loadFS(os.DirFS(s.Dir()), s.Dir(), true)
}

// Write replaces every document with the content of md.
func (s *Store) Write(_ context.Context, md *installation.InstallationMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := encode(md, true)
	if err != nil {
		return &installation.MetadataError{Path: s.Dir(), Err: err}
	}

	for _, doc := range docs {
		if err = s.writeDocument(doc.name, doc.data); err != nil {
			return err
		}
	}

	return nil
}

// WriteChannels replaces only the channel list.
func (s *Store) WriteChannels(_ context.Context, channels []installation.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(channelsDocument{SchemaVersion: channelsSchemaVersion, Channels: channels})
	if err != nil {
		return &installation.MetadataError{Path: filepath.Join(s.Dir(), ChannelsFile), Err: err}
	}

	return s.writeDocument(ChannelsFile, data)
}

// LoadMarker reads the candidate marker.
func (s *Store) LoadMarker(_ context.Context) (*installation.CandidateMarker, error) {
	path := filepath.Join(s.Dir(), MarkerFile)

	var marker installation.CandidateMarker
	if err := readDocument(os.DirFS(s.Dir()), MarkerFile, path, &marker); err != nil {
		return nil, err
	}

	return &marker, nil
}

// WriteMarker writes the candidate marker.
func (s *Store) WriteMarker(_ context.Context, marker *installation.CandidateMarker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(marker)
	if err != nil {
		return &installation.MetadataError{Path: filepath.Join(s.Dir(), MarkerFile), Err: err}
	}

	return s.writeDocument(MarkerFile, data)
}

// RemoveMarker deletes the candidate marker if present.
func (s *Store) RemoveMarker() error {
	err := os.Remove(filepath.Join(s.Dir(), MarkerFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return &installation.MetadataError{Path: filepath.Join(s.Dir(), MarkerFile), Err: err}
	}

	return nil
}

// writeDocument atomically replaces one document. The temporary file is
// verified against the checksum of data before it is renamed into place.
func (s *Store) writeDocument(name string, data []byte) error {
	path := filepath.Join(s.Dir(), name)

	fail := func(err error) error {
		return &installation.MetadataError{Path: path, Err: err}
	}

	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		return fail(err)
	}

	// go-update replaces an existing file, so a first write needs a placeholder.
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		var f *os.File

		if f, err = os.Create(path); err != nil {
			return fail(err)
		}

		_ = f.Close()
	}

	hasher := checksumFunction.New()
	hasher.Write(data)

	options := goupdate.Options{
		TargetPath: path,
		TargetMode: DefaultFileMode,
		Checksum:   hasher.Sum(nil),
		Hash:       checksumFunction,
	}

	if err := goupdate.Apply(bytes.NewReader(data), options); err != nil {
		if rerr := goupdate.RollbackError(err); rerr != nil {
			return fail(fmt.Errorf("%w (rollback: %v)", err, rerr))
		}

		return fail(err)
	}

	return nil
}

type document struct {
	name string
	data []byte
}

type namedValue struct {
	name  string
	value any
}

// encode serializes md. Without full only the restorable subset is produced.
func encode(md *installation.InstallationMetadata, full bool) ([]document, error) {
	if md == nil || md.Manifest == nil || md.Provisioning == nil {
		return nil, errIncomplete
	}

	values := []namedValue{
		{ManifestFile, md.Manifest},
		{ChannelsFile, channelsDocument{SchemaVersion: channelsSchemaVersion, Channels: md.Channels}},
		{ProvisioningFile, md.Provisioning},
		{RepositoriesFile, repositoriesDocument{Repositories: md.Repositories}},
	}

	if full {
		values = append(values,
			namedValue{FilesFile, filesDocument{Files: md.Files}},
			namedValue{HistoryFile, historyDocument{History: md.History}},
		)
	}

	docs := make([]document, 0, len(values))

	for _, v := range values {
		data, err := yaml.Marshal(v.value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", v.name, err)
		}

		docs = append(docs, document{name: v.name, data: data})
	}

	return docs, nil
}

var errIncomplete = errors.New("manifest and provisioning configuration are required")

// loadFS decodes the documents found in fsys. location is used in errors.
// With full, the inventory and history documents are read when present.
func loadFS(fsys fs.FS, location string, full bool) (*installation.InstallationMetadata, error) {
	md := &installation.InstallationMetadata{
		Manifest:     new(installation.Manifest),
		Provisioning: new(installation.ProvisioningConfig),
	}

	var (
		channels channelsDocument
		repos    repositoriesDocument
		files    filesDocument
		history  historyDocument
	)

	required := []namedValue{
		{ManifestFile, md.Manifest},
		{ChannelsFile, &channels},
		{ProvisioningFile, md.Provisioning},
	}

	for _, doc := range required {
		if err := readDocument(fsys, doc.name, filepath.Join(location, doc.name), doc.value); err != nil {
			return nil, err
		}
	}

	optional := []namedValue{
		{RepositoriesFile, &repos},
	}

	if full {
		optional = append(optional, namedValue{FilesFile, &files}, namedValue{HistoryFile, &history})
	}

	for _, doc := range optional {
		err := readDocument(fsys, doc.name, filepath.Join(location, doc.name), doc.value)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	if channels.SchemaVersion != channelsSchemaVersion {
		return nil, &installation.MetadataError{
			Path: filepath.Join(location, ChannelsFile),
			Err:  fmt.Errorf("%w: %d", errChannelsSchema, channels.SchemaVersion),
		}
	}

	md.Channels = channels.Channels
	md.Repositories = repos.Repositories
	md.Files = files.Files
	md.History = history.History

	return md, nil
}

var errChannelsSchema = errors.New("unsupported channels schema version")

func readDocument(fsys fs.FS, name, location string, value any) error {
	contents, err := fs.ReadFile(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return &installation.MetadataError{Path: location, Err: ErrNotFound}
	}

	if err != nil {
		return &installation.MetadataError{Path: location, Err: fmt.Errorf("read: %w", err)}
	}

	if len(bytes.TrimSpace(contents)) == 0 {
		return &installation.MetadataError{Path: location, Err: errEmptyDocument}
	}

	if err = yaml.Unmarshal(contents, value); err != nil {
		return &installation.MetadataError{Path: location, Err: fmt.Errorf("decode: %w", err)}
	}

	return nil
}

var errEmptyDocument = errors.New("document is empty")

// Digest fingerprints the recorded state. Two metadata values with the same
// documents have the same digest.
func Digest(md *installation.InstallationMetadata) (digest.Digest, error) {
	docs, err := encode(md, true)
	if err != nil {
		return "", err
	}

	digester := digest.Canonical.Digester()

	for _, doc := range docs {
		fmt.Fprintf(digester.Hash(), "%s\n%d\n", doc.name, len(doc.data))
		digester.Hash().Write(doc.data)
	}

	return digester.Digest(), nil
}
