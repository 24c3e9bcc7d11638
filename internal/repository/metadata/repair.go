package metadata

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/logger"
)

// Sibling files left by an interrupted document replacement.
const (
	pendingSuffix = ".new"
	backupSuffix  = ".old"
)

var documentNames = []string{
	ManifestFile,
	ChannelsFile,
	ProvisioningFile,
	RepositoriesFile,
	FilesFile,
	HistoryFile,
	MarkerFile,
}

// Repair settles document writes interrupted by a crash. A missing document
// is taken from its pending copy when that decodes, otherwise from its
// backup. Leftover copies are removed. It returns the repaired document
// names. The caller must hold the installation lock.
func (s *Store) Repair(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.Dir()); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	var (
		repaired []string
		errs     []error
	)

	for _, name := range documentNames {
		ok, err := s.repairDocument(ctx, name)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		if ok {
			repaired = append(repaired, name)
		}
	}

	return repaired, errors.Join(errs...)
}

func (s *Store) repairDocument(ctx context.Context, name string) (bool, error) {
	var (
		path    = filepath.Join(s.Dir(), name)
		pending = filepath.Join(s.Dir(), "."+name+pendingSuffix)
		backup  = filepath.Join(s.Dir(), "."+name+backupSuffix)
	)

	fail := func(err error) error {
		return &installation.MetadataError{Path: path, Err: err}
	}

	_, err := os.Stat(path)

	switch {
	case err == nil:
		if err = removeLeftovers(pending, backup); err != nil {
			return false, fail(err)
		}

		return false, nil
	case !errors.Is(err, os.ErrNotExist):
		return false, fail(err)
	}

	source := ""

	switch {
	case decodes(pending):
		source = pending
	case exists(backup):
		source = backup
	default:
		return false, nil
	}

	if err = os.Rename(source, path); err != nil {
		return false, fail(err)
	}

	logger.WarnKV(ctx, "Repaired metadata document after an interrupted write",
		"document", path, "source", source)

	if err = removeLeftovers(pending, backup); err != nil {
		return true, fail(err)
	}

	return true, nil
}

// decodes reports whether path holds a non-empty YAML document. go-update
// verifies the checksum before moving the pending copy, so a pending copy
// that decodes is complete.
func decodes(path string) bool {
	contents, err := os.ReadFile(path)
	if err != nil || len(bytes.TrimSpace(contents)) == 0 {
		return false
	}

	var node yaml.Node

	return yaml.Unmarshal(contents, &node) == nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)

	return err == nil
}

func removeLeftovers(paths ...string) error {
	var errs []error

	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
