//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/channelup/internal/repository/metadata"
)

// ErrNoInstallation means no directory up the tree carries installation metadata.
var ErrNoInstallation = errors.New("no installation found")

// FindInstallation walks up from start to the first directory holding
// installation metadata.
func FindInstallation(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}

	for {
		info, statErr := os.Stat(filepath.Join(dir, metadata.DirName))
		if statErr == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w in %s or any parent directory", ErrNoInstallation, start)
		}

		dir = parent
	}
}

// ResolveInstallDir returns explicit when set, otherwise the installation
// containing the working directory.
func ResolveInstallDir(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}

	return FindInstallation(wd)
}
