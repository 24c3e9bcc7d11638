package version

import (
	"fmt"

	goversion "github.com/hashicorp/go-version"
)

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "1.0.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}

// Compatible reports whether artifacts produced by tool version producedBy can
// be consumed by the running build. Both must share major and minor version.
func Compatible(producedBy string) bool {
	return compatibleWith(Version, producedBy)
}

func compatibleWith(running, producedBy string) bool {
	current, err := goversion.NewVersion(running)
	if err != nil {
		return false
	}

	other, err := goversion.NewVersion(producedBy)
	if err != nil {
		return false
	}

	segments := current.Segments()
	if len(segments) < 2 {
		return false
	}

	// "~> X.Y.0" accepts any X.Y.Z patch release.
	constraint, err := goversion.NewConstraint(fmt.Sprintf("~> %d.%d.0", segments[0], segments[1]))
	if err != nil {
		return false
	}

	return constraint.Check(other.Core())
}
