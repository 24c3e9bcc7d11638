package resolver

import (
	"regexp"

	"github.com/Masterminds/semver/v3"

	"github.com/oshokin/channelup/internal/mavenversion"
)

// Filter accepts or rejects a candidate version.
type Filter func(version string) bool

// Any accepts every version.
func Any() Filter {
	return func(string) bool { return true }
}

// AtLeast accepts versions at or above anchor. An empty anchor accepts everything.
func AtLeast(anchor string) Filter {
	return InRange(mavenversion.AtLeast(anchor))
}

// InRange accepts versions inside a Maven range.
func InRange(r mavenversion.Range) Filter {
	return r.Contains
}

// Matching accepts versions fully matching the pattern.
func Matching(pattern *regexp.Regexp) Filter {
	return func(version string) bool {
		loc := pattern.FindStringIndex(version)

		return loc != nil && loc[0] == 0 && loc[1] == len(version)
	}
}

// Satisfying accepts versions that parse as semver and meet the constraints.
func Satisfying(constraints *semver.Constraints) Filter {
	return func(version string) bool {
		v, err := semver.NewVersion(version)
		if err != nil {
			return false
		}

		return constraints.Check(v)
	}
}

// All accepts versions every filter accepts. Nil filters are ignored.
func All(filters ...Filter) Filter {
	return func(version string) bool {
		for _, f := range filters {
			if f != nil && !f(version) {
				return false
			}
		}

		return true
	}
}
