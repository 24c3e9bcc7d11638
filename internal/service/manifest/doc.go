// Package manifest turns a provisioning configuration and an ordered channel
// list into a resolved installation manifest.
//
// Each channel publishes a channel manifest: a list of stream rules pinning
// an exact version, a Maven range, a regular expression or a semver
// constraint. For every stream the first channel defining a rule wins, and
// unpinned rules are resolved against that channel's repositories.
package manifest
