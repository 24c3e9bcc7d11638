// Package metadata persists the recorded state of an installation.
//
// The state lives in the hidden ".installation" directory of the
// installation root as one YAML document per concern: the resolved
// manifest, the ordered channels, the provisioning configuration, the
// repositories, the file inventory and the history. Candidates carry an
// additional candidate.yaml marker. Every document is replaced atomically
// with a checksum-verified temporary file.
//
// Export and Import move the restorable subset (manifest, channels,
// provisioning and repositories) through a single tar.gz bundle.
package metadata
