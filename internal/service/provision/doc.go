// Package provision creates installations.
//
// Install provisions a new installation from a feature pack coordinate or a
// provisioning definition file, Restore recreates an installation from an
// exported metadata bundle with the recorded versions, and Export writes
// such a bundle.
package provision
