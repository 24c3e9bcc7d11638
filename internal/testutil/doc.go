// Package testutil builds on-disk fixtures for tests: Maven-layout
// repositories, feature pack archives and channel manifests.
package testutil
