// Package version exposes build metadata for the project.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. Compatible decides whether metadata written by another build of
// the tool (a prepared candidate, for instance) can be consumed by this one.
package version
