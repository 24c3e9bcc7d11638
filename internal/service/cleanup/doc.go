// Package cleanup removes leftovers of interrupted runs: staging directories
// of processes that are gone and half-finished promotions of an installation.
package cleanup
