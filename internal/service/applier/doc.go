// Package applier promotes staged candidates into live installations.
//
// The next state of the installation is assembled next to the live
// directory, validated, and swapped in with two renames. A failed swap is
// rolled back so readers observe either the old or the new tree. Recover
// settles swaps interrupted by a crash.
package applier
