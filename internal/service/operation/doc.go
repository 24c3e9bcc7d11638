// Package operation wires the collaborators every installation command uses
// from the tool configuration, and guards installations while they change.
package operation
