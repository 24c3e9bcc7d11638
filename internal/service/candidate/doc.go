// Package candidate stages complete installations in isolation.
//
// A candidate is built from scratch for the requested provisioning
// configuration: the manifest is resolved from the channels, every feature
// pack is provisioned into a fresh staging directory and the resulting state
// is recorded in the candidate's own metadata together with a marker that
// binds it to the installation it was prepared for.
package candidate
