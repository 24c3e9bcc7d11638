// Package installation contains the core domain types of a provisioned
// installation: artifact references and manifests, channels, the
// provisioning configuration, recorded file inventory and history, and the
// typed errors every operation reports.
//
// Values here are plain data. Functions that derive a new provisioning
// configuration or a change set are pure and never touch the filesystem.
package installation
