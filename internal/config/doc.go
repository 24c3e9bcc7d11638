// Package config defines the tool settings and provides helpers to load,
// validate and save them in YAML format.
//
// Settings are process-wide knobs (staging location, artifact cache, lock
// timeout, log level). Installation state lives in the installation's own
// metadata directory, never here.
package config
