// Package channel manages the channel list recorded in an installation.
package channel
