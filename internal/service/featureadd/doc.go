// Package featureadd adds feature packs to existing installations.
//
// The requested layers and model are checked against the layers the feature
// pack advertises, the next provisioning configuration is derived from the
// recorded one and a candidate is built with the recorded stream versions
// kept. Only files of the added feature pack change in the installation.
package featureadd
