// Package featurepack reads feature pack archives and provisions them into
// a directory.
//
// A feature pack is a tar.gz archive holding a feature-pack.yaml descriptor
// and a content/ tree. The descriptor names the producer, the feature packs
// it depends on, the artifacts it installs, the layers each configuration
// model offers and the packages its content is grouped into.
package featurepack
