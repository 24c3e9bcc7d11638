// Package maven reads artifacts from Maven-layout repositories.
//
// Two repository kinds are supported: local directories (plain paths or
// file:// URLs) and remote http(s) repositories. Versions are listed from
// maven-metadata.xml, falling back to the version directories of a local
// repository. When a "<file>.sha256" sidecar exists the downloaded content
// is verified against it.
//
// Session fetches artifacts into a cache directory, trying repositories in
// priority order.
package maven
