// Package mavenversion orders version strings the way Maven repositories do
// and evaluates Maven version range expressions such as "[1.0,2.0)".
//
// Unlike semantic versioning, Maven ordering accepts any string: numeric
// segments compare numerically, well-known qualifiers (alpha, beta,
// milestone, rc, snapshot, sp) compare by maturity and trailing zero
// segments are insignificant, so "1.0" equals "1.0.0".
package mavenversion
