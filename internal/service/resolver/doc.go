// Package resolver picks the latest version of an artifact stream across
// a prioritized list of repositories.
//
// Every repository is queried concurrently but results are evaluated in
// priority order: the highest version by Maven ordering wins and a tie goes
// to the first repository offering it. A repository that fails or has no
// matching versions is skipped; resolution only fails when none succeeds.
package resolver
