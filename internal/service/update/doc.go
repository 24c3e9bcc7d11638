// Package update moves installations to the latest versions their channels
// allow.
//
// List and Perform build a candidate in staging and compare it with the
// recorded state; Perform then promotes it unless it is a dry run or nothing
// changed. Prepare writes the candidate to an explicit directory so Apply
// can promote it later, possibly from another process.
package update
