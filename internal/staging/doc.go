// Package staging hands out private scratch directories for one operation.
//
// Every directory is named "channelup-<kind>-<pid>-<random>" and registered
// in a process-wide registry until released. ReleaseAll removes whatever is
// still registered and is called on every exit path of the CLI, including
// interrupts. Sweep removes directories left behind by processes that no
// longer run.
package staging
