// Package lock serializes operations on one installation directory with an
// exclusive advisory lock on a sibling lock file "<parent>/.<name>.lock".
//
// The lock file lives next to the installation rather than inside it, so it
// survives the directory being swapped during promotion.
package lock
