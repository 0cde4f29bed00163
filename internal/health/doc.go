// Package health decides whether the observatory is fit to observe.
//
// Monitor polls mount connectivity and dome availability with a bounded
// number of attempts. It only observes and waits; it never tries to fix
// anything. A failed query counts as "not ready" for that device rather
// than as an error.
package health
