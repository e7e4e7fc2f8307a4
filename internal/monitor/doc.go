// Package monitor runs the mirror health engine: a single-threaded loop that
// reloads the topology about once a day, wakes on a short tick, checks
// whichever mirrors are due, re-judges any group that was touched, and keeps
// the cache snapshot current. One goroutine owns all mirror state; checks
// are deliberately sequential, so a slow mirror delays the others rather
// than racing them.
package monitor
