// Package cache persists per-mirror monitoring state across restarts in a
// SQLite database with a versioned schema. Reads are best-effort: a missing
// or unreadable cache simply means starting over with empty history.
package cache
