// Package metrics tracks what the monitoring loop has been doing: checks and
// failures per domain, verdict counts, and when each group was last judged.
// Snapshots are served as JSON from the status endpoint.
package metrics
