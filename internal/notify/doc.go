// Package notify turns group judgments into issue-tracker actions. Issues
// are keyed by a deterministic title per domain so the same ongoing problem
// is found again across process restarts, updated in place, and never filed
// twice. Tracker trouble is logged and swallowed: reporting must never stall
// the monitoring loop.
package notify
