// Package mirror defines the records the monitoring engine operates on: a
// Mirror is one (package repo, hosting domain) pairing, a Group is every
// mirror behind one domain. It owns the success/failure state transitions,
// jittered check scheduling, authority extraction, and the merge of persisted
// history into a freshly loaded topology.
package mirror
