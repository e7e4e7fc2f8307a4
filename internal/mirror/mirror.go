package mirror

import (
	"fmt"
	"time"
)

// Mirror represents a single mirror of a single package repo. Different repos
// (in apt terms) are different mirrors (in terms of this type).
//
// e.g. there is one Mirror for https://packages-cf.termux.dev/apt/termux-main.
//
// The monitoring-state fields are owned by the monitor loop: it is the only
// writer, via RecordSuccess and RecordFailure, and runs on a single
// goroutine. Everything else may only read.
type Mirror struct {
	// Static info about the mirror.
	RepoURL  string
	RepoName string
	Weight   int
	// Authoritative marks the one trusted source for RepoName. Mirror
	// freshness is judged against an authoritative mirror, not wall time,
	// because it is normal for a repo to go longer than the staleness limit
	// without new data. All mirrors look the same to clients, so this is
	// decided at load time from the configured authority URL prefix.
	Authoritative bool

	// When the mirror is next due for a check.
	NextCheck time.Time
	// Number of times in a row we failed to get the release file and parse a
	// sync time out of it.
	ConsecutiveCheckFailures int
	// The last time we attempted a check. Zero means never.
	LastCheck time.Time
	// The last time a check retrieved and parsed the release file. Zero means
	// never.
	LastSuccessfulCheck time.Time
	// The sync time reported by the last successful check. Zero means never.
	LastSyncTime time.Time
}

// ReleaseURL returns the full URL of the Release file for this repo. The
// "main" repo is published under the "stable" path segment; every other repo
// is published under its own name.
func (m *Mirror) ReleaseURL() string {
	repoPath := m.RepoName
	if m.RepoName == "main" {
		repoPath = "stable"
	}
	return fmt.Sprintf("%s/dists/%s/Release", m.RepoURL, repoPath)
}

// RecordSuccess applies the success transition: a check retrieved the release
// file and parsed syncTime out of it. next is the already-scheduled time of
// the next check.
func (m *Mirror) RecordSuccess(now, syncTime, next time.Time) {
	m.LastCheck = now
	m.LastSuccessfulCheck = now
	m.LastSyncTime = syncTime
	m.ConsecutiveCheckFailures = 0
	m.NextCheck = next
}

// RecordFailure applies the failure transition: the check failed anywhere
// between connecting and parsing. The interval to the next check does not
// grow with consecutive failures.
func (m *Mirror) RecordFailure(now, next time.Time) {
	m.LastCheck = now
	m.ConsecutiveCheckFailures++
	m.NextCheck = next
}

// History is the slice of a Mirror's monitoring state that survives process
// restarts via the cache. NextCheck is deliberately not part of it: a restart
// must never inherit a long delay from a previous run.
type History struct {
	ConsecutiveCheckFailures int
	LastCheck                time.Time
	LastSuccessfulCheck      time.Time
	LastSyncTime             time.Time
}

// History returns the persistable monitoring state of the mirror.
func (m *Mirror) History() History {
	return History{
		ConsecutiveCheckFailures: m.ConsecutiveCheckFailures,
		LastCheck:                m.LastCheck,
		LastSuccessfulCheck:      m.LastSuccessfulCheck,
		LastSyncTime:             m.LastSyncTime,
	}
}

// RestoreHistory loads persisted monitoring state into the mirror.
func (m *Mirror) RestoreHistory(h History) {
	m.ConsecutiveCheckFailures = h.ConsecutiveCheckFailures
	m.LastCheck = h.LastCheck
	m.LastSuccessfulCheck = h.LastSuccessfulCheck
	m.LastSyncTime = h.LastSyncTime
}

// Group represents the mirrors behind one domain. Failures, particularly
// failures-to-monitor, are likely to be correlated among repos hosted in the
// same place, so they are monitored and reported together.
type Group struct {
	Domain string
	// Path of the definition file inside the tools repo, for human-facing
	// links in issue bodies.
	MirrorFilePath string
	Mirrors        []*Mirror
}

// ExtractAuthorities maps each repo name to its authoritative mirror.
//
// More than one authority for the same repo name is a programming error, not
// a runtime condition: judging against an arbitrary one of several would
// produce misleading health reports, so this panics instead.
func ExtractAuthorities(groups []*Group) map[string]*Mirror {
	authorities := make(map[string]*Mirror)
	for _, group := range groups {
		for _, m := range group.Mirrors {
			if !m.Authoritative {
				continue
			}
			if prev, ok := authorities[m.RepoName]; ok {
				panic(fmt.Sprintf(
					"multiple authorities for repo %q: %s and %s",
					m.RepoName, prev.RepoURL, m.RepoURL))
			}
			authorities[m.RepoName] = m
		}
	}
	return authorities
}

// MergeHistory copies persisted monitoring state into a freshly loaded
// topology, matching mirrors by repo URL. URLs only in the fresh topology
// keep their empty history; URLs only in the cache are dropped. Returns how
// many mirrors were added and removed since the cache was written.
func MergeHistory(groups []*Group, cached map[string]History) (added, removed int) {
	seen := make(map[string]bool, len(cached))
	for _, group := range groups {
		for _, m := range group.Mirrors {
			h, ok := cached[m.RepoURL]
			if !ok {
				added++
				continue
			}
			seen[m.RepoURL] = true
			m.RestoreHistory(h)
		}
	}
	for url := range cached {
		if !seen[url] {
			removed++
		}
	}
	return added, removed
}
