package judge

import (
	"fmt"
	"time"

	"github.com/angeloszaimis/mirror-minder/internal/mirror"
)

// Verdict is the trinary health judgment for one mirror. Indeterminate is
// the zero value so an unset verdict reads as "no information", never as a
// definite state.
type Verdict int

const (
	// Indeterminate: not enough information for a definite call.
	Indeterminate Verdict = iota
	// Healthy: fresh enough relative to its authority.
	Healthy
	// Unhealthy: stale beyond the limit or unmonitorable for too long.
	Unhealthy
)

func (v Verdict) String() string {
	switch v {
	case Healthy:
		return "healthy"
	case Unhealthy:
		return "unhealthy"
	}
	return "indeterminate"
}

// Thresholds are the limits one judgment is made against. FailLimit is
// expressed in consecutive check failures; CheckInterval is only used to
// phrase the alert ETA for mirrors partway to that limit.
type Thresholds struct {
	// Staleness below which a mirror is reported with no caveat.
	FreshnessTarget time.Duration
	// Staleness above which a mirror is unhealthy, grace period permitting.
	StalenessLimit time.Duration
	// Window after an authority update during which elevated staleness is
	// not yet alarmed: right after an infrequent authority update, diligent
	// mirrors briefly look stale through no fault of their own.
	GracePeriod time.Duration
	// Consecutive check failures at which a mirror is unhealthy regardless
	// of staleness.
	FailLimit int
	// Steady-state delay between checks of one mirror.
	CheckInterval time.Duration
}

// Judge decides if a mirror looks unhealthy and explains why or why not. The
// explanation is markdown destined for issue bodies.
//
// Judging an authoritative mirror is a bug in the caller, not a runtime
// condition, and panics: an engine confused about what is authoritative must
// not publish health reports.
func (t Thresholds) Judge(m, authority *mirror.Mirror, now time.Time) (Verdict, string) {
	if m.Authoritative {
		panic(fmt.Sprintf("judging authoritative mirror %s", m.RepoURL))
	}

	// Failure to monitor comes first: a mirror we cannot even read trumps
	// anything its last known sync time might say.
	if m.ConsecutiveCheckFailures >= t.FailLimit {
		return Unhealthy, fmt.Sprintf(
			"⭕ retrieving it failed %d times in a row, last successful retrieval was %s",
			m.ConsecutiveCheckFailures, lastSuccess(m))
	}
	if m.ConsecutiveCheckFailures > 0 {
		alertETA := time.Duration(t.FailLimit-m.ConsecutiveCheckFailures) * t.CheckInterval
		return Indeterminate, fmt.Sprintf(
			"🟨 retrieving it failed %d times in a row (about `%s` until it exceeds "+
				"the unavailability limit) - last successful retrieval was %s",
			m.ConsecutiveCheckFailures, mirror.ReadableDuration(alertETA), lastSuccess(m))
	}

	// Neither of these should be reachable: the aggregator only judges
	// recently checked mirrors, and zero failures implies a successful check.
	// Still worth a sensible answer rather than a wrong one.
	if m.LastSyncTime.IsZero() {
		return Indeterminate,
			"⁉️ mirror has never been checked (and it's a bug if you're seeing this)"
	}
	if authority == nil || authority.LastSyncTime.IsZero() {
		return Indeterminate,
			"⁉️ authority freshness unknown (and it's a bug if you're seeing this)"
	}

	staleness := authority.LastSyncTime.Sub(m.LastSyncTime)
	authorityAge := now.Sub(authority.LastSyncTime)

	if staleness > t.StalenessLimit {
		if authorityAge < t.GracePeriod {
			return Indeterminate, fmt.Sprintf(
				"🟨 (in grace period) hasn't synced since %s: `%s` older than "+
					"[its authority](%s), but its authority was updated only `%s` ago",
				m.LastSyncTime.Format(time.RFC3339), mirror.ReadableDuration(staleness),
				authority.RepoURL, mirror.ReadableDuration(authorityAge))
		}
		return Unhealthy, fmt.Sprintf(
			"⭕ hasn't synced since %s: `%s` older than [its authority](%s), "+
				"which was updated `%s` ago",
			m.LastSyncTime.Format(time.RFC3339), mirror.ReadableDuration(staleness),
			authority.RepoURL, mirror.ReadableDuration(authorityAge))
	}
	if staleness > t.FreshnessTarget {
		return Healthy, fmt.Sprintf(
			"🟨 (below alert threshold) hasn't synced since %s: `%s` older than "+
				"[its authority](%s), which was updated `%s` ago",
			m.LastSyncTime.Format(time.RFC3339), mirror.ReadableDuration(staleness),
			authority.RepoURL, mirror.ReadableDuration(authorityAge))
	}
	return Healthy, fmt.Sprintf(
		"🟢 looks good, last synced %s: `%s` older than [its authority](%s), "+
			"which was updated `%s` ago",
		m.LastSyncTime.Format(time.RFC3339), mirror.ReadableDuration(staleness),
		authority.RepoURL, mirror.ReadableDuration(authorityAge))
}

func lastSuccess(m *mirror.Mirror) string {
	if m.LastSuccessfulCheck.IsZero() {
		return "`<never>`"
	}
	return m.LastSuccessfulCheck.Format(time.RFC3339)
}
