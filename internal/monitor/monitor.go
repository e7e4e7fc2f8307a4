package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/angeloszaimis/mirror-minder/internal/cache"
	"github.com/angeloszaimis/mirror-minder/internal/fetcher"
	"github.com/angeloszaimis/mirror-minder/internal/judge"
	"github.com/angeloszaimis/mirror-minder/internal/metrics"
	"github.com/angeloszaimis/mirror-minder/internal/mirror"
	"github.com/angeloszaimis/mirror-minder/internal/notify"
	"github.com/angeloszaimis/mirror-minder/internal/registry"
	"github.com/angeloszaimis/mirror-minder/internal/release"
)

// DefaultPeriodJitterFraction is the jitter range for the epoch length.
const DefaultPeriodJitterFraction = 0.1

// Monitor wires the registry, fetcher, judge, reporter, cache, and metrics
// into the monitoring loop.
type Monitor struct {
	Registry   *registry.Registry
	Store      *cache.Store
	Fetcher    *fetcher.Fetcher
	Schedule   *mirror.Schedule
	Thresholds judge.Thresholds
	Reporter   *notify.Reporter
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	// Approximately how long one epoch lasts before the topology is reloaded.
	Period time.Duration
	// Jitter range for the epoch length, as a fraction of Period.
	PeriodJitterFraction float64
	// How often the loop wakes to look for due mirrors.
	Tick time.Duration
}

// Run monitors forever, one epoch at a time, until the context is cancelled.
// Each epoch reloads the topology from scratch; the only state that crosses
// the boundary travels through the cache.
func (mon *Monitor) Run(ctx context.Context) error {
	for {
		jitter := (rand.Float64()*2 - 1) * mon.PeriodJitterFraction
		period := mon.Period + time.Duration(float64(mon.Period)*jitter)
		mon.Logger.Info("monitoring mirrors", slog.Duration("period", period))

		if err := mon.RunEpoch(ctx, period); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// RunEpoch syncs and loads the topology, merges cached history into it, and
// then ticks until the epoch deadline, checking due mirrors as they come up.
// The cache is flushed after every tick that checked something and once more
// before returning, so the epoch boundary has nothing in flight to lose.
func (mon *Monitor) RunEpoch(ctx context.Context, period time.Duration) error {
	if err := mon.Registry.Sync(ctx); err != nil {
		return fmt.Errorf("syncing tools repo: %w", err)
	}

	now := time.Now().UTC()
	groups, err := mon.Registry.LoadGroups(now)
	if err != nil {
		return fmt.Errorf("loading mirror groups: %w", err)
	}

	added, removed := mirror.MergeHistory(groups, mon.Store.Load())
	mon.Logger.Info("merged cache",
		slog.Int("mirrors_added", added), slog.Int("mirrors_removed", removed))

	authorities := mirror.ExtractAuthorities(groups)
	for name, authority := range authorities {
		mon.Logger.Info("identified authority",
			slog.String("repo_name", name), slog.String("repo_url", authority.RepoURL))
	}
	// Authorities stay in the groups so they are monitored with the same
	// logic as secondaries, but they are always checked first: a secondary
	// judged before its authority has data would just be noise.
	for _, group := range groups {
		for _, m := range group.Mirrors {
			if m.Authoritative {
				m.NextCheck = time.Unix(0, 0).UTC()
			}
		}
	}

	deadline := time.Now().Add(period)
	ticker := time.NewTicker(mon.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mon.saveCache(groups)
			return nil
		case <-ticker.C:
		}
		if !time.Now().Before(deadline) {
			break
		}

		now := time.Now().UTC()
		for _, group := range groups {
			didAnything := false
			for _, m := range group.Mirrors {
				if m.NextCheck.Before(now) {
					mon.checkMirror(ctx, group.Domain, m)
					didAnything = true
				}
			}
			if didAnything {
				mon.judgeGroup(ctx, group, authorities, time.Now().UTC())
				mon.saveCache(groups)
			}
		}
	}

	// One more write, just for cleanliness.
	mon.saveCache(groups)
	return nil
}

// checkMirror retrieves the mirror's release file, parses a sync time out of
// it, and applies the success or failure transition. Every failure category
// folds into the same transition; nothing propagates.
func (mon *Monitor) checkMirror(ctx context.Context, domain string, m *mirror.Mirror) {
	releaseURL := m.ReleaseURL()
	res := mon.Fetcher.Fetch(ctx, releaseURL)

	now := time.Now().UTC()
	next := mon.Schedule.Next(now)
	if res.Outcome != fetcher.OutcomeSuccess {
		m.RecordFailure(now, next)
		mon.Metrics.RecordCheck(domain, false)
		return
	}

	syncTime, err := release.ParseSyncTime(res.Body)
	if err != nil {
		mon.Logger.Error("retrieved release file, but couldn't extract a sync time",
			slog.String("url", releaseURL), slog.Any("err", err))
		m.RecordFailure(now, next)
		mon.Metrics.RecordCheck(domain, false)
		return
	}

	m.RecordSuccess(now, syncTime, next)
	mon.Metrics.RecordCheck(domain, true)
	mon.Logger.Debug("checked mirror",
		slog.String("url", m.RepoURL), slog.Time("sync_time", syncTime))
}

// judgeGroup decides whether the group looks unhealthy and hands the result
// to the reporter. It does nothing until every mirror in the group has been
// checked recently: judging on partial data would misreport correlated
// outages.
func (mon *Monitor) judgeGroup(ctx context.Context, group *mirror.Group, authorities map[string]*mirror.Mirror, now time.Time) {
	recent := 2 * mon.Thresholds.CheckInterval
	for _, m := range group.Mirrors {
		if m.LastCheck.IsZero() || now.Sub(m.LastCheck) >= recent {
			mon.Logger.Info("not judging mirror group until all mirrors have been checked recently",
				slog.String("domain", group.Domain))
			return
		}
	}

	type judged struct {
		mirror      *mirror.Mirror
		verdict     judge.Verdict
		explanation string
	}
	var results []judged
	for _, m := range group.Mirrors {
		// This path judges mirrors against authorities. It does not handle
		// authority issues.
		if m.Authoritative {
			continue
		}
		verdict, explanation := mon.Thresholds.Judge(m, authorities[m.RepoName], now)
		mon.Metrics.RecordVerdict(group.Domain, verdict.String())
		results = append(results, judged{m, verdict, explanation})
	}
	if len(results) == 0 {
		mon.Logger.Info("not judging group", slog.String("domain", group.Domain))
		return
	}

	anyRed := false
	allGreen := true
	var summary []string
	for _, r := range results {
		if r.verdict == judge.Unhealthy {
			anyRed = true
		}
		if r.verdict != judge.Healthy {
			allGreen = false
		}
		summary = append(summary, fmt.Sprintf("%s health=%s", r.mirror.RepoName, r.verdict))
	}
	mon.Logger.Info("judged group",
		slog.String("domain", group.Domain),
		slog.Bool("any_red", anyRed), slog.Bool("all_green", allGreen),
		slog.String("mirrors", strings.Join(summary, ", ")))

	var parts []string
	for _, r := range results {
		parts = append(parts, fmt.Sprintf(
			"## %s\n\n%s\n\nlinks: [repo root](%s), [`Release`](%s)",
			r.mirror.RepoName, r.explanation, r.mirror.RepoURL, r.mirror.ReleaseURL()))
	}
	details := strings.Join(parts, "\n")

	mon.Metrics.MarkJudged(group.Domain, now)
	mon.Reporter.Report(ctx, group.Domain, group.MirrorFilePath, details, anyRed, allGreen)
}

func (mon *Monitor) saveCache(groups []*mirror.Group) {
	if err := mon.Store.Save(groups); err != nil {
		mon.Logger.Error("writing cache failed", slog.Any("err", err))
	}
}
