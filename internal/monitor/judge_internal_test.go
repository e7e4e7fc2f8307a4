package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/mirror-minder/internal/judge"
	"github.com/angeloszaimis/mirror-minder/internal/metrics"
	"github.com/angeloszaimis/mirror-minder/internal/mirror"
	"github.com/angeloszaimis/mirror-minder/internal/notify"
)

// countingTracker only counts searches; a judgment that reaches the reporter
// always searches first.
type countingTracker struct {
	mutex    sync.Mutex
	searches int
}

func (t *countingTracker) Search(ctx context.Context, title string) (string, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.searches++
	return "", nil
}

func (t *countingTracker) Create(ctx context.Context, title, body string) (string, error) {
	return "https://github.com/termux/termux-tools/issues/1", nil
}

func (t *countingTracker) Update(ctx context.Context, url, body string) error { return nil }
func (t *countingTracker) Close(ctx context.Context, url string) error        { return nil }

func (t *countingTracker) Searches() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.searches
}

var _ = Describe("judgeGroup", func() {
	var (
		now       time.Time
		tracker   *countingTracker
		mon       *Monitor
		authority *mirror.Mirror
	)

	BeforeEach(func() {
		now = time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
		tracker = &countingTracker{}
		logger := slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		authority = &mirror.Mirror{
			RepoURL:       "https://packages.termux.dev/apt/termux-main",
			RepoName:      "main",
			Authoritative: true,
			LastCheck:     now,
			LastSyncTime:  now.Add(-time.Hour),
		}
		mon = &Monitor{
			Thresholds: judge.Thresholds{
				FreshnessTarget: 6 * time.Hour,
				StalenessLimit:  72 * time.Hour,
				GracePeriod:     12 * time.Hour,
				FailLimit:       144,
				CheckInterval:   30 * time.Minute,
			},
			Reporter: &notify.Reporter{
				Tracker:      tracker,
				ToolsRepoURL: "https://github.com/termux/termux-tools",
				Logger:       logger,
			},
			Metrics: metrics.New(),
			Logger:  logger,
		}
	})

	member := func(url string, lastCheck time.Time) *mirror.Mirror {
		return &mirror.Mirror{
			RepoURL:      url,
			RepoName:     "main",
			LastCheck:    lastCheck,
			LastSyncTime: now.Add(-2 * time.Hour),
		}
	}

	authorities := func() map[string]*mirror.Mirror {
		return map[string]*mirror.Mirror{"main": authority}
	}

	It("should skip the whole group while one member lacks a recent check", func() {
		group := &mirror.Group{
			Domain: "mirror.example.org",
			Mirrors: []*mirror.Mirror{
				member("https://mirror.example.org/apt/termux-main", now),
				member("https://mirror.example.org/apt/termux-x11", now.Add(-2*time.Hour)),
			},
		}

		mon.judgeGroup(context.Background(), group, authorities(), now)

		Expect(tracker.Searches()).To(BeZero())
		Expect(mon.Metrics.Snapshot().Domains["mirror.example.org"].LastJudged).To(BeZero())
	})

	It("should skip a never-checked group", func() {
		group := &mirror.Group{
			Domain: "mirror.example.org",
			Mirrors: []*mirror.Mirror{
				member("https://mirror.example.org/apt/termux-main", time.Time{}),
			},
		}

		mon.judgeGroup(context.Background(), group, authorities(), now)

		Expect(tracker.Searches()).To(BeZero())
	})

	It("should judge once every member has a recent check", func() {
		group := &mirror.Group{
			Domain: "mirror.example.org",
			Mirrors: []*mirror.Mirror{
				member("https://mirror.example.org/apt/termux-main", now),
				member("https://mirror.example.org/apt/termux-x11", now.Add(-30*time.Minute)),
			},
		}

		mon.judgeGroup(context.Background(), group, authorities(), now)

		Expect(tracker.Searches()).To(Equal(1))
		Expect(mon.Metrics.Snapshot().Domains["mirror.example.org"].LastJudged).To(Equal(now))
	})

	It("should not report a group that only contains authorities", func() {
		group := &mirror.Group{
			Domain:  "packages.termux.dev",
			Mirrors: []*mirror.Mirror{authority},
		}

		mon.judgeGroup(context.Background(), group, authorities(), now)

		Expect(tracker.Searches()).To(BeZero())
		Expect(mon.Metrics.Snapshot().Domains["packages.termux.dev"].LastJudged).To(BeZero())
	})
})
