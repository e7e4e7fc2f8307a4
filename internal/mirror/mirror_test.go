package mirror_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/mirror-minder/internal/mirror"
)

func TestMirror(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Mirror Suite")
}

var _ = Describe("Mirror", func() {
	Describe("ReleaseURL", func() {
		It("should map the main repo to the stable path", func() {
			m := &mirror.Mirror{
				RepoURL:  "https://packages-cf.termux.dev/apt/termux-main",
				RepoName: "main",
			}
			Expect(m.ReleaseURL()).To(Equal(
				"https://packages-cf.termux.dev/apt/termux-main/dists/stable/Release"))
		})

		It("should map other repos to their own name", func() {
			m := &mirror.Mirror{
				RepoURL:  "https://example.org/apt/termux-x11",
				RepoName: "x11",
			}
			Expect(m.ReleaseURL()).To(Equal(
				"https://example.org/apt/termux-x11/dists/x11/Release"))
		})
	})

	Describe("RecordSuccess", func() {
		It("should update all monitoring state and clear the failure count", func() {
			now := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
			syncTime := now.Add(-2 * time.Hour)
			next := now.Add(30 * time.Minute)

			m := &mirror.Mirror{ConsecutiveCheckFailures: 4}
			m.RecordSuccess(now, syncTime, next)

			Expect(m.LastCheck).To(Equal(now))
			Expect(m.LastSuccessfulCheck).To(Equal(now))
			Expect(m.LastSyncTime).To(Equal(syncTime))
			Expect(m.ConsecutiveCheckFailures).To(BeZero())
			Expect(m.NextCheck).To(Equal(next))
		})
	})

	Describe("RecordFailure", func() {
		It("should bump the failure count and leave success state alone", func() {
			now := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
			lastSync := now.Add(-24 * time.Hour)
			next := now.Add(30 * time.Minute)

			m := &mirror.Mirror{LastSyncTime: lastSync, ConsecutiveCheckFailures: 1}
			m.RecordFailure(now, next)

			Expect(m.LastCheck).To(Equal(now))
			Expect(m.LastSuccessfulCheck).To(BeZero())
			Expect(m.LastSyncTime).To(Equal(lastSync))
			Expect(m.ConsecutiveCheckFailures).To(Equal(2))
			Expect(m.NextCheck).To(Equal(next))
		})
	})
})

var _ = Describe("ExtractAuthorities", func() {
	It("should map repo names to their authoritative mirrors", func() {
		groups := []*mirror.Group{
			{Domain: "packages.termux.dev", Mirrors: []*mirror.Mirror{
				{RepoURL: "https://packages.termux.dev/apt/termux-main", RepoName: "main", Authoritative: true},
				{RepoURL: "https://packages.termux.dev/apt/termux-x11", RepoName: "x11", Authoritative: true},
			}},
			{Domain: "mirror.example.org", Mirrors: []*mirror.Mirror{
				{RepoURL: "https://mirror.example.org/apt/termux-main", RepoName: "main"},
			}},
		}

		authorities := mirror.ExtractAuthorities(groups)
		Expect(authorities).To(HaveLen(2))
		Expect(authorities["main"].RepoURL).To(Equal("https://packages.termux.dev/apt/termux-main"))
		Expect(authorities["x11"].RepoURL).To(Equal("https://packages.termux.dev/apt/termux-x11"))
	})

	It("should panic on multiple authorities for the same repo name", func() {
		groups := []*mirror.Group{
			{Mirrors: []*mirror.Mirror{
				{RepoURL: "https://a.example.org/apt/termux-main", RepoName: "main", Authoritative: true},
				{RepoURL: "https://b.example.org/apt/termux-main", RepoName: "main", Authoritative: true},
			}},
		}

		Expect(func() { mirror.ExtractAuthorities(groups) }).To(Panic())
	})
})

var _ = Describe("MergeHistory", func() {
	var (
		now    time.Time
		groups []*mirror.Group
	)

	BeforeEach(func() {
		now = time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
		groups = []*mirror.Group{
			{Domain: "mirror.example.org", Mirrors: []*mirror.Mirror{
				{RepoURL: "https://mirror.example.org/apt/termux-main", RepoName: "main", NextCheck: now.Add(30 * time.Second)},
				{RepoURL: "https://mirror.example.org/apt/termux-x11", RepoName: "x11", NextCheck: now.Add(30 * time.Second)},
			}},
		}
	})

	It("should restore the mutable fields of mirrors present in both", func() {
		cached := map[string]mirror.History{
			"https://mirror.example.org/apt/termux-main": {
				ConsecutiveCheckFailures: 3,
				LastCheck:                now.Add(-time.Hour),
				LastSuccessfulCheck:      now.Add(-2 * time.Hour),
				LastSyncTime:             now.Add(-3 * time.Hour),
			},
		}

		added, removed := mirror.MergeHistory(groups, cached)
		Expect(added).To(Equal(1))
		Expect(removed).To(BeZero())

		m := groups[0].Mirrors[0]
		Expect(m.ConsecutiveCheckFailures).To(Equal(3))
		Expect(m.LastCheck).To(Equal(now.Add(-time.Hour)))
		Expect(m.LastSuccessfulCheck).To(Equal(now.Add(-2 * time.Hour)))
		Expect(m.LastSyncTime).To(Equal(now.Add(-3 * time.Hour)))
	})

	It("should never restore the next check time", func() {
		cached := map[string]mirror.History{
			"https://mirror.example.org/apt/termux-main": {ConsecutiveCheckFailures: 1},
		}

		mirror.MergeHistory(groups, cached)
		Expect(groups[0].Mirrors[0].NextCheck).To(Equal(now.Add(30 * time.Second)))
	})

	It("should leave new mirrors with empty history", func() {
		mirror.MergeHistory(groups, map[string]mirror.History{})

		m := groups[0].Mirrors[1]
		Expect(m.ConsecutiveCheckFailures).To(BeZero())
		Expect(m.LastCheck).To(BeZero())
		Expect(m.LastSuccessfulCheck).To(BeZero())
		Expect(m.LastSyncTime).To(BeZero())
	})

	It("should count cached mirrors that dropped out of the topology", func() {
		cached := map[string]mirror.History{
			"https://gone.example.org/apt/termux-main": {ConsecutiveCheckFailures: 9},
		}

		added, removed := mirror.MergeHistory(groups, cached)
		Expect(added).To(Equal(2))
		Expect(removed).To(Equal(1))
	})
})
