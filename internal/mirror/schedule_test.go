package mirror_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/mirror-minder/internal/mirror"
)

var _ = Describe("Schedule", func() {
	var (
		now   time.Time
		sched *mirror.Schedule
	)

	BeforeEach(func() {
		now = time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
		sched = mirror.NewSchedule(30*time.Minute, 30*time.Second)
	})

	Describe("Next", func() {
		It("should stay within the jitter range around the interval", func() {
			lower := now.Add(30 * time.Minute).Add(-time.Duration(0.05 * float64(30*time.Minute)))
			upper := now.Add(30 * time.Minute).Add(time.Duration(0.05 * float64(30*time.Minute)))

			for i := 0; i < 200; i++ {
				next := sched.Next(now)
				Expect(next).To(BeTemporally(">=", lower))
				Expect(next).To(BeTemporally("<", upper))
			}
		})

		It("should not always choose the same time", func() {
			seen := make(map[time.Time]bool)
			for i := 0; i < 50; i++ {
				seen[sched.Next(now)] = true
			}
			Expect(len(seen)).To(BeNumerically(">", 1))
		})
	})

	Describe("First", func() {
		It("should schedule the bootstrap check around the initial delay", func() {
			lower := now.Add(30 * time.Second).Add(-time.Duration(0.05 * float64(30*time.Second)))
			upper := now.Add(30 * time.Second).Add(time.Duration(0.05 * float64(30*time.Second)))

			for i := 0; i < 200; i++ {
				first := sched.First(now)
				Expect(first).To(BeTemporally(">=", lower))
				Expect(first).To(BeTemporally("<", upper))
			}
		})
	})
})

var _ = Describe("ReadableDuration", func() {
	It("should format sub-day durations as hours and minutes", func() {
		Expect(mirror.ReadableDuration(3*time.Hour + 12*time.Minute)).To(Equal("3h12m"))
		Expect(mirror.ReadableDuration(90 * time.Minute)).To(Equal("1h30m"))
		Expect(mirror.ReadableDuration(0)).To(Equal("0h0m"))
	})

	It("should format multi-day durations as days and hours", func() {
		Expect(mirror.ReadableDuration(26 * time.Hour)).To(Equal("1d2h"))
		Expect(mirror.ReadableDuration(74 * time.Hour)).To(Equal("3d2h"))
	})

	It("should carry the sign of negative durations", func() {
		Expect(mirror.ReadableDuration(-26 * time.Hour)).To(Equal("-1d2h"))
		Expect(mirror.ReadableDuration(-90 * time.Minute)).To(Equal("-1h30m"))
	})

	It("should round rather than truncate", func() {
		Expect(mirror.ReadableDuration(25*time.Hour + 50*time.Minute)).To(Equal("1d2h"))
		Expect(mirror.ReadableDuration(3*time.Hour + 59*time.Minute + 40*time.Second)).To(Equal("4h0m"))
	})
})
