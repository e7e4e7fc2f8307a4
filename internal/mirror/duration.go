package mirror

import (
	"fmt"
	"math"
	"time"
)

const day = 24 * time.Hour

// ReadableDuration formats a duration less precisely but more readably than
// Duration.String: "3h12m" under a day, "2d5h" over it. Used in every
// human-facing explanation and issue body.
func ReadableDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}

	days := int(d / day)
	rem := d % day
	if days == 0 {
		hours := int(rem / time.Hour)
		minutes := int(math.Round(float64(rem%time.Hour) / float64(time.Minute)))
		if minutes == 60 {
			hours++
			minutes = 0
		}
		return fmt.Sprintf("%s%dh%dm", sign, hours, minutes)
	}

	hours := int(math.Round(float64(rem) / float64(time.Hour)))
	if hours == 24 {
		days++
		hours = 0
	}
	return fmt.Sprintf("%s%dd%dh", sign, days, hours)
}
