package release

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoSyncTime means the body contained no Date line at all.
	ErrNoSyncTime = errors.New("no sync time in release file")
	// ErrNotUTC means the Date line did not carry the literal UTC suffix.
	// The monitoring engine deals entirely in UTC instants, so a named
	// non-UTC zone is rejected rather than guessed at.
	ErrNotUTC = errors.New("sync time not in UTC")
)

const datePrefix = "Date:"

// Layout of the Date payload once the weekday and UTC marker are stripped,
// e.g. "3 Jun 2025 06:18:01".
const syncTimeLayout = "2 Jan 2006 15:04:05"

// ParseSyncTime scans body for the first line beginning with "Date:" and
// parses its payload into a UTC instant. The expected shape is
// "Date: Tue, 3 Jun 2025 06:18:01 UTC": a weekday abbreviation, then day,
// abbreviated month, year, and time, always explicitly in UTC.
func ParseSyncTime(body string) (time.Time, error) {
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, datePrefix) {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, datePrefix))
		_, rest, found := strings.Cut(payload, ", ")
		if !found {
			return time.Time{}, fmt.Errorf("malformed sync time %q", payload)
		}
		if !strings.HasSuffix(rest, " UTC") {
			return time.Time{}, fmt.Errorf("%w: %q", ErrNotUTC, rest)
		}

		syncTime, err := time.Parse(syncTimeLayout, strings.TrimSuffix(rest, " UTC"))
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing sync time %q: %w", rest, err)
		}
		return syncTime.UTC(), nil
	}
	return time.Time{}, ErrNoSyncTime
}
