package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// Tracker is the issue-tracker surface the reporter drives. Search returns
// the URL of the most recent matching open issue, or "" when none exists.
type Tracker interface {
	Search(ctx context.Context, title string) (string, error)
	Create(ctx context.Context, title, body string) (string, error)
	Update(ctx context.Context, url, body string) error
	Close(ctx context.Context, url string) error
}

// GHTracker drives the gh CLI against one fixed reporting repository. gh
// brings its own authentication and pagination, so there is no API client to
// configure here.
type GHTracker struct {
	// Repository issues are filed against, e.g.
	// https://github.com/termux/termux-tools.
	Repo string
}

type ghIssue struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	CreatedAt string `json:"createdAt"`
}

// Search looks for an open issue with the given title.
func (t *GHTracker) Search(ctx context.Context, title string) (string, error) {
	out, err := t.gh(ctx,
		"issue", "list", "-R", t.Repo,
		"--json", "title,url,createdAt",
		"--search", "is:open "+title,
	)
	if err != nil {
		return "", err
	}

	var issues []ghIssue
	if err := json.Unmarshal([]byte(out), &issues); err != nil {
		return "", fmt.Errorf("decoding gh issue list output: %w", err)
	}
	if len(issues) == 0 {
		return "", nil
	}

	sort.Slice(issues, func(i, j int) bool {
		return issues[i].CreatedAt > issues[j].CreatedAt
	})
	return issues[0].URL, nil
}

// Create files a new issue unconditionally and returns its URL, which gh
// prints as the last line of output.
func (t *GHTracker) Create(ctx context.Context, title, body string) (string, error) {
	out, err := t.gh(ctx, "issue", "create", "-R", t.Repo, "-t", title, "-b", body)
	if err != nil {
		return "", err
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	return lines[len(lines)-1], nil
}

// Update replaces the body of an existing issue.
func (t *GHTracker) Update(ctx context.Context, url, body string) error {
	_, err := t.gh(ctx, "issue", "edit", url, "-b", body)
	return err
}

// Close closes an existing issue. Closing an already-closed issue is a no-op
// on gh's side.
func (t *GHTracker) Close(ctx context.Context, url string) error {
	_, err := t.gh(ctx, "issue", "close", url)
	return err
}

func (t *GHTracker) gh(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("gh %s: %w", strings.Join(args[:2], " "), err)
	}
	return string(out), nil
}
