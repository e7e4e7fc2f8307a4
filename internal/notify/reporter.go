package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	programName = "mirror-minder"
	projectURL  = "https://github.com/angeloszaimis/mirror-minder"
)

// IssueTitle returns the issue title for a package repo domain. It must be
// stable: it is the only key used to find the issue covering an ongoing
// problem with that domain, including across process restarts.
func IssueTitle(domain string) string {
	return fmt.Sprintf("mirrors: %s is unhealthy", domain)
}

// IssueBody renders a full issue body: who detected the problem, where the
// playbook and the domain's definition file live, and the per-mirror details.
func IssueBody(toolsRepoURL, domain, mirrorFilePath, details string, now time.Time) string {
	return fmt.Sprintf(
		"[`%s`🤖](%s) has detected an issue with the package repo(s) on [`%s`](https://%s).\n"+
			"\n"+
			"* [playbook for `%s` issues](%s/blob/main/doc/playbook.md)\n"+
			"* [definition file for all repos on `%s`](%s/tree/master/%s)\n"+
			"\n"+
			"last updated: %s\n"+
			"\n"+
			"%s",
		programName, projectURL, domain, domain,
		programName, projectURL,
		domain, toolsRepoURL, mirrorFilePath,
		now.UTC().Format("2006-01-02 15:04:05 UTC"),
		details,
	)
}

// Reporter applies the notification policy after each group judgment.
type Reporter struct {
	Tracker      Tracker
	ToolsRepoURL string
	// AutoClose enables closing open issues once their mirrors go green.
	AutoClose bool
	// LogOnly suppresses every tracker write and logs what would happen.
	LogOnly bool
	Logger  *slog.Logger
}

// Report files, updates, or closes the issue for one judged group.
//
// If everything is green and auto-close is on, any open issue gets a final
// update and is closed. Otherwise an existing issue is always brought up to
// date, but a new one is only created when something is actually red: never
// for indeterminate or merely below-target states.
//
// Tracker failures are logged here and go no further; the monitoring loop
// must keep ticking whatever the tracker is doing.
func (r *Reporter) Report(ctx context.Context, domain, mirrorFilePath, details string, anyRed, allGreen bool) {
	if allGreen && r.AutoClose {
		r.closeIssue(ctx, domain, mirrorFilePath, details)
		return
	}
	r.updateIssue(ctx, domain, mirrorFilePath, details, anyRed)
}

func (r *Reporter) updateIssue(ctx context.Context, domain, mirrorFilePath, details string, create bool) {
	title := IssueTitle(domain)
	body := IssueBody(r.ToolsRepoURL, domain, mirrorFilePath, details, time.Now())
	if r.LogOnly {
		r.Logger.Warn("would update issue, but running log-only",
			slog.String("title", title), slog.String("body", body))
		return
	}

	url, err := r.Tracker.Search(ctx, title)
	if err != nil {
		r.Logger.Error("something went wrong communicating with the tracker", slog.Any("err", err))
		return
	}
	if url != "" {
		if err := r.Tracker.Update(ctx, url, body); err != nil {
			r.Logger.Error("something went wrong communicating with the tracker", slog.Any("err", err))
			return
		}
		r.Logger.Info("updated existing issue", slog.String("url", url))
		return
	}
	if !create {
		return
	}

	url, err = r.Tracker.Create(ctx, title, body)
	if err != nil {
		r.Logger.Error("something went wrong communicating with the tracker", slog.Any("err", err))
		return
	}
	r.Logger.Warn("created issue", slog.String("url", url))
}

func (r *Reporter) closeIssue(ctx context.Context, domain, mirrorFilePath, details string) {
	title := IssueTitle(domain)
	body := IssueBody(r.ToolsRepoURL, domain, mirrorFilePath, details, time.Now())
	if r.LogOnly {
		r.Logger.Warn("would close issue, but running log-only",
			slog.String("title", title), slog.String("body", body))
		return
	}

	url, err := r.Tracker.Search(ctx, title)
	if err != nil {
		r.Logger.Error("something went wrong communicating with the tracker", slog.Any("err", err))
		return
	}
	if url == "" {
		return
	}

	// One last body update so the closed issue records the final status.
	if err := r.Tracker.Update(ctx, url, body); err != nil {
		r.Logger.Error("something went wrong communicating with the tracker", slog.Any("err", err))
		return
	}
	if err := r.Tracker.Close(ctx, url); err != nil {
		r.Logger.Error("something went wrong communicating with the tracker", slog.Any("err", err))
		return
	}
	r.Logger.Info("closed issue", slog.String("url", url))
}
