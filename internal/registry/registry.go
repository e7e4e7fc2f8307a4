package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/angeloszaimis/mirror-minder/internal/mirror"
)

// Registry loads mirror groups from the definition-file tree inside a git
// checkout of the tools repo.
type Registry struct {
	// Directory the tools repo is checked out into, under Workdir.
	ToolsRepo    string
	ToolsRepoURL string
	// Subdirectory of the tools repo holding the definition tree, laid out
	// as <MirrorDir>/<group>/<domain>.
	MirrorDir string
	Workdir   string
	// Mirrors whose URL starts with this prefix are the authoritative ones.
	AuthorityPrefix string

	Schedule *mirror.Schedule
	Logger   *slog.Logger
}

// Sync brings the tools repo checkout up to date, cloning it if necessary.
// Any local debris from a previous crash is cleaned away first.
func (r *Registry) Sync(ctx context.Context) error {
	repoDir := filepath.Join(r.Workdir, r.ToolsRepo)
	if _, err := os.Stat(repoDir); err == nil {
		if err := r.git(ctx, "-C", repoDir, "clean", "-dfx"); err != nil {
			return err
		}
		return r.git(ctx, "-C", repoDir, "pull")
	}
	return r.git(ctx, "-C", r.Workdir, "clone", r.ToolsRepoURL, r.ToolsRepo)
}

func (r *Registry) git(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, out)
	}
	return nil
}

// LoadGroups parses every definition file in the tree into mirror groups.
// Every mirror gets a bootstrap next-check time so coverage begins quickly
// after a (re)load.
func (r *Registry) LoadGroups(now time.Time) ([]*mirror.Group, error) {
	mirrorRoot := filepath.Join(r.Workdir, r.ToolsRepo, r.MirrorDir)
	groupDirs, err := os.ReadDir(mirrorRoot)
	if err != nil {
		return nil, fmt.Errorf("reading mirror tree %s: %w", mirrorRoot, err)
	}

	var groups []*mirror.Group
	for _, groupDir := range groupDirs {
		if !groupDir.IsDir() {
			continue
		}
		domains, err := os.ReadDir(filepath.Join(mirrorRoot, groupDir.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading mirror group %s: %w", groupDir.Name(), err)
		}
		for _, domain := range domains {
			if domain.IsDir() {
				continue
			}
			group, err := r.loadGroupFile(
				domain.Name(),
				filepath.Join(mirrorRoot, groupDir.Name(), domain.Name()),
				path.Join(r.MirrorDir, groupDir.Name(), domain.Name()),
				now,
			)
			if err != nil {
				return nil, err
			}
			groups = append(groups, group)
		}
	}

	mirrorCount := 0
	for _, g := range groups {
		mirrorCount += len(g.Mirrors)
	}
	r.Logger.Info("loaded mirror definitions",
		slog.Int("groups", len(groups)), slog.Int("mirrors", mirrorCount))
	return groups, nil
}

// loadGroupFile parses one per-domain definition file. The format is
// KEY=VALUE: lines starting with # are comments, WEIGHT sets the group
// weight, and every other key is a case-folded repo name whose quoted value
// is that repo's mirror root URL.
func (r *Registry) loadGroupFile(domain, filePath, treePath string, now time.Time) (*mirror.Group, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading mirror definition %s: %w", filePath, err)
	}

	weight := -1
	var names []string
	urls := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("malformed line in %s: %q", filePath, line)
		}
		if key == "WEIGHT" {
			weight, err = strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("bad weight in %s: %w", filePath, err)
			}
			continue
		}
		name := strings.ToLower(key)
		if _, seen := urls[name]; !seen {
			names = append(names, name)
		}
		urls[name] = strings.Trim(value, `"`)
	}

	group := &mirror.Group{Domain: domain, MirrorFilePath: treePath}
	for _, name := range names {
		repoURL := strings.TrimRight(urls[name], "/")
		group.Mirrors = append(group.Mirrors, &mirror.Mirror{
			RepoURL:       repoURL,
			RepoName:      name,
			Weight:        weight,
			Authoritative: strings.HasPrefix(repoURL, r.AuthorityPrefix),
			NextCheck:     r.Schedule.First(now),
		})
	}
	r.Logger.Debug("loaded mirror definition file",
		slog.String("path", filePath), slog.Int("mirrors", len(group.Mirrors)))
	return group, nil
}
