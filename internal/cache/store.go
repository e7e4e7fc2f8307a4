package cache

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/angeloszaimis/mirror-minder/internal/mirror"
)

// Store provides SQLite-backed persistence of mirror monitoring state.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// DefaultPath returns the per-user cache database path, creating parent
// directories so it is immediately writable.
func DefaultPath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating user cache dir: %w", err)
	}
	dir := filepath.Join(cacheDir, "mirror-minder")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}
	return filepath.Join(dir, "mirror_cache.db"), nil
}

// Open opens the cache database at dbPath and runs migrations. A corrupt
// database is not worth dying over: it is removed and recreated empty, so
// the engine falls back to a cold start for every mirror.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	s, err := open(dbPath, logger)
	if err == nil {
		return s, nil
	}

	logger.Error("cache unusable, starting fresh",
		slog.String("path", dbPath), slog.Any("err", err))
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing corrupt cache: %w", err)
	}
	return open(dbPath, logger)
}

func open(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging cache database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating cache database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing cache database: %w", err)
	}
	return nil
}

// Load reads the persisted monitoring state, keyed by repo URL. Any read
// problem is logged and yields empty history instead of an error: the cache
// only ever speeds up convergence, it is never required.
func (s *Store) Load() map[string]mirror.History {
	const query = `
		SELECT repo_url, consecutive_check_failures,
		       last_check, last_successful_check, last_sync_time
		FROM mirror_state
	`

	rows, err := s.db.Query(query)
	if err != nil {
		s.logger.Error("reading cache failed, starting fresh", slog.Any("err", err))
		return nil
	}
	defer rows.Close()

	cached := make(map[string]mirror.History)
	for rows.Next() {
		var (
			repoURL                             string
			failures                            int
			lastCheck, lastSuccessful, lastSync sql.NullTime
		)
		if err := rows.Scan(&repoURL, &failures, &lastCheck, &lastSuccessful, &lastSync); err != nil {
			s.logger.Error("scanning cache row failed, starting fresh", slog.Any("err", err))
			return nil
		}
		cached[repoURL] = mirror.History{
			ConsecutiveCheckFailures: failures,
			LastCheck:                nullableTime(lastCheck),
			LastSuccessfulCheck:      nullableTime(lastSuccessful),
			LastSyncTime:             nullableTime(lastSync),
		}
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("iterating cache rows failed, starting fresh", slog.Any("err", err))
		return nil
	}

	s.logger.Info("loaded cached mirror state", slog.Int("mirrors", len(cached)))
	return cached
}

// Save rewrites the snapshot with the current state of every mirror in the
// topology, atomically within one transaction. Mirrors no longer in the
// topology disappear from the cache with it.
func (s *Store) Save(groups []*mirror.Group) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning cache transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM mirror_state"); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	const insert = `
		INSERT INTO mirror_state (
			repo_url, repo_name, domain, consecutive_check_failures,
			last_check, last_successful_check, last_sync_time
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, group := range groups {
		for _, m := range group.Mirrors {
			_, err := tx.Exec(insert,
				m.RepoURL, m.RepoName, group.Domain, m.ConsecutiveCheckFailures,
				nullableArg(m.LastCheck), nullableArg(m.LastSuccessfulCheck),
				nullableArg(m.LastSyncTime),
			)
			if err != nil {
				return fmt.Errorf("writing cache row for %s: %w", m.RepoURL, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cache transaction: %w", err)
	}
	return nil
}

func nullableTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func nullableArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
