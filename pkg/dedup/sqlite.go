package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const seenSchema = `
CREATE TABLE IF NOT EXISTS seen_content (
    hash TEXT PRIMARY KEY,
    first_seen TIMESTAMP NOT NULL,
    last_seen TIMESTAMP NOT NULL,
    count INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_seen_last ON seen_content(last_seen);
`

// SQLiteIndexConfig configures the SQLite dedup index.
type SQLiteIndexConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// Window is how long a sighting counts as a duplicate.
	// Default: 24 hours
	Window time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteIndex implements Index over a SQLite file. Suitable for
// single-instance deployments; the index survives restarts, which matters
// because a restart must not reopen the duplicate window.
type SQLiteIndex struct {
	db     *sql.DB
	window time.Duration

	closeOnce sync.Once

	lookupStmt  *sql.Stmt
	upsertStmt  *sql.Stmt
	cleanupStmt *sql.Stmt
}

// NewSQLiteIndex opens the index, creating the schema if needed.
func NewSQLiteIndex(cfg SQLiteIndexConfig) (*SQLiteIndex, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open dedup database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(seenSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize dedup schema: %w", err)
	}

	idx := &SQLiteIndex{db: db, window: cfg.Window}
	if err := idx.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (s *SQLiteIndex) prepareStatements() error {
	var err error
	s.lookupStmt, err = s.db.Prepare(
		`SELECT last_seen FROM seen_content WHERE hash = ?`)
	if err != nil {
		return fmt.Errorf("prepare lookup: %w", err)
	}
	s.upsertStmt, err = s.db.Prepare(`
		INSERT INTO seen_content (hash, first_seen, last_seen, count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(hash) DO UPDATE SET
			last_seen = excluded.last_seen,
			count = count + 1`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	s.cleanupStmt, err = s.db.Prepare(
		`DELETE FROM seen_content WHERE last_seen < ?`)
	if err != nil {
		return fmt.Errorf("prepare cleanup: %w", err)
	}
	return nil
}

// CheckAndRecord reports whether the hash was seen within the window and
// records this sighting. MaxOpenConns(1) serializes the lookup and upsert
// against concurrent callers.
func (s *SQLiteIndex) CheckAndRecord(ctx context.Context, hash string, at time.Time) (bool, error) {
	if hash == "" {
		return false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("dedup tx: %w", err)
	}
	defer tx.Rollback()

	var lastSeen time.Time
	seen := false
	err = tx.StmtContext(ctx, s.lookupStmt).QueryRowContext(ctx, hash).Scan(&lastSeen)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return false, fmt.Errorf("dedup lookup: %w", err)
	default:
		seen = at.Sub(lastSeen) <= s.window
	}

	if _, err := tx.StmtContext(ctx, s.upsertStmt).ExecContext(ctx, hash, at.UTC(), at.UTC()); err != nil {
		return false, fmt.Errorf("dedup record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("dedup commit: %w", err)
	}
	return seen, nil
}

// Cleanup removes entries last seen before the cutoff.
func (s *SQLiteIndex) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.cleanupStmt.ExecContext(ctx, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("dedup cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the prepared statements and the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.lookupStmt, s.upsertStmt, s.cleanupStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}
