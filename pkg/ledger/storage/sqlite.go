package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger"
)

// SQLiteConfig contains configuration for the SQLite ledger backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/ledger.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteLedger implements ledger.BlockStore and ledger.AuditStore over one
// SQLite database.
type SQLiteLedger struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteLedger opens the database, applies pragmas and creates the
// schema.
func NewSQLiteLedger(config *SQLiteConfig, logger *slog.Logger) (*SQLiteLedger, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ledger.storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteLedger{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("ledger storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)
	return s, nil
}

func (s *SQLiteLedger) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enable wal: %w", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return fmt.Errorf("set busy_timeout: %w", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return fmt.Errorf("insert schema version: %w", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("get schema version: %w", err)
	}
	if version != SchemaVersion {
		return fmt.Errorf("schema version mismatch: expected %d, got %d", SchemaVersion, version)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

// Insert stores a new block.
func (s *SQLiteLedger) Insert(ctx context.Context, b *ledger.ACSBlock) error {
	var scope interface{}
	if len(b.Scope) > 0 {
		data, err := json.Marshal(b.Scope)
		if err != nil {
			return fmt.Errorf("marshal block scope: %w", err)
		}
		scope = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO acs_blocks (
			id, entity_type, entity_id, reason, severity, scope,
			created_by, created_at, audit_id, active, expires_at,
			unblocked_by, unblocked_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.EntityType, b.EntityID, b.Reason, b.Severity, scope,
		b.CreatedBy, b.CreatedAt.UTC(), nullStr(b.AuditID), b.Active, nullTime(b.ExpiresAt),
		nullStr(b.UnblockedBy), nullTime(b.UnblockedAt),
	)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

const blockColumns = `id, entity_type, entity_id, reason, severity, scope,
	created_by, created_at, audit_id, active, expires_at, unblocked_by, unblocked_at`

// ListActive returns active blocks for the entity, newest first.
func (s *SQLiteLedger) ListActive(ctx context.Context, entityType, entityID string) ([]*ledger.ACSBlock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+blockColumns+`
		FROM acs_blocks
		WHERE entity_type = ? AND entity_id = ? AND active = 1
		ORDER BY created_at DESC`,
		entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list active blocks: %w", err)
	}
	defer rows.Close()
	return scanBlocks(rows)
}

// Get returns the block by ID.
func (s *SQLiteLedger) Get(ctx context.Context, id string) (*ledger.ACSBlock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+blockColumns+`
		FROM acs_blocks WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get block: %w", err)
	}
	defer rows.Close()

	blocks, err := scanBlocks(rows)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, ledger.ErrNotFound
	}
	return blocks[0], nil
}

// Deactivate lifts an active block.
func (s *SQLiteLedger) Deactivate(ctx context.Context, id, liftedBy string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE acs_blocks
		SET active = 0, unblocked_by = ?, unblocked_at = ?
		WHERE id = ? AND active = 1`,
		liftedBy, at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deactivate block: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate block: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// ListExpired returns active blocks whose expiry is at or before asOf.
func (s *SQLiteLedger) ListExpired(ctx context.Context, asOf time.Time) ([]*ledger.ACSBlock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+blockColumns+`
		FROM acs_blocks
		WHERE active = 1 AND expires_at IS NOT NULL AND expires_at <= ?
		ORDER BY expires_at ASC`,
		asOf.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list expired blocks: %w", err)
	}
	defer rows.Close()
	return scanBlocks(rows)
}

func scanBlocks(rows *sql.Rows) ([]*ledger.ACSBlock, error) {
	blocks := []*ledger.ACSBlock{}
	for rows.Next() {
		var (
			b           ledger.ACSBlock
			scope       sql.NullString
			auditID     sql.NullString
			expiresAt   sql.NullTime
			unblockedBy sql.NullString
			unblockedAt sql.NullTime
		)
		err := rows.Scan(
			&b.ID, &b.EntityType, &b.EntityID, &b.Reason, &b.Severity, &scope,
			&b.CreatedBy, &b.CreatedAt, &auditID, &b.Active, &expiresAt,
			&unblockedBy, &unblockedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		if scope.Valid && scope.String != "" {
			if err := json.Unmarshal([]byte(scope.String), &b.Scope); err != nil {
				return nil, fmt.Errorf("unmarshal block scope: %w", err)
			}
		}
		b.AuditID = auditID.String
		b.UnblockedBy = unblockedBy.String
		if expiresAt.Valid {
			t := expiresAt.Time
			b.ExpiresAt = &t
		}
		if unblockedAt.Valid {
			t := unblockedAt.Time
			b.UnblockedAt = &t
		}
		blocks = append(blocks, &b)
	}
	return blocks, rows.Err()
}

// Append stores an audit entry.
func (s *SQLiteLedger) Append(ctx context.Context, e *ledger.AuditEntry) error {
	var event interface{}
	if len(e.Event) > 0 {
		data, err := json.Marshal(e.Event)
		if err != nil {
			return fmt.Errorf("marshal audit event: %w", err)
		}
		event = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO acs_audit (
			id, stream, seq, source, kind, event,
			rule_id, rule_version, actor, created_at, prev_hash, hash, signer
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Stream, e.Seq, e.Source, e.Kind, event,
		nullStr(e.RuleID), nullStr(e.RuleVersion), nullStr(e.Actor),
		e.CreatedAt.UTC(), e.PrevHash, e.Hash, nullStr(e.Signer),
	)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
			return ledger.ErrDuplicateEntry
		}
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

const auditColumns = `id, stream, seq, source, kind, event,
	rule_id, rule_version, actor, created_at, prev_hash, hash, signer`

// Tail returns the highest-seq entry in the stream, or nil when empty.
func (s *SQLiteLedger) Tail(ctx context.Context, stream string) (*ledger.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+auditColumns+`
		FROM acs_audit WHERE stream = ?
		ORDER BY seq DESC LIMIT 1`, stream)
	if err != nil {
		return nil, fmt.Errorf("audit tail: %w", err)
	}
	defer rows.Close()

	entries, err := scanAudit(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

// List returns entries with seq >= fromSeq in ascending order.
func (s *SQLiteLedger) List(ctx context.Context, stream string, fromSeq int64, limit int) ([]*ledger.AuditEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM acs_audit WHERE stream = ? AND seq >= ?
		ORDER BY seq ASC`
	args := []interface{}{stream, fromSeq}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()
	return scanAudit(rows)
}

func scanAudit(rows *sql.Rows) ([]*ledger.AuditEntry, error) {
	entries := []*ledger.AuditEntry{}
	for rows.Next() {
		var (
			e           ledger.AuditEntry
			event       sql.NullString
			ruleID      sql.NullString
			ruleVersion sql.NullString
			actor       sql.NullString
			signer      sql.NullString
		)
		err := rows.Scan(
			&e.ID, &e.Stream, &e.Seq, &e.Source, &e.Kind, &event,
			&ruleID, &ruleVersion, &actor, &e.CreatedAt, &e.PrevHash, &e.Hash, &signer,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if event.Valid && event.String != "" {
			if err := json.Unmarshal([]byte(event.String), &e.Event); err != nil {
				return nil, fmt.Errorf("unmarshal audit event: %w", err)
			}
		}
		e.RuleID = ruleID.String
		e.RuleVersion = ruleVersion.String
		e.Actor = actor.String
		e.Signer = signer.String
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
