// Package sqlite provides the SQLite implementation of storage.RecordStore.
//
// SQLite is the default backend for local development and embedded use.
// Timestamps are stored as integer milliseconds since epoch so rows are
// portable across backends.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/brightclass/teachmem/pkg/storage"
)

// Client implements storage.RecordStore using SQLite as the backend.
type Client struct {
	db        *sql.DB
	tableName string
}

// Config contains configuration for creating a SQLite record store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TableName is the name of the table to use (default: "memories").
	TableName string
}

// NewClient creates a new SQLite record store and initializes its schema.
//
// Parameters:
//   - cfg: Configuration containing database path and table name
//
// Returns the store instance, or an error if the database cannot be
// opened or the table cannot be created.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.TableName == "" {
		cfg.TableName = "memories"
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	client := &Client{
		db:        db,
		tableName: cfg.TableName,
	}

	if err := client.initTable(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return client, nil
}

// initTable initializes the database table structure.
func (c *Client) initTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			owner_id TEXT NOT NULL,
			memory_type TEXT NOT NULL,
			memory_key TEXT NOT NULL,
			value_kind TEXT NOT NULL,
			value TEXT,
			confidence REAL NOT NULL DEFAULT 0.8,
			verified INTEGER NOT NULL DEFAULT 0,
			source_session_id TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			last_accessed_at INTEGER,
			expires_at INTEGER
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_owner_type_key ON %s(owner_id, memory_type, memory_key)
	`, c.tableName, c.tableName)

	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

const recordColumns = `id, owner_id, memory_type, memory_key, value_kind, value,
	confidence, verified, source_session_id, created_at, updated_at, last_accessed_at, expires_at`

// Insert inserts a new record.
func (c *Client) Insert(ctx context.Context, record *storage.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.tableName, recordColumns)

	_, err := c.db.ExecContext(ctx, query,
		record.ID,
		record.OwnerID,
		record.Type,
		record.Key,
		record.ValueKind,
		string(record.Value),
		record.Confidence,
		boolToInt(record.Verified),
		record.SourceSessionID,
		record.CreatedAt.UnixMilli(),
		record.UpdatedAt.UnixMilli(),
		millisOrNil(record.LastAccessedAt),
		millisOrNil(record.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// Get retrieves a record by ID, expired or not.
func (c *Client) Get(ctx context.Context, id int64) (*storage.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", recordColumns, c.tableName)
	record, err := scanRecord(c.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return record, nil
}

// FindLive retrieves the live record for (owner, type, key).
func (c *Client) FindLive(ctx context.Context, ownerID, memoryType, key string) (*storage.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = ? AND memory_type = ? AND memory_key = ?
		  AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY updated_at DESC
		LIMIT 1
	`, recordColumns, c.tableName)

	record, err := scanRecord(c.db.QueryRowContext(ctx, query,
		ownerID, memoryType, key, time.Now().UnixMilli()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find record: %w", err)
	}
	return record, nil
}

// Query retrieves records matching the options, ordered by updated_at
// descending.
func (c *Client) Query(ctx context.Context, opts *storage.QueryOptions) ([]*storage.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE owner_id = ?", recordColumns, c.tableName)
	args := []interface{}{opts.OwnerID}

	if opts.Type != "" {
		query += " AND memory_type = ?"
		args = append(args, opts.Type)
	}
	if opts.MinConfidence != nil {
		query += " AND confidence >= ?"
		args = append(args, *opts.MinConfidence)
	}
	if !opts.IncludeExpired {
		query += " AND (expires_at IS NULL OR expires_at > ?)"
		args = append(args, time.Now().UnixMilli())
	}

	query += " ORDER BY updated_at DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
		if opts.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", opts.Offset)
		}
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*storage.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// Update applies a partial update to a record.
func (c *Client) Update(ctx context.Context, id int64, fields *storage.UpdateFields) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{fields.UpdatedAt.UnixMilli()}

	if fields.ValueKind != nil {
		sets = append(sets, "value_kind = ?", "value = ?")
		args = append(args, *fields.ValueKind, string(fields.Value))
	}
	if fields.Confidence != nil {
		sets = append(sets, "confidence = ?")
		args = append(args, *fields.Confidence)
	}
	if fields.Verified != nil {
		sets = append(sets, "verified = ?")
		args = append(args, boolToInt(*fields.Verified))
	}
	if fields.SourceSessionID != nil {
		sets = append(sets, "source_session_id = ?")
		args = append(args, *fields.SourceSessionID)
	}
	if fields.ExpiresAt != nil {
		sets = append(sets, "expires_at = ?")
		args = append(args, fields.ExpiresAt.UnixMilli())
	}
	if fields.LastAccessedAt != nil {
		sets = append(sets, "last_accessed_at = ?")
		args = append(args, fields.LastAccessedAt.UnixMilli())
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", c.tableName, strings.Join(sets, ", "))
	args = append(args, id)

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record not found")
	}
	return nil
}

// TouchAccessed stamps last_accessed_at on the given records.
func (c *Client) TouchAccessed(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf("UPDATE %s SET last_accessed_at = ? WHERE id IN (%s)",
		c.tableName, placeholders(len(ids)))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, at.UnixMilli())
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to touch records: %w", err)
	}
	return nil
}

// ExpireBatch sets expires_at on the given records in one statement.
func (c *Client) ExpireBatch(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf("UPDATE %s SET expires_at = ?, updated_at = ? WHERE id IN (%s)",
		c.tableName, placeholders(len(ids)))
	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, at.UnixMilli(), at.UnixMilli())
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to expire records: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*storage.Record, error) {
	var record storage.Record
	var value sql.NullString
	var verified int
	var sessionID sql.NullString
	var createdAt, updatedAt int64
	var lastAccessedAt, expiresAt sql.NullInt64

	err := s.Scan(
		&record.ID,
		&record.OwnerID,
		&record.Type,
		&record.Key,
		&record.ValueKind,
		&value,
		&record.Confidence,
		&verified,
		&sessionID,
		&createdAt,
		&updatedAt,
		&lastAccessedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	if value.Valid {
		record.Value = []byte(value.String)
	}
	record.Verified = verified != 0
	if sessionID.Valid {
		record.SourceSessionID = sessionID.String
	}
	record.CreatedAt = time.UnixMilli(createdAt)
	record.UpdatedAt = time.UnixMilli(updatedAt)
	if lastAccessedAt.Valid {
		t := time.UnixMilli(lastAccessedAt.Int64)
		record.LastAccessedAt = &t
	}
	if expiresAt.Valid {
		t := time.UnixMilli(expiresAt.Int64)
		record.ExpiresAt = &t
	}

	return &record, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func millisOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
