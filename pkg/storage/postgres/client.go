// Package postgres provides the PostgreSQL implementation of
// storage.RecordStore.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/brightclass/teachmem/pkg/storage"
)

// Client implements storage.RecordStore using PostgreSQL as the backend.
type Client struct {
	db        *sql.DB
	tableName string
}

// Config contains configuration for creating a PostgreSQL record store.
type Config struct {
	// Host is the database host (default: "localhost").
	Host string

	// Port is the database port (default: 5432).
	Port int

	// User is the database user.
	User string

	// Password is the database password.
	Password string

	// DBName is the database name.
	DBName string

	// TableName is the name of the table to use (default: "memories").
	TableName string

	// SSLMode is the sslmode connection parameter (default: "disable").
	SSLMode string
}

// NewClient creates a new PostgreSQL record store and initializes its
// schema.
//
// Parameters:
//   - cfg: Configuration containing connection settings and table name
//
// Returns the store instance, or an error if the connection or table
// creation fails.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.TableName == "" {
		cfg.TableName = "memories"
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
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
			id BIGINT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			memory_type TEXT NOT NULL,
			memory_key TEXT NOT NULL,
			value_kind TEXT NOT NULL,
			value TEXT,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0.8,
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			source_session_id TEXT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			last_accessed_at BIGINT,
			expires_at BIGINT
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, c.tableName, recordColumns)

	_, err := c.db.ExecContext(ctx, query,
		record.ID,
		record.OwnerID,
		record.Type,
		record.Key,
		record.ValueKind,
		string(record.Value),
		record.Confidence,
		record.Verified,
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
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", recordColumns, c.tableName)
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
		WHERE owner_id = $1 AND memory_type = $2 AND memory_key = $3
		  AND (expires_at IS NULL OR expires_at > $4)
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
	query := fmt.Sprintf("SELECT %s FROM %s WHERE owner_id = $1", recordColumns, c.tableName)
	args := []interface{}{opts.OwnerID}

	if opts.Type != "" {
		query += fmt.Sprintf(" AND memory_type = $%d", len(args)+1)
		args = append(args, opts.Type)
	}
	if opts.MinConfidence != nil {
		query += fmt.Sprintf(" AND confidence >= $%d", len(args)+1)
		args = append(args, *opts.MinConfidence)
	}
	if !opts.IncludeExpired {
		query += fmt.Sprintf(" AND (expires_at IS NULL OR expires_at > $%d)", len(args)+1)
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
	sets := []string{"updated_at = $1"}
	args := []interface{}{fields.UpdatedAt.UnixMilli()}

	appendSet := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}

	if fields.ValueKind != nil {
		appendSet("value_kind", *fields.ValueKind)
		appendSet("value", string(fields.Value))
	}
	if fields.Confidence != nil {
		appendSet("confidence", *fields.Confidence)
	}
	if fields.Verified != nil {
		appendSet("verified", *fields.Verified)
	}
	if fields.SourceSessionID != nil {
		appendSet("source_session_id", *fields.SourceSessionID)
	}
	if fields.ExpiresAt != nil {
		appendSet("expires_at", fields.ExpiresAt.UnixMilli())
	}
	if fields.LastAccessedAt != nil {
		appendSet("last_accessed_at", fields.LastAccessedAt.UnixMilli())
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		c.tableName, strings.Join(sets, ", "), len(args)+1)
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
	query := fmt.Sprintf("UPDATE %s SET last_accessed_at = $1 WHERE id IN (%s)",
		c.tableName, placeholders(2, len(ids)))
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
	query := fmt.Sprintf("UPDATE %s SET expires_at = $1, updated_at = $2 WHERE id IN (%s)",
		c.tableName, placeholders(3, len(ids)))
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
		&record.Verified,
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

// placeholders builds "$start, $start+1, ..." for n parameters.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func millisOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
