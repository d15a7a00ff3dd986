// Package storage provides the backing-store contract for memory records.
//
// It defines the RecordStore interface that all storage implementations
// must satisfy, along with the wire-level record representation and query
// options. Implementations exist for SQLite, PostgreSQL, and MySQL.
package storage

import (
	"context"
	"time"
)

// Record is the storage-level representation of a memory record.
//
// This type is defined in the storage package to avoid circular
// dependencies with the memory package. The value payload is carried as
// serialized JSON plus a kind tag so the store stays schema-agnostic.
type Record struct {
	// ID is the unique identifier, assigned by the caller at creation.
	ID int64

	// OwnerID identifies the user the record belongs to.
	OwnerID string

	// Type is the memory type: preference, pattern, context, or skill.
	Type string

	// Key names the fact within (OwnerID, Type).
	Key string

	// ValueKind tags the shape of the serialized value payload.
	ValueKind string

	// Value is the serialized JSON payload of the fact.
	Value []byte

	// Confidence is the confidence score in [0,1].
	Confidence float64

	// Verified is true when a user explicitly confirmed the fact.
	Verified bool

	// SourceSessionID optionally references the conversation that
	// produced the fact.
	SourceSessionID string

	// CreatedAt is when the record was created.
	CreatedAt time.Time

	// UpdatedAt is when the record was last updated.
	UpdatedAt time.Time

	// LastAccessedAt is when the record was last returned by a query
	// (nil if never accessed).
	LastAccessedAt *time.Time

	// ExpiresAt marks the record logically deleted once in the past
	// (nil means the record never expires).
	ExpiresAt *time.Time
}

// Live reports whether the record is not expired at the given instant.
func (r *Record) Live(now time.Time) bool {
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}

// QueryOptions contains filters for Query operations.
type QueryOptions struct {
	// OwnerID filters records to a specific owner (required).
	OwnerID string

	// Type filters records by memory type (empty matches all types).
	Type string

	// MinConfidence, when non-nil, excludes records with a lower
	// confidence score.
	MinConfidence *float64

	// IncludeExpired includes logically deleted records in the results.
	IncludeExpired bool

	// Limit caps the number of results. Non-positive means no cap at
	// the storage layer; callers apply their own default.
	Limit int

	// Offset skips the first N results (for pagination).
	Offset int
}

// UpdateFields describes a partial update. Nil fields are left untouched;
// UpdatedAt is always written.
type UpdateFields struct {
	// ValueKind and Value replace the payload when ValueKind is non-nil.
	ValueKind *string
	Value     []byte

	// Confidence replaces the confidence score when non-nil.
	Confidence *float64

	// Verified replaces the verified flag when non-nil.
	Verified *bool

	// SourceSessionID replaces the session back-reference when non-nil.
	SourceSessionID *string

	// ExpiresAt replaces the expiry when non-nil.
	ExpiresAt *time.Time

	// LastAccessedAt replaces the access timestamp when non-nil.
	LastAccessedAt *time.Time

	// UpdatedAt is the update timestamp to stamp on the row.
	UpdatedAt time.Time
}

// RecordStore defines the interface for memory record storage backends.
//
// All implementations (SQLite, PostgreSQL, MySQL) must implement this
// interface. Methods that look up a single record return (nil, nil) when
// no matching row exists.
type RecordStore interface {
	// Insert inserts a new record.
	Insert(ctx context.Context, record *Record) error

	// Get retrieves a record by ID, expired or not.
	Get(ctx context.Context, id int64) (*Record, error)

	// FindLive retrieves the live record for (owner, type, key),
	// preferring the most recently updated when duplicates exist.
	FindLive(ctx context.Context, ownerID, memoryType, key string) (*Record, error)

	// Query retrieves records matching the options, ordered by
	// updated_at descending.
	Query(ctx context.Context, opts *QueryOptions) ([]*Record, error)

	// Update applies a partial update to a record.
	Update(ctx context.Context, id int64, fields *UpdateFields) error

	// TouchAccessed stamps last_accessed_at on the given records.
	TouchAccessed(ctx context.Context, ids []int64, at time.Time) error

	// ExpireBatch sets expires_at on the given records in one statement.
	ExpireBatch(ctx context.Context, ids []int64, at time.Time) error

	// Close closes the store and releases resources.
	Close() error
}
