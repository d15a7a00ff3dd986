package memory

import "time"

// DefaultQueryLimit caps GetMany results when no explicit limit is given.
const DefaultQueryLimit = 1000

// saveOptions contains optional parameters for Save.
type saveOptions struct {
	Confidence      *float64
	Verified        *bool
	SourceSessionID string
	ExpiresAt       *time.Time
}

// SaveOption is a function type for configuring Save.
type SaveOption func(*saveOptions)

// WithConfidence sets the confidence score for the saved fact.
// Without this option, new records default to DefaultConfidence and
// merged records keep their existing score.
//
// Example:
//
//	id, _ := client.Save(ctx, owner, "subjects", value, memory.TypeContext,
//	    memory.WithConfidence(0.9))
func WithConfidence(confidence float64) SaveOption {
	return func(opts *saveOptions) {
		opts.Confidence = &confidence
	}
}

// WithVerified marks the fact as explicitly confirmed by the teacher,
// exempting it from low-confidence cleanup.
func WithVerified(verified bool) SaveOption {
	return func(opts *saveOptions) {
		opts.Verified = &verified
	}
}

// WithSourceSession records which conversation produced the fact.
func WithSourceSession(sessionID string) SaveOption {
	return func(opts *saveOptions) {
		opts.SourceSessionID = sessionID
	}
}

// WithExpiry sets an explicit expiry on the saved fact.
func WithExpiry(expiresAt time.Time) SaveOption {
	return func(opts *saveOptions) {
		opts.ExpiresAt = &expiresAt
	}
}

func applySaveOptions(opts []SaveOption) *saveOptions {
	options := &saveOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// queryOptions contains optional parameters for GetMany.
type queryOptions struct {
	Type           Type
	MinConfidence  *float64
	IncludeExpired bool
	Limit          int
}

// QueryOption is a function type for configuring GetMany.
type QueryOption func(*queryOptions)

// WithType filters results to a single memory type.
func WithType(memoryType Type) QueryOption {
	return func(opts *queryOptions) {
		opts.Type = memoryType
	}
}

// WithMinConfidence excludes records below the given confidence score.
func WithMinConfidence(min float64) QueryOption {
	return func(opts *queryOptions) {
		opts.MinConfidence = &min
	}
}

// WithIncludeExpired includes logically deleted records in the results.
func WithIncludeExpired() QueryOption {
	return func(opts *queryOptions) {
		opts.IncludeExpired = true
	}
}

// WithLimit caps the number of results (default DefaultQueryLimit).
func WithLimit(limit int) QueryOption {
	return func(opts *queryOptions) {
		opts.Limit = limit
	}
}

func applyQueryOptions(opts []QueryOption) *queryOptions {
	options := &queryOptions{
		Limit: DefaultQueryLimit,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.Limit <= 0 {
		options.Limit = DefaultQueryLimit
	}
	return options
}

// UpdateFields describes a partial update for Update. Nil fields are
// left untouched; updated_at is always stamped.
type UpdateFields struct {
	// Value replaces the fact payload when non-nil.
	Value *Value

	// Confidence replaces the confidence score when non-nil.
	Confidence *float64

	// Verified replaces the verified flag when non-nil.
	Verified *bool

	// SourceSessionID replaces the session back-reference when non-nil.
	SourceSessionID *string

	// ExpiresAt replaces the expiry when non-nil.
	ExpiresAt *time.Time
}

func (f *UpdateFields) empty() bool {
	return f == nil ||
		(f.Value == nil && f.Confidence == nil && f.Verified == nil &&
			f.SourceSessionID == nil && f.ExpiresAt == nil)
}
