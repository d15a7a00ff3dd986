package memory

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/brightclass/teachmem/pkg/cache"
	"github.com/brightclass/teachmem/pkg/extract"
	"github.com/brightclass/teachmem/pkg/gate"
	"github.com/brightclass/teachmem/pkg/storage"
	"github.com/brightclass/teachmem/pkg/storage/mysql"
	"github.com/brightclass/teachmem/pkg/storage/postgres"
	"github.com/brightclass/teachmem/pkg/storage/sqlite"
)

// Client is the main entry point for storing and retrieving teacher
// memories. It owns a backing store, a read cache, and a concurrency
// gate; all storage traffic flows through the gate and every write
// invalidates the owner's cached queries.
//
// Example:
//
//	cfg, _ := memory.LoadConfigFromEnv()
//	client, err := memory.NewClient(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	id, err := client.Save(ctx, "teacher_001", "subjects",
//	    memory.StringListValue([]string{"math", "science"}), memory.TypeContext)
type Client struct {
	store     storage.RecordStore
	cache     *cache.Cache
	gate      *gate.Gate
	node      *snowflake.Node
	extractor *extract.Extractor
	locks     keyedLock

	mu     sync.Mutex
	closed bool
}

// ClientOption configures a Client created with NewClientWithStore.
type ClientOption func(*clientOptions)

type clientOptions struct {
	maxConcurrent int
	cacheTTL      time.Duration
}

// WithGateLimit sets the maximum number of concurrent storage operations
// (default gate.DefaultMaxConcurrent).
func WithGateLimit(n int) ClientOption {
	return func(opts *clientOptions) {
		opts.maxConcurrent = n
	}
}

// WithCacheTTL sets the time-to-live for cached query results
// (default cache.DefaultTTL).
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(opts *clientOptions) {
		opts.cacheTTL = ttl
	}
}

// NewClient creates a new TeachMem client from configuration.
//
// Parameters:
//   - cfg: Configuration specifying the storage backend, gate limit, and
//     cache TTL. Must not be nil.
//
// Returns the client instance, or an error if the configuration is
// invalid or the storage backend cannot be initialized.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, newError("NewClient", fmt.Errorf("%w: config is nil", ErrInvalidConfig))
	}
	if err := cfg.Validate(); err != nil {
		return nil, newError("NewClient", err)
	}

	store, err := initStorage(cfg)
	if err != nil {
		return nil, newError("NewClient", err)
	}

	client, err := NewClientWithStore(store,
		WithGateLimit(cfg.MaxConcurrent),
		WithCacheTTL(cfg.CacheTTL))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return client, nil
}

// NewClientWithStore creates a client on top of an existing record store.
// Useful for tests and for callers that manage storage themselves.
func NewClientWithStore(store storage.RecordStore, opts ...ClientOption) (*Client, error) {
	if store == nil {
		return nil, newError("NewClient", fmt.Errorf("%w: store is nil", ErrInvalidConfig))
	}

	options := &clientOptions{
		maxConcurrent: gate.DefaultMaxConcurrent,
		cacheTTL:      cache.DefaultTTL,
	}
	for _, opt := range opts {
		opt(options)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, newError("NewClient", fmt.Errorf("failed to create ID generator: %w", err))
	}

	return &Client{
		store:     store,
		cache:     cache.New(options.cacheTTL),
		gate:      gate.New(options.maxConcurrent),
		node:      node,
		extractor: extract.New(),
	}, nil
}

// initStorage creates the record store named by the configuration.
func initStorage(cfg *Config) (storage.RecordStore, error) {
	switch cfg.Provider {
	case ProviderSQLite:
		return sqlite.NewClient(&sqlite.Config{
			DBPath:    cfg.SQLite.Path,
			TableName: cfg.SQLite.TableName,
		})
	case ProviderPostgres:
		return postgres.NewClient(&postgres.Config{
			Host:      cfg.Postgres.Host,
			Port:      cfg.Postgres.Port,
			User:      cfg.Postgres.User,
			Password:  cfg.Postgres.Password,
			DBName:    cfg.Postgres.Database,
			TableName: cfg.Postgres.TableName,
			SSLMode:   cfg.Postgres.SSLMode,
		})
	case ProviderMySQL:
		return mysql.NewClient(&mysql.Config{
			Host:      cfg.MySQL.Host,
			Port:      cfg.MySQL.Port,
			User:      cfg.MySQL.User,
			Password:  cfg.MySQL.Password,
			DBName:    cfg.MySQL.Database,
			TableName: cfg.MySQL.TableName,
		})
	default:
		return nil, fmt.Errorf("%w: unknown storage provider: %s", ErrInvalidConfig, cfg.Provider)
	}
}

// Save stores a fact, merging into the existing live record for the
// (ownerID, memoryType, key) triple when one exists.
//
// On merge the value is replaced and updated_at and last_accessed_at are
// stamped; confidence, verified, and the session back-reference only
// change when the corresponding option is given. New records default to
// DefaultConfidence and verified false.
//
// Parameters:
//   - ctx: Context for cancellation
//   - ownerID: The teacher the fact belongs to
//   - key: The fact's name within (ownerID, memoryType)
//   - value: The fact's payload
//   - memoryType: One of the defined memory types
//   - opts: Optional settings (WithConfidence, WithVerified,
//     WithSourceSession, WithExpiry)
//
// Returns the record ID (existing on merge, new otherwise).
func (c *Client) Save(ctx context.Context, ownerID, key string, value Value, memoryType Type, opts ...SaveOption) (int64, error) {
	if err := c.checkClosed(); err != nil {
		return 0, newError("Save", err)
	}
	if ownerID == "" {
		return 0, newError("Save", fmt.Errorf("%w: owner ID is required", ErrInvalidInput))
	}
	if key == "" {
		return 0, newError("Save", fmt.Errorf("%w: key is required", ErrInvalidInput))
	}
	if !memoryType.Valid() {
		return 0, newError("Save", fmt.Errorf("%w: unknown memory type: %s", ErrInvalidInput, memoryType))
	}
	if len(value.Raw) == 0 {
		return 0, newError("Save", fmt.Errorf("%w: value is required", ErrInvalidInput))
	}

	options := applySaveOptions(opts)
	if options.Confidence != nil && (*options.Confidence < 0 || *options.Confidence > 1) {
		return 0, newError("Save", fmt.Errorf("%w: confidence must be in [0,1]", ErrInvalidInput))
	}

	// Hold the triple's lock across find-then-write so two concurrent
	// saves cannot both miss and create duplicate live records.
	lock := c.locks.lock(ownerID, memoryType, key)
	defer lock.Unlock()

	var id int64
	err := c.gate.Run(ctx, func(ctx context.Context) error {
		existing, err := c.store.FindLive(ctx, ownerID, string(memoryType), key)
		if err != nil {
			return err
		}

		now := time.Now()
		if existing != nil {
			kind := string(value.Kind)
			fields := &storage.UpdateFields{
				ValueKind:      &kind,
				Value:          value.Raw,
				Confidence:     options.Confidence,
				Verified:       options.Verified,
				ExpiresAt:      options.ExpiresAt,
				LastAccessedAt: &now,
				UpdatedAt:      now,
			}
			if options.SourceSessionID != "" {
				fields.SourceSessionID = &options.SourceSessionID
			}
			if err := c.store.Update(ctx, existing.ID, fields); err != nil {
				return err
			}
			id = existing.ID
			return nil
		}

		record := &storage.Record{
			ID:              c.node.Generate().Int64(),
			OwnerID:         ownerID,
			Type:            string(memoryType),
			Key:             key,
			ValueKind:       string(value.Kind),
			Value:           value.Raw,
			Confidence:      DefaultConfidence,
			SourceSessionID: options.SourceSessionID,
			CreatedAt:       now,
			UpdatedAt:       now,
			ExpiresAt:       options.ExpiresAt,
		}
		if options.Confidence != nil {
			record.Confidence = *options.Confidence
		}
		if options.Verified != nil {
			record.Verified = *options.Verified
		}
		if err := c.store.Insert(ctx, record); err != nil {
			return err
		}
		id = record.ID
		return nil
	})
	if err != nil {
		return 0, storageError("Save", err)
	}

	c.invalidateOwner(ownerID)
	return id, nil
}

// GetMany retrieves an owner's memory records, most recently updated
// first. Results are cached per filter combination; a cache hit skips
// the store entirely. On a miss the records are fetched, cached, and
// their last_accessed_at is bumped in the background.
//
// Expired records are excluded unless WithIncludeExpired is given.
func (c *Client) GetMany(ctx context.Context, ownerID string, opts ...QueryOption) ([]*Record, error) {
	if err := c.checkClosed(); err != nil {
		return nil, newError("GetMany", err)
	}
	if ownerID == "" {
		return nil, newError("GetMany", fmt.Errorf("%w: owner ID is required", ErrInvalidInput))
	}

	options := applyQueryOptions(opts)
	cacheKey := queryCacheKey(ownerID, options)

	if cached, ok := c.cache.Get(cacheKey); ok {
		if records, ok := cached.([]*Record); ok {
			return records, nil
		}
	}

	var records []*storage.Record
	err := c.gate.Run(ctx, func(ctx context.Context) error {
		var err error
		records, err = c.store.Query(ctx, &storage.QueryOptions{
			OwnerID:        ownerID,
			Type:           string(options.Type),
			MinConfidence:  options.MinConfidence,
			IncludeExpired: options.IncludeExpired,
			Limit:          options.Limit,
		})
		return err
	})
	if err != nil {
		return nil, storageError("GetMany", err)
	}

	results := fromStorageRecords(records)
	c.cache.Set(cacheKey, results, 0)

	if len(records) > 0 {
		ids := make([]int64, len(records))
		for i, r := range records {
			ids[i] = r.ID
		}
		c.touchAsync(ids)
	}

	return results, nil
}

// GetOne retrieves the live record for (ownerID, memoryType, key).
// Returns (nil, nil) when no live record exists.
func (c *Client) GetOne(ctx context.Context, ownerID string, memoryType Type, key string) (*Record, error) {
	if err := c.checkClosed(); err != nil {
		return nil, newError("GetOne", err)
	}
	if ownerID == "" || key == "" {
		return nil, newError("GetOne", fmt.Errorf("%w: owner ID and key are required", ErrInvalidInput))
	}
	if !memoryType.Valid() {
		return nil, newError("GetOne", fmt.Errorf("%w: unknown memory type: %s", ErrInvalidInput, memoryType))
	}

	var record *storage.Record
	err := c.gate.Run(ctx, func(ctx context.Context) error {
		var err error
		record, err = c.store.FindLive(ctx, ownerID, string(memoryType), key)
		return err
	})
	if err != nil {
		return nil, storageError("GetOne", err)
	}
	if record == nil {
		return nil, nil
	}

	c.touchAsync([]int64{record.ID})
	return fromStorageRecord(record), nil
}

// Update applies a partial update to a record by ID. Only the non-nil
// fields change; updated_at is always stamped. Returns ErrNotFound when
// no record has the given ID.
func (c *Client) Update(ctx context.Context, id int64, fields *UpdateFields) error {
	if err := c.checkClosed(); err != nil {
		return newError("Update", err)
	}
	if fields.empty() {
		return newError("Update", fmt.Errorf("%w: no fields to update", ErrInvalidInput))
	}
	if fields.Confidence != nil && (*fields.Confidence < 0 || *fields.Confidence > 1) {
		return newError("Update", fmt.Errorf("%w: confidence must be in [0,1]", ErrInvalidInput))
	}

	err := c.gate.Run(ctx, func(ctx context.Context) error {
		existing, err := c.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrNotFound
		}

		update := &storage.UpdateFields{
			Confidence:      fields.Confidence,
			Verified:        fields.Verified,
			SourceSessionID: fields.SourceSessionID,
			ExpiresAt:       fields.ExpiresAt,
			UpdatedAt:       time.Now(),
		}
		if fields.Value != nil {
			kind := string(fields.Value.Kind)
			update.ValueKind = &kind
			update.Value = fields.Value.Raw
		}
		if err := c.store.Update(ctx, id, update); err != nil {
			return err
		}

		c.invalidateOwner(existing.OwnerID)
		return nil
	})
	if err != nil {
		if err == ErrNotFound {
			return newError("Update", err)
		}
		return storageError("Update", err)
	}
	return nil
}

// SoftDelete logically deletes a record by setting its expiry to now.
// The row is preserved for audit; queries exclude it unless expired
// records are explicitly requested. Returns ErrNotFound when no record
// has the given ID.
func (c *Client) SoftDelete(ctx context.Context, id int64) error {
	if err := c.checkClosed(); err != nil {
		return newError("SoftDelete", err)
	}

	err := c.gate.Run(ctx, func(ctx context.Context) error {
		existing, err := c.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrNotFound
		}

		now := time.Now()
		update := &storage.UpdateFields{
			ExpiresAt: &now,
			UpdatedAt: now,
		}
		if err := c.store.Update(ctx, id, update); err != nil {
			return err
		}

		c.invalidateOwner(existing.OwnerID)
		return nil
	})
	if err != nil {
		if err == ErrNotFound {
			return newError("SoftDelete", err)
		}
		return storageError("SoftDelete", err)
	}
	return nil
}

// Remember extracts facts from a message and saves each one, merging
// with existing records per the Save semantics. Text yielding no
// extractable facts returns an empty slice and no error.
//
// Each saved fact carries the extractor's confidence for its pattern;
// other options given by the caller apply to every fact.
//
// Returns the IDs of the saved records in extraction order.
func (c *Client) Remember(ctx context.Context, ownerID, text string, opts ...SaveOption) ([]int64, error) {
	if err := c.checkClosed(); err != nil {
		return nil, newError("Remember", err)
	}
	if ownerID == "" {
		return nil, newError("Remember", fmt.Errorf("%w: owner ID is required", ErrInvalidInput))
	}

	candidates := c.extractor.Extract(text)
	ids := make([]int64, 0, len(candidates))

	for _, candidate := range candidates {
		value, err := candidateValue(candidate.Value)
		if err != nil {
			return ids, newError("Remember", err)
		}

		saveOpts := make([]SaveOption, 0, len(opts)+1)
		saveOpts = append(saveOpts, opts...)
		saveOpts = append(saveOpts, WithConfidence(candidate.Confidence))

		id, err := c.Save(ctx, ownerID, candidate.Key, value, Type(candidate.Type), saveOpts...)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// candidateValue converts an extractor payload into a tagged Value.
func candidateValue(v interface{}) (Value, error) {
	switch payload := v.(type) {
	case string:
		return StringValue(payload), nil
	case int:
		return IntValue(payload), nil
	case []int:
		return IntListValue(payload), nil
	case []string:
		return StringListValue(payload), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported extracted value type %T", ErrInvalidInput, v)
	}
}

// Close shuts the client down: the gate stops admitting work and drains
// in-flight operations, the cache is flushed, and the store is closed.
// Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.gate.Close()
	c.cache.Flush()
	return c.store.Close()
}

func (c *Client) checkClosed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// invalidateOwner drops every cached query for the owner after a write.
func (c *Client) invalidateOwner(ownerID string) {
	c.cache.Invalidate("memories:" + ownerID + ":*")
}

// touchAsync bumps last_accessed_at on the given records in the
// background. Access stamping is best-effort bookkeeping: failures are
// logged and never surface to the read that triggered them.
func (c *Client) touchAsync(ids []int64) {
	now := time.Now()
	go func() {
		err := c.gate.Run(context.Background(), func(ctx context.Context) error {
			return c.store.TouchAccessed(ctx, ids, now)
		})
		if err != nil && err != gate.ErrClosed {
			log.Printf("teachmem: failed to stamp last_accessed_at: %v", err)
		}
	}()
}

// queryCacheKey builds the cache key for one filter combination.
func queryCacheKey(ownerID string, opts *queryOptions) string {
	confidence := ""
	if opts.MinConfidence != nil {
		confidence = strconv.FormatFloat(*opts.MinConfidence, 'f', -1, 64)
	}
	return fmt.Sprintf("memories:%s:%s:%s:%t:%d",
		ownerID, opts.Type, confidence, opts.IncludeExpired, opts.Limit)
}
