package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightclass/teachmem/pkg/storage"
	"github.com/brightclass/teachmem/pkg/storage/sqlite"
)

func setupSQLiteTest(t *testing.T) *sqlite.Client {
	t.Helper()

	store, err := sqlite.NewClient(&sqlite.Config{
		DBPath: filepath.Join(t.TempDir(), "test_teachmem.db"),
	})
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRecord(id int64, owner string) *storage.Record {
	now := time.Now()
	return &storage.Record{
		ID:         id,
		OwnerID:    owner,
		Type:       "context",
		Key:        "subjects",
		ValueKind:  "string_list",
		Value:      []byte(`["math","science"]`),
		Confidence: 0.8,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestSQLiteClient_InsertAndGet(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	record := testRecord(100, "teacher_001")
	record.SourceSessionID = "session_42"
	require.NoError(t, store.Insert(ctx, record))

	retrieved, err := store.Get(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, int64(100), retrieved.ID)
	assert.Equal(t, "teacher_001", retrieved.OwnerID)
	assert.Equal(t, "context", retrieved.Type)
	assert.Equal(t, "subjects", retrieved.Key)
	assert.Equal(t, "string_list", retrieved.ValueKind)
	assert.JSONEq(t, `["math","science"]`, string(retrieved.Value))
	assert.Equal(t, 0.8, retrieved.Confidence)
	assert.False(t, retrieved.Verified)
	assert.Equal(t, "session_42", retrieved.SourceSessionID)
	assert.Nil(t, retrieved.LastAccessedAt)
	assert.Nil(t, retrieved.ExpiresAt)

	// Millisecond precision survives the round trip
	assert.Equal(t, record.CreatedAt.UnixMilli(), retrieved.CreatedAt.UnixMilli())
}

func TestSQLiteClient_GetMissing(t *testing.T) {
	store := setupSQLiteTest(t)

	retrieved, err := store.Get(context.Background(), 999)
	assert.NoError(t, err)
	assert.Nil(t, retrieved)
}

func TestSQLiteClient_FindLive(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRecord(1, "teacher_001")))

	record, err := store.FindLive(ctx, "teacher_001", "context", "subjects")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, int64(1), record.ID)

	// Wrong triple
	record, err = store.FindLive(ctx, "teacher_001", "preference", "subjects")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestSQLiteClient_FindLiveExcludesExpired(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	expired := testRecord(1, "teacher_001")
	past := time.Now().Add(-time.Hour)
	expired.ExpiresAt = &past
	require.NoError(t, store.Insert(ctx, expired))

	record, err := store.FindLive(ctx, "teacher_001", "context", "subjects")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestSQLiteClient_Query(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	for i, spec := range []struct {
		memoryType string
		key        string
		confidence float64
	}{
		{"context", "subjects", 0.9},
		{"context", "grade_levels", 0.5},
		{"preference", "teaching_style", 0.8},
	} {
		record := testRecord(int64(i+1), "teacher_001")
		record.Type = spec.memoryType
		record.Key = spec.key
		record.Confidence = spec.confidence
		record.UpdatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, store.Insert(ctx, record))
	}
	// Another owner's record must never leak in
	require.NoError(t, store.Insert(ctx, testRecord(99, "teacher_002")))

	records, err := store.Query(ctx, &storage.QueryOptions{OwnerID: "teacher_001"})
	require.NoError(t, err)
	require.Len(t, records, 3)
	// Ordered by updated_at descending
	assert.Equal(t, int64(3), records[0].ID)
	assert.Equal(t, int64(1), records[2].ID)

	records, err = store.Query(ctx, &storage.QueryOptions{
		OwnerID: "teacher_001",
		Type:    "context",
	})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	min := 0.7
	records, err = store.Query(ctx, &storage.QueryOptions{
		OwnerID:       "teacher_001",
		MinConfidence: &min,
	})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = store.Query(ctx, &storage.QueryOptions{
		OwnerID: "teacher_001",
		Limit:   1,
	})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSQLiteClient_QueryIncludeExpired(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	live := testRecord(1, "teacher_001")
	require.NoError(t, store.Insert(ctx, live))

	expired := testRecord(2, "teacher_001")
	expired.Key = "old_fact"
	past := time.Now().Add(-time.Hour)
	expired.ExpiresAt = &past
	require.NoError(t, store.Insert(ctx, expired))

	records, err := store.Query(ctx, &storage.QueryOptions{OwnerID: "teacher_001"})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	records, err = store.Query(ctx, &storage.QueryOptions{
		OwnerID:        "teacher_001",
		IncludeExpired: true,
	})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSQLiteClient_Update(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRecord(1, "teacher_001")))

	kind := "string"
	confidence := 0.95
	verified := true
	now := time.Now()
	err := store.Update(ctx, 1, &storage.UpdateFields{
		ValueKind:  &kind,
		Value:      []byte(`"art"`),
		Confidence: &confidence,
		Verified:   &verified,
		UpdatedAt:  now,
	})
	require.NoError(t, err)

	record, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "string", record.ValueKind)
	assert.JSONEq(t, `"art"`, string(record.Value))
	assert.Equal(t, 0.95, record.Confidence)
	assert.True(t, record.Verified)
	assert.Equal(t, now.UnixMilli(), record.UpdatedAt.UnixMilli())
	// Untouched fields survive
	assert.Equal(t, "teacher_001", record.OwnerID)
	assert.Equal(t, "subjects", record.Key)
}

func TestSQLiteClient_UpdateMissing(t *testing.T) {
	store := setupSQLiteTest(t)

	err := store.Update(context.Background(), 999, &storage.UpdateFields{
		UpdatedAt: time.Now(),
	})
	assert.Error(t, err)
}

func TestSQLiteClient_TouchAccessed(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRecord(1, "teacher_001")))

	at := time.Now()
	require.NoError(t, store.TouchAccessed(ctx, []int64{1}, at))

	record, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, record.LastAccessedAt)
	assert.Equal(t, at.UnixMilli(), record.LastAccessedAt.UnixMilli())
}

func TestSQLiteClient_ExpireBatch(t *testing.T) {
	store := setupSQLiteTest(t)
	ctx := context.Background()

	first := testRecord(1, "teacher_001")
	second := testRecord(2, "teacher_001")
	second.Key = "grade_levels"
	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))

	at := time.Now()
	require.NoError(t, store.ExpireBatch(ctx, []int64{1, 2}, at))

	records, err := store.Query(ctx, &storage.QueryOptions{OwnerID: "teacher_001"})
	require.NoError(t, err)
	assert.Empty(t, records)

	record, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, record.ExpiresAt)
	assert.Equal(t, at.UnixMilli(), record.ExpiresAt.UnixMilli())
}
