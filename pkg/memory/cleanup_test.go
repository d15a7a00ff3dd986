package memory_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightclass/teachmem/pkg/memory"
	"github.com/brightclass/teachmem/pkg/storage"
	"github.com/brightclass/teachmem/pkg/storage/sqlite"
)

func setupCleanupTest(t *testing.T) (*memory.Client, *sqlite.Client) {
	t.Helper()

	store, err := sqlite.NewClient(&sqlite.Config{
		DBPath: filepath.Join(t.TempDir(), "test_teachmem.db"),
	})
	require.NoError(t, err)

	client, err := memory.NewClientWithStore(store)
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })
	return client, store
}

// insertAged writes a record directly to the store so its creation time
// can be backdated.
func insertAged(t *testing.T, store *sqlite.Client, id int64, ageDays int, confidence float64, verified bool) {
	t.Helper()

	createdAt := time.Now().AddDate(0, 0, -ageDays)
	require.NoError(t, store.Insert(context.Background(), &storage.Record{
		ID:         id,
		OwnerID:    "teacher_001",
		Type:       "context",
		Key:        "fact_" + string(rune('a'+id)),
		ValueKind:  "string",
		Value:      []byte(`"something"`),
		Confidence: confidence,
		Verified:   verified,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}))
}

func TestClient_CleanupRemovesStaleLowConfidence(t *testing.T) {
	client, store := setupCleanupTest(t)
	ctx := context.Background()

	// Old, unverified, low confidence: removable
	insertAged(t, store, 1, 100, 0.3, false)
	// Old and low confidence but verified: protected
	insertAged(t, store, 2, 100, 0.3, true)
	// Old but confident: kept
	insertAged(t, store, 3, 100, 0.9, false)
	// Low confidence but recent: kept
	insertAged(t, store, 4, 10, 0.3, false)

	result := client.Cleanup(ctx, "teacher_001")
	assert.Equal(t, 0, result.ExpiredCount)
	assert.Equal(t, 1, result.LowConfidenceRemoved)

	records, err := client.GetMany(ctx, "teacher_001")
	require.NoError(t, err)
	assert.Len(t, records, 3)
	for _, record := range records {
		assert.NotEqual(t, int64(1), record.ID)
	}

	// The removed record is soft-deleted, not gone
	records, err = client.GetMany(ctx, "teacher_001", memory.WithIncludeExpired())
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestClient_CleanupCountsExpired(t *testing.T) {
	client, store := setupCleanupTest(t)
	ctx := context.Background()

	insertAged(t, store, 1, 5, 0.9, false)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.ExpireBatch(ctx, []int64{1}, past))

	insertAged(t, store, 2, 5, 0.9, false)

	result := client.Cleanup(ctx, "teacher_001")
	assert.Equal(t, 1, result.ExpiredCount)
	assert.Equal(t, 0, result.LowConfidenceRemoved)
}

func TestClient_CleanupIdempotent(t *testing.T) {
	client, store := setupCleanupTest(t)
	ctx := context.Background()

	insertAged(t, store, 1, 100, 0.3, false)

	first := client.Cleanup(ctx, "teacher_001")
	assert.Equal(t, 1, first.LowConfidenceRemoved)

	// The record is now expired; a second sweep only counts it
	second := client.Cleanup(ctx, "teacher_001")
	assert.Equal(t, 1, second.ExpiredCount)
	assert.Equal(t, 0, second.LowConfidenceRemoved)
}

func TestClient_CleanupEmptyOwner(t *testing.T) {
	client, _ := setupCleanupTest(t)

	result := client.Cleanup(context.Background(), "")
	assert.Zero(t, result.ExpiredCount)
	assert.Zero(t, result.LowConfidenceRemoved)
}

func TestClient_Statistics(t *testing.T) {
	client, store := setupCleanupTest(t)
	ctx := context.Background()

	_, err := client.Save(ctx, "teacher_001", "subjects",
		memory.StringListValue([]string{"math"}), memory.TypeContext,
		memory.WithConfidence(0.9), memory.WithVerified(true))
	require.NoError(t, err)
	_, err = client.Save(ctx, "teacher_001", "teaching_style",
		memory.StringValue("flexible"), memory.TypePreference,
		memory.WithConfidence(0.5))
	require.NoError(t, err)

	insertAged(t, store, 42, 5, 0.7, false)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.ExpireBatch(ctx, []int64{42}, past))

	stats, err := client.Statistics(ctx, "teacher_001")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalCount)
	assert.Equal(t, 2, stats.CountByType[memory.TypeContext])
	assert.Equal(t, 1, stats.CountByType[memory.TypePreference])
	assert.InDelta(t, (0.9+0.5+0.7)/3, stats.AverageConfidence, 0.001)
	assert.Equal(t, 1, stats.VerifiedCount)
	assert.Equal(t, 1, stats.ExpiredCount)
}

func TestClient_StatisticsEmptyOwner(t *testing.T) {
	client, _ := setupCleanupTest(t)

	stats, err := client.Statistics(context.Background(), "teacher_unknown")
	require.NoError(t, err)

	assert.Equal(t, 0, stats.TotalCount)
	assert.Zero(t, stats.AverageConfidence)
	assert.Empty(t, stats.CountByType)
}
