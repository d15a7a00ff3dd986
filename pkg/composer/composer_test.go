package composer_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightclass/teachmem/pkg/composer"
	"github.com/brightclass/teachmem/pkg/llm"
	"github.com/brightclass/teachmem/pkg/memory"
	"github.com/brightclass/teachmem/pkg/storage/sqlite"
)

func setupComposerTest(t *testing.T) *memory.Client {
	t.Helper()

	store, err := sqlite.NewClient(&sqlite.Config{
		DBPath: filepath.Join(t.TempDir(), "test_teachmem.db"),
	})
	require.NoError(t, err)

	client, err := memory.NewClientWithStore(store)
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })
	return client
}

func conversation() []llm.Message {
	return []llm.Message{
		{Role: llm.RoleUser, Content: "Can you help me plan a lesson?"},
	}
}

func TestComposer_NoMemories(t *testing.T) {
	client := setupComposerTest(t)
	comp := composer.New(client)

	messages := conversation()
	result := comp.Compose(context.Background(), "teacher_001", messages)

	assert.Equal(t, messages, result.Messages)
	assert.Empty(t, result.ContextText)
	assert.Empty(t, result.Applied)
}

func TestComposer_PrependsSystemMessage(t *testing.T) {
	client := setupComposerTest(t)
	ctx := context.Background()

	_, err := client.Save(ctx, "teacher_001", "grade_levels",
		memory.IntListValue([]int{3, 5}), memory.TypeContext,
		memory.WithConfidence(0.9))
	require.NoError(t, err)
	_, err = client.Save(ctx, "teacher_001", "teaching_style",
		memory.StringValue("collaborative"), memory.TypePreference,
		memory.WithConfidence(0.8))
	require.NoError(t, err)

	comp := composer.New(client)
	messages := conversation()
	result := comp.Compose(ctx, "teacher_001", messages)

	require.Len(t, result.Messages, len(messages)+1)
	assert.Equal(t, llm.RoleSystem, result.Messages[0].Role)
	assert.Equal(t, result.ContextText, result.Messages[0].Content)
	// Original messages preserved in order after the system message
	assert.Equal(t, messages, result.Messages[1:])

	assert.Contains(t, result.ContextText, "What you remember about this teacher:")
	assert.Contains(t, result.ContextText, "grade levels: 3, 5")
	assert.Contains(t, result.ContextText, "teaching style: collaborative")
	assert.Len(t, result.Applied, 2)
}

func TestComposer_SectionsGroupedByType(t *testing.T) {
	client := setupComposerTest(t)
	ctx := context.Background()

	_, err := client.Save(ctx, "teacher_001", "teaching_style",
		memory.StringValue("structured"), memory.TypePreference,
		memory.WithConfidence(0.8))
	require.NoError(t, err)
	_, err = client.Save(ctx, "teacher_001", "subjects",
		memory.StringListValue([]string{"math"}), memory.TypeContext,
		memory.WithConfidence(0.8))
	require.NoError(t, err)
	_, err = client.Save(ctx, "teacher_001", "lesson_pacing",
		memory.StringValue("reviews before new material"), memory.TypePattern,
		memory.WithConfidence(0.8))
	require.NoError(t, err)

	comp := composer.New(client)
	result := comp.Compose(ctx, "teacher_001", conversation())

	assert.Contains(t, result.ContextText, "Preferences:")
	assert.Contains(t, result.ContextText, "Facts:")
	assert.Contains(t, result.ContextText, "Skills and patterns:")
	assert.Len(t, result.Applied, 3)
}

func TestComposer_ConfidenceFloor(t *testing.T) {
	client := setupComposerTest(t)
	ctx := context.Background()

	_, err := client.Save(ctx, "teacher_001", "strong_fact",
		memory.StringValue("confident"), memory.TypeContext,
		memory.WithConfidence(0.9))
	require.NoError(t, err)
	_, err = client.Save(ctx, "teacher_001", "weak_fact",
		memory.StringValue("shaky"), memory.TypeContext,
		memory.WithConfidence(0.4))
	require.NoError(t, err)

	comp := composer.New(client)
	result := comp.Compose(ctx, "teacher_001", conversation())

	assert.Contains(t, result.ContextText, "strong fact")
	assert.NotContains(t, result.ContextText, "weak fact")
	assert.Len(t, result.Applied, 1)

	// A lower floor lets the shaky fact through
	lenient := composer.New(client, composer.WithMinConfidence(0.3))
	result = lenient.Compose(ctx, "teacher_001", conversation())
	assert.Contains(t, result.ContextText, "weak fact")
	assert.Len(t, result.Applied, 2)
}

func TestComposer_DegradesOnRetrievalFailure(t *testing.T) {
	client := setupComposerTest(t)
	ctx := context.Background()

	_, err := client.Save(ctx, "teacher_001", "subjects",
		memory.StringListValue([]string{"math"}), memory.TypeContext,
		memory.WithConfidence(0.9))
	require.NoError(t, err)

	// A closed client fails every read; composition must not.
	require.NoError(t, client.Close())

	comp := composer.New(client)
	messages := conversation()
	result := comp.Compose(ctx, "teacher_001", messages)

	assert.Equal(t, messages, result.Messages)
	assert.Empty(t, result.ContextText)
	assert.Empty(t, result.Applied)
}
