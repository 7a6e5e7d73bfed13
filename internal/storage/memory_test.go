package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metamorphosis/internal/blueprint"
)

func sampleDesign(session string) Design {
	return Design{
		SessionID:           session,
		Title:               "Crate Shelf",
		Category:            blueprint.CategorySmallFurniture,
		Materials:           []blueprint.Material{{Name: "Wooden Crate", Quantity: "2 units"}},
		AssemblySummary:     "Stack and screw the crates together.",
		UpcycleScore:        7,
		VisualizationPrompt: "Two wooden crates stacked as a wall shelf",
	}
}

func TestInMemoryStoreRoundTrip(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	saved, err := store.SaveDesign(ctx, sampleDesign("s-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := store.GetDesign(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	require.NoError(t, store.UpdateConceptURL(ctx, saved.ID, "https://cdn.example/render.png"))
	got, err = store.GetDesign(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/render.png", got.ConceptURL)

	list, err := store.ListDesigns(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, store.DeleteDesign(ctx, saved.ID))
	_, err = store.GetDesign(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStoreMissingIDs(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.GetDesign(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.DeleteDesign(ctx, "nope"), ErrNotFound)
	assert.ErrorIs(t, store.UpdateConceptURL(ctx, "nope", "u"), ErrNotFound)
}

func TestInMemoryStoreCapsHistory(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < keepLatest+10; i++ {
		d := sampleDesign(fmt.Sprintf("s-%d", i))
		_, err := store.SaveDesign(ctx, d)
		require.NoError(t, err)
	}

	list, err := store.ListDesigns(ctx)
	require.NoError(t, err)
	assert.Len(t, list, keepLatest)
	// Newest first.
	assert.Equal(t, fmt.Sprintf("s-%d", keepLatest+9), list[0].SessionID)
}
