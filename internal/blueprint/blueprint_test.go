package blueprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBlueprint() DesignBlueprint {
	return DesignBlueprint{
		Title:    "Bottle Cap Mosaic",
		Category: CategoryArtPiece,
		Materials: []Material{
			{Name: "Plastic Bottle Caps", Quantity: "~50 units"},
		},
		AssemblySummary: "Sort caps by color, glue onto plywood grid, seal.",
		UpcycleScore:    7,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DesignBlueprint)
		wantErr bool
	}{
		{name: "valid", mutate: func(*DesignBlueprint) {}},
		{name: "missing title", mutate: func(b *DesignBlueprint) { b.Title = "  " }, wantErr: true},
		{name: "unknown category", mutate: func(b *DesignBlueprint) { b.Category = "Sculpture" }, wantErr: true},
		{name: "empty materials", mutate: func(b *DesignBlueprint) { b.Materials = nil }, wantErr: true},
		{name: "unnamed material", mutate: func(b *DesignBlueprint) { b.Materials[0].Name = "" }, wantErr: true},
		{name: "missing summary", mutate: func(b *DesignBlueprint) { b.AssemblySummary = "" }, wantErr: true},
		{name: "score too low", mutate: func(b *DesignBlueprint) { b.UpcycleScore = 0 }, wantErr: true},
		{name: "score too high", mutate: func(b *DesignBlueprint) { b.UpcycleScore = 11 }, wantErr: true},
		{name: "score at bounds", mutate: func(b *DesignBlueprint) { b.UpcycleScore = 10 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := validBlueprint()
			tc.mutate(&b)
			err := b.Validate()
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSchemaShape(t *testing.T) {
	s := Schema()

	require.NotNil(t, s)
	assert.ElementsMatch(t, []string{
		"design_title",
		"design_type",
		"material_breakdown",
		"assembly_steps_summary",
		"upcycle_score",
		VisualizationPromptField,
	}, s.Required)

	category := s.Properties["design_type"]
	require.NotNil(t, category)
	assert.ElementsMatch(t, []string{"Art Piece", "Small Furniture", "Accessory", "Tool"}, category.Enum)

	score := s.Properties["upcycle_score"]
	require.NotNil(t, score)
	require.NotNil(t, score.Minimum)
	require.NotNil(t, score.Maximum)
	assert.Equal(t, float64(1), *score.Minimum)
	assert.Equal(t, float64(10), *score.Maximum)

	materials := s.Properties["material_breakdown"]
	require.NotNil(t, materials)
	require.NotNil(t, materials.Items)
	assert.ElementsMatch(t, []string{"material_name", "estimated_quantity"}, materials.Items.Required)
}
