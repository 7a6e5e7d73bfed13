package blueprint

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Category classifies the kind of object a design produces.
type Category string

const (
	CategoryArtPiece       Category = "Art Piece"
	CategorySmallFurniture Category = "Small Furniture"
	CategoryAccessory      Category = "Accessory"
	CategoryTool           Category = "Tool"
)

// Categories lists every valid design category in schema order.
func Categories() []Category {
	return []Category{CategoryArtPiece, CategorySmallFurniture, CategoryAccessory, CategoryTool}
}

const (
	MinUpcycleScore = 1
	MaxUpcycleScore = 10
)

// Material is one entry in the material breakdown of a design.
type Material struct {
	Name     string `json:"material_name"`
	Quantity string `json:"estimated_quantity"`
}

// DesignBlueprint is the structured upcycling proposal produced by the
// analyzer. Once produced it is treated as immutable; a re-analysis replaces
// the whole value.
type DesignBlueprint struct {
	Title           string     `json:"design_title"`
	Category        Category   `json:"design_type"`
	Materials       []Material `json:"material_breakdown"`
	AssemblySummary string     `json:"assembly_steps_summary"`
	UpcycleScore    int        `json:"upcycle_score"`
}

// ErrInvalid wraps all blueprint validation failures.
var ErrInvalid = errors.New("invalid blueprint")

// Validate checks the required-field and bound invariants. A blueprint with
// no materials is rejected: a design the user cannot source is useless.
func (b DesignBlueprint) Validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("%w: missing design title", ErrInvalid)
	}
	if !validCategory(b.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, b.Category)
	}
	if len(b.Materials) == 0 {
		return fmt.Errorf("%w: material breakdown is empty", ErrInvalid)
	}
	for i, m := range b.Materials {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("%w: material %d has no name", ErrInvalid, i)
		}
	}
	if strings.TrimSpace(b.AssemblySummary) == "" {
		return fmt.Errorf("%w: missing assembly summary", ErrInvalid)
	}
	if b.UpcycleScore < MinUpcycleScore || b.UpcycleScore > MaxUpcycleScore {
		return fmt.Errorf("%w: upcycle score %d outside [%d,%d]", ErrInvalid, b.UpcycleScore, MinUpcycleScore, MaxUpcycleScore)
	}
	return nil
}

func validCategory(c Category) bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// VisualizationPromptField names the schema field the analyzer extracts and
// strips from the stored blueprint.
const VisualizationPromptField = "visualization_prompt"

// Schema returns the response schema passed to the generation service so the
// model output is constrained to the blueprint shape. The schema also demands
// a visualization prompt, which lives alongside the blueprint on the wire but
// is not part of the persisted design record.
func Schema() *genai.Schema {
	enum := make([]string, 0, len(Categories()))
	for _, c := range Categories() {
		enum = append(enum, string(c))
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"design_title": {
				Type:        genai.TypeString,
				Description: "A creative name for the upcycled project.",
			},
			"design_type": {
				Type:        genai.TypeString,
				Enum:        enum,
				Description: "The category of the final upcycled object.",
			},
			"material_breakdown": {
				Type:        genai.TypeArray,
				Description: "The core materials and estimated quantities visible in the image.",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"material_name":      {Type: genai.TypeString, Description: "e.g. Plastic Bottle Caps, Copper Wire"},
						"estimated_quantity": {Type: genai.TypeString, Description: "e.g. ~50 units, ~3 meters"},
					},
					Required: []string{"material_name", "estimated_quantity"},
				},
			},
			"assembly_steps_summary": {
				Type:        genai.TypeString,
				Description: "A concise step-by-step summary of how to build the design.",
			},
			"upcycle_score": {
				Type:        genai.TypeInteger,
				Description: "Feasibility score (1-10) based on material quality and complexity.",
				Minimum:     genai.Ptr(float64(MinUpcycleScore)),
				Maximum:     genai.Ptr(float64(MaxUpcycleScore)),
			},
			VisualizationPromptField: {
				Type:        genai.TypeString,
				Description: "A vivid scene description of the finished object, usable as an image generation prompt.",
			},
		},
		Required: []string{
			"design_title",
			"design_type",
			"material_breakdown",
			"assembly_steps_summary",
			"upcycle_score",
			VisualizationPromptField,
		},
	}
}
