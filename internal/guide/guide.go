package guide

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"metamorphosis/internal/blueprint"
	"metamorphosis/internal/llm"
)

// AssemblyGuide is the expanded build plan for an analyzed design.
type AssemblyGuide struct {
	Steps []string `json:"steps"`
	Tools []string `json:"tools"`
	Tips  []string `json:"tips"`
}

// Expander turns a blueprint's assembly summary into a detailed guide.
type Expander interface {
	Expand(ctx context.Context, bp blueprint.DesignBlueprint) (AssemblyGuide, error)
}

// LLMExpander implements Expander over a chat-completion client.
type LLMExpander struct {
	client llm.Client
}

// NewLLMExpander constructs an expander backed by the given chat client.
func NewLLMExpander(client llm.Client) *LLMExpander {
	return &LLMExpander{client: client}
}

const systemPrompt = `You are a practical maker-workshop instructor. You turn short upcycling plans into clear build instructions.
- Only use the materials listed in the plan, plus basic tools and adhesives.
- Keep every step short and unambiguous.
- Always answer as JSON with the fields: steps (list), tools (list), tips (list).`

// Expand asks the chat model for numbered steps, a tool list and tips.
func (e *LLMExpander) Expand(ctx context.Context, bp blueprint.DesignBlueprint) (AssemblyGuide, error) {
	if e == nil || e.client == nil {
		return AssemblyGuide{}, fmt.Errorf("guide: expander unavailable")
	}
	if err := bp.Validate(); err != nil {
		return AssemblyGuide{}, fmt.Errorf("guide: %w", err)
	}

	payload, err := json.Marshal(bp)
	if err != nil {
		return AssemblyGuide{}, fmt.Errorf("guide: marshal blueprint: %w", err)
	}

	userPrompt := fmt.Sprintf(`Expand the following upcycling blueprint into a full assembly guide:
%s
`, payload)

	content, err := e.client.ChatCompletion(ctx, []llm.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}, 0.3)
	if err != nil {
		return AssemblyGuide{}, err
	}

	return parseGuide(content)
}

func parseGuide(content string) (AssemblyGuide, error) {
	var g AssemblyGuide
	if err := json.Unmarshal([]byte(content), &g); err == nil && len(g.Steps) > 0 {
		return g, nil
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(content[start:end+1]), &g); err == nil && len(g.Steps) > 0 {
			return g, nil
		}
	}
	return AssemblyGuide{}, fmt.Errorf("guide: could not parse guide response")
}
