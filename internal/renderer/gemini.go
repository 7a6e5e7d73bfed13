package renderer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiImageModel = "gemini-2.5-flash-image"

// GeminiRenderer renders concepts via Gemini inline image outputs. It is the
// alternate backend for deployments without a Hugging Face token.
type GeminiRenderer struct {
	apiKey  string
	model   string
	timeout time.Duration
}

// NewGeminiRenderer constructs a renderer able to request inline images.
func NewGeminiRenderer(apiKey, model string, timeout time.Duration) *GeminiRenderer {
	if strings.TrimSpace(model) == "" {
		model = defaultGeminiImageModel
	}
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiRenderer{
		apiKey:  apiKey,
		model:   model,
		timeout: timeout,
	}
}

// Render requests a photorealistic concept image for the given prompt.
func (g *GeminiRenderer) Render(ctx context.Context, prompt string) (ConceptImage, error) {
	if strings.TrimSpace(prompt) == "" {
		return ConceptImage{}, ErrNoPrompt
	}
	if g == nil || strings.TrimSpace(g.apiKey) == "" {
		return ConceptImage{}, fmt.Errorf("renderer: gemini image backend unavailable")
	}

	childCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	client, err := genai.NewClient(childCtx, &genai.ClientConfig{
		APIKey: g.apiKey,
	})
	if err != nil {
		return ConceptImage{}, fmt.Errorf("renderer: create genai client: %w", err)
	}

	resp, err := client.Models.GenerateContent(childCtx, g.model, genai.Text(StylePrompt(prompt)), nil)
	if err != nil {
		return ConceptImage{}, fmt.Errorf("renderer: render failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ConceptImage{}, fmt.Errorf("renderer: render returned no candidates")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mime := part.InlineData.MIMEType
		if strings.TrimSpace(mime) == "" {
			mime = "image/png"
		}
		return ConceptImage{Data: part.InlineData.Data, MIME: mime}, nil
	}
	return ConceptImage{}, fmt.Errorf("renderer: render produced no image data")
}
