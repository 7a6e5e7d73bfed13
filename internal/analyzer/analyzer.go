package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"metamorphosis/internal/blueprint"
)

// MaxImageBytes bounds the size of an item photo sent for analysis.
const MaxImageBytes = 7 * 1024 * 1024

const defaultAnalysisModel = "gemini-2.0-flash"

// Item is one uploaded photo of waste material.
type Item struct {
	ID   string
	Data []byte
	MIME string
}

// Result pairs a validated blueprint with the visualization prompt extracted
// from the same response. The prompt is not part of the stored blueprint.
type Result struct {
	Blueprint           blueprint.DesignBlueprint `json:"blueprint"`
	VisualizationPrompt string                    `json:"visualization_prompt"`
}

// Service turns an item photo into a design blueprint.
type Service interface {
	Analyze(ctx context.Context, item Item) (Result, error)
}

const systemInstruction = "You are the 'Metamorphosis Agent'. Your goal is to help upcycle waste. " +
	"1. ANALYZE the image and strictly identify the specific waste materials present (e.g., plastic bottles, cardboard, wood scrap). " +
	"2. DESIGN a creative upcycling project using ONLY the materials found in the image (plus basic tools/adhesives). " +
	"3. Do NOT hallucinate objects or materials that are not clearly visible in the input image. " +
	"4. Generate a JSON blueprint strictly matching the provided schema."

const analysisPrompt = "Analyze the following image of discarded materials. " +
	"Determine the material type, estimated quantity, and dominant colors. " +
	"Then, generate a creative and feasible blueprint for a new object that can be built " +
	"using ONLY the materials seen in the image. Be innovative and focus on environmental sustainability."

// GeminiAnalyzer implements Service against the Gemini multimodal API with
// output constrained to the blueprint schema.
type GeminiAnalyzer struct {
	apiKey      string
	model       string
	temperature float32
	timeout     time.Duration
}

// NewGeminiAnalyzer constructs an analyzer for the given model. A higher
// temperature keeps the designs creative.
func NewGeminiAnalyzer(apiKey, model string, temperature float64, timeout time.Duration) *GeminiAnalyzer {
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	if model == "" {
		model = defaultAnalysisModel
	}
	if temperature <= 0 {
		temperature = 0.7
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiAnalyzer{
		apiKey:      apiKey,
		model:       model,
		temperature: float32(temperature),
		timeout:     timeout,
	}
}

// Fingerprint identifies the analyzer configuration for memoization purposes.
func (g *GeminiAnalyzer) Fingerprint() string {
	return fmt.Sprintf("%s@%.2f", g.model, g.temperature)
}

// Analyze runs one schema-constrained multimodal generation request and
// classifies every failure. It never returns a partially-filled blueprint.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, item Item) (Result, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		return Result{}, serviceError(fmt.Errorf("analysis credential not configured"))
	}
	if len(item.Data) == 0 {
		return Result{}, serviceError(fmt.Errorf("empty image data"))
	}
	if len(item.Data) > MaxImageBytes {
		return Result{}, serviceError(fmt.Errorf("image exceeds %d bytes", MaxImageBytes))
	}

	childCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	client, err := genai.NewClient(childCtx, &genai.ClientConfig{APIKey: g.apiKey})
	if err != nil {
		return Result{}, serviceError(fmt.Errorf("create genai client: %w", err))
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(analysisPrompt),
			genai.NewPartFromBytes(item.Data, detectMime(item.Data, item.MIME)),
		}, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    blueprint.Schema(),
	}

	resp, err := client.Models.GenerateContent(childCtx, g.model, contents, cfg)
	if err != nil {
		return Result{}, serviceError(fmt.Errorf("generate content: %w", err))
	}

	text := candidateText(resp)
	if text == "" {
		return Result{}, &Error{
			Kind:   FailureEmptyResponse,
			Safety: blockedBySafety(resp),
		}
	}

	return decodeBlueprint(text)
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var parts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if trimmed := strings.TrimSpace(part.Text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n")
}

func blockedBySafety(resp *genai.GenerateContentResponse) bool {
	if resp == nil || len(resp.Candidates) == 0 {
		return false
	}
	return resp.Candidates[0].FinishReason == genai.FinishReasonSafety
}

// decodeBlueprint parses the response text, extracts the visualization prompt
// and validates the remaining blueprint. Models occasionally wrap JSON in
// markdown fences, so a brace slice is tried before giving up.
func decodeBlueprint(text string) (Result, error) {
	var payload struct {
		blueprint.DesignBlueprint
		VisualizationPrompt string `json:"visualization_prompt"`
	}

	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return Result{}, &Error{Kind: FailureMalformedOutput, RawText: text, Err: err}
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
			return Result{}, &Error{Kind: FailureMalformedOutput, RawText: text, Err: err}
		}
	}

	if err := payload.DesignBlueprint.Validate(); err != nil {
		return Result{}, &Error{Kind: FailureMalformedOutput, RawText: text, Err: err}
	}

	return Result{
		Blueprint:           payload.DesignBlueprint,
		VisualizationPrompt: strings.TrimSpace(payload.VisualizationPrompt),
	}, nil
}

func detectMime(data []byte, provided string) string {
	mime := strings.TrimSpace(provided)
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	if !strings.Contains(mime, "image/") {
		return "image/jpeg"
	}
	return mime
}
