package renderer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHFModel   = "stabilityai/stable-diffusion-xl-base-1.0"
	defaultHFBaseURL = "https://api-inference.huggingface.co/models"

	hfGuidanceScale  = 7.5
	hfInferenceSteps = 30

	// MaxConceptBytes bounds how much image data is read from the service.
	MaxConceptBytes = 20 * 1024 * 1024
)

// HFRenderer implements ImageGenerator against the Hugging Face Inference
// API using a Stable Diffusion text-to-image model.
type HFRenderer struct {
	token   string
	model   string
	baseURL string
	client  *http.Client
}

// NewHFRenderer constructs a renderer for the given model.
func NewHFRenderer(token, model string, timeout time.Duration) *HFRenderer {
	if strings.TrimSpace(model) == "" {
		model = defaultHFModel
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HFRenderer{
		token:   token,
		model:   model,
		baseURL: defaultHFBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Render issues one text-to-image request with fixed quality parameters and
// normalizes the response to a ConceptImage.
func (r *HFRenderer) Render(ctx context.Context, prompt string) (ConceptImage, error) {
	if strings.TrimSpace(prompt) == "" {
		return ConceptImage{}, ErrNoPrompt
	}
	if strings.TrimSpace(r.token) == "" {
		return ConceptImage{}, fmt.Errorf("renderer: render credential not configured")
	}

	payload := map[string]any{
		"inputs": StylePrompt(prompt),
		"parameters": map[string]any{
			"guidance_scale":      hfGuidanceScale,
			"num_inference_steps": hfInferenceSteps,
		},
		"options": map[string]any{
			"wait_for_model": true,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return ConceptImage{}, fmt.Errorf("renderer: marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s", strings.TrimSuffix(r.baseURL, "/"), r.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ConceptImage{}, fmt.Errorf("renderer: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.client.Do(req)
	if err != nil {
		return ConceptImage{}, fmt.Errorf("renderer: perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		if failure.Error == "" {
			failure.Error = resp.Status
		}
		return ConceptImage{}, fmt.Errorf("renderer: status %d: %s", resp.StatusCode, failure.Error)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxConceptBytes+1))
	if err != nil {
		return ConceptImage{}, fmt.Errorf("renderer: read response: %w", err)
	}
	if len(data) > MaxConceptBytes {
		return ConceptImage{}, fmt.Errorf("renderer: concept exceeds %d bytes", MaxConceptBytes)
	}

	return normalizeConcept(data, resp.Header.Get("Content-Type"))
}

// normalizeConcept accepts either a raw encoded image body or a JSON envelope
// carrying base64 data, and always hands back plain bytes plus MIME type.
func normalizeConcept(data []byte, contentType string) (ConceptImage, error) {
	if len(data) == 0 {
		return ConceptImage{}, fmt.Errorf("renderer: empty response body")
	}

	mime := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if strings.HasPrefix(mime, "image/") {
		return ConceptImage{Data: data, MIME: mime}, nil
	}

	var envelope struct {
		Image string `json:"image"`
		MIME  string `json:"mime"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Image != "" {
		decoded, err := base64.StdEncoding.DecodeString(envelope.Image)
		if err != nil {
			return ConceptImage{}, fmt.Errorf("renderer: decode base64 image: %w", err)
		}
		if envelope.MIME == "" {
			envelope.MIME = http.DetectContentType(decoded)
		}
		return ConceptImage{Data: decoded, MIME: envelope.MIME}, nil
	}

	// Some deployments omit the Content-Type header on raw bodies.
	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		return ConceptImage{Data: data, MIME: detected}, nil
	}

	return ConceptImage{}, fmt.Errorf("renderer: unrecognized response format (content type %q)", contentType)
}
