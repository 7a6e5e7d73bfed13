package renderer

import (
	"context"
	"errors"
	"strings"
)

// ConceptImage is a rendered concept normalized to raw bytes plus MIME type,
// regardless of how the backing service chose to deliver it.
type ConceptImage struct {
	Data []byte `json:"-"`
	MIME string `json:"mime"`
}

// ErrNoPrompt is returned when rendering is attempted without a
// visualization prompt. No remote call is made in that case.
var ErrNoPrompt = errors.New("renderer: no visualization prompt available")

// ImageGenerator renders a concept image from a text prompt. Every call is a
// fresh stochastic sample; results are never cached.
type ImageGenerator interface {
	Render(ctx context.Context, prompt string) (ConceptImage, error)
}

// ReferenceImageGenerator renders a concept anchored on a reference photo of
// the uploaded item. Backends that support editing implement this in
// addition to, or instead of, plain prompt rendering.
type ReferenceImageGenerator interface {
	RenderWithReference(ctx context.Context, prompt string, reference []byte, mime string) (ConceptImage, error)
}

const stylePrefix = "Product design render, 4k photorealistic, cinematic lighting: "

// StylePrompt wraps a visualization prompt with the fixed render style.
func StylePrompt(prompt string) string {
	return stylePrefix + strings.TrimSpace(prompt)
}
