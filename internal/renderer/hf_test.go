package renderer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for content sniffing to call it image/png.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func newTestRenderer(t *testing.T, handler http.HandlerFunc) (*HFRenderer, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	r := NewHFRenderer("test-token", "", 0)
	r.baseURL = srv.URL
	return r, srv
}

func TestRenderRawImageBody(t *testing.T) {
	var seen struct {
		Inputs     string `json:"inputs"`
		Parameters struct {
			GuidanceScale float64 `json:"guidance_scale"`
			Steps         int     `json:"num_inference_steps"`
		} `json:"parameters"`
	}

	r, _ := newTestRenderer(t, func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, json.NewDecoder(req.Body).Decode(&seen))
		assert.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	})

	img, err := r.Render(context.Background(), "a cork trivet")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIME)
	assert.Equal(t, pngHeader, img.Data)

	assert.Equal(t, StylePrompt("a cork trivet"), seen.Inputs)
	assert.Equal(t, 7.5, seen.Parameters.GuidanceScale)
	assert.Equal(t, 30, seen.Parameters.Steps)
}

func TestRenderJSONEnvelope(t *testing.T) {
	r, _ := newTestRenderer(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"image": base64.StdEncoding.EncodeToString(pngHeader),
		})
	})

	img, err := r.Render(context.Background(), "a cork trivet")
	require.NoError(t, err)
	assert.Equal(t, pngHeader, img.Data)
	assert.Equal(t, "image/png", img.MIME)
}

func TestRenderServiceError(t *testing.T) {
	r, _ := newTestRenderer(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Model is currently loading"})
	})

	_, err := r.Render(context.Background(), "a cork trivet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Model is currently loading")
}

func TestRenderEmptyPromptSkipsRemoteCall(t *testing.T) {
	var calls atomic.Int32
	r, _ := newTestRenderer(t, func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
	})

	for _, prompt := range []string{"", "   "} {
		_, err := r.Render(context.Background(), prompt)
		assert.ErrorIs(t, err, ErrNoPrompt)
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestRenderMissingToken(t *testing.T) {
	r := NewHFRenderer("", "", 0)
	_, err := r.Render(context.Background(), "prompt")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoPrompt)
}

func TestNormalizeConceptUnrecognized(t *testing.T) {
	_, err := normalizeConcept([]byte(`{"unexpected":"shape"}`), "application/json")
	assert.Error(t, err)
}

func TestNormalizeConceptSniffsMissingContentType(t *testing.T) {
	img, err := normalizeConcept(pngHeader, "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIME)
}

func TestStylePrompt(t *testing.T) {
	assert.Equal(t,
		"Product design render, 4k photorealistic, cinematic lighting: a lamp",
		StylePrompt("  a lamp "),
	)
}
