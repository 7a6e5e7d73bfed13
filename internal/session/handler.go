package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"metamorphosis/internal/analyzer"
	"metamorphosis/internal/events"
	"metamorphosis/internal/llm"
	"metamorphosis/internal/renderer"
	"metamorphosis/internal/storage"
)

// Handler exposes the session pipeline over HTTP.
type Handler struct {
	Sessions *Store
	Orch     *Orchestrator
	Events   *events.Broker
	Designs  storage.Store
}

// Create handles POST /api/sessions.
func (h Handler) Create(w http.ResponseWriter, _ *http.Request) {
	s := h.Sessions.Create()
	writeJSON(w, s.Snapshot())
}

// Get handles GET /api/sessions/{id}.
func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, s.Snapshot())
}

// Delete handles DELETE /api/sessions/{id}.
func (h Handler) Delete(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.Orch.Reset(s); err != nil {
		h.respondError(w, err)
		return
	}
	h.Sessions.Delete(s.ID)
	w.WriteHeader(http.StatusNoContent)
}

// Upload handles POST /api/sessions/{id}/upload with a multipart image file.
func (h Handler) Upload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(analyzer.MaxImageBytes + (1 << 20)); err != nil {
		http.Error(w, fmt.Sprintf("could not parse form: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image_file")
	if err != nil {
		file, header, err = r.FormFile("file")
		if err != nil {
			http.Error(w, "image_file is required", http.StatusBadRequest)
			return
		}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, analyzer.MaxImageBytes+1))
	if err != nil {
		http.Error(w, "could not read file", http.StatusBadRequest)
		return
	}
	if len(data) > analyzer.MaxImageBytes {
		http.Error(w, fmt.Sprintf("file exceeds %d bytes", analyzer.MaxImageBytes), http.StatusBadRequest)
		return
	}

	snap, err := h.Orch.Upload(s, data, header.Filename)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, snap)
}

// Analyze handles POST /api/sessions/{id}/analyze.
func (h Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	result, err := h.Orch.Analyze(r.Context(), s)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, result)
}

// Render handles POST /api/sessions/{id}/render. The concept comes back as
// base64 so clients without binary handling can show it inline.
func (h Handler) Render(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	concept, err := h.Orch.Render(r.Context(), s)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, map[string]string{
		"mime": concept.MIME,
		"data": base64.StdEncoding.EncodeToString(concept.Data),
	})
}

// Concept handles GET /api/sessions/{id}/concept, serving the raw image.
func (h Handler) Concept(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	concept, ok := s.Concept()
	if !ok {
		http.Error(w, "no concept image rendered", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", concept.MIME)
	_, _ = w.Write(concept.Data)
}

// Guide handles POST /api/sessions/{id}/guide. An optional model field
// overrides the chat model for this request.
func (h Handler) Guide(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if r.Body != nil && r.ContentLength != 0 {
		var req struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && strings.TrimSpace(req.Model) != "" {
			ctx = llm.WithModel(ctx, req.Model)
		}
	}

	result, err := h.Orch.Guide(ctx, s)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, result)
}

// Reset handles POST /api/sessions/{id}/reset.
func (h Handler) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.Orch.Reset(s); err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, s.Snapshot())
}

// ListDesigns handles GET /api/designs.
func (h Handler) ListDesigns(w http.ResponseWriter, r *http.Request) {
	if h.Designs == nil {
		http.Error(w, "design gallery inactive", http.StatusServiceUnavailable)
		return
	}
	designs, err := h.Designs.ListDesigns(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, designs)
}

// GetDesign handles GET /api/designs/{id}.
func (h Handler) GetDesign(w http.ResponseWriter, r *http.Request) {
	if h.Designs == nil {
		http.Error(w, "design gallery inactive", http.StatusServiceUnavailable)
		return
	}
	design, err := h.Designs.GetDesign(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "design not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, design)
}

// DeleteDesign handles DELETE /api/designs/{id}.
func (h Handler) DeleteDesign(w http.ResponseWriter, r *http.Request) {
	if h.Designs == nil {
		http.Error(w, "design gallery inactive", http.StatusServiceUnavailable)
		return
	}
	err := h.Designs.DeleteDesign(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "design not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StreamEvents handles GET /api/events as server-sent events.
func (h Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		http.Error(w, "events inactive", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.Events.Subscribe()
	defer h.Events.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (h Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := chi.URLParam(r, "id")
	s, ok := h.Sessions.Get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

// respondError maps pipeline failures onto HTTP statuses with a stable
// machine-readable kind, so the UI can tell a safety block from a timeout.
func (h Handler) respondError(w http.ResponseWriter, err error) {
	type errorBody struct {
		Error   string `json:"error"`
		Kind    string `json:"kind,omitempty"`
		Safety  bool   `json:"safety,omitempty"`
		RawText string `json:"raw_text,omitempty"`
	}

	var aerr *analyzer.Error
	switch {
	case errors.Is(err, ErrBusy):
		writeJSONStatus(w, http.StatusConflict, errorBody{Error: err.Error(), Kind: "busy"})
	case errors.Is(err, ErrDecode):
		writeJSONStatus(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "decode_error"})
	case errors.Is(err, ErrNoItem), errors.Is(err, ErrNoBlueprint):
		writeJSONStatus(w, http.StatusConflict, errorBody{Error: err.Error(), Kind: "out_of_order"})
	case errors.Is(err, renderer.ErrNoPrompt):
		writeJSONStatus(w, http.StatusConflict, errorBody{Error: err.Error(), Kind: "no_prompt"})
	case errors.Is(err, ErrAnalysisUnavailable), errors.Is(err, ErrRenderUnavailable), errors.Is(err, ErrGuideUnavailable):
		writeJSONStatus(w, http.StatusServiceUnavailable, errorBody{Error: err.Error(), Kind: "unconfigured"})
	case errors.As(err, &aerr):
		writeJSONStatus(w, http.StatusBadGateway, errorBody{
			Error:   aerr.Error(),
			Kind:    string(aerr.Kind),
			Safety:  aerr.Safety,
			RawText: aerr.RawText,
		})
	default:
		writeJSONStatus(w, http.StatusBadGateway, errorBody{Error: err.Error(), Kind: "service_error"})
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONStatus(w, http.StatusOK, payload)
}

func writeJSONStatus(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
