package session

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"metamorphosis/internal/analyzer"
	"metamorphosis/internal/blueprint"
	"metamorphosis/internal/events"
	"metamorphosis/internal/guide"
	"metamorphosis/internal/media"
	"metamorphosis/internal/renderer"
	"metamorphosis/internal/storage"
)

// Stage names published on the event stream.
const (
	StageUploaded       = "uploaded"
	StageAnalyzing      = "analyzing"
	StageAnalyzed       = "analyzed"
	StageAnalysisFailed = "analysis_failed"
	StageRendering      = "rendering"
	StageVisualized     = "visualized"
	StageRenderFailed   = "render_failed"
	StageReset          = "reset"
)

// Analyzer is the analysis dependency including cache invalidation, so the
// orchestrator can drop memoized results when an item is discarded.
type Analyzer interface {
	analyzer.Service
	Invalidate(itemID string)
}

// Orchestrator sequences the analyze and render calls for sessions. Remote
// calls run outside the session lock; the per-session busy flag guarantees at
// most one outstanding call per session.
type Orchestrator struct {
	Analyzer Analyzer
	Renderer renderer.ImageGenerator
	Imagen   renderer.ReferenceImageGenerator
	Expander guide.Expander
	Designs  storage.Store
	Uploader media.Uploader
	Events   *events.Broker
}

// Upload validates and installs a new item, clearing all downstream state
// and any cached analysis of the previous item.
func (o *Orchestrator) Upload(s *Session, data []byte, filename string) (Snapshot, error) {
	if len(data) == 0 {
		return Snapshot{}, fmt.Errorf("%w: empty upload", ErrDecode)
	}
	if len(data) > analyzer.MaxImageBytes {
		return Snapshot{}, fmt.Errorf("session: image exceeds %d bytes", analyzer.MaxImageBytes)
	}
	mime, err := decodeImage(data)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return Snapshot{}, ErrBusy
	}
	var oldItemID string
	if s.item != nil {
		oldItemID = s.item.ID
	}
	now := time.Now()
	s.item = &UploadedItem{
		ID:         newItemID(now),
		Data:       data,
		MIME:       mime,
		Filename:   filename,
		UploadedAt: now,
	}
	s.blueprint = nil
	s.visPrompt = ""
	s.concept = nil
	s.genStatus = GenerationNone
	s.designID = ""
	s.phase = PhaseUploaded
	s.mu.Unlock()

	if oldItemID != "" && o.Analyzer != nil {
		o.Analyzer.Invalidate(oldItemID)
	}
	o.publish(s.ID, StageUploaded, filename)
	return s.Snapshot(), nil
}

// Analyze runs the design analysis for the current item. Results for an
// unchanged item come from the analyzer's memo table. On failure the session
// stays in its previous phase and keeps its upload.
func (o *Orchestrator) Analyze(ctx context.Context, s *Session) (analyzer.Result, error) {
	if o.Analyzer == nil {
		return analyzer.Result{}, ErrAnalysisUnavailable
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return analyzer.Result{}, ErrBusy
	}
	if s.item == nil {
		s.mu.Unlock()
		return analyzer.Result{}, ErrNoItem
	}
	item := *s.item
	s.busy = true
	s.mu.Unlock()

	o.publish(s.ID, StageAnalyzing, item.ID)
	result, err := o.Analyzer.Analyze(ctx, analyzer.Item{ID: item.ID, Data: item.Data, MIME: item.MIME})

	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.mu.Unlock()
		o.publish(s.ID, StageAnalysisFailed, err.Error())
		return analyzer.Result{}, err
	}
	bp := result.Blueprint
	s.blueprint = &bp
	s.visPrompt = result.VisualizationPrompt
	s.concept = nil
	s.genStatus = GenerationNone
	s.phase = PhaseAnalyzed
	s.mu.Unlock()

	o.archive(ctx, s, bp, result.VisualizationPrompt)
	o.publish(s.ID, StageAnalyzed, bp.Title)
	return result, nil
}

// Render generates a concept image for the current visualization prompt.
// Without a prompt it fails immediately and records no_prompt; a service
// failure records failed but keeps the blueprint and phase.
func (o *Orchestrator) Render(ctx context.Context, s *Session) (renderer.ConceptImage, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return renderer.ConceptImage{}, ErrBusy
	}
	if s.visPrompt == "" {
		s.genStatus = GenerationNoPrompt
		s.mu.Unlock()
		return renderer.ConceptImage{}, renderer.ErrNoPrompt
	}
	prompt := s.visPrompt
	var reference *UploadedItem
	if s.item != nil {
		itemCopy := *s.item
		reference = &itemCopy
	}
	s.busy = true
	s.mu.Unlock()

	o.publish(s.ID, StageRendering, "")
	concept, err := o.renderConcept(ctx, prompt, reference)

	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.genStatus = GenerationFailed
		s.mu.Unlock()
		o.publish(s.ID, StageRenderFailed, err.Error())
		return renderer.ConceptImage{}, err
	}
	s.concept = &concept
	s.genStatus = GenerationSuccess
	s.phase = PhaseVisualized
	designID := s.designID
	s.mu.Unlock()

	o.exportConcept(ctx, s, designID, concept)
	o.publish(s.ID, StageVisualized, "")
	return concept, nil
}

func (o *Orchestrator) renderConcept(ctx context.Context, prompt string, reference *UploadedItem) (renderer.ConceptImage, error) {
	if o.Imagen != nil && reference != nil {
		return o.Imagen.RenderWithReference(ctx, prompt, reference.Data, reference.MIME)
	}
	if o.Renderer == nil {
		return renderer.ConceptImage{}, ErrRenderUnavailable
	}
	return o.Renderer.Render(ctx, prompt)
}

// Guide expands the analyzed blueprint into a detailed assembly guide.
func (o *Orchestrator) Guide(ctx context.Context, s *Session) (guide.AssemblyGuide, error) {
	if o.Expander == nil {
		return guide.AssemblyGuide{}, ErrGuideUnavailable
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return guide.AssemblyGuide{}, ErrBusy
	}
	if s.blueprint == nil {
		s.mu.Unlock()
		return guide.AssemblyGuide{}, ErrNoBlueprint
	}
	bp := *s.blueprint
	s.busy = true
	s.mu.Unlock()

	result, err := o.Expander.Expand(ctx, bp)

	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
	return result, err
}

// Reset returns the session to empty, dropping the item, blueprint, concept
// and any cached analysis for the discarded item.
func (o *Orchestrator) Reset(s *Session) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	var oldItemID string
	if s.item != nil {
		oldItemID = s.item.ID
	}
	s.item = nil
	s.blueprint = nil
	s.visPrompt = ""
	s.concept = nil
	s.genStatus = GenerationNone
	s.designID = ""
	s.phase = PhaseEmpty
	s.mu.Unlock()

	if oldItemID != "" && o.Analyzer != nil {
		o.Analyzer.Invalidate(oldItemID)
	}
	o.publish(s.ID, StageReset, "")
	return nil
}

// archive records a successful analysis in the gallery. Gallery problems are
// logged, never surfaced: the session result is already in hand.
func (o *Orchestrator) archive(ctx context.Context, s *Session, bp blueprint.DesignBlueprint, visPrompt string) {
	if o.Designs == nil {
		return
	}
	saved, err := o.Designs.SaveDesign(ctx, storage.Design{
		SessionID:           s.ID,
		Title:               bp.Title,
		Category:            bp.Category,
		Materials:           bp.Materials,
		AssemblySummary:     bp.AssemblySummary,
		UpcycleScore:        bp.UpcycleScore,
		VisualizationPrompt: visPrompt,
	})
	if err != nil {
		log.Printf("session %s: archive design: %v", s.ID, err)
		return
	}
	s.mu.Lock()
	s.designID = saved.ID
	s.mu.Unlock()
}

func (o *Orchestrator) exportConcept(ctx context.Context, s *Session, designID string, concept renderer.ConceptImage) {
	if o.Uploader == nil || designID == "" {
		return
	}
	result, err := o.Uploader.Upload(ctx, media.UploadInput{
		Filename:    "concept.png",
		ContentType: concept.MIME,
		Body:        bytes.NewReader(concept.Data),
		Size:        int64(len(concept.Data)),
	})
	if err != nil {
		if err != media.ErrUploaderDisabled {
			log.Printf("session %s: export concept: %v", s.ID, err)
		}
		return
	}
	if result.URL == "" {
		return
	}
	if o.Designs != nil {
		if err := o.Designs.UpdateConceptURL(ctx, designID, result.URL); err != nil {
			log.Printf("session %s: record concept url: %v", s.ID, err)
		}
	}
}

func (o *Orchestrator) publish(sessionID, stage, detail string) {
	if o.Events == nil {
		return
	}
	o.Events.Publish(events.Event{SessionID: sessionID, Stage: stage, Detail: detail})
}
