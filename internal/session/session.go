package session

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"

	"metamorphosis/internal/blueprint"
	"metamorphosis/internal/renderer"
)

// Phase tracks how far the active item has progressed through the pipeline.
type Phase string

const (
	PhaseEmpty      Phase = "empty"
	PhaseUploaded   Phase = "uploaded"
	PhaseAnalyzed   Phase = "analyzed"
	PhaseVisualized Phase = "visualized"
)

// GenerationStatus records the outcome of the most recent render attempt.
type GenerationStatus string

const (
	GenerationNone     GenerationStatus = "none"
	GenerationSuccess  GenerationStatus = "success"
	GenerationFailed   GenerationStatus = "failed"
	GenerationNoPrompt GenerationStatus = "no_prompt"
)

var (
	// ErrBusy rejects a transition while a remote call is outstanding.
	ErrBusy = errors.New("session: another operation is in progress")
	// ErrNoItem means analysis or rendering was requested before an upload.
	ErrNoItem = errors.New("session: no image uploaded")
	// ErrNoBlueprint means a blueprint-dependent action ran before analysis.
	ErrNoBlueprint = errors.New("session: no blueprint available")
	// ErrDecode marks an upload that is not a decodable JPEG or PNG image.
	ErrDecode = errors.New("session: uploaded file is not a decodable image")
	// ErrAnalysisUnavailable means no analysis credential is configured.
	ErrAnalysisUnavailable = errors.New("session: analysis not configured")
	// ErrRenderUnavailable means no render credential is configured.
	ErrRenderUnavailable = errors.New("session: rendering not configured")
	// ErrGuideUnavailable means guide expansion is not configured.
	ErrGuideUnavailable = errors.New("session: guide expansion not configured")
)

// UploadedItem is the photo of waste material owned by one session. The ID is
// derived from the upload time, so replacing the image always changes
// identity.
type UploadedItem struct {
	ID         string
	Data       []byte
	MIME       string
	Filename   string
	UploadedAt time.Time
}

// Session holds all state derived from one uploaded item. At most one
// blueprint and one concept image are live at any time; a new upload or a
// reset clears both unconditionally.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	busy      bool
	phase     Phase
	item      *UploadedItem
	blueprint *blueprint.DesignBlueprint
	visPrompt string
	concept   *renderer.ConceptImage
	genStatus GenerationStatus
	designID  string
}

func newSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		phase:     PhaseEmpty,
		genStatus: GenerationNone,
	}
}

// Busy reports whether a remote call is currently outstanding.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Concept returns the current rendered concept, if any.
func (s *Session) Concept() (renderer.ConceptImage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.concept == nil {
		return renderer.ConceptImage{}, false
	}
	return *s.concept, true
}

// ItemInfo is the serializable description of the uploaded item, without the
// raw bytes.
type ItemInfo struct {
	ID         string    `json:"id"`
	MIME       string    `json:"mime"`
	Filename   string    `json:"filename,omitempty"`
	Size       int       `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Snapshot is the client-facing view of a session.
type Snapshot struct {
	ID                   string                     `json:"id"`
	Phase                Phase                      `json:"phase"`
	Busy                 bool                       `json:"busy"`
	Item                 *ItemInfo                  `json:"item,omitempty"`
	Blueprint            *blueprint.DesignBlueprint `json:"blueprint,omitempty"`
	VisualizationPrompt  string                     `json:"visualization_prompt,omitempty"`
	HasConcept           bool                       `json:"has_concept"`
	ConceptMIME          string                     `json:"concept_mime,omitempty"`
	LastGenerationStatus GenerationStatus           `json:"last_generation_status"`
	DesignID             string                     `json:"design_id,omitempty"`
	CreatedAt            time.Time                  `json:"created_at"`
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:                   s.ID,
		Phase:                s.phase,
		Busy:                 s.busy,
		VisualizationPrompt:  s.visPrompt,
		LastGenerationStatus: s.genStatus,
		DesignID:             s.designID,
		CreatedAt:            s.CreatedAt,
	}
	if s.item != nil {
		snap.Item = &ItemInfo{
			ID:         s.item.ID,
			MIME:       s.item.MIME,
			Filename:   s.item.Filename,
			Size:       len(s.item.Data),
			UploadedAt: s.item.UploadedAt,
		}
	}
	if s.blueprint != nil {
		bp := *s.blueprint
		snap.Blueprint = &bp
	}
	if s.concept != nil {
		snap.HasConcept = true
		snap.ConceptMIME = s.concept.MIME
	}
	return snap
}

// decodeImage verifies the upload is a readable raster image and returns its
// canonical MIME type. Only JPEG and PNG are accepted.
func decodeImage(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	switch format {
	case "jpeg":
		return "image/jpeg", nil
	case "png":
		return "image/png", nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q", ErrDecode, format)
	}
}

func newItemID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.Unix(), uuid.NewString()[:8])
}
