package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"metamorphosis/internal/analyzer"
	"metamorphosis/internal/blueprint"
	"metamorphosis/internal/guide"
	"metamorphosis/internal/renderer"
	"metamorphosis/internal/storage"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func testBlueprint() blueprint.DesignBlueprint {
	return blueprint.DesignBlueprint{
		Title:           "Pallet Coffee Table",
		Category:        blueprint.CategorySmallFurniture,
		Materials:       []blueprint.Material{{Name: "wooden pallet", Quantity: "1"}},
		AssemblySummary: "Sand, cut, bolt legs, seal.",
		UpcycleScore:    8,
	}
}

type fakeAnalyzer struct {
	result      analyzer.Result
	err         error
	calls       int
	invalidated []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ analyzer.Item) (analyzer.Result, error) {
	f.calls++
	if f.err != nil {
		return analyzer.Result{}, f.err
	}
	return f.result, nil
}

func (f *fakeAnalyzer) Invalidate(itemID string) {
	f.invalidated = append(f.invalidated, itemID)
}

type fakeRenderer struct {
	concept renderer.ConceptImage
	err     error
	calls   int
}

func (f *fakeRenderer) Render(_ context.Context, _ string) (renderer.ConceptImage, error) {
	f.calls++
	if f.err != nil {
		return renderer.ConceptImage{}, f.err
	}
	return f.concept, nil
}

type fakeExpander struct {
	guide guide.AssemblyGuide
	err   error
}

func (f *fakeExpander) Expand(_ context.Context, _ blueprint.DesignBlueprint) (guide.AssemblyGuide, error) {
	return f.guide, f.err
}

func TestUploadRejectsNonImage(t *testing.T) {
	o := &Orchestrator{}
	s := newSession()

	_, err := o.Upload(s, []byte("definitely not an image"), "notes.txt")
	require.ErrorIs(t, err, ErrDecode)
	require.Equal(t, PhaseEmpty, s.Snapshot().Phase)
}

func TestUploadClearsDownstreamState(t *testing.T) {
	fa := &fakeAnalyzer{result: analyzer.Result{Blueprint: testBlueprint(), VisualizationPrompt: "a table"}}
	o := &Orchestrator{Analyzer: fa}
	s := newSession()

	snap, err := o.Upload(s, testPNG(t), "pallet.png")
	require.NoError(t, err)
	require.Equal(t, PhaseUploaded, snap.Phase)
	require.NotNil(t, snap.Item)
	require.Equal(t, "image/png", snap.Item.MIME)

	_, err = o.Analyze(context.Background(), s)
	require.NoError(t, err)
	firstItemID := snap.Item.ID

	snap, err = o.Upload(s, testPNG(t), "crate.png")
	require.NoError(t, err)
	require.Equal(t, PhaseUploaded, snap.Phase)
	require.Nil(t, snap.Blueprint)
	require.Empty(t, snap.VisualizationPrompt)
	require.False(t, snap.HasConcept)
	require.Equal(t, GenerationNone, snap.LastGenerationStatus)
	require.Equal(t, []string{firstItemID}, fa.invalidated)
}

func TestAnalyzeRequiresUpload(t *testing.T) {
	o := &Orchestrator{Analyzer: &fakeAnalyzer{}}
	s := newSession()

	_, err := o.Analyze(context.Background(), s)
	require.ErrorIs(t, err, ErrNoItem)
}

func TestAnalyzeSuccessArchivesDesign(t *testing.T) {
	store := storage.NewInMemoryStore()
	fa := &fakeAnalyzer{result: analyzer.Result{Blueprint: testBlueprint(), VisualizationPrompt: "a table"}}
	o := &Orchestrator{Analyzer: fa, Designs: store}
	s := newSession()

	_, err := o.Upload(s, testPNG(t), "pallet.png")
	require.NoError(t, err)

	result, err := o.Analyze(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, "Pallet Coffee Table", result.Blueprint.Title)

	snap := s.Snapshot()
	require.Equal(t, PhaseAnalyzed, snap.Phase)
	require.NotEmpty(t, snap.DesignID)

	designs, err := store.ListDesigns(context.Background())
	require.NoError(t, err)
	require.Len(t, designs, 1)
	require.Equal(t, s.ID, designs[0].SessionID)
	require.Equal(t, "a table", designs[0].VisualizationPrompt)
}

func TestAnalyzeFailureKeepsUpload(t *testing.T) {
	fa := &fakeAnalyzer{err: errors.New("model overloaded")}
	o := &Orchestrator{Analyzer: fa}
	s := newSession()

	_, err := o.Upload(s, testPNG(t), "pallet.png")
	require.NoError(t, err)

	_, err = o.Analyze(context.Background(), s)
	require.Error(t, err)

	snap := s.Snapshot()
	require.Equal(t, PhaseUploaded, snap.Phase)
	require.NotNil(t, snap.Item)
	require.False(t, snap.Busy)
}

func TestRenderWithoutPrompt(t *testing.T) {
	fr := &fakeRenderer{}
	o := &Orchestrator{Renderer: fr}
	s := newSession()

	_, err := o.Render(context.Background(), s)
	require.ErrorIs(t, err, renderer.ErrNoPrompt)
	require.Equal(t, GenerationNoPrompt, s.Snapshot().LastGenerationStatus)
	require.Zero(t, fr.calls)
}

func TestRenderSuccess(t *testing.T) {
	fa := &fakeAnalyzer{result: analyzer.Result{Blueprint: testBlueprint(), VisualizationPrompt: "a table"}}
	fr := &fakeRenderer{concept: renderer.ConceptImage{Data: []byte{1, 2, 3}, MIME: "image/png"}}
	o := &Orchestrator{Analyzer: fa, Renderer: fr}
	s := newSession()

	_, err := o.Upload(s, testPNG(t), "pallet.png")
	require.NoError(t, err)
	_, err = o.Analyze(context.Background(), s)
	require.NoError(t, err)

	concept, err := o.Render(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, "image/png", concept.MIME)

	snap := s.Snapshot()
	require.Equal(t, PhaseVisualized, snap.Phase)
	require.True(t, snap.HasConcept)
	require.Equal(t, GenerationSuccess, snap.LastGenerationStatus)

	got, ok := s.Concept()
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, got.Data)
}

func TestRenderFailureKeepsBlueprint(t *testing.T) {
	fa := &fakeAnalyzer{result: analyzer.Result{Blueprint: testBlueprint(), VisualizationPrompt: "a table"}}
	fr := &fakeRenderer{err: errors.New("model loading")}
	o := &Orchestrator{Analyzer: fa, Renderer: fr}
	s := newSession()

	_, err := o.Upload(s, testPNG(t), "pallet.png")
	require.NoError(t, err)
	_, err = o.Analyze(context.Background(), s)
	require.NoError(t, err)

	_, err = o.Render(context.Background(), s)
	require.Error(t, err)

	snap := s.Snapshot()
	require.Equal(t, PhaseAnalyzed, snap.Phase)
	require.NotNil(t, snap.Blueprint)
	require.Equal(t, GenerationFailed, snap.LastGenerationStatus)
	require.False(t, snap.HasConcept)
}

func TestBusyRejectsConcurrentOperations(t *testing.T) {
	o := &Orchestrator{Analyzer: &fakeAnalyzer{}, Renderer: &fakeRenderer{}, Expander: &fakeExpander{}}
	s := newSession()
	s.mu.Lock()
	s.busy = true
	s.mu.Unlock()

	_, err := o.Upload(s, testPNG(t), "pallet.png")
	require.ErrorIs(t, err, ErrBusy)
	_, err = o.Analyze(context.Background(), s)
	require.ErrorIs(t, err, ErrBusy)
	_, err = o.Render(context.Background(), s)
	require.ErrorIs(t, err, ErrBusy)
	_, err = o.Guide(context.Background(), s)
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, o.Reset(s), ErrBusy)
}

func TestGuideRequiresBlueprint(t *testing.T) {
	o := &Orchestrator{Expander: &fakeExpander{}}
	s := newSession()

	_, err := o.Guide(context.Background(), s)
	require.ErrorIs(t, err, ErrNoBlueprint)
}

func TestGuideExpandsBlueprint(t *testing.T) {
	fa := &fakeAnalyzer{result: analyzer.Result{Blueprint: testBlueprint(), VisualizationPrompt: "a table"}}
	fe := &fakeExpander{guide: guide.AssemblyGuide{Steps: []string{"Sand the pallet."}, Tools: []string{"sander"}}}
	o := &Orchestrator{Analyzer: fa, Expander: fe}
	s := newSession()

	_, err := o.Upload(s, testPNG(t), "pallet.png")
	require.NoError(t, err)
	_, err = o.Analyze(context.Background(), s)
	require.NoError(t, err)

	result, err := o.Guide(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, []string{"Sand the pallet."}, result.Steps)
	require.False(t, s.Busy())
}

func TestResetClearsEverything(t *testing.T) {
	fa := &fakeAnalyzer{result: analyzer.Result{Blueprint: testBlueprint(), VisualizationPrompt: "a table"}}
	o := &Orchestrator{Analyzer: fa}
	s := newSession()

	snap, err := o.Upload(s, testPNG(t), "pallet.png")
	require.NoError(t, err)
	itemID := snap.Item.ID
	_, err = o.Analyze(context.Background(), s)
	require.NoError(t, err)

	require.NoError(t, o.Reset(s))

	snap = s.Snapshot()
	require.Equal(t, PhaseEmpty, snap.Phase)
	require.Nil(t, snap.Item)
	require.Nil(t, snap.Blueprint)
	require.Contains(t, fa.invalidated, itemID)
}

func TestUnconfiguredDependencies(t *testing.T) {
	o := &Orchestrator{}
	s := newSession()
	_, err := o.Upload(s, testPNG(t), "pallet.png")
	require.NoError(t, err)

	_, err = o.Analyze(context.Background(), s)
	require.ErrorIs(t, err, ErrAnalysisUnavailable)
	_, err = o.Guide(context.Background(), s)
	require.ErrorIs(t, err, ErrGuideUnavailable)

	s.mu.Lock()
	s.visPrompt = "a table"
	s.item = nil
	s.mu.Unlock()
	_, err = o.Render(context.Background(), s)
	require.ErrorIs(t, err, ErrRenderUnavailable)
	require.Equal(t, GenerationFailed, s.Snapshot().LastGenerationStatus)
}

func TestStoreEvictsOldestWhenFull(t *testing.T) {
	st := NewStore()
	first := st.Create()
	first.CreatedAt = first.CreatedAt.Add(-time.Hour)
	for i := 1; i < maxSessions; i++ {
		st.Create()
	}
	require.Equal(t, maxSessions, st.Len())

	st.Create()
	require.Equal(t, maxSessions, st.Len())
	_, ok := st.Get(first.ID)
	require.False(t, ok)
}

func TestStoreCreateGetDelete(t *testing.T) {
	st := NewStore()
	s := st.Create()

	got, ok := st.Get(s.ID)
	require.True(t, ok)
	require.Same(t, s, got)

	st.Delete(s.ID)
	_, ok = st.Get(s.ID)
	require.False(t, ok)
	require.Zero(t, st.Len())
}
