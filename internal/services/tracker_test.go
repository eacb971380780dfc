package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/xenophobed/demi-provenance/internal/domain"
	"github.com/xenophobed/demi-provenance/internal/pkg/apperrors"
)

func TestTrackerGenerationRunEndToEnd(t *testing.T) {
	h := newHarness(t)
	storyID := uuid.New()

	run, err := h.tracker.StartRun(h.dbc, storyID, "image_to_story", nil)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.Status != types.RunRunning || run.StartedAt == nil {
		t.Fatalf("run not running: %+v", run)
	}

	// step 1 ingests the source photo
	ingest, err := h.tracker.StartStep(h.dbc, run.ID, "ingest_photo", 1, datatypes.JSON([]byte(`{"source":"upload"}`)))
	if err != nil {
		t.Fatalf("StartStep(ingest): %v", err)
	}
	if ingest.Status != types.StepRunning {
		t.Fatalf("step not running: %+v", ingest)
	}
	photo, err := h.tracker.RecordArtifact(h.dbc, ingest.ID, RecordArtifactParams{
		ArtifactType:   types.ArtifactImage,
		StoragePath:    "uploads/photo.png",
		MimeType:       "image/png",
		ContentHash:    "hash-photo",
		CreatedByAgent: "ingest",
		RunID:          run.ID,
		Stage:          types.StageConsumed,
	})
	if err != nil {
		t.Fatalf("RecordArtifact(photo): %v", err)
	}
	if photo.LifecycleState != types.StateIntermediate {
		t.Fatalf("new artifact state: %s", photo.LifecycleState)
	}
	if photo.CreatedByStepID == nil || *photo.CreatedByStepID != ingest.ID {
		t.Fatalf("created_by_step_id not stamped: %+v", photo.CreatedByStepID)
	}
	if err := h.tracker.CompleteStep(h.dbc, ingest.ID, nil, types.StepCompleted, ""); err != nil {
		t.Fatalf("CompleteStep(ingest): %v", err)
	}

	// step 2 writes the story text derived from the photo
	write, err := h.tracker.StartStep(h.dbc, run.ID, "write_story", 2, nil)
	if err != nil {
		t.Fatalf("StartStep(write): %v", err)
	}
	text, err := h.tracker.RecordArtifact(h.dbc, write.ID, RecordArtifactParams{
		ArtifactType:     types.ArtifactText,
		InlineText:       "Once upon a time...",
		ContentHash:      "hash-text",
		CreatedByAgent:   "writer",
		InputArtifactIDs: []uuid.UUID{photo.ID},
		RunID:            run.ID,
	})
	if err != nil {
		t.Fatalf("RecordArtifact(text): %v", err)
	}
	if err := h.tracker.CompleteStep(h.dbc, write.ID, datatypes.JSON([]byte(`{"words":120}`)), types.StepCompleted, ""); err != nil {
		t.Fatalf("CompleteStep(write): %v", err)
	}

	// the derived_from edge points from the text back to the photo
	edges, err := h.relationRepo.GetFrom(h.dbc, []uuid.UUID{text.ID})
	if err != nil || len(edges) != 1 {
		t.Fatalf("lineage edges: err=%v len=%d", err, len(edges))
	}
	if edges[0].ToArtifactID != photo.ID || edges[0].RelationType != types.RelationDerivedFrom {
		t.Fatalf("wrong edge: %+v", edges[0])
	}

	// promote and publish as the canonical story text
	if err := h.artifactRepo.UpdateLifecycleState(h.dbc, text.ID, types.StateCandidate); err != nil {
		t.Fatalf("-> candidate: %v", err)
	}
	if err := h.tracker.PublishArtifact(h.dbc, text.ID, &storyID, types.RoleStoryText); err != nil {
		t.Fatalf("PublishArtifact: %v", err)
	}
	published, _ := h.artifactRepo.GetByID(h.dbc, text.ID)
	if published.LifecycleState != types.StatePublished {
		t.Fatalf("state after publish: %s", published.LifecycleState)
	}
	canonical, err := h.linkRepo.GetCanonical(h.dbc, storyID, types.RoleStoryText)
	if err != nil || canonical == nil || canonical.ArtifactID != text.ID {
		t.Fatalf("canonical link: got=%v err=%v", canonical, err)
	}

	if err := h.tracker.CompleteRun(h.dbc, run.ID, datatypes.JSON([]byte(`{"artifacts":2}`))); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}
	done, _ := h.runRepo.GetByID(h.dbc, run.ID)
	if done.Status != types.RunCompleted || done.CompletedAt == nil || len(done.ResultSummary) == 0 {
		t.Fatalf("run not closed: %+v", done)
	}

	links, err := h.runLinkRepo.GetByRunID(h.dbc, run.ID)
	if err != nil || len(links) != 2 {
		t.Fatalf("run links: err=%v len=%d", err, len(links))
	}
}

func TestTrackerRecordArtifactDedupsByContentHash(t *testing.T) {
	h := newHarness(t)
	storyID := uuid.New()

	run, err := h.tracker.StartRun(h.dbc, storyID, "regenerate_audio", nil)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	step, err := h.tracker.StartStep(h.dbc, run.ID, "synthesize_audio", 1, nil)
	if err != nil {
		t.Fatalf("StartStep: %v", err)
	}

	params := RecordArtifactParams{
		ArtifactType:   types.ArtifactAudio,
		StoragePath:    "audio/story.mp3",
		MimeType:       "audio/mpeg",
		ContentHash:    "hash-audio",
		CreatedByAgent: "narrator",
		RunID:          run.ID,
	}
	first, err := h.tracker.RecordArtifact(h.dbc, step.ID, params)
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	second, err := h.tracker.RecordArtifact(h.dbc, step.ID, params)
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("dedup failed: %s vs %s", first.ID, second.ID)
	}

	// one artifact row, one run link, despite the double record
	res, err := h.lineage.Search(h.dbc, SearchQuery{ContentHash: "hash-audio"})
	if err != nil || res.Total != 1 {
		t.Fatalf("search by hash: err=%v total=%d", err, res.Total)
	}
	links, err := h.runLinkRepo.GetByRunID(h.dbc, run.ID)
	if err != nil || len(links) != 1 {
		t.Fatalf("run links: err=%v len=%d", err, len(links))
	}
}

func TestTrackerRecordArtifactValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.tracker.RecordArtifact(h.dbc, uuid.Nil, RecordArtifactParams{
		ArtifactType: types.ArtifactType("hologram"),
		StoragePath:  "x",
	})
	if !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("bad type: want ErrInvalidArgument, got %v", err)
	}

	_, err = h.tracker.RecordArtifact(h.dbc, uuid.Nil, RecordArtifactParams{
		ArtifactType: types.ArtifactImage,
	})
	if !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("no location: want ErrInvalidArgument, got %v", err)
	}
}

func TestTrackerPublishRequiresCandidate(t *testing.T) {
	h := newHarness(t)

	rows, err := h.artifactRepo.Create(h.dbc, []*types.Artifact{{
		ArtifactType: types.ArtifactImage,
		StoragePath:  "images/raw.png",
	}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	artifact := rows[0]

	err = h.tracker.PublishArtifact(h.dbc, artifact.ID, nil, "")
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("intermediate publish: want ErrInvalidTransition, got %v", err)
	}
	var transitionErr *types.InvalidTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("want InvalidTransitionError, got %T", err)
	}

	// nothing was half-applied
	got, _ := h.artifactRepo.GetByID(h.dbc, artifact.ID)
	if got.LifecycleState != types.StateIntermediate {
		t.Fatalf("state mutated on failed publish: %s", got.LifecycleState)
	}
}

func TestTrackerFailRunRecordsSummary(t *testing.T) {
	h := newHarness(t)

	run, err := h.tracker.StartRun(h.dbc, uuid.New(), "image_to_story", nil)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := h.tracker.FailRun(h.dbc, run.ID, datatypes.JSON([]byte(`{"error":"upstream timeout"}`))); err != nil {
		t.Fatalf("FailRun: %v", err)
	}
	got, _ := h.runRepo.GetByID(h.dbc, run.ID)
	if got.Status != types.RunFailed || got.CompletedAt == nil {
		t.Fatalf("run not failed: %+v", got)
	}
}
