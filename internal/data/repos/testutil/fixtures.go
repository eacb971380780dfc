package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/xenophobed/demi-provenance/internal/domain"
)

func SeedArtifact(tb testing.TB, ctx context.Context, tx *gorm.DB, artifactType types.ArtifactType, state types.LifecycleState) *types.Artifact {
	tb.Helper()
	now := time.Now()
	a := &types.Artifact{
		ID:             uuid.New(),
		ArtifactType:   artifactType,
		LifecycleState: state,
		StoragePath:    "artifacts/" + uuid.NewString(),
		MimeType:       "application/octet-stream",
		FileSize:       1024,
		CreatedByAgent: "test_agent",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed artifact: %v", err)
	}
	return a
}

// SeedAgedArtifact backdates created_at and updated_at so retention cutoffs
// see the artifact as having sat in its state for the given age.
func SeedAgedArtifact(tb testing.TB, ctx context.Context, tx *gorm.DB, artifactType types.ArtifactType, state types.LifecycleState, age time.Duration) *types.Artifact {
	tb.Helper()
	a := SeedArtifact(tb, ctx, tx, artifactType, state)
	created := time.Now().Add(-age)
	if err := tx.WithContext(ctx).Model(&types.Artifact{}).
		Where("id = ?", a.ID).
		Updates(map[string]interface{}{
			"created_at": created,
			"updated_at": created,
		}).Error; err != nil {
		tb.Fatalf("backdate artifact: %v", err)
	}
	a.CreatedAt = created
	a.UpdatedAt = created
	return a
}

func SeedRun(tb testing.TB, ctx context.Context, tx *gorm.DB, storyID uuid.UUID) *types.Run {
	tb.Helper()
	now := time.Now()
	run := &types.Run{
		ID:           uuid.New(),
		StoryID:      storyID,
		WorkflowType: "image_to_story",
		Status:       types.RunPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.WithContext(ctx).Create(run).Error; err != nil {
		tb.Fatalf("seed run: %v", err)
	}
	return run
}

func SeedStep(tb testing.TB, ctx context.Context, tx *gorm.DB, runID uuid.UUID, name string, order int) *types.AgentStep {
	tb.Helper()
	now := time.Now()
	step := &types.AgentStep{
		ID:        uuid.New(),
		RunID:     runID,
		StepName:  name,
		StepOrder: order,
		Status:    types.StepPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(step).Error; err != nil {
		tb.Fatalf("seed step: %v", err)
	}
	return step
}

func SeedPrimaryLink(tb testing.TB, ctx context.Context, tx *gorm.DB, storyID, artifactID uuid.UUID, role types.LinkRole) *types.StoryArtifactLink {
	tb.Helper()
	now := time.Now()
	link := &types.StoryArtifactLink{
		ID:         uuid.New(),
		StoryID:    storyID,
		ArtifactID: artifactID,
		Role:       role,
		IsPrimary:  true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.WithContext(ctx).Create(link).Error; err != nil {
		tb.Fatalf("seed story link: %v", err)
	}
	return link
}

func SeedLegacyStory(tb testing.TB, ctx context.Context, tx *gorm.DB, title, storyText string) *types.LegacyStory {
	tb.Helper()
	s := &types.LegacyStory{
		ID:        uuid.New(),
		Title:     title,
		ImageURL:  "https://cdn.example.com/" + uuid.NewString() + ".png",
		AudioURL:  "https://cdn.example.com/" + uuid.NewString() + ".mp3",
		StoryText: storyText,
		AgeRating: "all",
		CreatedAt: time.Now(),
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed legacy story: %v", err)
	}
	return s
}
