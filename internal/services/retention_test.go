package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/xenophobed/demi-provenance/internal/data/repos/testutil"
	types "github.com/xenophobed/demi-provenance/internal/domain"
)

func testPolicies() RetentionConfig {
	return RetentionConfig{Policies: []RetentionPolicy{
		{LifecycleState: types.StateIntermediate, RetentionDays: 7},
		{LifecycleState: types.StateCandidate, RetentionDays: 30},
		{LifecycleState: types.StatePublished, RetentionDays: -1},
		{LifecycleState: types.StateArchived, RetentionDays: 14},
	}}
}

const week = 7 * 24 * time.Hour

func TestRetentionSweepArchivesAndDeletes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := h.retention(t, testPolicies())

	staleIntermediate := testutil.SeedAgedArtifact(t, ctx, h.db, types.ArtifactImage, types.StateIntermediate, 2*week)
	freshIntermediate := testutil.SeedArtifact(t, ctx, h.db, types.ArtifactImage, types.StateIntermediate)
	staleArchived := testutil.SeedAgedArtifact(t, ctx, h.db, types.ArtifactAudio, types.StateArchived, 3*week)

	// the doomed archived artifact has lineage rows that must go with it
	other := testutil.SeedArtifact(t, ctx, h.db, types.ArtifactText, types.StateIntermediate)
	if _, err := h.relationRepo.Create(h.dbc, &types.ArtifactRelation{
		FromArtifactID: staleArchived.ID,
		ToArtifactID:   other.ID,
		RelationType:   types.RelationDerivedFrom,
	}); err != nil {
		t.Fatalf("seed relation: %v", err)
	}

	report, err := svc.RunCleanup(h.dbc, false, 0)
	if err != nil {
		t.Fatalf("RunCleanup: %v", err)
	}
	if report.Archived != 1 || report.Deleted != 1 {
		t.Fatalf("report: archived=%d deleted=%d errors=%v", report.Archived, report.Deleted, report.Errors)
	}

	got, _ := h.artifactRepo.GetByID(h.dbc, staleIntermediate.ID)
	if got == nil || got.LifecycleState != types.StateArchived {
		t.Fatalf("stale intermediate not archived: %+v", got)
	}
	got, _ = h.artifactRepo.GetByID(h.dbc, freshIntermediate.ID)
	if got == nil || got.LifecycleState != types.StateIntermediate {
		t.Fatalf("fresh intermediate touched: %+v", got)
	}
	if got, _ := h.artifactRepo.GetByID(h.dbc, staleArchived.ID); got != nil {
		t.Fatalf("stale archived survived: %+v", got)
	}
	if edges, err := h.relationRepo.GetTouching(h.dbc, []uuid.UUID{staleArchived.ID}); err != nil || len(edges) != 0 {
		t.Fatalf("relations not cascaded: err=%v len=%d", err, len(edges))
	}
}

func TestRetentionArchivalStartsTheDeleteGracePeriod(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := h.retention(t, testPolicies())

	// older than every TTL; one sweep must not archive and delete it together
	ancient := testutil.SeedAgedArtifact(t, ctx, h.db, types.ArtifactImage, types.StateIntermediate, 10*week)

	report, err := svc.RunCleanup(h.dbc, false, 0)
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if report.Archived != 1 || report.Deleted != 0 {
		t.Fatalf("first sweep report: %+v", report)
	}

	// a second sweep right away still sees a freshly archived artifact
	report, err = svc.RunCleanup(h.dbc, false, 0)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if report.Found != 0 || report.Deleted != 0 {
		t.Fatalf("second sweep report: %+v", report)
	}

	got, _ := h.artifactRepo.GetByID(h.dbc, ancient.ID)
	if got == nil || got.LifecycleState != types.StateArchived {
		t.Fatalf("artifact deleted before its archived grace period: %+v", got)
	}
}

func TestRetentionNeverTouchesPublishedOrCanonical(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// even a hostile config with a short published TTL must not reach them
	cfg := testPolicies()
	cfg.Policies[2].RetentionDays = 1

	published := testutil.SeedAgedArtifact(t, ctx, h.db, types.ArtifactText, types.StatePublished, 52*week)
	canonical := testutil.SeedAgedArtifact(t, ctx, h.db, types.ArtifactImage, types.StateCandidate, 52*week)
	testutil.SeedPrimaryLink(t, ctx, h.db, uuid.New(), canonical.ID, types.RoleCover)

	report, err := h.retention(t, cfg).RunCleanup(h.dbc, false, 0)
	if err != nil {
		t.Fatalf("RunCleanup: %v", err)
	}
	if report.Safeguarded != 2 || report.Archived != 0 || report.Deleted != 0 {
		t.Fatalf("report: %+v", report)
	}

	got, _ := h.artifactRepo.GetByID(h.dbc, published.ID)
	if got == nil || got.LifecycleState != types.StatePublished {
		t.Fatalf("published mutated: %+v", got)
	}
	got, _ = h.artifactRepo.GetByID(h.dbc, canonical.ID)
	if got == nil || got.LifecycleState != types.StateCandidate {
		t.Fatalf("canonical mutated: %+v", got)
	}
}

func TestRetentionDryRunMutatesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := h.retention(t, testPolicies())

	stale := testutil.SeedAgedArtifact(t, ctx, h.db, types.ArtifactImage, types.StateIntermediate, 2*week)
	doomed := testutil.SeedAgedArtifact(t, ctx, h.db, types.ArtifactAudio, types.StateArchived, 3*week)

	report, err := svc.RunCleanup(h.dbc, true, 0)
	if err != nil {
		t.Fatalf("RunCleanup: %v", err)
	}
	if !report.DryRun || report.Found != 2 || report.Archived != 1 || report.Deleted != 1 {
		t.Fatalf("report: %+v", report)
	}
	if len(report.Sample) != 2 {
		t.Fatalf("sample: %d", len(report.Sample))
	}

	got, _ := h.artifactRepo.GetByID(h.dbc, stale.ID)
	if got == nil || got.LifecycleState != types.StateIntermediate {
		t.Fatalf("dry run archived: %+v", got)
	}
	if got, _ := h.artifactRepo.GetByID(h.dbc, doomed.ID); got == nil {
		t.Fatalf("dry run deleted a row")
	}
}

func TestRetentionDeleteRemovesBackingFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := h.retention(t, testPolicies())

	path := filepath.Join(t.TempDir(), "old.mp3")
	if err := os.WriteFile(path, []byte("audio bytes"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	doomed := testutil.SeedAgedArtifact(t, ctx, h.db, types.ArtifactAudio, types.StateArchived, 3*week)
	if err := h.db.WithContext(ctx).Model(&types.Artifact{}).
		Where("id = ?", doomed.ID).
		Updates(map[string]interface{}{
			"storage_path": path,
			"updated_at":   doomed.UpdatedAt,
		}).Error; err != nil {
		t.Fatalf("set storage_path: %v", err)
	}
	doomed.StoragePath = path

	report, err := svc.RunCleanup(h.dbc, false, 0)
	if err != nil {
		t.Fatalf("RunCleanup: %v", err)
	}
	if report.Deleted != 1 || len(report.Errors) != 0 {
		t.Fatalf("report: %+v", report)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("backing file still present: %v", err)
	}
}
