package provenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/xenophobed/demi-provenance/internal/data/repos/testutil"
	types "github.com/xenophobed/demi-provenance/internal/domain"
	"github.com/xenophobed/demi-provenance/internal/pkg/apperrors"
)

func TestArtifactRepoLifecycleTransitions(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctxFor(ctx, tx)
	repo := NewArtifactRepo(db, testutil.Logger(t))

	a := testutil.SeedArtifact(t, ctx, tx, types.ArtifactImage, types.StateIntermediate)

	// publishing straight from intermediate is illegal
	err := repo.UpdateLifecycleState(dbc, a.ID, types.StatePublished)
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("intermediate->published: want ErrInvalidTransition, got %v", err)
	}

	if err := repo.UpdateLifecycleState(dbc, a.ID, types.StateCandidate); err != nil {
		t.Fatalf("intermediate->candidate: %v", err)
	}
	if err := repo.UpdateLifecycleState(dbc, a.ID, types.StatePublished); err != nil {
		t.Fatalf("candidate->published: %v", err)
	}

	// no transition moves backward
	for _, target := range []types.LifecycleState{types.StateIntermediate, types.StateCandidate} {
		err := repo.UpdateLifecycleState(dbc, a.ID, target)
		if !errors.Is(err, apperrors.ErrInvalidTransition) {
			t.Fatalf("published->%s: want ErrInvalidTransition, got %v", target, err)
		}
	}

	if err := repo.UpdateLifecycleState(dbc, a.ID, types.StateArchived); err != nil {
		t.Fatalf("published->archived: %v", err)
	}
	got, err := repo.GetByID(dbc, a.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if got.LifecycleState != types.StateArchived {
		t.Fatalf("final state: want archived, got %s", got.LifecycleState)
	}

	// direct archive paths
	b := testutil.SeedArtifact(t, ctx, tx, types.ArtifactAudio, types.StateIntermediate)
	if err := repo.UpdateLifecycleState(dbc, b.ID, types.StateArchived); err != nil {
		t.Fatalf("intermediate->archived: %v", err)
	}
	c := testutil.SeedArtifact(t, ctx, tx, types.ArtifactText, types.StateCandidate)
	if err := repo.UpdateLifecycleState(dbc, c.ID, types.StateArchived); err != nil {
		t.Fatalf("candidate->archived: %v", err)
	}

	if err := repo.UpdateLifecycleState(dbc, uuid.New(), types.StateCandidate); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("unknown id: want ErrNotFound, got %v", err)
	}
}

func TestArtifactRepoContentHashDedup(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctxFor(ctx, tx)
	repo := NewArtifactRepo(db, testutil.Logger(t))

	hash := "abc123"
	a := &types.Artifact{
		ArtifactType:   types.ArtifactImage,
		LifecycleState: types.StateIntermediate,
		ContentHash:    &hash,
		StoragePath:    "artifacts/one.png",
	}
	if _, err := repo.Create(dbc, []*types.Artifact{a}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByContentHash(dbc, hash)
	if err != nil || got == nil || got.ID != a.ID {
		t.Fatalf("GetByContentHash: got=%v err=%v", got, err)
	}
	if got, err := repo.GetByContentHash(dbc, "missing"); err != nil || got != nil {
		t.Fatalf("GetByContentHash miss: got=%v err=%v", got, err)
	}

	dup := &types.Artifact{
		ArtifactType:   types.ArtifactImage,
		LifecycleState: types.StateIntermediate,
		ContentHash:    &hash,
		StoragePath:    "artifacts/two.png",
	}
	if _, err := repo.Create(dbc, []*types.Artifact{dup}); !errors.Is(err, apperrors.ErrConstraintViolation) {
		t.Fatalf("duplicate hash: want ErrConstraintViolation, got %v", err)
	}
}

func TestArtifactRepoListingAndStats(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctxFor(ctx, tx)
	repo := NewArtifactRepo(db, testutil.Logger(t))

	old := testutil.SeedAgedArtifact(t, ctx, tx, types.ArtifactImage, types.StateIntermediate, 72*time.Hour)
	testutil.SeedArtifact(t, ctx, tx, types.ArtifactImage, types.StateIntermediate)
	testutil.SeedArtifact(t, ctx, tx, types.ArtifactAudio, types.StateCandidate)

	rows, err := repo.ListByLifecycleState(dbc, types.StateIntermediate, 10)
	if err != nil || len(rows) != 2 {
		t.Fatalf("ListByLifecycleState: err=%v len=%d", err, len(rows))
	}

	cutoff := time.Now().Add(-24 * time.Hour)
	expired, err := repo.ListExpired(dbc, types.StateIntermediate, cutoff, 10)
	if err != nil || len(expired) != 1 || expired[0].ID != old.ID {
		t.Fatalf("ListExpired: err=%v len=%d", err, len(expired))
	}

	stats, err := repo.CountByStateAndType(dbc)
	if err != nil {
		t.Fatalf("CountByStateAndType: %v", err)
	}
	var total int64
	for _, row := range stats {
		total += row.Count
	}
	if total != 3 {
		t.Fatalf("stats total: want 3, got %d", total)
	}
}

func TestArtifactRepoListExpiredMeasuresStateAge(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctxFor(ctx, tx)
	repo := NewArtifactRepo(db, testutil.Logger(t))

	// old row, but its state changed recently
	recentlyMoved := testutil.SeedArtifact(t, ctx, tx, types.ArtifactImage, types.StateArchived)
	if err := tx.WithContext(ctx).Model(&types.Artifact{}).
		Where("id = ?", recentlyMoved.ID).
		Update("created_at", time.Now().Add(-30*24*time.Hour)).Error; err != nil {
		t.Fatalf("backdate created_at: %v", err)
	}
	longArchived := testutil.SeedAgedArtifact(t, ctx, tx, types.ArtifactImage, types.StateArchived, 30*24*time.Hour)

	cutoff := time.Now().Add(-14 * 24 * time.Hour)
	expired, err := repo.ListExpired(dbc, types.StateArchived, cutoff, 10)
	if err != nil || len(expired) != 1 || expired[0].ID != longArchived.ID {
		t.Fatalf("ListExpired: err=%v len=%d", err, len(expired))
	}
}

func TestArtifactRepoCanonicalAndCascadeDelete(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctxFor(ctx, tx)
	repo := NewArtifactRepo(db, testutil.Logger(t))

	a := testutil.SeedArtifact(t, ctx, tx, types.ArtifactImage, types.StateArchived)
	b := testutil.SeedArtifact(t, ctx, tx, types.ArtifactText, types.StateArchived)
	storyID := uuid.New()
	testutil.SeedPrimaryLink(t, ctx, tx, storyID, a.ID, types.RoleCover)

	if canonical, err := repo.IsCanonical(dbc, a.ID); err != nil || !canonical {
		t.Fatalf("IsCanonical(a): canonical=%v err=%v", canonical, err)
	}
	if canonical, err := repo.IsCanonical(dbc, b.ID); err != nil || canonical {
		t.Fatalf("IsCanonical(b): canonical=%v err=%v", canonical, err)
	}

	rel := &types.ArtifactRelation{
		ID:             uuid.New(),
		FromArtifactID: b.ID,
		ToArtifactID:   a.ID,
		RelationType:   types.RelationDerivedFrom,
		CreatedAt:      time.Now(),
	}
	if err := tx.WithContext(ctx).Create(rel).Error; err != nil {
		t.Fatalf("seed relation: %v", err)
	}

	if err := repo.FullDeleteByIDs(dbc, []uuid.UUID{b.ID}); err != nil {
		t.Fatalf("FullDeleteByIDs: %v", err)
	}
	if got, err := repo.GetByID(dbc, b.ID); err != nil || got != nil {
		t.Fatalf("after delete GetByID: got=%v err=%v", got, err)
	}
	var relCount int64
	if err := tx.WithContext(ctx).Model(&types.ArtifactRelation{}).Count(&relCount).Error; err != nil {
		t.Fatalf("count relations: %v", err)
	}
	if relCount != 0 {
		t.Fatalf("relations not cascaded: %d left", relCount)
	}
	// a's story link untouched
	var linkCount int64
	if err := tx.WithContext(ctx).Model(&types.StoryArtifactLink{}).Count(&linkCount).Error; err != nil {
		t.Fatalf("count links: %v", err)
	}
	if linkCount != 1 {
		t.Fatalf("unrelated link removed: %d left", linkCount)
	}
}
