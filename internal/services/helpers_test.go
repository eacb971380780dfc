package services

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/xenophobed/demi-provenance/internal/data/repos"
	"github.com/xenophobed/demi-provenance/internal/data/repos/testutil"
	"github.com/xenophobed/demi-provenance/internal/pkg/dbctx"
)

// harness wires every repo and service over one fresh database. Services run
// without a caller transaction so they open their own, same as production.
type harness struct {
	db  *gorm.DB
	dbc dbctx.Context

	artifactRepo repos.ArtifactRepo
	relationRepo repos.RelationRepo
	linkRepo     repos.StoryArtifactLinkRepo
	runRepo      repos.RunRepo
	stepRepo     repos.AgentStepRepo
	runLinkRepo  repos.RunArtifactLinkRepo
	statusRepo   repos.MigrationStatusRepo
	legacyRepo   repos.LegacyStoryRepo

	tracker  TrackerService
	lineage  LineageService
	backfill BackfillService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	h := &harness{
		db:           db,
		dbc:          dbctx.Context{Ctx: context.Background()},
		artifactRepo: repos.NewArtifactRepo(db, log),
		relationRepo: repos.NewRelationRepo(db, log),
		linkRepo:     repos.NewStoryArtifactLinkRepo(db, log),
		runRepo:      repos.NewRunRepo(db, log),
		stepRepo:     repos.NewAgentStepRepo(db, log),
		runLinkRepo:  repos.NewRunArtifactLinkRepo(db, log),
		statusRepo:   repos.NewMigrationStatusRepo(db, log),
		legacyRepo:   repos.NewLegacyStoryRepo(db, log),
	}
	h.tracker = NewTrackerService(db, log, h.artifactRepo, h.relationRepo, h.linkRepo, h.runRepo, h.stepRepo, h.runLinkRepo)
	h.lineage = NewLineageService(db, log, LineageConfig{}, h.artifactRepo, h.relationRepo, h.runRepo, h.runLinkRepo)
	h.backfill = NewBackfillService(db, log, h.legacyRepo, h.artifactRepo, h.linkRepo, h.statusRepo)
	return h
}

func (h *harness) retention(t *testing.T, cfg RetentionConfig) RetentionService {
	t.Helper()
	return NewRetentionService(h.db, testutil.Logger(t), cfg, h.artifactRepo, h.linkRepo)
}
