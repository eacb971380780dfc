package repos

import (
	"gorm.io/gorm"

	"github.com/xenophobed/demi-provenance/internal/data/repos/provenance"
	"github.com/xenophobed/demi-provenance/internal/platform/logger"
)

type ArtifactRepo = provenance.ArtifactRepo
type RelationRepo = provenance.RelationRepo
type StoryArtifactLinkRepo = provenance.StoryArtifactLinkRepo
type RunRepo = provenance.RunRepo
type AgentStepRepo = provenance.AgentStepRepo
type RunArtifactLinkRepo = provenance.RunArtifactLinkRepo
type MigrationStatusRepo = provenance.MigrationStatusRepo
type LegacyStoryRepo = provenance.LegacyStoryRepo

type StorageStatRow = provenance.StorageStatRow

func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
	return provenance.NewArtifactRepo(db, baseLog)
}
func NewRelationRepo(db *gorm.DB, baseLog *logger.Logger) RelationRepo {
	return provenance.NewRelationRepo(db, baseLog)
}
func NewStoryArtifactLinkRepo(db *gorm.DB, baseLog *logger.Logger) StoryArtifactLinkRepo {
	return provenance.NewStoryArtifactLinkRepo(db, baseLog)
}
func NewRunRepo(db *gorm.DB, baseLog *logger.Logger) RunRepo {
	return provenance.NewRunRepo(db, baseLog)
}
func NewAgentStepRepo(db *gorm.DB, baseLog *logger.Logger) AgentStepRepo {
	return provenance.NewAgentStepRepo(db, baseLog)
}
func NewRunArtifactLinkRepo(db *gorm.DB, baseLog *logger.Logger) RunArtifactLinkRepo {
	return provenance.NewRunArtifactLinkRepo(db, baseLog)
}
func NewMigrationStatusRepo(db *gorm.DB, baseLog *logger.Logger) MigrationStatusRepo {
	return provenance.NewMigrationStatusRepo(db, baseLog)
}
func NewLegacyStoryRepo(db *gorm.DB, baseLog *logger.Logger) LegacyStoryRepo {
	return provenance.NewLegacyStoryRepo(db, baseLog)
}
