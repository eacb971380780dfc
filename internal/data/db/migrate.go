package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/xenophobed/demi-provenance/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Graph core
		&types.Artifact{},
		&types.ArtifactRelation{},
		&types.StoryArtifactLink{},

		// Pipeline ledger
		&types.Run{},
		&types.AgentStep{},
		&types.RunArtifactLink{},

		// Backfill bookkeeping + legacy source
		&types.MigrationStatus{},
		&types.LegacyStory{},
	)
}

// EnsureGraphIndexes creates the partial index AutoMigrate cannot express:
// the single-primary guarantee per (story_id, role). The upsert demotes the
// prior primary in the same transaction; this index makes a race on that
// path fail loudly instead of committing two primaries.
func EnsureGraphIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_story_role_primary
		ON story_artifact_link(story_id, role)
		WHERE is_primary = 1;
	`).Error; err != nil {
		return fmt.Errorf("create idx_story_role_primary: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_artifact_state_created
		ON artifact(lifecycle_state, created_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_artifact_state_created: %w", err)
	}
	return nil
}
