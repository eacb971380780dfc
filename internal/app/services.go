package app

import (
	"gorm.io/gorm"

	"github.com/xenophobed/demi-provenance/internal/platform/logger"
	"github.com/xenophobed/demi-provenance/internal/services"
)

type Services struct {
	Tracker   services.TrackerService
	Lineage   services.LineageService
	Retention services.RetentionService
	Backfill  services.BackfillService
}

func NewServices(db *gorm.DB, baseLog *logger.Logger, cfg Config, r Repos) Services {
	return Services{
		Tracker: services.NewTrackerService(
			db, baseLog, r.Artifact, r.Relation, r.StoryLink, r.Run, r.AgentStep, r.RunLink),
		Lineage: services.NewLineageService(
			db, baseLog, cfg.Lineage, r.Artifact, r.Relation, r.Run, r.RunLink),
		Retention: services.NewRetentionService(
			db, baseLog, services.LoadRetentionConfig(baseLog), r.Artifact, r.StoryLink),
		Backfill: services.NewBackfillService(
			db, baseLog, r.LegacyStory, r.Artifact, r.StoryLink, r.MigrationStatus),
	}
}
