package app

import (
	"gorm.io/gorm"

	"github.com/xenophobed/demi-provenance/internal/data/repos"
	"github.com/xenophobed/demi-provenance/internal/platform/logger"
)

type Repos struct {
	Artifact        repos.ArtifactRepo
	Relation        repos.RelationRepo
	StoryLink       repos.StoryArtifactLinkRepo
	Run             repos.RunRepo
	AgentStep       repos.AgentStepRepo
	RunLink         repos.RunArtifactLinkRepo
	MigrationStatus repos.MigrationStatusRepo
	LegacyStory     repos.LegacyStoryRepo
}

func NewRepos(db *gorm.DB, baseLog *logger.Logger) Repos {
	return Repos{
		Artifact:        repos.NewArtifactRepo(db, baseLog),
		Relation:        repos.NewRelationRepo(db, baseLog),
		StoryLink:       repos.NewStoryArtifactLinkRepo(db, baseLog),
		Run:             repos.NewRunRepo(db, baseLog),
		AgentStep:       repos.NewAgentStepRepo(db, baseLog),
		RunLink:         repos.NewRunArtifactLinkRepo(db, baseLog),
		MigrationStatus: repos.NewMigrationStatusRepo(db, baseLog),
		LegacyStory:     repos.NewLegacyStoryRepo(db, baseLog),
	}
}
