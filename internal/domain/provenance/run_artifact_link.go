package provenance

import (
	"time"

	"github.com/google/uuid"
)

// RunStage records how an artifact participated in a run, independent of
// story canonicality.
type RunStage string

const (
	StageGenerated RunStage = "generated"
	StageConsumed  RunStage = "consumed"
	StagePublished RunStage = "published"
)

var runStages = map[RunStage]bool{
	StageGenerated: true,
	StageConsumed:  true,
	StagePublished: true,
}

func (s RunStage) Valid() bool { return runStages[s] }

// RunArtifactLink ties an artifact to the run it participated in.
type RunArtifactLink struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RunID      uuid.UUID `gorm:"type:uuid;column:run_id;not null;index;uniqueIndex:idx_run_artifact_stage" json:"run_id"`
	ArtifactID uuid.UUID `gorm:"type:uuid;column:artifact_id;not null;index;uniqueIndex:idx_run_artifact_stage" json:"artifact_id"`
	Stage      RunStage  `gorm:"column:stage;not null;uniqueIndex:idx_run_artifact_stage" json:"stage"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

func (RunArtifactLink) TableName() string { return "run_artifact_link" }
