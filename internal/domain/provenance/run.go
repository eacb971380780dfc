package provenance

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RunStatus is the closed set of pipeline run states.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

var runStatuses = map[RunStatus]bool{
	RunPending:   true,
	RunRunning:   true,
	RunCompleted: true,
	RunFailed:    true,
}

func (s RunStatus) Valid() bool    { return runStatuses[s] }
func (s RunStatus) Terminal() bool { return s == RunCompleted || s == RunFailed }

// Run is one execution of a generation pipeline for a story.
type Run struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	StoryID       uuid.UUID      `gorm:"type:uuid;column:story_id;not null;index" json:"story_id"`
	SessionID     *uuid.UUID     `gorm:"type:uuid;column:session_id;index" json:"session_id,omitempty"`
	WorkflowType  string         `gorm:"column:workflow_type;not null;index" json:"workflow_type"`
	Status        RunStatus      `gorm:"column:status;not null;index" json:"status"`
	ResultSummary datatypes.JSON `gorm:"column:result_summary" json:"result_summary,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;index" json:"created_at"`
	StartedAt     *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

func (Run) TableName() string { return "run" }
