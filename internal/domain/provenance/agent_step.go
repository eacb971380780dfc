package provenance

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StepStatus mirrors RunStatus at step granularity. A failed step is never
// mutated back to success; a retry is a new step with a new id and order.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

var stepStatuses = map[StepStatus]bool{
	StepPending:   true,
	StepRunning:   true,
	StepCompleted: true,
	StepFailed:    true,
}

func (s StepStatus) Valid() bool    { return stepStatuses[s] }
func (s StepStatus) Terminal() bool { return s == StepCompleted || s == StepFailed }

// StepDurationKey is the reserved output_data key the ledger merges the
// wall-clock duration into at completion.
const StepDurationKey = "_duration_ms"

// AgentStep is one agent invocation inside a run; artifacts are attributed
// to the step that created them.
type AgentStep struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RunID        uuid.UUID      `gorm:"type:uuid;column:run_id;not null;index" json:"run_id"`
	StepName     string         `gorm:"column:step_name;not null;index" json:"step_name"`
	StepOrder    int            `gorm:"column:step_order;not null" json:"step_order"`
	Status       StepStatus     `gorm:"column:status;not null;index" json:"status"`
	InputData    datatypes.JSON `gorm:"column:input_data" json:"input_data,omitempty"`
	OutputData   datatypes.JSON `gorm:"column:output_data" json:"output_data,omitempty"`
	ErrorMessage string         `gorm:"column:error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	StartedAt    *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (AgentStep) TableName() string { return "agent_step" }
