package provenance

import (
	"time"

	"github.com/google/uuid"
)

// MigrationRecordStatus is the per-record checkpoint state of a backfill.
type MigrationRecordStatus string

const (
	MigrationPending    MigrationRecordStatus = "pending"
	MigrationInProgress MigrationRecordStatus = "in_progress"
	MigrationCompleted  MigrationRecordStatus = "completed"
	MigrationFailed     MigrationRecordStatus = "failed"
	MigrationSkipped    MigrationRecordStatus = "skipped"
)

var migrationRecordStatuses = map[MigrationRecordStatus]bool{
	MigrationPending:    true,
	MigrationInProgress: true,
	MigrationCompleted:  true,
	MigrationFailed:     true,
	MigrationSkipped:    true,
}

func (s MigrationRecordStatus) Valid() bool { return migrationRecordStatuses[s] }

// MigrationStatus checkpoints one legacy record inside one named migration,
// so the backfill can resume without reprocessing finished records.
type MigrationStatus struct {
	ID               uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	MigrationName    string                `gorm:"column:migration_name;not null;index;uniqueIndex:idx_migration_record" json:"migration_name"`
	RecordKind       string                `gorm:"column:record_kind;not null;uniqueIndex:idx_migration_record" json:"record_kind"`
	RecordID         string                `gorm:"column:record_id;not null;uniqueIndex:idx_migration_record" json:"record_id"`
	Status           MigrationRecordStatus `gorm:"column:status;not null;index" json:"status"`
	RetryCount       int                   `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	ArtifactsCreated int                   `gorm:"column:artifacts_created;not null;default:0" json:"artifacts_created"`
	LinksCreated     int                   `gorm:"column:links_created;not null;default:0" json:"links_created"`
	ErrorMessage     string                `gorm:"column:error_message" json:"error_message,omitempty"`
	CreatedAt        time.Time             `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time             `gorm:"not null" json:"updated_at"`
}

func (MigrationStatus) TableName() string { return "migration_status" }
