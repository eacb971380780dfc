package provenance

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ArtifactType is the closed set of generated content kinds.
type ArtifactType string

const (
	ArtifactImage ArtifactType = "image"
	ArtifactAudio ArtifactType = "audio"
	ArtifactVideo ArtifactType = "video"
	ArtifactText  ArtifactType = "text"
)

var artifactTypes = map[ArtifactType]bool{
	ArtifactImage: true,
	ArtifactAudio: true,
	ArtifactVideo: true,
	ArtifactText:  true,
}

func (t ArtifactType) Valid() bool { return artifactTypes[t] }

// Artifact is one immutable unit of generated content. Every column except
// lifecycle_state (and the updated_at touch that comes with changing it) is
// write-once; there is no update path other than the state transition.
type Artifact struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ArtifactType   ArtifactType   `gorm:"column:artifact_type;not null;index" json:"artifact_type"`
	LifecycleState LifecycleState `gorm:"column:lifecycle_state;not null;index" json:"lifecycle_state"`

	// Exactly one content location is expected in practice (path, url, or
	// inline text); not enforced at the type level.
	ContentHash *string `gorm:"column:content_hash;uniqueIndex" json:"content_hash,omitempty"`
	StoragePath string  `gorm:"column:storage_path" json:"storage_path,omitempty"`
	URL         string  `gorm:"column:url" json:"url,omitempty"`
	InlineText  string  `gorm:"column:inline_text" json:"inline_text,omitempty"`

	MimeType    string   `gorm:"column:mime_type" json:"mime_type,omitempty"`
	FileSize    int64    `gorm:"column:file_size" json:"file_size,omitempty"`
	SafetyScore *float64 `gorm:"column:safety_score" json:"safety_score,omitempty"`

	CreatedByStepID *uuid.UUID     `gorm:"type:uuid;column:created_by_step_id;index" json:"created_by_step_id,omitempty"`
	CreatedByAgent  string         `gorm:"column:created_by_agent" json:"created_by_agent,omitempty"`
	Metadata        datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`

	CreatedAt time.Time  `gorm:"not null;index" json:"created_at"`
	StoredAt  *time.Time `gorm:"column:stored_at" json:"stored_at,omitempty"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
}

func (Artifact) TableName() string { return "artifact" }
