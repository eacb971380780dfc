package provenance

import (
	"time"

	"github.com/google/uuid"
)

// LinkRole names the canonical slot an artifact fills for a story.
type LinkRole string

const (
	RoleCover          LinkRole = "cover"
	RoleSceneImage     LinkRole = "scene_image"
	RoleStoryText      LinkRole = "story_text"
	RoleSimplifiedText LinkRole = "simplified_text"
	RoleFinalAudio     LinkRole = "final_audio"
	RolePageAudio      LinkRole = "page_audio"
)

var linkRoles = map[LinkRole]bool{
	RoleCover:          true,
	RoleSceneImage:     true,
	RoleStoryText:      true,
	RoleSimplifiedText: true,
	RoleFinalAudio:     true,
	RolePageAudio:      true,
}

func (r LinkRole) Valid() bool { return linkRoles[r] }

// StoryArtifactLink assigns an artifact to a story under a role. At most one
// link per (story_id, role) is primary; demoted links are kept as history.
type StoryArtifactLink struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StoryID    uuid.UUID `gorm:"type:uuid;column:story_id;not null;index;uniqueIndex:idx_story_artifact_role" json:"story_id"`
	ArtifactID uuid.UUID `gorm:"type:uuid;column:artifact_id;not null;index;uniqueIndex:idx_story_artifact_role" json:"artifact_id"`
	Role       LinkRole  `gorm:"column:role;not null;index;uniqueIndex:idx_story_artifact_role" json:"role"`
	IsPrimary  bool      `gorm:"column:is_primary;not null;index" json:"is_primary"`
	Position   int       `gorm:"column:position;not null;default:0" json:"position"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (StoryArtifactLink) TableName() string { return "story_artifact_link" }
