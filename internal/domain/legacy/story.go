package legacy

import (
	"time"

	"github.com/google/uuid"
)

// LegacyStory is a pre-graph flat story row. The backfill reads these and
// never writes them; the graph model supersedes this table.
type LegacyStory struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title     string    `gorm:"column:title" json:"title"`
	ImagePath string    `gorm:"column:image_path" json:"image_path,omitempty"`
	ImageURL  string    `gorm:"column:image_url" json:"image_url,omitempty"`
	AudioPath string    `gorm:"column:audio_path" json:"audio_path,omitempty"`
	AudioURL  string    `gorm:"column:audio_url" json:"audio_url,omitempty"`
	StoryText string    `gorm:"column:story_text" json:"story_text,omitempty"`
	AgeRating string    `gorm:"column:age_rating" json:"age_rating,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (LegacyStory) TableName() string { return "legacy_story" }
