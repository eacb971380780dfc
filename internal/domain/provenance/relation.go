package provenance

import (
	"time"

	"github.com/google/uuid"
)

// RelationType labels a directed derivation edge between two artifacts.
type RelationType string

const (
	RelationDerivedFrom RelationType = "derived_from"
	RelationVariantOf   RelationType = "variant_of"
	RelationSegmentOf   RelationType = "segment_of"
	RelationReferences  RelationType = "references"
)

var relationTypes = map[RelationType]bool{
	RelationDerivedFrom: true,
	RelationVariantOf:   true,
	RelationSegmentOf:   true,
	RelationReferences:  true,
}

func (t RelationType) Valid() bool { return relationTypes[t] }

// ArtifactRelation is an immutable directed edge (from, to, type). Self-loops
// are rejected at the repo; the triple is unique.
type ArtifactRelation struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	FromArtifactID uuid.UUID    `gorm:"type:uuid;column:from_artifact_id;not null;index;uniqueIndex:idx_relation_triple" json:"from_artifact_id"`
	ToArtifactID   uuid.UUID    `gorm:"type:uuid;column:to_artifact_id;not null;index;uniqueIndex:idx_relation_triple" json:"to_artifact_id"`
	RelationType   RelationType `gorm:"column:relation_type;not null;uniqueIndex:idx_relation_triple" json:"relation_type"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
}

func (ArtifactRelation) TableName() string { return "artifact_relation" }
