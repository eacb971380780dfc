package domain

import (
	"github.com/xenophobed/demi-provenance/internal/domain/legacy"
	"github.com/xenophobed/demi-provenance/internal/domain/provenance"
)

type Artifact = provenance.Artifact
type ArtifactRelation = provenance.ArtifactRelation
type StoryArtifactLink = provenance.StoryArtifactLink
type Run = provenance.Run
type AgentStep = provenance.AgentStep
type RunArtifactLink = provenance.RunArtifactLink
type MigrationStatus = provenance.MigrationStatus

type ArtifactType = provenance.ArtifactType
type LifecycleState = provenance.LifecycleState
type RelationType = provenance.RelationType
type LinkRole = provenance.LinkRole
type RunStatus = provenance.RunStatus
type StepStatus = provenance.StepStatus
type RunStage = provenance.RunStage
type MigrationRecordStatus = provenance.MigrationRecordStatus

type InvalidTransitionError = provenance.InvalidTransitionError

type LegacyStory = legacy.LegacyStory

const (
	ArtifactImage = provenance.ArtifactImage
	ArtifactAudio = provenance.ArtifactAudio
	ArtifactVideo = provenance.ArtifactVideo
	ArtifactText  = provenance.ArtifactText

	StateIntermediate = provenance.StateIntermediate
	StateCandidate    = provenance.StateCandidate
	StatePublished    = provenance.StatePublished
	StateArchived     = provenance.StateArchived

	RelationDerivedFrom = provenance.RelationDerivedFrom
	RelationVariantOf   = provenance.RelationVariantOf
	RelationSegmentOf   = provenance.RelationSegmentOf
	RelationReferences  = provenance.RelationReferences

	RoleCover          = provenance.RoleCover
	RoleSceneImage     = provenance.RoleSceneImage
	RoleStoryText      = provenance.RoleStoryText
	RoleSimplifiedText = provenance.RoleSimplifiedText
	RoleFinalAudio     = provenance.RoleFinalAudio
	RolePageAudio      = provenance.RolePageAudio

	RunPending   = provenance.RunPending
	RunRunning   = provenance.RunRunning
	RunCompleted = provenance.RunCompleted
	RunFailed    = provenance.RunFailed

	StepPending   = provenance.StepPending
	StepRunning   = provenance.StepRunning
	StepCompleted = provenance.StepCompleted
	StepFailed    = provenance.StepFailed

	StageGenerated = provenance.StageGenerated
	StageConsumed  = provenance.StageConsumed
	StagePublished = provenance.StagePublished

	MigrationPending    = provenance.MigrationPending
	MigrationInProgress = provenance.MigrationInProgress
	MigrationCompleted  = provenance.MigrationCompleted
	MigrationFailed     = provenance.MigrationFailed
	MigrationSkipped    = provenance.MigrationSkipped

	StepDurationKey = provenance.StepDurationKey
)
