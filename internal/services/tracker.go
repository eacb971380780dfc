package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/xenophobed/demi-provenance/internal/data/repos"
	types "github.com/xenophobed/demi-provenance/internal/domain"
	"github.com/xenophobed/demi-provenance/internal/pkg/apperrors"
	"github.com/xenophobed/demi-provenance/internal/pkg/dbctx"
	"github.com/xenophobed/demi-provenance/internal/platform/logger"
)

// RecordArtifactParams describes one artifact handed over by a generation
// pipeline. Exactly one of StoragePath, URL, InlineText is expected.
type RecordArtifactParams struct {
	ArtifactType     types.ArtifactType
	StoragePath      string
	URL              string
	InlineText       string
	MimeType         string
	FileSize         int64
	SafetyScore      *float64
	ContentHash      string
	CreatedByAgent   string
	Metadata         datatypes.JSON
	InputArtifactIDs []uuid.UUID
	RunID            uuid.UUID
	Stage            types.RunStage
}

// TrackerService is the orchestration-facing facade generation pipelines use
// to record what they produced. It writes through the artifact, relation,
// run/step, and story-link repos.
type TrackerService interface {
	StartRun(dbc dbctx.Context, storyID uuid.UUID, workflowType string, sessionID *uuid.UUID) (*types.Run, error)
	StartStep(dbc dbctx.Context, runID uuid.UUID, stepName string, stepOrder int, input datatypes.JSON) (*types.AgentStep, error)
	RecordArtifact(dbc dbctx.Context, stepID uuid.UUID, p RecordArtifactParams) (*types.Artifact, error)
	CompleteStep(dbc dbctx.Context, stepID uuid.UUID, output datatypes.JSON, status types.StepStatus, errMsg string) error
	CompleteRun(dbc dbctx.Context, runID uuid.UUID, summary datatypes.JSON) error
	FailRun(dbc dbctx.Context, runID uuid.UUID, summary datatypes.JSON) error
	PublishArtifact(dbc dbctx.Context, artifactID uuid.UUID, storyID *uuid.UUID, role types.LinkRole) error
	LinkToStory(dbc dbctx.Context, storyID, artifactID uuid.UUID, role types.LinkRole, isPrimary bool, position int) (*types.StoryArtifactLink, error)
}

type trackerService struct {
	db           *gorm.DB
	log          *logger.Logger
	artifactRepo repos.ArtifactRepo
	relationRepo repos.RelationRepo
	linkRepo     repos.StoryArtifactLinkRepo
	runRepo      repos.RunRepo
	stepRepo     repos.AgentStepRepo
	runLinkRepo  repos.RunArtifactLinkRepo
}

func NewTrackerService(
	db *gorm.DB,
	baseLog *logger.Logger,
	artifactRepo repos.ArtifactRepo,
	relationRepo repos.RelationRepo,
	linkRepo repos.StoryArtifactLinkRepo,
	runRepo repos.RunRepo,
	stepRepo repos.AgentStepRepo,
	runLinkRepo repos.RunArtifactLinkRepo,
) TrackerService {
	return &trackerService{
		db:           db,
		log:          baseLog.With("service", "TrackerService"),
		artifactRepo: artifactRepo,
		relationRepo: relationRepo,
		linkRepo:     linkRepo,
		runRepo:      runRepo,
		stepRepo:     stepRepo,
		runLinkRepo:  runLinkRepo,
	}
}

func (s *trackerService) StartRun(dbc dbctx.Context, storyID uuid.UUID, workflowType string, sessionID *uuid.UUID) (*types.Run, error) {
	rows, err := s.runRepo.Create(dbc, []*types.Run{{
		StoryID:      storyID,
		SessionID:    sessionID,
		WorkflowType: workflowType,
		Status:       types.RunPending,
	}})
	if err != nil {
		return nil, err
	}
	run := rows[0]
	if err := s.runRepo.UpdateStatus(dbc, run.ID, types.RunRunning); err != nil {
		return nil, err
	}
	s.log.Info("run started", "run_id", run.ID, "story_id", storyID, "workflow_type", workflowType)
	return s.runRepo.GetByID(dbc, run.ID)
}

func (s *trackerService) StartStep(dbc dbctx.Context, runID uuid.UUID, stepName string, stepOrder int, input datatypes.JSON) (*types.AgentStep, error) {
	rows, err := s.stepRepo.Create(dbc, []*types.AgentStep{{
		RunID:     runID,
		StepName:  stepName,
		StepOrder: stepOrder,
		Status:    types.StepPending,
		InputData: input,
	}})
	if err != nil {
		return nil, err
	}
	step := rows[0]
	if err := s.stepRepo.Start(dbc, step.ID); err != nil {
		return nil, err
	}
	return s.stepRepo.GetByID(dbc, step.ID)
}

// RecordArtifact creates the artifact (or reuses an existing one with the
// same content hash), links it to its run, and annotates lineage with a
// derived_from edge per input artifact. The three writes commit together;
// relation uniqueness conflicts are swallowed because lineage annotation is
// best-effort, not a reason to lose the artifact.
func (s *trackerService) RecordArtifact(dbc dbctx.Context, stepID uuid.UUID, p RecordArtifactParams) (*types.Artifact, error) {
	if !p.ArtifactType.Valid() {
		return nil, apperrors.ErrInvalidArgument
	}
	if p.StoragePath == "" && p.URL == "" && p.InlineText == "" {
		return nil, fmt.Errorf("artifact needs a content location: %w", apperrors.ErrInvalidArgument)
	}
	if p.Stage == "" {
		p.Stage = types.StageGenerated
	}

	var out *types.Artifact
	run := func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}

		if p.ContentHash != "" {
			existing, err := s.artifactRepo.GetByContentHash(txc, p.ContentHash)
			if err != nil {
				return err
			}
			if existing != nil {
				s.log.Debug("artifact deduplicated by content hash",
					"artifact_id", existing.ID, "content_hash", p.ContentHash)
				out = existing
			}
		}

		if out == nil {
			artifact := &types.Artifact{
				ArtifactType:   p.ArtifactType,
				LifecycleState: types.StateIntermediate,
				StoragePath:    p.StoragePath,
				URL:            p.URL,
				InlineText:     p.InlineText,
				MimeType:       p.MimeType,
				FileSize:       p.FileSize,
				SafetyScore:    p.SafetyScore,
				CreatedByAgent: p.CreatedByAgent,
				Metadata:       p.Metadata,
			}
			if p.ContentHash != "" {
				hash := p.ContentHash
				artifact.ContentHash = &hash
			}
			if stepID != uuid.Nil {
				id := stepID
				artifact.CreatedByStepID = &id
			}
			rows, err := s.artifactRepo.Create(txc, []*types.Artifact{artifact})
			if err != nil {
				return err
			}
			out = rows[0]
		}

		if p.RunID != uuid.Nil {
			if _, err := s.runLinkRepo.Create(txc, &types.RunArtifactLink{
				RunID:      p.RunID,
				ArtifactID: out.ID,
				Stage:      p.Stage,
			}); err != nil && !errors.Is(err, apperrors.ErrConstraintViolation) {
				return err
			}
		}

		for _, inputID := range p.InputArtifactIDs {
			_, err := s.relationRepo.Create(txc, &types.ArtifactRelation{
				FromArtifactID: out.ID,
				ToArtifactID:   inputID,
				RelationType:   types.RelationDerivedFrom,
			})
			if err != nil {
				if errors.Is(err, apperrors.ErrConstraintViolation) || errors.Is(err, apperrors.ErrInvalidArgument) {
					s.log.Warn("skipping lineage edge",
						"artifact_id", out.ID, "input_artifact_id", inputID, "error", err)
					continue
				}
				return err
			}
		}
		return nil
	}

	var err error
	if dbc.Tx != nil {
		err = run(dbc.Tx)
	} else {
		err = s.db.Transaction(run)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *trackerService) CompleteStep(dbc dbctx.Context, stepID uuid.UUID, output datatypes.JSON, status types.StepStatus, errMsg string) error {
	return s.stepRepo.Complete(dbc, stepID, output, status, errMsg)
}

func (s *trackerService) CompleteRun(dbc dbctx.Context, runID uuid.UUID, summary datatypes.JSON) error {
	if len(summary) > 0 {
		if err := s.runRepo.SetResultSummary(dbc, runID, summary); err != nil {
			return err
		}
	}
	return s.runRepo.UpdateStatus(dbc, runID, types.RunCompleted)
}

func (s *trackerService) FailRun(dbc dbctx.Context, runID uuid.UUID, summary datatypes.JSON) error {
	if len(summary) > 0 {
		if err := s.runRepo.SetResultSummary(dbc, runID, summary); err != nil {
			return err
		}
	}
	return s.runRepo.UpdateStatus(dbc, runID, types.RunFailed)
}

// PublishArtifact promotes a candidate to published and, when a story/role is
// supplied, installs it as the canonical artifact for that slot. The
// transition table only admits candidate -> published, so anything else
// surfaces as an InvalidTransitionError.
func (s *trackerService) PublishArtifact(dbc dbctx.Context, artifactID uuid.UUID, storyID *uuid.UUID, role types.LinkRole) error {
	run := func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		if err := s.artifactRepo.UpdateLifecycleState(txc, artifactID, types.StatePublished); err != nil {
			return err
		}
		if storyID != nil && *storyID != uuid.Nil {
			if _, err := s.linkRepo.Upsert(txc, &types.StoryArtifactLink{
				StoryID:    *storyID,
				ArtifactID: artifactID,
				Role:       role,
				IsPrimary:  true,
			}); err != nil {
				return err
			}
		}
		s.log.Info("artifact published", "artifact_id", artifactID)
		return nil
	}
	if dbc.Tx != nil {
		return run(dbc.Tx)
	}
	return s.db.Transaction(run)
}

func (s *trackerService) LinkToStory(dbc dbctx.Context, storyID, artifactID uuid.UUID, role types.LinkRole, isPrimary bool, position int) (*types.StoryArtifactLink, error) {
	return s.linkRepo.Upsert(dbc, &types.StoryArtifactLink{
		StoryID:    storyID,
		ArtifactID: artifactID,
		Role:       role,
		IsPrimary:  isPrimary,
		Position:   position,
	})
}
