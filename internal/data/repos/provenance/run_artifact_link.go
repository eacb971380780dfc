package provenance

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/xenophobed/demi-provenance/internal/domain"
	"github.com/xenophobed/demi-provenance/internal/pkg/apperrors"
	"github.com/xenophobed/demi-provenance/internal/pkg/dbctx"
	"github.com/xenophobed/demi-provenance/internal/platform/logger"
)

type RunArtifactLinkRepo interface {
	Create(dbc dbctx.Context, row *types.RunArtifactLink) (*types.RunArtifactLink, error)
	GetByRunID(dbc dbctx.Context, runID uuid.UUID) ([]*types.RunArtifactLink, error)
	GetByArtifactIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.RunArtifactLink, error)
}

type runArtifactLinkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRunArtifactLinkRepo(db *gorm.DB, baseLog *logger.Logger) RunArtifactLinkRepo {
	return &runArtifactLinkRepo{db: db, log: baseLog.With("repo", "RunArtifactLinkRepo")}
}

func (r *runArtifactLinkRepo) Create(dbc dbctx.Context, row *types.RunArtifactLink) (*types.RunArtifactLink, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil || row.RunID == uuid.Nil || row.ArtifactID == uuid.Nil {
		return nil, apperrors.ErrInvalidArgument
	}
	if !row.Stage.Valid() {
		return nil, apperrors.ErrInvalidArgument
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	if err := transaction.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrConstraintViolation
		}
		return nil, err
	}
	return row, nil
}

func (r *runArtifactLinkRepo) GetByRunID(dbc dbctx.Context, runID uuid.UUID) ([]*types.RunArtifactLink, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.RunArtifactLink
	if runID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *runArtifactLinkRepo) GetByArtifactIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.RunArtifactLink, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.RunArtifactLink
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("artifact_id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
