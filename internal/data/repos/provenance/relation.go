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

// Edge direction convention: (from, to, derived_from) means from was derived
// from to. Ancestors of X are reached via edges where from_artifact_id = X;
// descendants via edges where to_artifact_id = X.
type RelationRepo interface {
	Create(dbc dbctx.Context, row *types.ArtifactRelation) (*types.ArtifactRelation, error)

	// GetFrom returns edges leaving the given artifacts (their parents).
	GetFrom(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ArtifactRelation, error)
	// GetTo returns edges arriving at the given artifacts (their children).
	GetTo(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ArtifactRelation, error)
	// GetTouching returns every edge incident to the given artifacts.
	GetTouching(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ArtifactRelation, error)
}

type relationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRelationRepo(db *gorm.DB, baseLog *logger.Logger) RelationRepo {
	return &relationRepo{db: db, log: baseLog.With("repo", "RelationRepo")}
}

func (r *relationRepo) Create(dbc dbctx.Context, row *types.ArtifactRelation) (*types.ArtifactRelation, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil || row.FromArtifactID == uuid.Nil || row.ToArtifactID == uuid.Nil {
		return nil, apperrors.ErrInvalidArgument
	}
	if row.FromArtifactID == row.ToArtifactID {
		return nil, apperrors.ErrInvalidArgument
	}
	if !row.RelationType.Valid() {
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
	r.log.Debug("relation created",
		"relation_id", row.ID,
		"from_artifact_id", row.FromArtifactID,
		"to_artifact_id", row.ToArtifactID,
		"relation_type", row.RelationType,
	)
	return row, nil
}

func (r *relationRepo) GetFrom(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ArtifactRelation, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ArtifactRelation
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("from_artifact_id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *relationRepo) GetTo(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ArtifactRelation, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ArtifactRelation
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("to_artifact_id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *relationRepo) GetTouching(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ArtifactRelation, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ArtifactRelation
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("from_artifact_id IN ? OR to_artifact_id IN ?", ids, ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
