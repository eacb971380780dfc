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

type StoryArtifactLinkRepo interface {
	// Upsert inserts or updates the (story, artifact, role) link. When the
	// link is primary, any existing primary for (story, role) is demoted in
	// the same transaction; the demoted row is kept as history.
	Upsert(dbc dbctx.Context, row *types.StoryArtifactLink) (*types.StoryArtifactLink, error)

	GetCanonical(dbc dbctx.Context, storyID uuid.UUID, role types.LinkRole) (*types.StoryArtifactLink, error)
	GetByStoryID(dbc dbctx.Context, storyID uuid.UUID) ([]*types.StoryArtifactLink, error)
	GetByArtifactIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.StoryArtifactLink, error)

	// HasPrimaryForArtifacts reports, per artifact id, whether any story
	// holds it as primary. Used by the retention safeguard.
	HasPrimaryForArtifacts(dbc dbctx.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

type storyArtifactLinkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStoryArtifactLinkRepo(db *gorm.DB, baseLog *logger.Logger) StoryArtifactLinkRepo {
	return &storyArtifactLinkRepo{db: db, log: baseLog.With("repo", "StoryArtifactLinkRepo")}
}

func (r *storyArtifactLinkRepo) Upsert(dbc dbctx.Context, row *types.StoryArtifactLink) (*types.StoryArtifactLink, error) {
	if row == nil || row.StoryID == uuid.Nil || row.ArtifactID == uuid.Nil {
		return nil, apperrors.ErrInvalidArgument
	}
	if !row.Role.Valid() {
		return nil, apperrors.ErrInvalidArgument
	}
	now := time.Now()
	run := func(txx *gorm.DB) error {
		if row.IsPrimary {
			if err := txx.WithContext(dbc.Ctx).Model(&types.StoryArtifactLink{}).
				Where("story_id = ? AND role = ? AND is_primary = ? AND artifact_id <> ?",
					row.StoryID, row.Role, true, row.ArtifactID).
				Updates(map[string]interface{}{
					"is_primary": false,
					"updated_at": now,
				}).Error; err != nil {
				return err
			}
		}

		var existing types.StoryArtifactLink
		err := txx.WithContext(dbc.Ctx).
			Where("story_id = ? AND artifact_id = ? AND role = ?", row.StoryID, row.ArtifactID, row.Role).
			Limit(1).
			Find(&existing).Error
		if err != nil {
			return err
		}
		if existing.ID != uuid.Nil {
			if err := txx.WithContext(dbc.Ctx).Model(&types.StoryArtifactLink{}).
				Where("id = ?", existing.ID).
				Updates(map[string]interface{}{
					"is_primary": row.IsPrimary,
					"position":   row.Position,
					"updated_at": now,
				}).Error; err != nil {
				return err
			}
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
			row.UpdatedAt = now
			return nil
		}

		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		row.CreatedAt = now
		row.UpdatedAt = now
		if err := txx.WithContext(dbc.Ctx).Create(row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.ErrConstraintViolation
			}
			return err
		}
		return nil
	}

	var err error
	if dbc.Tx != nil {
		err = run(dbc.Tx)
	} else {
		err = r.db.Transaction(run)
	}
	if err != nil {
		return nil, err
	}
	r.log.Debug("story link upserted",
		"story_id", row.StoryID,
		"artifact_id", row.ArtifactID,
		"role", row.Role,
		"is_primary", row.IsPrimary,
	)
	return row, nil
}

func (r *storyArtifactLinkRepo) GetCanonical(dbc dbctx.Context, storyID uuid.UUID, role types.LinkRole) (*types.StoryArtifactLink, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if storyID == uuid.Nil || role == "" {
		return nil, nil
	}
	var row types.StoryArtifactLink
	err := transaction.WithContext(dbc.Ctx).
		Where("story_id = ? AND role = ? AND is_primary = ?", storyID, role, true).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *storyArtifactLinkRepo) GetByStoryID(dbc dbctx.Context, storyID uuid.UUID) ([]*types.StoryArtifactLink, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.StoryArtifactLink
	if storyID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("story_id = ?", storyID).
		Order("role ASC, position ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *storyArtifactLinkRepo) GetByArtifactIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.StoryArtifactLink, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.StoryArtifactLink
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

func (r *storyArtifactLinkRepo) HasPrimaryForArtifacts(dbc dbctx.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*types.StoryArtifactLink
	if err := transaction.WithContext(dbc.Ctx).
		Where("artifact_id IN ? AND is_primary = ?", ids, true).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ArtifactID] = true
	}
	return out, nil
}
