package provenance

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/xenophobed/demi-provenance/internal/domain"
	"github.com/xenophobed/demi-provenance/internal/pkg/dbctx"
	"github.com/xenophobed/demi-provenance/internal/platform/logger"
)

// LegacyStoryRepo is read-only; the backfill consumes these rows and the
// graph model supersedes them.
type LegacyStoryRepo interface {
	List(dbc dbctx.Context, limit int) ([]*types.LegacyStory, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.LegacyStory, error)
}

type legacyStoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLegacyStoryRepo(db *gorm.DB, baseLog *logger.Logger) LegacyStoryRepo {
	return &legacyStoryRepo{db: db, log: baseLog.With("repo", "LegacyStoryRepo")}
}

func (r *legacyStoryRepo) List(dbc dbctx.Context, limit int) ([]*types.LegacyStory, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.LegacyStory
	q := transaction.WithContext(dbc.Ctx).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *legacyStoryRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.LegacyStory, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.LegacyStory
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
