package provenance

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/xenophobed/demi-provenance/internal/domain"
	"github.com/xenophobed/demi-provenance/internal/pkg/apperrors"
	"github.com/xenophobed/demi-provenance/internal/pkg/dbctx"
	"github.com/xenophobed/demi-provenance/internal/platform/logger"
)

type RunRepo interface {
	Create(dbc dbctx.Context, rows []*types.Run) ([]*types.Run, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Run, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Run, error)
	GetByStoryID(dbc dbctx.Context, storyID uuid.UUID) ([]*types.Run, error)

	// UpdateStatus moves a run and stamps started_at on entering running and
	// completed_at on entering a terminal status.
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status types.RunStatus) error
	SetResultSummary(dbc dbctx.Context, id uuid.UUID, summary datatypes.JSON) error
}

type runRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRunRepo(db *gorm.DB, baseLog *logger.Logger) RunRepo {
	return &runRepo{db: db, log: baseLog.With("repo", "RunRepo")}
}

func (r *runRepo) Create(dbc dbctx.Context, rows []*types.Run) ([]*types.Run, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Run{}, nil
	}
	now := time.Now()
	for _, run := range rows {
		if run.StoryID == uuid.Nil || run.WorkflowType == "" {
			return nil, apperrors.ErrInvalidArgument
		}
		if run.ID == uuid.Nil {
			run.ID = uuid.New()
		}
		if run.Status == "" {
			run.Status = types.RunPending
		}
		if !run.Status.Valid() {
			return nil, apperrors.ErrInvalidArgument
		}
		if run.CreatedAt.IsZero() {
			run.CreatedAt = now
		}
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *runRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Run, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Run
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *runRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Run, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Run
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *runRepo) GetByStoryID(dbc dbctx.Context, storyID uuid.UUID) ([]*types.Run, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Run
	if storyID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("story_id = ?", storyID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *runRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, status types.RunStatus) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if !status.Valid() {
		return apperrors.ErrInvalidArgument
	}
	now := time.Now()
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	if status == types.RunRunning {
		updates["started_at"] = now
	}
	if status.Terminal() {
		updates["completed_at"] = now
	}
	res := transaction.WithContext(dbc.Ctx).Model(&types.Run{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	r.log.Debug("run status updated", "run_id", id, "status", status)
	return nil
}

func (r *runRepo) SetResultSummary(dbc dbctx.Context, id uuid.UUID, summary datatypes.JSON) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).Model(&types.Run{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"result_summary": summary,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
