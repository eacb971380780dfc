package provenance

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/xenophobed/demi-provenance/internal/domain"
	"github.com/xenophobed/demi-provenance/internal/domain/provenance"
	"github.com/xenophobed/demi-provenance/internal/pkg/apperrors"
	"github.com/xenophobed/demi-provenance/internal/pkg/dbctx"
	"github.com/xenophobed/demi-provenance/internal/platform/logger"
)

// StorageStatRow is one (state, type) bucket of the storage statistics query.
type StorageStatRow struct {
	LifecycleState types.LifecycleState `json:"lifecycle_state"`
	ArtifactType   types.ArtifactType   `json:"artifact_type"`
	Count          int64                `json:"count"`
	TotalBytes     int64                `json:"total_bytes"`
}

type ArtifactRepo interface {
	Create(dbc dbctx.Context, rows []*types.Artifact) ([]*types.Artifact, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Artifact, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Artifact, error)
	GetByContentHash(dbc dbctx.Context, hash string) (*types.Artifact, error)
	GetByStoryID(dbc dbctx.Context, storyID uuid.UUID) ([]*types.Artifact, error)
	GetByRunID(dbc dbctx.Context, runID uuid.UUID) ([]*types.Artifact, error)

	UpdateLifecycleState(dbc dbctx.Context, id uuid.UUID, target types.LifecycleState) error

	ListByLifecycleState(dbc dbctx.Context, state types.LifecycleState, limit int) ([]*types.Artifact, error)

	// ListExpired returns artifacts that have sat in state since before
	// cutoff. Age is measured from updated_at, which is stamped by the
	// lifecycle transition, so an archived artifact's grace period starts at
	// archival, not at creation.
	ListExpired(dbc dbctx.Context, state types.LifecycleState, cutoff time.Time, limit int) ([]*types.Artifact, error)

	IsCanonical(dbc dbctx.Context, id uuid.UUID) (bool, error)
	CountByStateAndType(dbc dbctx.Context) ([]StorageStatRow, error)

	// FullDeleteByIDs hard-deletes artifacts and cascades to relations and
	// links referencing them, all in one transaction. Only the retention
	// service calls this, after its own safeguard re-check.
	FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type artifactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
	return &artifactRepo{db: db, log: baseLog.With("repo", "ArtifactRepo")}
}

func (r *artifactRepo) Create(dbc dbctx.Context, rows []*types.Artifact) ([]*types.Artifact, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Artifact{}, nil
	}
	now := time.Now()
	for _, a := range rows {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if a.LifecycleState == "" {
			a.LifecycleState = types.StateIntermediate
		}
		if !a.ArtifactType.Valid() {
			return nil, apperrors.ErrInvalidArgument
		}
		if !a.LifecycleState.Valid() {
			return nil, apperrors.ErrInvalidArgument
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrConstraintViolation
		}
		return nil, err
	}
	for _, a := range rows {
		r.log.Debug("artifact created",
			"artifact_id", a.ID,
			"artifact_type", a.ArtifactType,
			"lifecycle_state", a.LifecycleState,
		)
	}
	return rows, nil
}

func (r *artifactRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Artifact, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Artifact
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *artifactRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Artifact, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *artifactRepo) GetByContentHash(dbc dbctx.Context, hash string) (*types.Artifact, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if hash == "" {
		return nil, nil
	}
	var row types.Artifact
	err := transaction.WithContext(dbc.Ctx).
		Where("content_hash = ?", hash).
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

func (r *artifactRepo) GetByStoryID(dbc dbctx.Context, storyID uuid.UUID) ([]*types.Artifact, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Artifact
	if storyID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Joins("JOIN story_artifact_link ON story_artifact_link.artifact_id = artifact.id").
		Where("story_artifact_link.story_id = ?", storyID).
		Order("artifact.created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *artifactRepo) GetByRunID(dbc dbctx.Context, runID uuid.UUID) ([]*types.Artifact, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Artifact
	if runID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Joins("JOIN run_artifact_link ON run_artifact_link.artifact_id = artifact.id").
		Where("run_artifact_link.run_id = ?", runID).
		Order("artifact.created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateLifecycleState moves an artifact along the declared transition table.
// The read-check-write runs inside one transaction so concurrent movers
// contend at the database rather than racing past the check.
func (r *artifactRepo) UpdateLifecycleState(dbc dbctx.Context, id uuid.UUID, target types.LifecycleState) error {
	if id == uuid.Nil {
		return apperrors.ErrNotFound
	}
	if !target.Valid() {
		return apperrors.ErrInvalidArgument
	}
	run := func(txx *gorm.DB) error {
		var row types.Artifact
		err := txx.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error
		if err != nil {
			return err
		}
		if row.ID == uuid.Nil {
			return apperrors.ErrNotFound
		}
		if !row.LifecycleState.CanTransitionTo(target) {
			return &provenance.InvalidTransitionError{From: row.LifecycleState, To: target}
		}
		if err := txx.WithContext(dbc.Ctx).Model(&types.Artifact{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"lifecycle_state": target,
				"updated_at":      time.Now(),
			}).Error; err != nil {
			return err
		}
		r.log.Info("artifact lifecycle transition",
			"artifact_id", id,
			"from", row.LifecycleState,
			"to", target,
		)
		return nil
	}
	if dbc.Tx != nil {
		return run(dbc.Tx)
	}
	return r.db.Transaction(run)
}

func (r *artifactRepo) ListByLifecycleState(dbc dbctx.Context, state types.LifecycleState, limit int) ([]*types.Artifact, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Artifact
	q := transaction.WithContext(dbc.Ctx).
		Where("lifecycle_state = ?", state).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *artifactRepo) ListExpired(dbc dbctx.Context, state types.LifecycleState, cutoff time.Time, limit int) ([]*types.Artifact, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Artifact
	q := transaction.WithContext(dbc.Ctx).
		Where("lifecycle_state = ? AND updated_at < ?", state, cutoff).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *artifactRepo) IsCanonical(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	var count int64
	if err := transaction.WithContext(dbc.Ctx).Model(&types.StoryArtifactLink{}).
		Where("artifact_id = ? AND is_primary = ?", id, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *artifactRepo) CountByStateAndType(dbc dbctx.Context) ([]StorageStatRow, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []StorageStatRow
	if err := transaction.WithContext(dbc.Ctx).Model(&types.Artifact{}).
		Select("lifecycle_state, artifact_type, COUNT(*) AS count, COALESCE(SUM(file_size), 0) AS total_bytes").
		Group("lifecycle_state").
		Group("artifact_type").
		Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *artifactRepo) FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	run := func(txx *gorm.DB) error {
		if err := txx.WithContext(dbc.Ctx).
			Where("from_artifact_id IN ? OR to_artifact_id IN ?", ids, ids).
			Delete(&types.ArtifactRelation{}).Error; err != nil {
			return err
		}
		if err := txx.WithContext(dbc.Ctx).
			Where("artifact_id IN ?", ids).
			Delete(&types.StoryArtifactLink{}).Error; err != nil {
			return err
		}
		if err := txx.WithContext(dbc.Ctx).
			Where("artifact_id IN ?", ids).
			Delete(&types.RunArtifactLink{}).Error; err != nil {
			return err
		}
		if err := txx.WithContext(dbc.Ctx).
			Where("id IN ?", ids).
			Delete(&types.Artifact{}).Error; err != nil {
			return err
		}
		r.log.Info("artifacts hard-deleted", "count", len(ids))
		return nil
	}
	if dbc.Tx != nil {
		return run(dbc.Tx)
	}
	return r.db.Transaction(run)
}
