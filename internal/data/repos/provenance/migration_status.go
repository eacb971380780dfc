package provenance

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/xenophobed/demi-provenance/internal/domain"
	"github.com/xenophobed/demi-provenance/internal/pkg/apperrors"
	"github.com/xenophobed/demi-provenance/internal/pkg/dbctx"
	"github.com/xenophobed/demi-provenance/internal/platform/logger"
)

type MigrationStatusRepo interface {
	Create(dbc dbctx.Context, row *types.MigrationStatus) (*types.MigrationStatus, error)
	GetByRecord(dbc dbctx.Context, migrationName, recordKind, recordID string) (*types.MigrationStatus, error)

	MarkInProgress(dbc dbctx.Context, id uuid.UUID, incrementRetry bool) error
	MarkCompleted(dbc dbctx.Context, id uuid.UUID, artifactsCreated, linksCreated int) error
	MarkFailed(dbc dbctx.Context, id uuid.UUID, errMsg string) error
	MarkSkipped(dbc dbctx.Context, id uuid.UUID) error

	ListByStatus(dbc dbctx.Context, migrationName string, status types.MigrationRecordStatus, limit int) ([]*types.MigrationStatus, error)
	CountByStatus(dbc dbctx.Context, migrationName string) (map[types.MigrationRecordStatus]int64, error)
	ListUnresolvedRecordIDs(dbc dbctx.Context, migrationName string) ([]string, error)
}

type migrationStatusRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMigrationStatusRepo(db *gorm.DB, baseLog *logger.Logger) MigrationStatusRepo {
	return &migrationStatusRepo{db: db, log: baseLog.With("repo", "MigrationStatusRepo")}
}

func (r *migrationStatusRepo) Create(dbc dbctx.Context, row *types.MigrationStatus) (*types.MigrationStatus, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil || row.MigrationName == "" || row.RecordKind == "" || row.RecordID == "" {
		return nil, apperrors.ErrInvalidArgument
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.Status == "" {
		row.Status = types.MigrationPending
	}
	now := time.Now()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	if err := transaction.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *migrationStatusRepo) GetByRecord(dbc dbctx.Context, migrationName, recordKind, recordID string) (*types.MigrationStatus, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if migrationName == "" || recordKind == "" || recordID == "" {
		return nil, nil
	}
	var row types.MigrationStatus
	err := transaction.WithContext(dbc.Ctx).
		Where("migration_name = ? AND record_kind = ? AND record_id = ?", migrationName, recordKind, recordID).
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

func (r *migrationStatusRepo) updateByID(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	updates["updated_at"] = time.Now()
	res := transaction.WithContext(dbc.Ctx).Model(&types.MigrationStatus{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *migrationStatusRepo) MarkInProgress(dbc dbctx.Context, id uuid.UUID, incrementRetry bool) error {
	updates := map[string]interface{}{
		"status":        types.MigrationInProgress,
		"error_message": "",
	}
	if incrementRetry {
		updates["retry_count"] = gorm.Expr("retry_count + 1")
	}
	return r.updateByID(dbc, id, updates)
}

func (r *migrationStatusRepo) MarkCompleted(dbc dbctx.Context, id uuid.UUID, artifactsCreated, linksCreated int) error {
	return r.updateByID(dbc, id, map[string]interface{}{
		"status":            types.MigrationCompleted,
		"artifacts_created": artifactsCreated,
		"links_created":     linksCreated,
		"error_message":     "",
	})
}

func (r *migrationStatusRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, errMsg string) error {
	return r.updateByID(dbc, id, map[string]interface{}{
		"status":        types.MigrationFailed,
		"error_message": errMsg,
	})
}

func (r *migrationStatusRepo) MarkSkipped(dbc dbctx.Context, id uuid.UUID) error {
	return r.updateByID(dbc, id, map[string]interface{}{
		"status": types.MigrationSkipped,
	})
}

func (r *migrationStatusRepo) ListByStatus(dbc dbctx.Context, migrationName string, status types.MigrationRecordStatus, limit int) ([]*types.MigrationStatus, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.MigrationStatus
	q := transaction.WithContext(dbc.Ctx).
		Where("migration_name = ? AND status = ?", migrationName, status).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *migrationStatusRepo) CountByStatus(dbc dbctx.Context, migrationName string) (map[types.MigrationRecordStatus]int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	type bucket struct {
		Status types.MigrationRecordStatus
		Count  int64
	}
	var rows []bucket
	if err := transaction.WithContext(dbc.Ctx).Model(&types.MigrationStatus{}).
		Select("status, COUNT(*) AS count").
		Where("migration_name = ?", migrationName).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[types.MigrationRecordStatus]int64, len(rows))
	for _, b := range rows {
		out[b.Status] = b.Count
	}
	return out, nil
}

func (r *migrationStatusRepo) ListUnresolvedRecordIDs(dbc dbctx.Context, migrationName string) ([]string, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []string
	if err := transaction.WithContext(dbc.Ctx).Model(&types.MigrationStatus{}).
		Where("migration_name = ? AND status IN ?", migrationName,
			[]types.MigrationRecordStatus{types.MigrationFailed, types.MigrationInProgress}).
		Order("created_at ASC").
		Pluck("record_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
