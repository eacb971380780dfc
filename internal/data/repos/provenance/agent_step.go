package provenance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/xenophobed/demi-provenance/internal/domain"
	"github.com/xenophobed/demi-provenance/internal/pkg/apperrors"
	"github.com/xenophobed/demi-provenance/internal/pkg/dbctx"
	"github.com/xenophobed/demi-provenance/internal/platform/logger"
)

type AgentStepRepo interface {
	Create(dbc dbctx.Context, rows []*types.AgentStep) ([]*types.AgentStep, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.AgentStep, error)
	GetByRunID(dbc dbctx.Context, runID uuid.UUID) ([]*types.AgentStep, error)

	// Start marks the step running and captures started_at for the duration
	// computed at completion.
	Start(dbc dbctx.Context, id uuid.UUID) error

	// Complete finalizes the step. The wall-clock duration since Start is
	// merged into output_data under types.StepDurationKey. A step already in
	// a terminal status is never rewritten; retries are new steps.
	Complete(dbc dbctx.Context, id uuid.UUID, output datatypes.JSON, status types.StepStatus, errMsg string) error
}

type agentStepRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAgentStepRepo(db *gorm.DB, baseLog *logger.Logger) AgentStepRepo {
	return &agentStepRepo{db: db, log: baseLog.With("repo", "AgentStepRepo")}
}

func (r *agentStepRepo) Create(dbc dbctx.Context, rows []*types.AgentStep) ([]*types.AgentStep, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.AgentStep{}, nil
	}
	now := time.Now()
	for _, step := range rows {
		if step.RunID == uuid.Nil || step.StepName == "" {
			return nil, apperrors.ErrInvalidArgument
		}
		if step.ID == uuid.Nil {
			step.ID = uuid.New()
		}
		if step.Status == "" {
			step.Status = types.StepPending
		}
		if !step.Status.Valid() {
			return nil, apperrors.ErrInvalidArgument
		}
		if step.CreatedAt.IsZero() {
			step.CreatedAt = now
		}
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *agentStepRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.AgentStep, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.AgentStep
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *agentStepRepo) GetByRunID(dbc dbctx.Context, runID uuid.UUID) ([]*types.AgentStep, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AgentStep
	if runID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("run_id = ?", runID).
		Order("step_order ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *agentStepRepo) Start(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	res := transaction.WithContext(dbc.Ctx).Model(&types.AgentStep{}).
		Where("id = ? AND status = ?", id, types.StepPending).
		Updates(map[string]interface{}{
			"status":     types.StepRunning,
			"started_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *agentStepRepo) Complete(dbc dbctx.Context, id uuid.UUID, output datatypes.JSON, status types.StepStatus, errMsg string) error {
	if !status.Terminal() {
		return apperrors.ErrInvalidArgument
	}
	run := func(txx *gorm.DB) error {
		var row types.AgentStep
		err := txx.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error
		if err != nil {
			return err
		}
		if row.ID == uuid.Nil {
			return apperrors.ErrNotFound
		}
		if row.Status.Terminal() {
			return fmt.Errorf("step %s already %s: %w", id, row.Status, apperrors.ErrInvalidArgument)
		}

		now := time.Now()
		merged, err := mergeDuration(output, row.StartedAt, now)
		if err != nil {
			return err
		}
		return txx.WithContext(dbc.Ctx).Model(&types.AgentStep{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":        status,
				"output_data":   merged,
				"error_message": errMsg,
				"completed_at":  now,
				"updated_at":    now,
			}).Error
	}
	if dbc.Tx != nil {
		return run(dbc.Tx)
	}
	return r.db.Transaction(run)
}

func mergeDuration(output datatypes.JSON, startedAt *time.Time, now time.Time) (datatypes.JSON, error) {
	payload := map[string]interface{}{}
	if len(output) > 0 {
		if err := json.Unmarshal(output, &payload); err != nil {
			// Caller output shapes are opaque; a non-object payload is kept
			// intact under "output" instead of being rejected.
			payload = map[string]interface{}{"output": json.RawMessage(output)}
		}
	}
	if startedAt != nil {
		payload[types.StepDurationKey] = now.Sub(*startedAt).Milliseconds()
	}
	merged, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(merged), nil
}
