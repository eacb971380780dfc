package provenance

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/xenophobed/demi-provenance/internal/data/repos/testutil"
	types "github.com/xenophobed/demi-provenance/internal/domain"
)

func TestMigrationStatusRepoCheckpointCycle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctxFor(ctx, tx)
	repo := NewMigrationStatusRepo(db, testutil.Logger(t))

	const name = "legacy_story_graph_backfill"
	recordID := uuid.NewString()

	if got, err := repo.GetByRecord(dbc, name, "legacy_story", recordID); err != nil || got != nil {
		t.Fatalf("GetByRecord before create: got=%v err=%v", got, err)
	}

	row, err := repo.Create(dbc, &types.MigrationStatus{
		MigrationName: name,
		RecordKind:    "legacy_story",
		RecordID:      recordID,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if row.Status != types.MigrationPending {
		t.Fatalf("initial status: %s", row.Status)
	}

	if err := repo.MarkInProgress(dbc, row.ID, false); err != nil {
		t.Fatalf("MarkInProgress: %v", err)
	}
	if err := repo.MarkFailed(dbc, row.ID, "image missing"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	got, err := repo.GetByRecord(dbc, name, "legacy_story", recordID)
	if err != nil || got == nil {
		t.Fatalf("GetByRecord: got=%v err=%v", got, err)
	}
	if got.Status != types.MigrationFailed || got.ErrorMessage != "image missing" {
		t.Fatalf("failure not recorded: %+v", got)
	}

	// retry increments the counter and clears the error
	if err := repo.MarkInProgress(dbc, row.ID, true); err != nil {
		t.Fatalf("MarkInProgress(retry): %v", err)
	}
	got, _ = repo.GetByRecord(dbc, name, "legacy_story", recordID)
	if got.RetryCount != 1 || got.ErrorMessage != "" {
		t.Fatalf("retry bookkeeping wrong: %+v", got)
	}

	if err := repo.MarkCompleted(dbc, row.ID, 3, 3); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	got, _ = repo.GetByRecord(dbc, name, "legacy_story", recordID)
	if got.Status != types.MigrationCompleted || got.ArtifactsCreated != 3 || got.LinksCreated != 3 {
		t.Fatalf("completion not recorded: %+v", got)
	}
}

func TestMigrationStatusRepoAggregates(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctxFor(ctx, tx)
	repo := NewMigrationStatusRepo(db, testutil.Logger(t))

	const name = "legacy_story_graph_backfill"
	seed := func(status types.MigrationRecordStatus) *types.MigrationStatus {
		row, err := repo.Create(dbc, &types.MigrationStatus{
			MigrationName: name,
			RecordKind:    "legacy_story",
			RecordID:      uuid.NewString(),
			Status:        status,
		})
		if err != nil {
			t.Fatalf("seed %s: %v", status, err)
		}
		return row
	}
	seed(types.MigrationCompleted)
	seed(types.MigrationCompleted)
	failed := seed(types.MigrationFailed)
	seed(types.MigrationSkipped)

	counts, err := repo.CountByStatus(dbc, name)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[types.MigrationCompleted] != 2 || counts[types.MigrationFailed] != 1 || counts[types.MigrationSkipped] != 1 {
		t.Fatalf("counts wrong: %v", counts)
	}

	unresolved, err := repo.ListUnresolvedRecordIDs(dbc, name)
	if err != nil || len(unresolved) != 1 || unresolved[0] != failed.RecordID {
		t.Fatalf("unresolved: err=%v got=%v", err, unresolved)
	}

	failedRows, err := repo.ListByStatus(dbc, name, types.MigrationFailed, 10)
	if err != nil || len(failedRows) != 1 {
		t.Fatalf("ListByStatus: err=%v len=%d", err, len(failedRows))
	}
}
