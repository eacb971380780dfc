package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/xenophobed/demi-provenance/internal/data/repos"
	types "github.com/xenophobed/demi-provenance/internal/domain"
	"github.com/xenophobed/demi-provenance/internal/pkg/dbctx"
	"github.com/xenophobed/demi-provenance/internal/platform/logger"
)

// LegacyStoryMigration is the migration_name under which the backfill
// checkpoints its per-record progress.
const LegacyStoryMigration = "legacy_story_graph_backfill"

const legacyRecordKind = "legacy_story"

type MigrationReport struct {
	MigrationName       string   `json:"migration_name"`
	Total               int64    `json:"total"`
	Completed           int64    `json:"completed"`
	Failed              int64    `json:"failed"`
	Skipped             int64    `json:"skipped"`
	Pending             int64    `json:"pending"`
	InProgress          int64    `json:"in_progress"`
	SuccessRate         float64  `json:"success_rate"`
	UnresolvedRecordIDs []string `json:"unresolved_record_ids,omitempty"`
}

// BackfillService converts pre-graph flat story rows into artifacts, story
// links, and checkpoints. Each record is processed in its own transaction so
// one bad record never rolls back the rest of the batch, and a re-run skips
// everything already completed.
type BackfillService interface {
	Run(dbc dbctx.Context, retryFailed bool, limit int) (*MigrationReport, error)
	GenerateReport(dbc dbctx.Context) (*MigrationReport, error)
}

type backfillService struct {
	db           *gorm.DB
	log          *logger.Logger
	legacyRepo   repos.LegacyStoryRepo
	artifactRepo repos.ArtifactRepo
	linkRepo     repos.StoryArtifactLinkRepo
	statusRepo   repos.MigrationStatusRepo
}

func NewBackfillService(
	db *gorm.DB,
	baseLog *logger.Logger,
	legacyRepo repos.LegacyStoryRepo,
	artifactRepo repos.ArtifactRepo,
	linkRepo repos.StoryArtifactLinkRepo,
	statusRepo repos.MigrationStatusRepo,
) BackfillService {
	return &backfillService{
		db:           db,
		log:          baseLog.With("service", "BackfillService"),
		legacyRepo:   legacyRepo,
		artifactRepo: artifactRepo,
		linkRepo:     linkRepo,
		statusRepo:   statusRepo,
	}
}

func (s *backfillService) Run(dbc dbctx.Context, retryFailed bool, limit int) (*MigrationReport, error) {
	stories, err := s.legacyRepo.List(dbc, limit)
	if err != nil {
		return nil, err
	}
	s.log.Info("backfill starting", "records", len(stories), "retry_failed", retryFailed)

	for _, story := range stories {
		if story == nil || story.ID == uuid.Nil {
			continue
		}
		s.processRecord(dbc, story, retryFailed)
	}
	return s.GenerateReport(dbc)
}

// processRecord isolates all failure to the one record: any error marks the
// checkpoint failed and the loop moves on.
func (s *backfillService) processRecord(dbc dbctx.Context, story *types.LegacyStory, retryFailed bool) {
	recordID := story.ID.String()
	status, err := s.statusRepo.GetByRecord(dbc, LegacyStoryMigration, legacyRecordKind, recordID)
	if err != nil {
		s.log.Error("checkpoint lookup failed", "record_id", recordID, "error", err)
		return
	}

	wasFailed := false
	if status != nil {
		switch status.Status {
		case types.MigrationCompleted, types.MigrationSkipped:
			return
		case types.MigrationFailed:
			if !retryFailed {
				return
			}
			wasFailed = true
		}
		// in_progress means a previous run died mid-record; reprocessing is
		// safe because every slot dedups by content hash.
	} else {
		status, err = s.statusRepo.Create(dbc, &types.MigrationStatus{
			MigrationName: LegacyStoryMigration,
			RecordKind:    legacyRecordKind,
			RecordID:      recordID,
			Status:        types.MigrationPending,
		})
		if err != nil {
			s.log.Error("checkpoint create failed", "record_id", recordID, "error", err)
			return
		}
	}

	if err := s.statusRepo.MarkInProgress(dbc, status.ID, wasFailed); err != nil {
		s.log.Error("checkpoint mark in_progress failed", "record_id", recordID, "error", err)
		return
	}

	artifactsCreated, linksCreated, err := s.migrateStory(dbc, story)
	if err != nil {
		s.log.Warn("record migration failed", "record_id", recordID, "error", err)
		if mErr := s.statusRepo.MarkFailed(dbc, status.ID, err.Error()); mErr != nil {
			s.log.Error("checkpoint mark failed failed", "record_id", recordID, "error", mErr)
		}
		return
	}
	if err := s.statusRepo.MarkCompleted(dbc, status.ID, artifactsCreated, linksCreated); err != nil {
		s.log.Error("checkpoint mark completed failed", "record_id", recordID, "error", err)
	}
}

type legacySlot struct {
	artifactType types.ArtifactType
	role         types.LinkRole
	storagePath  string
	url          string
	inlineText   string
}

func (s *backfillService) migrateStory(dbc dbctx.Context, story *types.LegacyStory) (int, int, error) {
	slots := []legacySlot{
		{artifactType: types.ArtifactImage, role: types.RoleCover, storagePath: story.ImagePath, url: story.ImageURL},
		{artifactType: types.ArtifactAudio, role: types.RoleFinalAudio, storagePath: story.AudioPath, url: story.AudioURL},
		{artifactType: types.ArtifactText, role: types.RoleStoryText, inlineText: story.StoryText},
	}

	artifactsCreated := 0
	linksCreated := 0
	run := func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		for _, slot := range slots {
			if slot.storagePath == "" && slot.url == "" && slot.inlineText == "" {
				continue
			}
			hash, err := slotContentHash(slot)
			if err != nil {
				return fmt.Errorf("hash %s slot: %w", slot.artifactType, err)
			}

			existing, err := s.artifactRepo.GetByContentHash(txc, hash)
			if err != nil {
				return err
			}
			artifactID := uuid.Nil
			if existing != nil {
				artifactID = existing.ID
			} else {
				artifact := &types.Artifact{
					ArtifactType:   slot.artifactType,
					LifecycleState: types.StatePublished,
					ContentHash:    &hash,
					StoragePath:    slot.storagePath,
					URL:            slot.url,
					InlineText:     slot.inlineText,
					CreatedByAgent: "legacy_backfill",
				}
				fillFileMetadata(artifact, slot)
				rows, err := s.artifactRepo.Create(txc, []*types.Artifact{artifact})
				if err != nil {
					return err
				}
				artifactID = rows[0].ID
				artifactsCreated++
			}

			if _, err := s.linkRepo.Upsert(txc, &types.StoryArtifactLink{
				StoryID:    story.ID,
				ArtifactID: artifactID,
				Role:       slot.role,
				IsPrimary:  true,
			}); err != nil {
				return err
			}
			linksCreated++
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
		return 0, 0, err
	}
	return artifactsCreated, linksCreated, nil
}

// slotContentHash hashes the file contents when a readable path is present,
// the inline text when the slot is textual, and the canonical location string
// otherwise, so re-runs dedup deterministically even when the original file
// is gone.
func slotContentHash(slot legacySlot) (string, error) {
	h := sha256.New()
	switch {
	case slot.inlineText != "":
		_, _ = io.WriteString(h, slot.inlineText)
	case slot.storagePath != "":
		f, err := os.Open(slot.storagePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return "", err
			}
			_, _ = io.WriteString(h, slot.storagePath)
			break
		}
		defer f.Close()
		if _, err := io.Copy(h, f); err != nil {
			return "", err
		}
	default:
		_, _ = io.WriteString(h, slot.url)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func fillFileMetadata(artifact *types.Artifact, slot legacySlot) {
	location := slot.storagePath
	if location == "" {
		location = slot.url
	}
	if slot.inlineText != "" {
		artifact.MimeType = "text/plain"
		artifact.FileSize = int64(len(slot.inlineText))
		return
	}
	if mimeType := mime.TypeByExtension(filepath.Ext(location)); mimeType != "" {
		artifact.MimeType = mimeType
	}
	if slot.storagePath != "" {
		if info, err := os.Stat(slot.storagePath); err == nil {
			artifact.FileSize = info.Size()
		}
	}
}

func (s *backfillService) GenerateReport(dbc dbctx.Context) (*MigrationReport, error) {
	counts, err := s.statusRepo.CountByStatus(dbc, LegacyStoryMigration)
	if err != nil {
		return nil, err
	}
	unresolved, err := s.statusRepo.ListUnresolvedRecordIDs(dbc, LegacyStoryMigration)
	if err != nil {
		return nil, err
	}
	report := &MigrationReport{
		MigrationName:       LegacyStoryMigration,
		Completed:           counts[types.MigrationCompleted],
		Failed:              counts[types.MigrationFailed],
		Skipped:             counts[types.MigrationSkipped],
		Pending:             counts[types.MigrationPending],
		InProgress:          counts[types.MigrationInProgress],
		UnresolvedRecordIDs: unresolved,
	}
	for _, c := range counts {
		report.Total += c
	}
	if report.Total > 0 {
		report.SuccessRate = float64(report.Completed) / float64(report.Total)
	}
	return report, nil
}
