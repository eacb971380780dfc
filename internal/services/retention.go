package services

import (
	"embed"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gopkg.in/yaml.v3"

	"github.com/xenophobed/demi-provenance/internal/data/repos"
	types "github.com/xenophobed/demi-provenance/internal/domain"
	"github.com/xenophobed/demi-provenance/internal/pkg/dbctx"
	"github.com/xenophobed/demi-provenance/internal/platform/envutil"
	"github.com/xenophobed/demi-provenance/internal/platform/logger"
)

const retentionPolicyEnv = "RETENTION_POLICY_YAML"

//go:embed retention_policies.yaml
var defaultPolicyFS embed.FS

// RetentionPolicy is one (state, ttl) rule. RetentionDays of -1 keeps the
// state forever.
type RetentionPolicy struct {
	LifecycleState types.LifecycleState `yaml:"lifecycle_state"`
	RetentionDays  int                  `yaml:"retention_days"`
}

type RetentionConfig struct {
	Policies []RetentionPolicy `yaml:"policies"`
}

// LoadRetentionConfig reads the policy file named by RETENTION_POLICY_YAML,
// falling back to the embedded defaults.
func LoadRetentionConfig(log *logger.Logger) RetentionConfig {
	raw, err := defaultPolicyFS.ReadFile("retention_policies.yaml")
	if err != nil {
		log.Error("embedded retention policies unreadable", "error", err)
	}
	if path := envutil.String(retentionPolicyEnv, ""); path != "" {
		if fileRaw, err := os.ReadFile(path); err != nil {
			log.Warn("retention policy file unreadable, using defaults", "path", path, "error", err)
		} else {
			raw = fileRaw
		}
	}
	var cfg RetentionConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		log.Error("retention policy yaml invalid, using empty policy set", "error", err)
		return RetentionConfig{}
	}
	var valid []RetentionPolicy
	for _, p := range cfg.Policies {
		if !p.LifecycleState.Valid() {
			log.Warn("dropping retention policy for unknown state", "state", p.LifecycleState)
			continue
		}
		valid = append(valid, p)
	}
	cfg.Policies = valid
	return cfg
}

// CleanupAction is what the sweep decided for one candidate.
type CleanupAction string

const (
	ActionArchive   CleanupAction = "archive"
	ActionDelete    CleanupAction = "delete"
	ActionSafeguard CleanupAction = "safeguard"
)

type CleanupCandidate struct {
	ArtifactID     uuid.UUID            `json:"artifact_id"`
	ArtifactType   types.ArtifactType   `json:"artifact_type"`
	LifecycleState types.LifecycleState `json:"lifecycle_state"`
	AgeDays        int                  `json:"age_days"`
	Action         CleanupAction        `json:"action"`
	Reason         string               `json:"reason,omitempty"`
}

type CleanupReport struct {
	DryRun      bool                         `json:"dry_run"`
	Found       int                          `json:"found"`
	Safeguarded int                          `json:"safeguarded"`
	Archived    int                          `json:"archived"`
	Deleted     int                          `json:"deleted"`
	PerType     map[types.ArtifactType]int   `json:"per_type"`
	Sample      []CleanupCandidate           `json:"sample"`
	Errors      []string                     `json:"errors,omitempty"`
	StartedAt   time.Time                    `json:"started_at"`
	FinishedAt  time.Time                    `json:"finished_at"`
}

const cleanupSampleCap = 20

// RetentionService is the state-machine-aware garbage collector. A published
// artifact, or any artifact held as primary by a story, is never touched no
// matter its age; there is no force-delete path.
type RetentionService interface {
	RunCleanup(dbc dbctx.Context, dryRun bool, candidateLimit int) (*CleanupReport, error)
	Policies() []RetentionPolicy
}

type retentionService struct {
	db           *gorm.DB
	log          *logger.Logger
	cfg          RetentionConfig
	artifactRepo repos.ArtifactRepo
	linkRepo     repos.StoryArtifactLinkRepo
}

func NewRetentionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg RetentionConfig,
	artifactRepo repos.ArtifactRepo,
	linkRepo repos.StoryArtifactLinkRepo,
) RetentionService {
	return &retentionService{
		db:           db,
		log:          baseLog.With("service", "RetentionService"),
		cfg:          cfg,
		artifactRepo: artifactRepo,
		linkRepo:     linkRepo,
	}
}

func (s *retentionService) Policies() []RetentionPolicy {
	return s.cfg.Policies
}

func (s *retentionService) RunCleanup(dbc dbctx.Context, dryRun bool, candidateLimit int) (*CleanupReport, error) {
	if candidateLimit <= 0 {
		candidateLimit = 500
	}
	report := &CleanupReport{
		DryRun:    dryRun,
		PerType:   map[types.ArtifactType]int{},
		StartedAt: time.Now(),
	}

	for _, policy := range s.cfg.Policies {
		if policy.RetentionDays < 0 {
			continue
		}
		cutoff := time.Now().AddDate(0, 0, -policy.RetentionDays)
		expired, err := s.artifactRepo.ListExpired(dbc, policy.LifecycleState, cutoff, candidateLimit)
		if err != nil {
			return nil, err
		}
		for _, artifact := range expired {
			report.Found++
			report.PerType[artifact.ArtifactType]++
			ageDays := int(time.Since(artifact.CreatedAt).Hours() / 24)

			action, reason, err := s.classify(dbc, artifact)
			if err != nil {
				return nil, err
			}
			s.sample(report, artifact, ageDays, action, reason)

			switch action {
			case ActionSafeguard:
				report.Safeguarded++
			case ActionArchive:
				if !dryRun {
					if err := s.artifactRepo.UpdateLifecycleState(dbc, artifact.ID, types.StateArchived); err != nil {
						report.Errors = append(report.Errors,
							fmt.Sprintf("archive %s: %v", artifact.ID, err))
						continue
					}
				}
				report.Archived++
			case ActionDelete:
				if dryRun {
					report.Deleted++
					continue
				}
				deleted, err := s.deleteArtifact(dbc, artifact, report)
				if err != nil {
					report.Errors = append(report.Errors,
						fmt.Sprintf("delete %s: %v", artifact.ID, err))
					continue
				}
				if deleted {
					report.Deleted++
				} else {
					report.Safeguarded++
				}
			}
		}
	}

	report.FinishedAt = time.Now()
	s.log.Info("cleanup finished",
		"dry_run", dryRun,
		"found", report.Found,
		"safeguarded", report.Safeguarded,
		"archived", report.Archived,
		"deleted", report.Deleted,
		"errors", len(report.Errors),
	)
	return report, nil
}

func (s *retentionService) classify(dbc dbctx.Context, artifact *types.Artifact) (CleanupAction, string, error) {
	if artifact.LifecycleState == types.StatePublished {
		return ActionSafeguard, "published", nil
	}
	canonical, err := s.artifactRepo.IsCanonical(dbc, artifact.ID)
	if err != nil {
		return "", "", err
	}
	if canonical {
		return ActionSafeguard, "canonical link", nil
	}
	switch artifact.LifecycleState {
	case types.StateIntermediate, types.StateCandidate:
		return ActionArchive, "", nil
	case types.StateArchived:
		return ActionDelete, "", nil
	}
	return ActionSafeguard, "unexpected state", nil
}

// deleteArtifact removes the row first and the backing file second. A crash
// between the two leaves an orphan file, which is harmless; the opposite
// order could leave a row pointing at nothing. The state and canonicality
// are re-checked inside the delete transaction to close the race where the
// artifact became canonical between scan and delete.
func (s *retentionService) deleteArtifact(dbc dbctx.Context, artifact *types.Artifact, report *CleanupReport) (bool, error) {
	deleted := false
	run := func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		current, err := s.artifactRepo.GetByID(txc, artifact.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return nil
		}
		if current.LifecycleState != types.StateArchived {
			s.log.Warn("delete skipped, state changed since scan",
				"artifact_id", artifact.ID, "lifecycle_state", current.LifecycleState)
			return nil
		}
		canonical, err := s.artifactRepo.IsCanonical(txc, artifact.ID)
		if err != nil {
			return err
		}
		if canonical {
			s.log.Warn("delete skipped, artifact became canonical",
				"artifact_id", artifact.ID)
			return nil
		}
		if err := s.artifactRepo.FullDeleteByIDs(txc, []uuid.UUID{artifact.ID}); err != nil {
			return err
		}
		deleted = true
		return nil
	}

	var err error
	if dbc.Tx != nil {
		err = run(dbc.Tx)
	} else {
		err = s.db.Transaction(run)
	}
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, nil
	}

	if artifact.StoragePath != "" {
		if err := os.Remove(artifact.StoragePath); err != nil && !os.IsNotExist(err) {
			// Row is already gone; an undeletable file is an orphan, not a
			// reason to fail the sweep.
			s.log.Error("backing file removal failed",
				"artifact_id", artifact.ID, "storage_path", artifact.StoragePath, "error", err)
			report.Errors = append(report.Errors,
				fmt.Sprintf("unlink %s: %v", artifact.StoragePath, err))
		}
	}
	return true, nil
}

func (s *retentionService) sample(report *CleanupReport, artifact *types.Artifact, ageDays int, action CleanupAction, reason string) {
	if len(report.Sample) >= cleanupSampleCap {
		return
	}
	report.Sample = append(report.Sample, CleanupCandidate{
		ArtifactID:     artifact.ID,
		ArtifactType:   artifact.ArtifactType,
		LifecycleState: artifact.LifecycleState,
		AgeDays:        ageDays,
		Action:         action,
		Reason:         reason,
	})
}
