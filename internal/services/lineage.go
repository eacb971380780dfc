package services

import (
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/xenophobed/demi-provenance/internal/data/repos"
	types "github.com/xenophobed/demi-provenance/internal/domain"
	"github.com/xenophobed/demi-provenance/internal/pkg/apperrors"
	"github.com/xenophobed/demi-provenance/internal/pkg/dbctx"
	"github.com/xenophobed/demi-provenance/internal/platform/logger"
)

// SafetyFlagThreshold marks lineage members whose safety score needs a human
// look during audit.
const SafetyFlagThreshold = 0.85

// LineageConfig caps traversal so a pathological graph cannot run the
// explorer unbounded.
type LineageConfig struct {
	MaxDepth int
	MaxNodes int
}

type LineageResult struct {
	ArtifactID  uuid.UUID                 `json:"artifact_id"`
	Ancestors   []*types.Artifact         `json:"ancestors"`
	Descendants []*types.Artifact         `json:"descendants"`
	Relations   []*types.ArtifactRelation `json:"relations"`
}

type SafetyFlag struct {
	ArtifactID  uuid.UUID `json:"artifact_id"`
	SafetyScore float64   `json:"safety_score"`
}

type LineageExport struct {
	Artifact    *types.Artifact           `json:"artifact"`
	Ancestors   []*types.Artifact         `json:"ancestors"`
	Descendants []*types.Artifact         `json:"descendants"`
	Relations   []*types.ArtifactRelation `json:"relations"`
	Runs        []*types.Run              `json:"runs"`
	SafetyFlags []SafetyFlag              `json:"safety_flags"`
}

type SearchQuery struct {
	ArtifactID  *uuid.UUID
	ContentHash string
	StoryID     *uuid.UUID
	RunID       *uuid.UUID
	Limit       int
	Offset      int
}

type SearchResult struct {
	Total     int64             `json:"total"`
	Artifacts []*types.Artifact `json:"artifacts"`
}

type StorageStats struct {
	Rows       []repos.StorageStatRow              `json:"rows"`
	ByState    map[types.LifecycleState]int64      `json:"by_state"`
	ByType     map[types.ArtifactType]int64        `json:"by_type"`
	BytesState map[types.LifecycleState]int64      `json:"bytes_by_state"`
	BytesType  map[types.ArtifactType]int64        `json:"bytes_by_type"`
	TotalCount int64                               `json:"total_count"`
	TotalBytes int64                               `json:"total_bytes"`
}

// LineageService is the audit-facing read surface: lineage exploration,
// multi-field search, and storage statistics.
type LineageService interface {
	GetLineage(dbc dbctx.Context, artifactID uuid.UUID) (*LineageResult, error)
	ExportLineage(dbc dbctx.Context, artifactID uuid.UUID) (*LineageExport, error)
	Search(dbc dbctx.Context, q SearchQuery) (*SearchResult, error)
	GetStorageStats(dbc dbctx.Context) (*StorageStats, error)
}

type lineageService struct {
	db           *gorm.DB
	log          *logger.Logger
	cfg          LineageConfig
	artifactRepo repos.ArtifactRepo
	relationRepo repos.RelationRepo
	runRepo      repos.RunRepo
	runLinkRepo  repos.RunArtifactLinkRepo
}

func NewLineageService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg LineageConfig,
	artifactRepo repos.ArtifactRepo,
	relationRepo repos.RelationRepo,
	runRepo repos.RunRepo,
	runLinkRepo repos.RunArtifactLinkRepo,
) LineageService {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 10
	}
	if cfg.MaxNodes <= 0 {
		cfg.MaxNodes = 500
	}
	return &lineageService{
		db:           db,
		log:          baseLog.With("service", "LineageService"),
		cfg:          cfg,
		artifactRepo: artifactRepo,
		relationRepo: relationRepo,
		runRepo:      runRepo,
		runLinkRepo:  runLinkRepo,
	}
}

// traverse walks the relation graph breadth-first from start. Ancestors
// follow from -> to edges (toward inputs); descendants follow to -> from.
// Visited nodes are never re-expanded, so a cycle degrades to a no-op
// instead of looping.
func (s *lineageService) traverse(dbc dbctx.Context, start uuid.UUID, ancestors bool) ([]uuid.UUID, []*types.ArtifactRelation, error) {
	visited := map[uuid.UUID]bool{start: true}
	var order []uuid.UUID
	var edges []*types.ArtifactRelation

	frontier := []uuid.UUID{start}
	for depth := 0; depth < s.cfg.MaxDepth && len(frontier) > 0 && len(visited) <= s.cfg.MaxNodes; depth++ {
		var rels []*types.ArtifactRelation
		var err error
		if ancestors {
			rels, err = s.relationRepo.GetFrom(dbc, frontier)
		} else {
			rels, err = s.relationRepo.GetTo(dbc, frontier)
		}
		if err != nil {
			return nil, nil, err
		}
		edges = append(edges, rels...)

		var next []uuid.UUID
		for _, rel := range rels {
			nextID := rel.ToArtifactID
			if !ancestors {
				nextID = rel.FromArtifactID
			}
			if visited[nextID] {
				continue
			}
			visited[nextID] = true
			order = append(order, nextID)
			next = append(next, nextID)
			if len(visited) > s.cfg.MaxNodes {
				s.log.Warn("lineage traversal truncated",
					"artifact_id", start, "max_nodes", s.cfg.MaxNodes)
				break
			}
		}
		frontier = next
	}
	return order, edges, nil
}

func (s *lineageService) GetLineage(dbc dbctx.Context, artifactID uuid.UUID) (*LineageResult, error) {
	root, err := s.artifactRepo.GetByID(dbc, artifactID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, apperrors.ErrNotFound
	}

	ancestorIDs, upEdges, err := s.traverse(dbc, artifactID, true)
	if err != nil {
		return nil, err
	}
	descendantIDs, downEdges, err := s.traverse(dbc, artifactID, false)
	if err != nil {
		return nil, err
	}

	ancestors, err := s.artifactRepo.GetByIDs(dbc, ancestorIDs)
	if err != nil {
		return nil, err
	}
	descendants, err := s.artifactRepo.GetByIDs(dbc, descendantIDs)
	if err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]bool{}
	var relations []*types.ArtifactRelation
	for _, rel := range append(upEdges, downEdges...) {
		if seen[rel.ID] {
			continue
		}
		seen[rel.ID] = true
		relations = append(relations, rel)
	}

	return &LineageResult{
		ArtifactID:  artifactID,
		Ancestors:   ancestors,
		Descendants: descendants,
		Relations:   relations,
	}, nil
}

func (s *lineageService) ExportLineage(dbc dbctx.Context, artifactID uuid.UUID) (*LineageExport, error) {
	root, err := s.artifactRepo.GetByID(dbc, artifactID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, apperrors.ErrNotFound
	}
	lineage, err := s.GetLineage(dbc, artifactID)
	if err != nil {
		return nil, err
	}

	all := make([]*types.Artifact, 0, len(lineage.Ancestors)+len(lineage.Descendants)+1)
	all = append(all, root)
	all = append(all, lineage.Ancestors...)
	all = append(all, lineage.Descendants...)

	ids := make([]uuid.UUID, 0, len(all))
	var flags []SafetyFlag
	for _, a := range all {
		ids = append(ids, a.ID)
		if a.SafetyScore != nil && *a.SafetyScore < SafetyFlagThreshold {
			flags = append(flags, SafetyFlag{ArtifactID: a.ID, SafetyScore: *a.SafetyScore})
		}
	}

	runLinks, err := s.runLinkRepo.GetByArtifactIDs(dbc, ids)
	if err != nil {
		return nil, err
	}
	runIDSet := map[uuid.UUID]bool{}
	var runIDs []uuid.UUID
	for _, link := range runLinks {
		if !runIDSet[link.RunID] {
			runIDSet[link.RunID] = true
			runIDs = append(runIDs, link.RunID)
		}
	}
	runs, err := s.runRepo.GetByIDs(dbc, runIDs)
	if err != nil {
		return nil, err
	}

	return &LineageExport{
		Artifact:    root,
		Ancestors:   lineage.Ancestors,
		Descendants: lineage.Descendants,
		Relations:   lineage.Relations,
		Runs:        runs,
		SafetyFlags: flags,
	}, nil
}

func (s *lineageService) searchQuery(handle *gorm.DB, dbc dbctx.Context, q SearchQuery) *gorm.DB {
	query := handle.WithContext(dbc.Ctx).Model(&types.Artifact{})
	if q.ArtifactID != nil {
		query = query.Where("artifact.id = ?", *q.ArtifactID)
	}
	if q.ContentHash != "" {
		query = query.Where("artifact.content_hash = ?", q.ContentHash)
	}
	if q.StoryID != nil {
		query = query.
			Joins("JOIN story_artifact_link ON story_artifact_link.artifact_id = artifact.id").
			Where("story_artifact_link.story_id = ?", *q.StoryID)
	}
	if q.RunID != nil {
		query = query.
			Joins("JOIN run_artifact_link ON run_artifact_link.artifact_id = artifact.id").
			Where("run_artifact_link.run_id = ?", *q.RunID)
	}
	return query
}

// Search filters artifacts by any combination of id, content hash, story,
// and run. The total is counted before pagination is applied.
func (s *lineageService) Search(dbc dbctx.Context, q SearchQuery) (*SearchResult, error) {
	if q.ArtifactID == nil && q.ContentHash == "" && q.StoryID == nil && q.RunID == nil {
		return nil, apperrors.ErrInvalidArgument
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}

	handle := dbc.Tx
	if handle == nil {
		handle = s.db
	}

	var total int64
	var rows []*types.Artifact

	fetchTotal := func() error {
		return s.searchQuery(handle, dbc, q).Distinct("artifact.id").Count(&total).Error
	}
	fetchRows := func() error {
		return s.searchQuery(handle, dbc, q).
			Distinct("artifact.*").
			Order("artifact.created_at DESC").
			Limit(q.Limit).
			Offset(q.Offset).
			Find(&rows).Error
	}

	if dbc.Tx != nil {
		// Inside a caller transaction the two reads share one connection.
		if err := fetchTotal(); err != nil {
			return nil, err
		}
		if err := fetchRows(); err != nil {
			return nil, err
		}
	} else {
		g := new(errgroup.Group)
		g.Go(fetchTotal)
		g.Go(fetchRows)
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return &SearchResult{Total: total, Artifacts: rows}, nil
}

func (s *lineageService) GetStorageStats(dbc dbctx.Context) (*StorageStats, error) {
	rows, err := s.artifactRepo.CountByStateAndType(dbc)
	if err != nil {
		return nil, err
	}
	stats := &StorageStats{
		Rows:       rows,
		ByState:    map[types.LifecycleState]int64{},
		ByType:     map[types.ArtifactType]int64{},
		BytesState: map[types.LifecycleState]int64{},
		BytesType:  map[types.ArtifactType]int64{},
	}
	for _, row := range rows {
		stats.ByState[row.LifecycleState] += row.Count
		stats.ByType[row.ArtifactType] += row.Count
		stats.BytesState[row.LifecycleState] += row.TotalBytes
		stats.BytesType[row.ArtifactType] += row.TotalBytes
		stats.TotalCount += row.Count
		stats.TotalBytes += row.TotalBytes
	}
	return stats, nil
}
