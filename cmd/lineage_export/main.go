package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/xenophobed/demi-provenance/internal/app"
	"github.com/xenophobed/demi-provenance/internal/pkg/dbctx"
	"github.com/xenophobed/demi-provenance/internal/services"
)

func parseID(raw string) *uuid.UUID {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		fmt.Printf("invalid uuid: %s\n", raw)
		os.Exit(2)
	}
	return &id
}

func main() {
	var artifactID, storyID, runID, contentHash string
	var stats bool
	var limit, offset int
	flag.StringVar(&artifactID, "artifact", "", "export lineage for this artifact id")
	flag.StringVar(&storyID, "story", "", "search artifacts linked to this story id")
	flag.StringVar(&runID, "run", "", "search artifacts linked to this run id")
	flag.StringVar(&contentHash, "hash", "", "search artifacts by content hash")
	flag.BoolVar(&stats, "stats", false, "print storage statistics")
	flag.IntVar(&limit, "limit", 50, "search page size")
	flag.IntVar(&offset, "offset", 0, "search page offset")
	flag.Parse()

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	dbc := dbctx.Background()
	lineage := application.Services.Lineage

	var result interface{}
	switch {
	case stats:
		result, err = lineage.GetStorageStats(dbc)
	case artifactID != "":
		result, err = lineage.ExportLineage(dbc, *parseID(artifactID))
	default:
		result, err = lineage.Search(dbc, services.SearchQuery{
			StoryID:     parseID(storyID),
			RunID:       parseID(runID),
			ContentHash: strings.TrimSpace(contentHash),
			Limit:       limit,
			Offset:      offset,
		})
	}
	if err != nil {
		fmt.Printf("query failed: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Printf("encode result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
