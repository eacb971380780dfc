package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/xenophobed/demi-provenance/internal/app"
	"github.com/xenophobed/demi-provenance/internal/pkg/dbctx"
)

func main() {
	var dryRun bool
	var limit int
	flag.BoolVar(&dryRun, "dry-run", false, "classify without mutating anything")
	flag.IntVar(&limit, "limit", 500, "max candidates fetched per policy")
	flag.Parse()

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	report, err := application.Services.Retention.RunCleanup(dbctx.Background(), dryRun, limit)
	if err != nil {
		fmt.Printf("cleanup failed: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Printf("encode report: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
