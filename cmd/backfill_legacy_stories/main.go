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
	var retryFailed bool
	var reportOnly bool
	var limit int
	flag.BoolVar(&retryFailed, "retry-failed", false, "re-attempt records previously marked failed")
	flag.BoolVar(&reportOnly, "report", false, "print the current migration report without processing")
	flag.IntVar(&limit, "limit", 0, "limit number of legacy records processed")
	flag.Parse()

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	dbc := dbctx.Background()
	backfill := application.Services.Backfill

	report, err := func() (interface{}, error) {
		if reportOnly {
			return backfill.GenerateReport(dbc)
		}
		return backfill.Run(dbc, retryFailed, limit)
	}()
	if err != nil {
		fmt.Printf("backfill failed: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Printf("encode report: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
