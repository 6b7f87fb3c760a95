package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	paramsqlite "github.com/cognicore/lexalign/pkg/lexalign/params/sqlite"
)

func main() {
	var (
		db       = flag.String("db", "", "Parameter database written by lexalign -params-db (required)")
		runID    = flag.String("run", "", "Run ID to query (default: most recent)")
		src      = flag.String("src", "", "Restrict to one source word")
		listRuns = flag.Bool("runs", false, "List runs and exit")
	)
	flag.Parse()

	if *db == "" {
		flag.Usage()
		log.Fatal("-db required")
	}

	ctx := context.Background()
	st, err := paramsqlite.Open(ctx, *db)
	if err != nil {
		log.Fatalf("open params db: %v", err)
	}
	defer st.Close()

	runs, err := st.Runs(ctx)
	if err != nil {
		log.Fatalf("list runs: %v", err)
	}
	if len(runs) == 0 {
		log.Fatal("no runs in database")
	}

	if *listRuns {
		for _, r := range runs {
			fmt.Printf("%s\t%s\titerations=%d\t%s\n",
				r.ID, r.Input, r.Iterations, r.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return
	}

	id := *runID
	if id == "" {
		id = runs[len(runs)-1].ID
	}

	entries, err := st.Entries(ctx, id, *src)
	if err != nil {
		log.Fatalf("query run %s: %v", id, err)
	}
	for _, e := range entries {
		fmt.Printf("%s %s %g\n", e.Src, e.Trg, e.LogProb)
	}
}
