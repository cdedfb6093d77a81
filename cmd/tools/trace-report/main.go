// Command trace-report renders the stored HTML report for a tracking run
// without starting the monitor server.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/visionrig-data/pupil.report/internal/db"
	"github.com/visionrig-data/pupil.report/internal/monitor"
	"github.com/visionrig-data/pupil.report/internal/security"
)

func main() {
	dbFile := flag.String("db", "traces.db", "path to the sqlite trace database")
	runID := flag.String("run", "", "run id to report on (defaults to the most recent run)")
	output := flag.String("o", "", "output path (defaults to report-<run>.html)")
	flag.Parse()

	// OpenDB, not NewDB: a reporting tool has no business migrating the
	// schema out from under the tracker.
	database, err := db.OpenDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database %s: %v", *dbFile, err)
	}
	defer database.Close()

	id := *runID
	if id == "" {
		runs, err := database.ListRuns(1)
		if err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		if len(runs) == 0 {
			log.Fatal("No runs recorded yet")
		}
		id = runs[0].ID
		log.Printf("defaulting to most recent run %s", id)
	}

	run, err := database.GetRun(id)
	if err != nil {
		log.Fatalf("Failed to load run %s: %v", id, err)
	}
	trace, err := database.LoadTrace(id)
	if err != nil {
		log.Fatalf("Failed to load trace for %s: %v", id, err)
	}

	out := *output
	if out == "" {
		out = "report-" + security.SanitizeFilename(run.ID) + ".html"
	}
	if err := security.ValidateExportPath(out); err != nil {
		log.Fatalf("Refusing output path %q: %v", out, err)
	}

	f, err := os.Create(out)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", out, err)
	}
	if err := monitor.WriteReportPage(f, run, trace); err != nil {
		f.Close()
		log.Fatalf("Failed to render report: %v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("Failed to write %s: %v", out, err)
	}
	log.Printf("✓ Created: %s", out)
}
