package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"
)

// DB wraps the sqlite handle holding tracking runs and their traces.
type DB struct {
	*sql.DB
}

// OpenDB opens the database at path and applies the session pragmas. The
// schema is not touched; migrations manage it.
func OpenDB(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := applyPragmas(sqldb); err != nil {
		sqldb.Close()
		return nil, err
	}
	return &DB{sqldb}, nil
}

// NewDB opens the database at path and brings the schema up to the latest
// migration. This is the production entry point.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := db.MigrateUp(migrationsFS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// applyPragmas sets the session pragmas every connection relies on. WAL and
// the busy timeout keep the monitor's reads from blocking the tracking
// loop's writes; foreign keys guard the run/record relation.
func applyPragmas(sqldb *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := sqldb.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}

// AttachAdminRoutes mounts the database debug surface on mux: a tailsql
// live-query UI and an on-demand gzipped backup download.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://traces.db", db.DB, &tailsql.DBOptions{
		Label: "Trace DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("db-stats", "Database size and per-table row counts",
		http.HandlerFunc(db.handleDBStats))

	debug.Handle("backup", "Create and download a backup of the database now",
		http.HandlerFunc(db.handleBackup))
}

// handleBackup snapshots the database with VACUUM INTO and streams the
// result gzipped. The snapshot file is removed once sent.
func (db *DB) handleBackup(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("traces-backup-%d.db", time.Now().Unix())
	path := filepath.Join(os.TempDir(), name)

	if _, err := db.Exec("VACUUM INTO ?", path); err != nil {
		http.Error(w, fmt.Sprintf("failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			log.Printf("failed to remove backup file: %v", err)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", name))
	w.Header().Set("Content-Type", "application/gzip")

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, f); err != nil {
		log.Printf("failed to stream backup: %v", err)
	}
}
