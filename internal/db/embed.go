package db

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DevMode switches migration loading from the embedded copy to the on-disk
// directory so schema work does not require a rebuild per edit.
var DevMode = false

// DevMigrationsDir is where DevMode reads migrations from, relative to the
// working directory.
var DevMigrationsDir = "internal/db/migrations"

// getMigrationsFS returns the migration files rooted at the directory that
// contains them.
func getMigrationsFS() (fs.FS, error) {
	if DevMode {
		return os.DirFS(DevMigrationsDir), nil
	}
	return fs.Sub(migrationsFS, "migrations")
}
