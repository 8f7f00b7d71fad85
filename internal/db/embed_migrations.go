package db

import "embed"

// MigrationFS holds the SQL migrations compiled into the binary so cmd/migrate
// needs no files on disk.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
