package database

import "embed"

// MigrationFS holds the schema for the payments ledger and subscriber accounts.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
