// Package migrations bundles the contract store schema for each supported
// database.
package migrations

import "embed"

// SqliteMigrations holds the schema for sqlite3.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

// PostgresMigrations holds the schema for postgres.
//
//go:embed postgres/*.sql
var PostgresMigrations embed.FS
