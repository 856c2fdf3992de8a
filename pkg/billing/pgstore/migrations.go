package pgstore

import "embed"

// Migrations holds the goose migrations for the billing schema, rooted at
// MigrationsDir. Apply them with pg.Migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const MigrationsDir = "migrations"
