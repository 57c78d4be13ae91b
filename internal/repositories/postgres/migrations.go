package postgres

import "embed"

// Migrations holds the schema applied by postgres.Migrate at startup.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding the files.
const MigrationsDir = "migrations"
