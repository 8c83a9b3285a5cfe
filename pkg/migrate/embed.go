package migrate

import "embed"

// EmbeddedDir is the directory name inside Migrations.
const EmbeddedDir = "migrations"

// Migrations holds the SQL files compiled into every binary.
//
//go:embed migrations/*.sql
var Migrations embed.FS
