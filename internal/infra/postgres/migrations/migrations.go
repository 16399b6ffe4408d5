// Package migrations holds the bun migration set for the quiz content and
// session archive tables.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
