// Package migrations embeds the goose SQL migrations for the Orbit database.
package migrations

import "embed"

// FS contains the SQL migration files applied by store.RunMigrations.
//
//go:embed *.sql
var FS embed.FS
