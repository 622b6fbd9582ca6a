// Package migrations embeds the schema and seed files applied by cmd/migrate.
package migrations

import "embed"

// FS holds sql/*.sql migrations and seeds/*.sql data files.
//
//go:embed sql/*.sql seeds/*.sql
var FS embed.FS
