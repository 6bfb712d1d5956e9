package migrations

import "embed"

// FS contains embedded SQLite migrations for orchestrator storage.
//
//go:embed *.sql
var FS embed.FS
