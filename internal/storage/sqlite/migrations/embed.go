package migrations

import "embed"

// FS contains embedded SQLite migrations for replicator storage.
//
//go:embed *.sql
var FS embed.FS
