// Package migrations holds the goose SQL migrations applied at API startup.
package migrations

import "embed"

// FS contains every migration file.
//
//go:embed *.sql
var FS embed.FS
