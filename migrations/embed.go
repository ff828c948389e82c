// Package migrations embeds the goose migrations for the audit schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
