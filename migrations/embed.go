// Package migrations embeds the address book schema for cmd/migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
